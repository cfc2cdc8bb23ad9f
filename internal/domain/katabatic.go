package domain

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"
)

// FactorName identifies one of the six katabatic factors.
type FactorName string

const (
	FactorPrecipitation           FactorName = "precipitation"
	FactorSkyConditions           FactorName = "sky_conditions"
	FactorPressureChange          FactorName = "pressure_change"
	FactorTemperatureDifferential FactorName = "temperature_differential"
	FactorWavePattern             FactorName = "wave_pattern"
	FactorAtmosphericStability    FactorName = "atmospheric_stability"
)

// Factors lists every factor in evaluation order.
var Factors = []FactorName{
	FactorPrecipitation,
	FactorSkyConditions,
	FactorPressureChange,
	FactorTemperatureDifferential,
	FactorWavePattern,
	FactorAtmosphericStability,
}

// DataSource records where a factor's value came from.
type DataSource string

const (
	DataSourceMeasured         DataSource = "measured"
	DataSourceEstimated        DataSource = "estimated"
	DataSourceHistoricalHybrid DataSource = "historical-hybrid"
)

// PressureTrend is the direction of a pressure change.
type PressureTrend string

const (
	PressureRising  PressureTrend = "rising"
	PressureFalling PressureTrend = "falling"
	PressureStable  PressureTrend = "stable"
)

// Recommendation is the go/maybe/no outcome of a prediction.
type Recommendation string

const (
	RecommendGo    Recommendation = "go"
	RecommendMaybe Recommendation = "maybe"
	RecommendNo    Recommendation = "no"
)

// WeatherPoint is one current or hourly forecast record. Nil fields were not
// provided upstream. Temperatures are °F, pressure hPa, speeds mph, mixing
// height meters, percentages 0–100.
type WeatherPoint struct {
	Time                     time.Time `json:"time"`
	Temperature              *float64  `json:"temperature,omitempty"`
	PrecipitationProbability *float64  `json:"precipitation_probability,omitempty"`
	CloudCover               *float64  `json:"cloud_cover,omitempty"`
	Pressure                 *float64  `json:"pressure,omitempty"`
	WindSpeed                *float64  `json:"wind_speed,omitempty"`
	TransportWindSpeed       *float64  `json:"transport_wind_speed,omitempty"`
	MixingHeight             *float64  `json:"mixing_height,omitempty"`
	DispersionIndex          *float64  `json:"dispersion_index,omitempty"`
}

// LocationForecast pairs a location's current conditions with its hourly forecast.
type LocationForecast struct {
	Name    string         `json:"name"`
	Current WeatherPoint   `json:"current"`
	Hourly  []WeatherPoint `json:"hourly"`
}

// HistoricalDifferential is a valley-minus-mountain temperature differential
// derived from past observations, with its own confidence.
type HistoricalDifferential struct {
	Differential float64 `json:"differential"`
	Confidence   float64 `json:"confidence"`
	SampleCount  int     `json:"sample_count"`
}

// Valid reports whether the differential is usable as an override.
func (h *HistoricalDifferential) Valid() bool {
	return h != nil && isFinite(h.Differential) && h.Confidence > 0 && h.Confidence <= 100
}

// KatabaticInput is the weather series a prediction is computed from.
type KatabaticInput struct {
	Valley     LocationForecast        `json:"valley"`
	Mountain   LocationForecast        `json:"mountain"`
	Historical *HistoricalDifferential `json:"historical,omitempty"`
}

// FactorWeights holds the percentage weight of each factor. They must sum to 100.
type FactorWeights struct {
	Precipitation           float64 `json:"precipitation" yaml:"precipitation"`
	SkyConditions           float64 `json:"sky_conditions" yaml:"sky_conditions"`
	PressureChange          float64 `json:"pressure_change" yaml:"pressure_change"`
	TemperatureDifferential float64 `json:"temperature_differential" yaml:"temperature_differential"`
	WavePattern             float64 `json:"wave_pattern" yaml:"wave_pattern"`
	AtmosphericStability    float64 `json:"atmospheric_stability" yaml:"atmospheric_stability"`
}

// WeightSumTolerance is how far the weight total may drift from 100.
const WeightSumTolerance = 0.01

// Of returns the weight of a factor.
func (w FactorWeights) Of(f FactorName) float64 {
	switch f {
	case FactorPrecipitation:
		return w.Precipitation
	case FactorSkyConditions:
		return w.SkyConditions
	case FactorPressureChange:
		return w.PressureChange
	case FactorTemperatureDifferential:
		return w.TemperatureDifferential
	case FactorWavePattern:
		return w.WavePattern
	case FactorAtmosphericStability:
		return w.AtmosphericStability
	default:
		return 0
	}
}

// Sum returns the total of all six weights.
func (w FactorWeights) Sum() float64 {
	var total float64
	for _, f := range Factors {
		total += w.Of(f)
	}
	return total
}

// Validate rejects negative weights and totals other than 100 ± WeightSumTolerance.
func (w FactorWeights) Validate() error {
	for _, f := range Factors {
		if v := w.Of(f); v < 0 || !isFinite(v) {
			return fmt.Errorf("factor weights: %s weight %v is invalid", f, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-100) > WeightSumTolerance {
		return fmt.Errorf("factor weights: sum to %.4f, want 100", sum)
	}
	return nil
}

// EnhancementPolicy bounds the bonus applied when a historical differential
// upgrades the temperature factor from failing to passing.
type EnhancementPolicy struct {
	ConfidenceBonus  float64 `json:"confidence_bonus" yaml:"confidence_bonus"`
	ProbabilityBonus float64 `json:"probability_bonus" yaml:"probability_bonus"`
	MaxConfidence    float64 `json:"max_confidence" yaml:"max_confidence"`
	MaxProbability   float64 `json:"max_probability" yaml:"max_probability"`
}

// KatabaticCriteria configures the factor thresholds and aggregation.
type KatabaticCriteria struct {
	MaxPrecipitationProbability float64       `json:"max_precipitation_probability" yaml:"max_precipitation_probability"`
	MinClearSky                 float64       `json:"min_clear_sky" yaml:"min_clear_sky"`
	MinPressureChange           float64       `json:"min_pressure_change" yaml:"min_pressure_change"`
	PressureStableEpsilon       float64       `json:"pressure_stable_epsilon" yaml:"pressure_stable_epsilon"`
	PressureTrendWindow         time.Duration `json:"pressure_trend_window" yaml:"pressure_trend_window"`
	FavorablePressureTrend      PressureTrend `json:"favorable_pressure_trend" yaml:"favorable_pressure_trend"`
	MinTemperatureDifferential  float64       `json:"min_temperature_differential" yaml:"min_temperature_differential"`
	MinWaveScore                float64       `json:"min_wave_score" yaml:"min_wave_score"`
	MinStabilityScore           float64       `json:"min_stability_score" yaml:"min_stability_score"`
	ClearSkyWindow              ClockWindow   `json:"clear_sky_window" yaml:"clear_sky_window"`
	PredictionWindow            ClockWindow   `json:"prediction_window" yaml:"prediction_window"`
	TimeZone                    string        `json:"time_zone,omitempty" yaml:"time_zone"`
	MinimumConfidence           float64       `json:"minimum_confidence" yaml:"minimum_confidence"`

	Weights FactorWeights `json:"weights" yaml:"weights"`

	GoProbability          float64 `json:"go_probability" yaml:"go_probability"`
	MaybeProbability       float64 `json:"maybe_probability" yaml:"maybe_probability"`
	MaybeConfidence        float64 `json:"maybe_confidence" yaml:"maybe_confidence"`
	LowConfidenceThreshold float64 `json:"low_confidence_threshold" yaml:"low_confidence_threshold"`
	LowConfidencePenalty   float64 `json:"low_confidence_penalty" yaml:"low_confidence_penalty"`

	Enhancement EnhancementPolicy `json:"enhancement" yaml:"enhancement"`
}

// DefaultKatabaticCriteria returns the criteria used when no config overrides them.
func DefaultKatabaticCriteria() KatabaticCriteria {
	return KatabaticCriteria{
		MaxPrecipitationProbability: 20,
		MinClearSky:                 70,
		MinPressureChange:           2,
		PressureStableEpsilon:       1,
		PressureTrendWindow:         6 * time.Hour,
		FavorablePressureTrend:      PressureRising,
		MinTemperatureDifferential:  5,
		MinWaveScore:                50,
		MinStabilityScore:           50,
		ClearSkyWindow:              ClockWindow{Start: "22:00", End: "06:00"},
		PredictionWindow:            ClockWindow{Start: "06:00", End: "08:00"},
		MinimumConfidence:           50,
		Weights: FactorWeights{
			Precipitation:           25,
			SkyConditions:           20,
			PressureChange:          15,
			TemperatureDifferential: 20,
			WavePattern:             10,
			AtmosphericStability:    10,
		},
		GoProbability:          70,
		MaybeProbability:       45,
		MaybeConfidence:        30,
		LowConfidenceThreshold: 40,
		LowConfidencePenalty:   5,
		Enhancement: EnhancementPolicy{
			ConfidenceBonus:  10,
			ProbabilityBonus: 8,
			MaxConfidence:    95,
			MaxProbability:   95,
		},
	}
}

// Validate checks criteria invariants. Invalid criteria are a configuration
// error and must be rejected before any prediction runs.
func (c KatabaticCriteria) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("katabatic criteria: %w", err)
	}
	percents := map[string]float64{
		"max_precipitation_probability": c.MaxPrecipitationProbability,
		"min_clear_sky":                 c.MinClearSky,
		"min_wave_score":                c.MinWaveScore,
		"min_stability_score":           c.MinStabilityScore,
		"minimum_confidence":            c.MinimumConfidence,
		"go_probability":                c.GoProbability,
		"maybe_probability":             c.MaybeProbability,
		"maybe_confidence":              c.MaybeConfidence,
		"low_confidence_threshold":      c.LowConfidenceThreshold,
		"enhancement.max_confidence":    c.Enhancement.MaxConfidence,
		"enhancement.max_probability":   c.Enhancement.MaxProbability,
	}
	for _, name := range slices.Sorted(maps.Keys(percents)) {
		if !inPercentRange(percents[name]) {
			return fmt.Errorf("katabatic criteria: %s %v outside [0,100]", name, percents[name])
		}
	}
	if c.MaybeProbability > c.GoProbability {
		return errors.New("katabatic criteria: maybe_probability above go_probability")
	}
	if c.MinPressureChange < 0 || c.PressureStableEpsilon < 0 {
		return errors.New("katabatic criteria: negative pressure threshold")
	}
	if c.MinPressureChange < c.PressureStableEpsilon {
		return fmt.Errorf("katabatic criteria: min_pressure_change %v below pressure_stable_epsilon %v; changes in between would read as stable and never meet",
			c.MinPressureChange, c.PressureStableEpsilon)
	}
	if c.PressureTrendWindow <= 0 {
		return errors.New("katabatic criteria: pressure trend window must be positive")
	}
	switch c.FavorablePressureTrend {
	case PressureRising, PressureFalling:
	default:
		return fmt.Errorf("katabatic criteria: favorable pressure trend %q must be rising or falling", c.FavorablePressureTrend)
	}
	if c.LowConfidencePenalty < 0 || c.Enhancement.ConfidenceBonus < 0 || c.Enhancement.ProbabilityBonus < 0 {
		return errors.New("katabatic criteria: negative penalty or bonus")
	}
	if err := c.ClearSkyWindow.Validate(); err != nil {
		return fmt.Errorf("katabatic criteria: clear sky %w", err)
	}
	if err := c.PredictionWindow.Validate(); err != nil {
		return fmt.Errorf("katabatic criteria: prediction %w", err)
	}
	if err := validateZone(c.TimeZone); err != nil {
		return fmt.Errorf("katabatic criteria: %w", err)
	}
	return nil
}

// FactorResult is one factor evaluator's output.
type FactorResult struct {
	Meets      bool       `json:"meets"`
	Confidence float64    `json:"confidence"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit,omitempty"`
	Score      float64    `json:"score"`
	DataSource DataSource `json:"data_source"`
	Rationale  string     `json:"rationale"`
}

// EnhancementRecord documents a historical upgrade of the temperature factor.
type EnhancementRecord struct {
	Applied          bool    `json:"applied"`
	ForecastValue    float64 `json:"forecast_value"`
	HistoricalValue  float64 `json:"historical_value"`
	ConfidenceBonus  float64 `json:"confidence_bonus"`
	ProbabilityBonus float64 `json:"probability_bonus"`
	Reason           string  `json:"reason"`
}

// KatabaticPrediction is the outcome of one prediction run.
type KatabaticPrediction struct {
	Probability     float64                     `json:"probability"`
	Confidence      float64                     `json:"confidence"`
	ConfidenceLabel string                      `json:"confidence_label"`
	Recommendation  Recommendation              `json:"recommendation"`
	Factors         map[FactorName]FactorResult `json:"factors"`
	BestTimeWindow  *TimeWindow                 `json:"best_time_window,omitempty"`
	TargetWindow    TimeWindow                  `json:"target_window"`
	Enhancement     *EnhancementRecord          `json:"enhancement,omitempty"`
	GeneratedAt     time.Time                   `json:"generated_at"`
}

package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Evaluation is the resolved context shared by the factor evaluators: the
// input series, the criteria, and the concrete clear-sky and target windows
// for the dawn being predicted.
type Evaluation struct {
	Input    KatabaticInput
	Criteria KatabaticCriteria
	Now      time.Time
	ClearSky TimeWindow
	Target   TimeWindow
}

// NewEvaluation resolves the target dawn as the next prediction window that
// has not ended at now, and the clear-sky window as the latest occurrence
// ending by the target's end.
func NewEvaluation(input KatabaticInput, criteria KatabaticCriteria, now time.Time) Evaluation {
	local := inLocation(now, criteria.TimeZone)
	targetStart, targetEnd := criteria.PredictionWindow.NextEnding(local)
	clearStart, clearEnd := criteria.ClearSkyWindow.EndingBy(targetEnd)
	return Evaluation{
		Input:    input,
		Criteria: criteria,
		Now:      now,
		ClearSky: TimeWindow{Start: clearStart, End: clearEnd},
		Target:   TimeWindow{Start: targetStart, End: targetEnd},
	}
}

// proxyConfidenceCap bounds the confidence of surface-level proxies for
// quantities that really need upper-air data.
const proxyConfidenceCap = 60.0

// EvaluatePrecipitation checks the maximum precipitation probability over the
// clear-sky window at both locations.
func EvaluatePrecipitation(e Evaluation) FactorResult {
	values := collect(e.ClearSky, func(p WeatherPoint) *float64 { return p.PrecipitationProbability },
		e.Input.Valley, e.Input.Mountain)
	if len(values) == 0 {
		return unavailable(fmt.Sprintf("no precipitation forecast for %s", e.Criteria.ClearSkyWindow))
	}

	peak, avg := maxOf(values), mean(values)
	limit := e.Criteria.MaxPrecipitationProbability
	meets := peak <= limit
	return scored(FactorResult{
		Meets:      meets,
		Confidence: marginConfidence(limit-peak, math.Max(limit, 10)),
		Value:      peak,
		Unit:       "%",
		DataSource: DataSourceMeasured,
		Rationale: fmt.Sprintf("max precipitation probability %.0f%% (avg %.0f%%) over %s vs limit %.0f%%",
			peak, avg, e.Criteria.ClearSkyWindow, limit),
	})
}

// EvaluateSkyConditions checks the average clear-sky percentage over the
// clear-sky window at both locations.
func EvaluateSkyConditions(e Evaluation) FactorResult {
	values := collect(e.ClearSky, func(p WeatherPoint) *float64 { return p.CloudCover },
		e.Input.Valley, e.Input.Mountain)
	if len(values) == 0 {
		return unavailable(fmt.Sprintf("no cloud cover forecast for %s", e.Criteria.ClearSkyWindow))
	}

	clear := 100 - clamp(mean(values), 0, 100)
	minimum := e.Criteria.MinClearSky
	return scored(FactorResult{
		Meets:      clear >= minimum,
		Confidence: marginConfidence(clear-minimum, 30),
		Value:      clear,
		Unit:       "%",
		DataSource: DataSourceMeasured,
		Rationale:  fmt.Sprintf("average clear sky %.0f%% over %s vs minimum %.0f%%", clear, e.Criteria.ClearSkyWindow, minimum),
	})
}

// EvaluatePressureChange compares the first and last pressure readings in
// the trailing window before the target dawn. Valley readings are preferred;
// mountain readings are used when the valley has fewer than two.
func EvaluatePressureChange(e Evaluation) FactorResult {
	window := TimeWindow{Start: e.Target.Start.Add(-e.Criteria.PressureTrendWindow), End: e.Target.Start.Add(time.Nanosecond)}
	readings := timedValues(window, func(p WeatherPoint) *float64 { return p.Pressure }, e.Input.Valley)
	if len(readings) < 2 {
		readings = timedValues(window, func(p WeatherPoint) *float64 { return p.Pressure }, e.Input.Mountain)
	}
	if len(readings) < 2 {
		return unavailable(fmt.Sprintf("fewer than two pressure readings in the %s before %s",
			e.Criteria.PressureTrendWindow, e.Target.Start.Format("15:04")))
	}

	change := readings[len(readings)-1].value - readings[0].value
	trend := classifyTrend(change, e.Criteria.PressureStableEpsilon)
	directional := change
	if e.Criteria.FavorablePressureTrend == PressureFalling {
		directional = -change
	}
	minimum := e.Criteria.MinPressureChange
	meets := trend == e.Criteria.FavorablePressureTrend && directional >= minimum

	return scored(FactorResult{
		Meets:      meets,
		Confidence: marginConfidence(directional-minimum, math.Max(minimum, 1)),
		Value:      change,
		Unit:       "hPa",
		DataSource: DataSourceMeasured,
		Rationale: fmt.Sprintf("pressure %s %+.1f hPa over %s vs %s of at least %.1f hPa",
			trend, change, readings[len(readings)-1].at.Sub(readings[0].at), e.Criteria.FavorablePressureTrend, minimum),
	})
}

// EvaluateTemperatureDifferential compares valley and mountain temperatures
// at now: valley minus mountain.
func EvaluateTemperatureDifferential(e Evaluation) FactorResult {
	valley, okV := temperatureAt(e.Input.Valley, e.Now)
	mountain, okM := temperatureAt(e.Input.Mountain, e.Now)
	if !okV || !okM {
		return unavailable("valley or mountain temperature missing")
	}

	diff := valley - mountain
	minimum := e.Criteria.MinTemperatureDifferential
	return scored(FactorResult{
		Meets:      diff >= minimum,
		Confidence: marginConfidence(diff-minimum, math.Max(minimum, 2)),
		Value:      diff,
		Unit:       "°F",
		DataSource: DataSourceMeasured,
		Rationale: fmt.Sprintf("valley %.1f°F minus mountain %.1f°F = %.1f°F vs minimum %.1f°F",
			valley, mountain, diff, minimum),
	})
}

// EnhanceTemperatureDifferential replaces the forecast differential with a
// historical one when the historical value is valid. It reports false when
// no replacement happened.
func EnhanceTemperatureDifferential(forecast FactorResult, hist *HistoricalDifferential, c KatabaticCriteria) (FactorResult, bool) {
	if !hist.Valid() {
		return forecast, false
	}
	minimum := c.MinTemperatureDifferential
	return scored(FactorResult{
		Meets:      hist.Differential >= minimum,
		Confidence: hist.Confidence,
		Value:      hist.Differential,
		Unit:       "°F",
		DataSource: DataSourceHistoricalHybrid,
		Rationale: fmt.Sprintf("historical differential %.1f°F from %d observations (forecast %.1f°F) vs minimum %.1f°F",
			hist.Differential, hist.SampleCount, forecast.Value, minimum),
	}), true
}

// EvaluateWavePattern scores light transport winds over the clear-sky window
// as favorable. It is a proxy; without transport wind data it refuses to guess.
func EvaluateWavePattern(e Evaluation) FactorResult {
	values := collect(e.ClearSky, func(p WeatherPoint) *float64 { return p.TransportWindSpeed },
		e.Input.Valley, e.Input.Mountain)
	if len(values) == 0 {
		return unavailable("transport wind not provided; wave pattern needs upper-air data")
	}

	transport := mean(values)
	score := transportWindScore(transport)
	return scored(FactorResult{
		Meets:      score >= e.Criteria.MinWaveScore,
		Confidence: math.Min(proxyConfidenceCap, 30+5*float64(len(values))),
		Value:      score,
		DataSource: DataSourceEstimated,
		Rationale: fmt.Sprintf("proxy score %.0f from average transport wind %.1f mph vs minimum %.0f",
			score, transport, e.Criteria.MinWaveScore),
	})
}

// EvaluateAtmosphericStability scores a shallow mixing layer and poor
// dispersion as a stable boundary layer. It is a proxy; without either
// signal it refuses to guess.
func EvaluateAtmosphericStability(e Evaluation) FactorResult {
	heights := collect(e.ClearSky, func(p WeatherPoint) *float64 { return p.MixingHeight },
		e.Input.Valley, e.Input.Mountain)
	dispersion := collect(e.ClearSky, func(p WeatherPoint) *float64 { return p.DispersionIndex },
		e.Input.Valley, e.Input.Mountain)
	if len(heights) == 0 && len(dispersion) == 0 {
		return unavailable("mixing height and dispersion index not provided; stability needs a sounding")
	}

	var scores []float64
	var signals []string
	if len(heights) > 0 {
		h := mean(heights)
		scores = append(scores, mixingHeightScore(h))
		signals = append(signals, fmt.Sprintf("mixing height %.0f m", h))
	}
	if len(dispersion) > 0 {
		d := mean(dispersion)
		scores = append(scores, dispersionScore(d))
		signals = append(signals, fmt.Sprintf("dispersion index %.0f", d))
	}
	score := mean(scores)

	return scored(FactorResult{
		Meets:      score >= e.Criteria.MinStabilityScore,
		Confidence: math.Min(proxyConfidenceCap, 30*float64(len(scores))),
		Value:      score,
		DataSource: DataSourceEstimated,
		Rationale:  fmt.Sprintf("proxy score %.0f from %v vs minimum %.0f", score, signals, e.Criteria.MinStabilityScore),
	})
}

// BestTimeWindow returns the longest run of consecutive valley hours inside
// the target window where every time-of-day factor stays favorable.
func BestTimeWindow(e Evaluation) *TimeWindow {
	points := make([]WeatherPoint, 0, len(e.Input.Valley.Hourly))
	for _, p := range e.Input.Valley.Hourly {
		if inWindow(p.Time, e.Target) {
			points = append(points, p)
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })

	bestStart, bestLen := -1, 0
	var tracker StreakTracker
	for i, p := range points {
		tracker.Observe(favorableHour(p, e.Criteria))
		if tracker.Current() > bestLen {
			bestLen = tracker.Current()
			bestStart = i - bestLen + 1
		}
	}
	if bestStart < 0 {
		return nil
	}

	last := bestStart + bestLen - 1
	end := points[last].Time.Add(time.Hour)
	if last+1 < len(points) {
		end = points[last+1].Time
	}
	if end.After(e.Target.End) {
		end = e.Target.End
	}
	return &TimeWindow{Start: points[bestStart].Time, End: end}
}

// favorableHour requires at least one time-of-day signal and every present
// signal to be within its threshold.
func favorableHour(p WeatherPoint, c KatabaticCriteria) bool {
	seen := false
	if p.PrecipitationProbability != nil {
		seen = true
		if *p.PrecipitationProbability > c.MaxPrecipitationProbability {
			return false
		}
	}
	if p.CloudCover != nil {
		seen = true
		if 100-*p.CloudCover < c.MinClearSky {
			return false
		}
	}
	if p.TransportWindSpeed != nil {
		seen = true
		if transportWindScore(*p.TransportWindSpeed) < c.MinWaveScore {
			return false
		}
	}
	return seen
}

// transportWindScore maps transport wind to 0–100: 5 mph or less is 100,
// 25 mph or more is 0.
func transportWindScore(mph float64) float64 {
	return clamp(100-(mph-5)*5, 0, 100)
}

// mixingHeightScore maps mixing height to 0–100: 300 m or less is 100,
// 1800 m or more is 0.
func mixingHeightScore(meters float64) float64 {
	return clamp(100-(meters-300)/15, 0, 100)
}

// dispersionScore maps a dispersion index to 0–100: lower dispersion means a
// more stable layer.
func dispersionScore(index float64) float64 {
	return clamp(100-index, 0, 100)
}

func classifyTrend(change, epsilon float64) PressureTrend {
	switch {
	case math.Abs(change) < epsilon:
		return PressureStable
	case change > 0:
		return PressureRising
	default:
		return PressureFalling
	}
}

// temperatureAt returns the current temperature, or the hourly value nearest
// to now within three hours.
func temperatureAt(loc LocationForecast, now time.Time) (float64, bool) {
	if loc.Current.Temperature != nil && isFinite(*loc.Current.Temperature) {
		return *loc.Current.Temperature, true
	}
	best, bestGap := 0.0, 3*time.Hour+time.Nanosecond
	found := false
	for _, p := range loc.Hourly {
		if p.Temperature == nil || !isFinite(*p.Temperature) {
			continue
		}
		gap := p.Time.Sub(now)
		if gap < 0 {
			gap = -gap
		}
		if gap < bestGap {
			best, bestGap, found = *p.Temperature, gap, true
		}
	}
	return best, found
}

// unavailable is the result for a factor whose upstream signals are missing.
// It scores 0, so it adds nothing to the probability and never outranks a
// measured factor that fails.
func unavailable(reason string) FactorResult {
	return FactorResult{
		Meets:      false,
		Confidence: 0,
		Score:      0,
		DataSource: DataSourceEstimated,
		Rationale:  reason,
	}
}

// scored fills in the favorability score of a measured or proxied factor:
// 50 ± confidence/2 depending on meets.
func scored(r FactorResult) FactorResult {
	r.Confidence = clamp(r.Confidence, 0, 100)
	if r.Meets {
		r.Score = 50 + r.Confidence/2
	} else {
		r.Score = 50 - r.Confidence/2
	}
	return r
}

// marginConfidence is 50 at the threshold and approaches 100 as the value
// moves scale units away from it on either side.
func marginConfidence(margin, scale float64) float64 {
	if scale <= 0 {
		scale = 1
	}
	return clamp(50+50*math.Abs(margin)/scale, 50, 100)
}

type timedValue struct {
	at    time.Time
	value float64
}

// timedValues gathers the current and hourly values of the locations that
// fall inside window, ordered by time.
func timedValues(window TimeWindow, field func(WeatherPoint) *float64, locations ...LocationForecast) []timedValue {
	var out []timedValue
	for _, loc := range locations {
		points := append([]WeatherPoint{loc.Current}, loc.Hourly...)
		for _, p := range points {
			v := field(p)
			if v == nil || !isFinite(*v) || p.Time.IsZero() || !inWindow(p.Time, window) {
				continue
			}
			out = append(out, timedValue{at: p.Time, value: *v})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	return out
}

func collect(window TimeWindow, field func(WeatherPoint) *float64, locations ...LocationForecast) []float64 {
	tv := timedValues(window, field, locations...)
	out := make([]float64, len(tv))
	for i, v := range tv {
		out[i] = v.value
	}
	return out
}

func inWindow(t time.Time, w TimeWindow) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}

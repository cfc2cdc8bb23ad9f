package domain

import (
	"fmt"
	"math"
	"time"
)

// KatabaticPredictor aggregates the six factors into a prediction. Criteria
// are validated once, at construction.
type KatabaticPredictor struct {
	criteria KatabaticCriteria
}

// NewKatabaticPredictor returns a predictor, or an error when the criteria
// violate an invariant (for example weights not summing to 100).
func NewKatabaticPredictor(criteria KatabaticCriteria) (*KatabaticPredictor, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	return &KatabaticPredictor{criteria: criteria}, nil
}

// Criteria returns the predictor's criteria.
func (p *KatabaticPredictor) Criteria() KatabaticCriteria { return p.criteria }

// Predict evaluates the factors for the next dawn after now. Missing signals
// lower confidence but never prevent a result. The output depends only on
// the arguments.
func (p *KatabaticPredictor) Predict(input KatabaticInput, now time.Time) KatabaticPrediction {
	c := p.criteria
	e := NewEvaluation(input, c, now)

	forecastTemp := EvaluateTemperatureDifferential(e)
	temp, enhanced := EnhanceTemperatureDifferential(forecastTemp, input.Historical, c)

	factors := map[FactorName]FactorResult{
		FactorPrecipitation:           EvaluatePrecipitation(e),
		FactorSkyConditions:           EvaluateSkyConditions(e),
		FactorPressureChange:          EvaluatePressureChange(e),
		FactorTemperatureDifferential: temp,
		FactorWavePattern:             EvaluateWavePattern(e),
		FactorAtmosphericStability:    EvaluateAtmosphericStability(e),
	}

	probability, confidence := aggregate(factors, c)

	var record *EnhancementRecord
	if enhanced {
		record = &EnhancementRecord{
			ForecastValue:   forecastTemp.Value,
			HistoricalValue: temp.Value,
		}
		if !forecastTemp.Meets && temp.Meets {
			before := probability
			beforeConf := confidence
			probability = boundedBonus(probability, c.Enhancement.ProbabilityBonus, c.Enhancement.MaxProbability)
			confidence = boundedBonus(confidence, c.Enhancement.ConfidenceBonus, c.Enhancement.MaxConfidence)
			record.Applied = true
			record.ProbabilityBonus = probability - before
			record.ConfidenceBonus = confidence - beforeConf
			record.Reason = "historical differential upgraded temperature factor from failing to passing"
		} else {
			record.Reason = "historical differential used; no failing-to-passing upgrade"
		}
	}

	probability = round1(probability)
	confidence = round1(confidence)

	return KatabaticPrediction{
		Probability:     probability,
		Confidence:      confidence,
		ConfidenceLabel: confidenceLabel(confidence),
		Recommendation:  recommend(probability, confidence, c),
		Factors:         factors,
		BestTimeWindow:  BestTimeWindow(e),
		TargetWindow:    e.Target,
		Enhancement:     record,
		GeneratedAt:     now,
	}
}

// aggregate returns the weighted probability and confidence. Confidence
// loses LowConfidencePenalty for every low-confidence factor beyond the first.
func aggregate(factors map[FactorName]FactorResult, c KatabaticCriteria) (float64, float64) {
	var probability, confidence float64
	low := 0
	for _, name := range Factors {
		r := factors[name]
		w := c.Weights.Of(name) / 100
		probability += w * r.Score
		confidence += w * r.Confidence
		if r.Confidence < c.LowConfidenceThreshold {
			low++
		}
	}
	if low > 1 {
		confidence -= c.LowConfidencePenalty * float64(low-1)
	}
	return clamp(probability, 0, 100), clamp(confidence, 0, 100)
}

// boundedBonus adds bonus to v without exceeding ceiling. A value already
// above the ceiling is left alone.
func boundedBonus(v, bonus, ceiling float64) float64 {
	if v >= ceiling {
		return v
	}
	return math.Min(v+bonus, ceiling)
}

func recommend(probability, confidence float64, c KatabaticCriteria) Recommendation {
	switch {
	case probability >= c.GoProbability && confidence >= c.MinimumConfidence:
		return RecommendGo
	case probability >= c.MaybeProbability && confidence >= c.MaybeConfidence:
		return RecommendMaybe
	default:
		return RecommendNo
	}
}

func confidenceLabel(confidence float64) string {
	switch {
	case confidence >= 70:
		return "high"
	case confidence >= 40:
		return "medium"
	default:
		return "low"
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// Summary is a one-line description of a prediction, for logs.
func (p KatabaticPrediction) Summary() string {
	return fmt.Sprintf("%s: %.0f%% probability, %s confidence (%.0f)",
		p.Recommendation, p.Probability, p.ConfidenceLabel, p.Confidence)
}

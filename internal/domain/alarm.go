package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AnalysisWindow selects which samples an alarm analysis looks at: either a
// trailing Lookback from the reference time or a fixed local Clock range.
// Clock takes precedence when set.
type AnalysisWindow struct {
	Lookback time.Duration `json:"lookback" yaml:"lookback"`
	Clock    ClockWindow   `json:"clock" yaml:"clock"`
	TimeZone string        `json:"time_zone,omitempty" yaml:"time_zone"`
}

// Bounds returns the [start, end] interval for the given reference time.
// The end never exceeds ref.
func (w AnalysisWindow) Bounds(ref time.Time) (time.Time, time.Time) {
	if !w.Clock.IsZero() {
		start, end := w.Clock.Around(inLocation(ref, w.TimeZone))
		if end.After(ref) {
			end = ref
		}
		return start, end
	}
	lookback := w.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return ref.Add(-lookback), ref
}

func (w AnalysisWindow) describe() string {
	if !w.Clock.IsZero() {
		return "window " + w.Clock.String()
	}
	lookback := w.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return "last " + lookback.String()
}

// DefaultLookback is the trailing analysis window used when none is configured.
const DefaultLookback = 60 * time.Minute

// AlarmCriteria configures when wind is good enough to raise an alarm.
type AlarmCriteria struct {
	MinimumAverageSpeed           float64           `json:"minimum_average_speed" yaml:"minimum_average_speed"`
	DirectionConsistencyThreshold float64           `json:"direction_consistency_threshold" yaml:"direction_consistency_threshold"`
	MinimumConsecutivePoints      int               `json:"minimum_consecutive_points" yaml:"minimum_consecutive_points"`
	DirectionDeviationThreshold   float64           `json:"direction_deviation_threshold" yaml:"direction_deviation_threshold"`
	PreferredDirection            *DirectionSector  `json:"preferred_direction,omitempty" yaml:"preferred_direction"`
	Window                        AnalysisWindow    `json:"window" yaml:"window"`
	ConsistencyMethod             ConsistencyMethod `json:"consistency_method,omitempty" yaml:"consistency_method"`
	ModalBucketSize               float64           `json:"modal_bucket_size,omitempty" yaml:"modal_bucket_size"`
}

// DefaultAlarmCriteria returns the criteria used when no config overrides them.
func DefaultAlarmCriteria() AlarmCriteria {
	return AlarmCriteria{
		MinimumAverageSpeed:           10,
		DirectionConsistencyThreshold: 70,
		MinimumConsecutivePoints:      4,
		DirectionDeviationThreshold:   45,
		Window:                        AnalysisWindow{Lookback: DefaultLookback},
		ConsistencyMethod:             ConsistencyResultant,
		ModalBucketSize:               DefaultModalBucketSize,
	}
}

// Validate checks criteria invariants.
func (c AlarmCriteria) Validate() error {
	if c.MinimumAverageSpeed < 0 {
		return errors.New("alarm criteria: negative minimum average speed")
	}
	if !inPercentRange(c.DirectionConsistencyThreshold) {
		return errors.New("alarm criteria: direction consistency threshold outside [0,100]")
	}
	if c.MinimumConsecutivePoints < 0 {
		return errors.New("alarm criteria: negative minimum consecutive points")
	}
	if c.DirectionDeviationThreshold < 0 || c.DirectionDeviationThreshold > 180 {
		return errors.New("alarm criteria: direction deviation threshold outside [0,180]")
	}
	if c.PreferredDirection != nil && (c.PreferredDirection.HalfWidth < 0 || c.PreferredDirection.HalfWidth > 180) {
		return errors.New("alarm criteria: preferred direction half width outside [0,180]")
	}
	if c.Window.Lookback < 0 {
		return errors.New("alarm criteria: negative lookback")
	}
	if !c.Window.Clock.IsZero() {
		if err := c.Window.Clock.Validate(); err != nil {
			return fmt.Errorf("alarm criteria: %w", err)
		}
	}
	if err := validateZone(c.Window.TimeZone); err != nil {
		return fmt.Errorf("alarm criteria: %w", err)
	}
	if !c.ConsistencyMethod.Valid() {
		return fmt.Errorf("alarm criteria: unknown consistency method %q", c.ConsistencyMethod)
	}
	if c.ModalBucketSize < 0 || c.ModalBucketSize > 360 {
		return errors.New("alarm criteria: modal bucket size outside [0,360]")
	}
	return nil
}

// AlarmVerdict is the outcome of one wind analysis. Built fresh per call.
type AlarmVerdict struct {
	IsAlarmWorthy         bool    `json:"is_alarm_worthy"`
	AverageSpeed          float64 `json:"average_speed"`
	DirectionConsistency  float64 `json:"direction_consistency"`
	ConsecutiveGoodPoints int     `json:"consecutive_good_points"`
	MeanDirection         float64 `json:"mean_direction"`
	SampleCount           int     `json:"sample_count"`
	SpeedMet              bool    `json:"speed_met"`
	ConsistencyMet        bool    `json:"consistency_met"`
	StreakMet             bool    `json:"streak_met"`
	Explanation           string  `json:"explanation"`
}

// NoDataExplanation is the explanation carried by a verdict with no samples in its window.
const NoDataExplanation = "no wind data available"

// AnalyzeWind evaluates samples inside the criteria window ending at
// referenceTime. It never fails; a window without wind readings yields a
// zero verdict. Samples without wind stay out of the speed and direction
// statistics and break a good-point streak.
func AnalyzeWind(samples []WindSample, criteria AlarmCriteria, referenceTime time.Time) AlarmVerdict {
	windowed := filterWindow(samples, criteria.Window, referenceTime)
	directions := make([]float64, 0, len(windowed))
	var totalSpeed float64
	for _, s := range windowed {
		if !s.HasWind {
			continue
		}
		totalSpeed += s.Speed
		directions = append(directions, s.Direction)
	}
	if len(directions) == 0 {
		return AlarmVerdict{
			Explanation: fmt.Sprintf("%s in %s", NoDataExplanation, criteria.Window.describe()),
		}
	}
	avgSpeed := totalSpeed / float64(len(directions))

	bucket := criteria.ModalBucketSize
	if bucket <= 0 {
		bucket = DefaultModalBucketSize
	}

	var stats DirectionStats
	if criteria.ConsistencyMethod == ConsistencyModalDeviation {
		stats = ModalDeviationConsistency(directions, criteria.DirectionDeviationThreshold, bucket)
	} else {
		stats = DirectionConsistency(directions)
	}

	mode := ModalDirection(directions, bucket)
	streak := LongestStreak(windowed, func(s WindSample) bool {
		if !s.HasWind || s.Speed < criteria.MinimumAverageSpeed {
			return false
		}
		if criteria.PreferredDirection != nil {
			return criteria.PreferredDirection.Contains(s.Direction)
		}
		return AngularDifference(s.Direction, mode) <= criteria.DirectionDeviationThreshold
	})

	v := AlarmVerdict{
		AverageSpeed:          avgSpeed,
		DirectionConsistency:  stats.Consistency,
		ConsecutiveGoodPoints: streak,
		MeanDirection:         stats.MeanDirection,
		SampleCount:           len(directions),
		SpeedMet:              avgSpeed >= criteria.MinimumAverageSpeed,
		ConsistencyMet:        stats.Consistency >= criteria.DirectionConsistencyThreshold,
		StreakMet:             streak >= criteria.MinimumConsecutivePoints,
	}
	v.IsAlarmWorthy = v.SpeedMet && v.ConsistencyMet && v.StreakMet
	v.Explanation = explainVerdict(v, criteria)
	return v
}

// filterWindow returns the time-ordered samples inside the window.
func filterWindow(samples []WindSample, window AnalysisWindow, ref time.Time) []WindSample {
	start, end := window.Bounds(ref)
	out := make([]WindSample, 0, len(samples))
	for _, s := range sortedByTime(samples) {
		if s.Timestamp.Before(start) || s.Timestamp.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func explainVerdict(v AlarmVerdict, c AlarmCriteria) string {
	var b strings.Builder
	if v.IsAlarmWorthy {
		b.WriteString("alarm worthy: ")
	} else {
		b.WriteString("not alarm worthy: ")
	}
	fmt.Fprintf(&b, "average speed %.1f mph vs minimum %.1f (%s); ",
		v.AverageSpeed, c.MinimumAverageSpeed, passFail(v.SpeedMet))
	fmt.Fprintf(&b, "direction consistency %.0f%% vs minimum %.0f%% (%s); ",
		v.DirectionConsistency, c.DirectionConsistencyThreshold, passFail(v.ConsistencyMet))
	fmt.Fprintf(&b, "%d consecutive good points vs minimum %d (%s)",
		v.ConsecutiveGoodPoints, c.MinimumConsecutivePoints, passFail(v.StreakMet))
	if c.PreferredDirection != nil {
		fmt.Fprintf(&b, "; preferred sector %.0f±%.0f°", c.PreferredDirection.Center, c.PreferredDirection.HalfWidth)
	}
	fmt.Fprintf(&b, "; %d samples in %s", v.SampleCount, c.Window.describe())
	return b.String()
}

func passFail(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}

func inPercentRange(v float64) bool { return v >= 0 && v <= 100 }

// Package domain is the wind and weather analysis engine.
//
// Everything in this package is a pure function over caller-supplied
// snapshots. Nothing here performs I/O, reads the system clock, or keeps
// global state; "now" is always an explicit parameter. The only stateful type
// is [PredictionLockManager], and it is single-writer: callers that share one
// across goroutines must serialize access themselves.
//
// # Samples
//
// Station feeds are irregular and loosely typed. Speed, gust, and direction
// may arrive as JSON numbers or strings, metric or imperial, and the outdoor
// sensor block may be absent entirely. [NormalizeSample] isolates all
// coercion:
//
//	"12.5"  → 12.5
//	"calm"  → 0      (malformed text coerces to zero and counts as missing)
//	null    → 0      (missing)
//
// Units: when both wind_speed_mph and wind_speed_ms are present the mph value
// wins, so the provider's own conversion is not re-derived. Metric-only
// values convert at 1 m/s = 2.23694 mph. Directions are folded into [0,360)
// with ((d % 360) + 360) % 360. Gust is raised to speed when lower.
//
// # Direction consistency
//
// The canonical score is the resultant vector length: each direction is a
// unit vector, the sine and cosine components are averaged, and the magnitude
// of the mean vector × 100 is the consistency. The angle of the mean vector is
// the circular mean. {350, 5, 355, 10} scores ~98, not "scattered".
//
// An alternative, [ConsistencyModalDeviation], scores the percentage of
// samples within a fixed deviation of the bucketed modal direction. It is
// opt-in via [AlarmCriteria].ConsistencyMethod and never substituted silently.
//
// Fewer than two samples score 0: one sample is not evidence of consistency.
//
// [AnalyzeWind] reads only samples with HasWind set. A sample without wind
// carries speed 0 and direction 0, which would otherwise pass for a calm
// from due north; it is left out of the average, the consistency, the modal
// direction, and SampleCount, and it ends any run of good points.
//
// # Transmission health
//
// [TransmissionAnalyzer.Summarize] mixes two kinds of flag on purpose:
//
//	IsFullTransmission, HasOutdoorSensors, HasWindData   OR across the series ("the station is capable")
//	HasCompleteSensorData                               AND across the series
//	CurrentTransmissionStatus                           latest sample only ("the station right now")
//
// A station with one perfect sample an hour ago and an all-missing sample now
// reports IsFullTransmission=true and CurrentTransmissionStatus=offline. Both
// are correct; they answer different questions.
//
// # Katabatic prediction
//
// Six factor evaluators feed [KatabaticPredictor]. Wave pattern and
// atmospheric stability need upper-air data most consumer providers do not
// expose, so they are surface-level proxies, always tagged
// [DataSourceEstimated], and report meets=false with zero confidence when the
// proxy signals are absent. Any factor without data scores 0, so removing
// a signal can never lift the probability above the same signal measured and
// failing. A historical temperature differential may replace
// the forecast one; when that flips the factor from failing to passing the
// predictor adds a bounded, configured bonus and records it in
// [KatabaticPrediction].Enhancement.
package domain

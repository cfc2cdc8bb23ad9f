package domain

import (
	"errors"
	"slices"
	"sort"
	"time"
)

// TransmissionStatus is the health of a station's latest transmission.
type TransmissionStatus string

const (
	StatusGood    TransmissionStatus = "good"
	StatusPartial TransmissionStatus = "partial"
	StatusOffline TransmissionStatus = "offline"
)

// GapType classifies a transmission gap.
type GapType string

const (
	GapFullOutage         GapType = "full-outage"
	GapPartialDegradation GapType = "partial-degradation"
)

// DefaultGapThreshold is the silence or degradation span that counts as a gap.
const DefaultGapThreshold = 15 * time.Minute

// TransmissionGap is a detected interval of missing or incomplete data.
type TransmissionGap struct {
	Type            GapType   `json:"type"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes float64   `json:"duration_minutes"`
	AffectedSensors []string  `json:"affected_sensors"`
}

// StationHealth summarizes a station's transmission history.
//
// IsFullTransmission, HasOutdoorSensors, and HasWindData are true when ANY
// sample met the condition: they describe what the station is capable of.
// CurrentTransmissionStatus looks only at the most recent sample. The two can
// disagree, and that is expected.
type StationHealth struct {
	IsFullTransmission        bool               `json:"is_full_transmission"`
	HasOutdoorSensors         bool               `json:"has_outdoor_sensors"`
	HasWindData               bool               `json:"has_wind_data"`
	HasCompleteSensorData     bool               `json:"has_complete_sensor_data"`
	LastGoodTransmissionTime  *time.Time         `json:"last_good_transmission_time"`
	TransmissionGaps          []TransmissionGap  `json:"transmission_gaps"`
	CurrentTransmissionStatus TransmissionStatus `json:"current_transmission_status"`
	SampleCount               int                `json:"sample_count"`
}

// TransmissionAnalyzer classifies samples and summarizes station health.
type TransmissionAnalyzer struct {
	// GapThreshold is the minimum silence, or incomplete-data span, reported as a gap.
	GapThreshold time.Duration `json:"gap_threshold" yaml:"gap_threshold"`
	// RequiredFields are the fields whose absence counts as degradation.
	// Defaults to wind, outdoor temperature, and outdoor humidity.
	RequiredFields []string `json:"required_fields,omitempty" yaml:"required_fields"`
}

// NewTransmissionAnalyzer returns an analyzer with the given gap threshold
// and the default required fields. A non-positive threshold uses the default.
func NewTransmissionAnalyzer(gapThreshold time.Duration) TransmissionAnalyzer {
	if gapThreshold <= 0 {
		gapThreshold = DefaultGapThreshold
	}
	return TransmissionAnalyzer{GapThreshold: gapThreshold}
}

// Validate checks analyzer settings.
func (a TransmissionAnalyzer) Validate() error {
	if a.GapThreshold <= 0 {
		return errors.New("transmission: gap threshold must be positive")
	}
	return nil
}

// Classify reports which expected fields a sample carries. Fields the
// station itself reported as missing are merged in.
func (a TransmissionAnalyzer) Classify(sample WindSample) TransmissionQuality {
	missing := map[string]bool{}
	if !sample.HasWind {
		missing[FieldWind] = true
	}
	if sample.Temperature == nil {
		missing[FieldOutdoorTemperature] = true
	}
	if sample.Humidity == nil {
		missing[FieldOutdoorHumidity] = true
	}
	if sample.Transmission != nil {
		for _, f := range sample.Transmission.MissingDataFields {
			if f != "" {
				missing[f] = true
			}
		}
	}

	return TransmissionQuality{
		IsFullTransmission: len(missing) == 0,
		HasOutdoorSensors:  !missing[FieldOutdoorTemperature] && !missing[FieldOutdoorHumidity],
		MissingDataFields:  orderedFields(missing),
	}
}

// Summarize aggregates a series into a StationHealth. The input need not be sorted.
func (a TransmissionAnalyzer) Summarize(samples []WindSample) StationHealth {
	health := StationHealth{
		TransmissionGaps:          []TransmissionGap{},
		CurrentTransmissionStatus: StatusOffline,
		SampleCount:               len(samples),
	}
	if len(samples) == 0 {
		return health
	}

	sorted := sortedByTime(samples)
	qualities := make([]TransmissionQuality, len(sorted))
	health.HasCompleteSensorData = true
	for i, s := range sorted {
		q := a.Classify(s)
		qualities[i] = q

		health.IsFullTransmission = health.IsFullTransmission || q.IsFullTransmission
		health.HasOutdoorSensors = health.HasOutdoorSensors || q.HasOutdoorSensors
		health.HasWindData = health.HasWindData || !slices.Contains(q.MissingDataFields, FieldWind)
		health.HasCompleteSensorData = health.HasCompleteSensorData && q.IsFullTransmission
		if q.IsFullTransmission {
			ts := s.Timestamp
			health.LastGoodTransmissionTime = &ts
		}
	}

	health.CurrentTransmissionStatus = statusOf(qualities[len(qualities)-1])
	health.TransmissionGaps = a.detectGaps(sorted, qualities)
	return health
}

// DetectGaps returns the merged transmission gaps of a series.
func (a TransmissionAnalyzer) DetectGaps(samples []WindSample) []TransmissionGap {
	sorted := sortedByTime(samples)
	qualities := make([]TransmissionQuality, len(sorted))
	for i, s := range sorted {
		qualities[i] = a.Classify(s)
	}
	return a.detectGaps(sorted, qualities)
}

// detectGaps walks a time-sorted series. A silence longer than the threshold
// after a complete sample is a full outage. A run of samples missing required
// fields is a partial degradation spanning from its first sample to the next
// complete sample (or the last sample of the series), reported when it lasts
// at least the threshold. Silence that follows an incomplete sample belongs
// to the degradation run.
func (a TransmissionAnalyzer) detectGaps(sorted []WindSample, qualities []TransmissionQuality) []TransmissionGap {
	threshold := a.GapThreshold
	if threshold <= 0 {
		threshold = DefaultGapThreshold
	}
	required := a.RequiredFields
	if len(required) == 0 {
		required = expectedFields
	}

	var gaps []TransmissionGap
	runStart := -1
	runMissing := map[string]bool{}

	closeRun := func(end time.Time) {
		start := sorted[runStart].Timestamp
		if end.Sub(start) >= threshold {
			gaps = append(gaps, newGap(GapPartialDegradation, start, end, orderedFields(runMissing)))
		}
		runStart = -1
		runMissing = map[string]bool{}
	}

	for i, s := range sorted {
		if i > 0 && runStart < 0 {
			prev := sorted[i-1].Timestamp
			if s.Timestamp.Sub(prev) > threshold {
				gaps = append(gaps, newGap(GapFullOutage, prev, s.Timestamp, append([]string(nil), expectedFields...)))
			}
		}

		missing := intersect(qualities[i].MissingDataFields, required)
		if len(missing) > 0 {
			if runStart < 0 {
				runStart = i
			}
			for _, f := range missing {
				runMissing[f] = true
			}
			continue
		}
		if runStart >= 0 {
			closeRun(s.Timestamp)
		}
	}
	if runStart >= 0 {
		closeRun(sorted[len(sorted)-1].Timestamp)
	}

	return mergeGaps(gaps)
}

// mergeGaps folds overlapping or touching gaps into one. The merged gap is a
// full outage if any part was, and its affected sensors are the union.
func mergeGaps(gaps []TransmissionGap) []TransmissionGap {
	if len(gaps) == 0 {
		return []TransmissionGap{}
	}
	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].StartTime.Before(gaps[j].StartTime)
	})

	merged := []TransmissionGap{gaps[0]}
	for _, g := range gaps[1:] {
		last := &merged[len(merged)-1]
		if g.StartTime.After(last.EndTime) {
			merged = append(merged, g)
			continue
		}
		if g.EndTime.After(last.EndTime) {
			last.EndTime = g.EndTime
		}
		if g.Type == GapFullOutage {
			last.Type = GapFullOutage
		}
		sensors := map[string]bool{}
		for _, f := range last.AffectedSensors {
			sensors[f] = true
		}
		for _, f := range g.AffectedSensors {
			sensors[f] = true
		}
		last.AffectedSensors = orderedFields(sensors)
		last.DurationMinutes = last.EndTime.Sub(last.StartTime).Minutes()
	}
	return merged
}

func newGap(typ GapType, start, end time.Time, sensors []string) TransmissionGap {
	return TransmissionGap{
		Type:            typ,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: end.Sub(start).Minutes(),
		AffectedSensors: sensors,
	}
}

// statusOf maps the latest transmission to a status. Without wind the
// station is offline for alarm purposes, whatever else it sent.
func statusOf(q TransmissionQuality) TransmissionStatus {
	switch {
	case slices.Contains(q.MissingDataFields, FieldWind):
		return StatusOffline
	case len(q.MissingDataFields) > 0:
		return StatusPartial
	default:
		return StatusGood
	}
}

// orderedFields returns the set's members: expected fields first, in their
// canonical order, then any station-specific names sorted.
func orderedFields(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for _, f := range expectedFields {
		if set[f] {
			out = append(out, f)
		}
	}
	var extra []string
	for f := range set {
		if !slices.Contains(expectedFields, f) {
			extra = append(extra, f)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func intersect(fields, allowed []string) []string {
	var out []string
	for _, f := range fields {
		if slices.Contains(allowed, f) {
			out = append(out, f)
		}
	}
	return out
}

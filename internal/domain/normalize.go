package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// MetersPerSecondToMPH is the fixed conversion used for metric-only feeds.
const MetersPerSecondToMPH = 2.23694

// ParseStationSample deserializes a RawEvent's value into a station ID and a
// normalized sample. Only undecodable JSON is an error; bad field values are
// coerced by NormalizeSample.
func ParseStationSample(raw RawEvent) (string, WindSample, error) {
	var rec RawStationSample
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return "", WindSample{}, fmt.Errorf("parse station sample: %w", err)
	}

	stationID := strings.TrimSpace(rec.StationID)
	if stationID == "" {
		stationID = strings.TrimSpace(string(raw.Key))
	}
	if stationID == "" {
		return "", WindSample{}, errors.New("parse station sample: missing station_id")
	}

	sample := NormalizeSample(rec.RawSample)
	if sample.Timestamp.IsZero() {
		sample.Timestamp = raw.Timestamp.UTC()
	}
	return stationID, sample, nil
}

// NormalizeSample coerces a raw record into a WindSample. It never fails.
func NormalizeSample(raw RawSample) WindSample {
	speed, hasSpeed := pickSpeed(raw.WindSpeedMPH, raw.WindSpeedMS)
	gust, _ := pickSpeed(raw.WindGustMPH, raw.WindGustMS)
	if gust < speed {
		gust = speed
	}

	sample := WindSample{
		Timestamp: raw.Timestamp.Time,
		Speed:     speed,
		Gust:      gust,
		Direction: NormalizeDirection(raw.WindDirection.Value),
		HasWind:   hasSpeed,
	}

	if raw.Outdoor != nil {
		if raw.Outdoor.Temperature.Valid {
			v := raw.Outdoor.Temperature.Value
			sample.Temperature = &v
		}
		if raw.Outdoor.Humidity.Valid {
			v := clamp(raw.Outdoor.Humidity.Value, 0, 100)
			sample.Humidity = &v
		}
	}

	if raw.Transmission != nil {
		tq := *raw.Transmission
		tq.MissingDataFields = append([]string(nil), raw.Transmission.MissingDataFields...)
		sample.Transmission = &tq
	}

	return sample
}

// pickSpeed prefers the provider's mph value and only converts metric when
// mph is absent. Negative values clamp to zero.
func pickSpeed(mph, ms FlexFloat) (float64, bool) {
	switch {
	case mph.Valid:
		return math.Max(mph.Value, 0), true
	case ms.Valid:
		return math.Max(ms.Value*MetersPerSecondToMPH, 0), true
	default:
		return 0, false
	}
}

// NormalizeDirection folds any angle into [0,360).
func NormalizeDirection(d float64) float64 {
	if !isFinite(d) {
		return 0
	}
	n := math.Mod(math.Mod(d, 360)+360, 360)
	if n >= 360 {
		return 0
	}
	return n
}

// sortedByTime returns a time-ordered copy of samples; the input is not modified.
func sortedByTime(samples []WindSample) []WindSample {
	out := make([]WindSample, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

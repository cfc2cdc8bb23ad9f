package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Expected station fields, as reported in TransmissionQuality.MissingDataFields.
const (
	FieldWind               = "wind"
	FieldOutdoorTemperature = "outdoor_temperature"
	FieldOutdoorHumidity    = "outdoor_humidity"
)

// expectedFields lists every field a complete transmission carries, in report order.
var expectedFields = []string{FieldWind, FieldOutdoorTemperature, FieldOutdoorHumidity}

// TransmissionQuality describes how complete a single station transmission was.
type TransmissionQuality struct {
	IsFullTransmission bool     `json:"is_full_transmission"`
	HasOutdoorSensors  bool     `json:"has_outdoor_sensors"`
	MissingDataFields  []string `json:"missing_data_fields,omitempty"`
}

// WindSample is the strict internal representation of one station reading.
// Speeds are mph, direction is degrees in [0,360), and Gust >= Speed.
type WindSample struct {
	Timestamp   time.Time `json:"timestamp"`
	Speed       float64   `json:"speed"`
	Gust        float64   `json:"gust"`
	Direction   float64   `json:"direction"`
	HasWind     bool      `json:"has_wind"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`

	// Transmission is the station's own quality report, when it sent one.
	Transmission *TransmissionQuality `json:"transmission,omitempty"`
}

// FlexFloat decodes a JSON number, numeric string, or null. Anything else
// decodes to zero with Valid=false instead of failing the whole record.
type FlexFloat struct {
	Value float64
	Valid bool
}

// Float returns a FlexFloat holding v.
func Float(v float64) FlexFloat { return FlexFloat{Value: v, Valid: true} }

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil //nolint:nilerr // malformed text coerces to zero
		}
		f.Value, f.Valid = parseFloat(s)
		return nil
	}
	f.Value, f.Valid = parseFloat(string(data))
	return nil
}

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// parseFloat parses s as a finite float64, returning (0, false) on failure.
func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(v) {
		return 0, false
	}
	return v, true
}

// FlexTime decodes an RFC3339 string or a Unix timestamp in milliseconds.
// Unparsable values decode to the zero time.
type FlexTime struct {
	time.Time
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	*t = FlexTime{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil //nolint:nilerr // unparsable timestamps coerce to zero
		}
		s = strings.TrimSpace(s)
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			t.Time = parsed
			return nil
		}
		if ms, ok := parseFloat(s); ok {
			t.Time = time.UnixMilli(int64(ms)).UTC()
		}
		return nil
	}
	if ms, ok := parseFloat(string(data)); ok {
		t.Time = time.UnixMilli(int64(ms)).UTC()
	}
	return nil
}

func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// RawOutdoor is the optional outdoor sensor block of a raw sample.
type RawOutdoor struct {
	Temperature FlexFloat `json:"temperature"`
	Humidity    FlexFloat `json:"humidity"`
}

// RawSample is a station record as received from the feed, before coercion.
type RawSample struct {
	Timestamp     FlexTime             `json:"timestamp"`
	WindSpeedMPH  FlexFloat            `json:"wind_speed_mph"`
	WindSpeedMS   FlexFloat            `json:"wind_speed_ms"`
	WindGustMPH   FlexFloat            `json:"wind_gust_mph"`
	WindGustMS    FlexFloat            `json:"wind_gust_ms"`
	WindDirection FlexFloat            `json:"wind_direction"`
	Outdoor       *RawOutdoor          `json:"outdoor,omitempty"`
	Transmission  *TransmissionQuality `json:"transmission_quality,omitempty"`
}

// RawStationSample is the message envelope on the station sample topic.
type RawStationSample struct {
	StationID string `json:"station_id"`
	RawSample
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// StationReport is the per-message output of the station pipeline.
type StationReport struct {
	StationID   string        `json:"station_id"`
	Sample      WindSample    `json:"sample"`
	Verdict     AlarmVerdict  `json:"verdict"`
	Health      StationHealth `json:"health"`
	ProcessedAt time.Time     `json:"processed_at"`
}

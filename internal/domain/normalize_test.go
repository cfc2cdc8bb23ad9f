package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStationID = "KSFO-01"

func TestParseStationSample(t *testing.T) {
	baseDate := time.Date(2024, 4, 26, 6, 30, 0, 0, time.UTC)

	t.Run("full imperial record", func(t *testing.T) {
		data := []byte(`{"station_id":"KSFO-01","timestamp":"2024-04-26T06:15:00Z","wind_speed_mph":"18.5","wind_gust_mph":24,"wind_direction":"-45","outdoor":{"temperature":52.1,"humidity":"81"}}`)
		id, sample, err := ParseStationSample(RawEvent{Value: data, Timestamp: baseDate})

		require.NoError(t, err)
		assert.Equal(t, testStationID, id)
		assert.Equal(t, time.Date(2024, 4, 26, 6, 15, 0, 0, time.UTC), sample.Timestamp)
		assert.InDelta(t, 18.5, sample.Speed, 1e-9)
		assert.InDelta(t, 24.0, sample.Gust, 1e-9)
		assert.InDelta(t, 315.0, sample.Direction, 1e-9)
		assert.True(t, sample.HasWind)
		require.NotNil(t, sample.Temperature)
		assert.InDelta(t, 52.1, *sample.Temperature, 1e-9)
		require.NotNil(t, sample.Humidity)
		assert.InDelta(t, 81.0, *sample.Humidity, 1e-9)
	})

	t.Run("station id falls back to message key", func(t *testing.T) {
		data := []byte(`{"wind_speed_mph":5}`)
		id, sample, err := ParseStationSample(RawEvent{Key: []byte("KEY-7"), Value: data, Timestamp: baseDate})

		require.NoError(t, err)
		assert.Equal(t, "KEY-7", id)
		assert.Equal(t, baseDate, sample.Timestamp, "missing timestamp uses message time")
	})

	t.Run("missing station id", func(t *testing.T) {
		_, _, err := ParseStationSample(RawEvent{Value: []byte(`{"wind_speed_mph":5}`)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "station_id")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, _, err := ParseStationSample(RawEvent{Value: []byte("{invalid json")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse station sample")
	})

	t.Run("unix millisecond timestamp", func(t *testing.T) {
		data := []byte(`{"station_id":"S","timestamp":1714113000000}`)
		_, sample, err := ParseStationSample(RawEvent{Value: data})
		require.NoError(t, err)
		assert.Equal(t, time.UnixMilli(1714113000000).UTC(), sample.Timestamp)
	})
}

func TestNormalizeSample_Units(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantSpeed float64
		wantGust  float64
		hasWind   bool
	}{
		{"mph only", `{"wind_speed_mph":10,"wind_gust_mph":15}`, 10, 15, true},
		{"metric only converts", `{"wind_speed_ms":10,"wind_gust_ms":20}`, 22.3694, 44.7388, true},
		{"both prefer mph", `{"wind_speed_mph":22,"wind_speed_ms":10}`, 22, 22, true},
		{"gust raised to speed", `{"wind_speed_mph":12,"wind_gust_mph":8}`, 12, 12, true},
		{"negative speed clamps", `{"wind_speed_mph":-3}`, 0, 0, true},
		{"non-numeric text coerces to zero", `{"wind_speed_mph":"calm","wind_gust_mph":"n/a"}`, 0, 0, false},
		{"null speed", `{"wind_speed_mph":null}`, 0, 0, false},
		{"absent wind", `{}`, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw RawSample
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &raw))

			s := NormalizeSample(raw)
			assert.InDelta(t, tt.wantSpeed, s.Speed, 1e-9)
			assert.InDelta(t, tt.wantGust, s.Gust, 1e-9)
			assert.Equal(t, tt.hasWind, s.HasWind)
			assert.GreaterOrEqual(t, s.Gust, s.Speed)
		})
	}
}

func TestNormalizeSample_OptionalSensors(t *testing.T) {
	var raw RawSample
	require.NoError(t, json.Unmarshal([]byte(`{"wind_speed_mph":4,"outdoor":{"temperature":"bad","humidity":140},"transmission_quality":{"is_full_transmission":false,"missing_data_fields":["outdoor_temperature"]}}`), &raw))

	s := NormalizeSample(raw)
	assert.Nil(t, s.Temperature, "malformed temperature is treated as absent")
	require.NotNil(t, s.Humidity)
	assert.InDelta(t, 100.0, *s.Humidity, 1e-9, "humidity clamps to a percentage")
	require.NotNil(t, s.Transmission)
	assert.Equal(t, []string{FieldOutdoorTemperature}, s.Transmission.MissingDataFields)

	raw.Transmission.MissingDataFields[0] = "mutated"
	assert.Equal(t, FieldOutdoorTemperature, s.Transmission.MissingDataFields[0], "sample does not alias the raw record")
}

func TestNormalizeDirection(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{359.5, 359.5},
		{360, 0},
		{725, 5},
		{-10, 350},
		{-370, 350},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeDirection(tt.in), 1e-9, "NormalizeDirection(%v)", tt.in)
	}
}

func TestFlexFloat_MarshalJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		A FlexFloat `json:"a"`
		B FlexFloat `json:"b"`
	}{A: Float(1.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.5,"b":null}`, string(out))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/windwatch/internal/domain"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "raw-station-samples", cfg.KafkaSourceTopic)
	assert.Equal(t, "station-reports", cfg.KafkaSinkTopic)
	assert.Equal(t, "windwatch", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Equal(t, 3*time.Hour, cfg.HistoryRetention)
	assert.Equal(t, 1000, cfg.HistoryMaxStations)
	assert.Empty(t, cfg.CriteriaFile)
	assert.Empty(t, cfg.LockStatePath)
	assert.Equal(t, DefaultCriteria(), cfg.Criteria)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092,")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("HISTORY_RETENTION", "90m")
	t.Setenv("HISTORY_MAX_STATIONS", "25")
	t.Setenv("LOCK_STATE_PATH", "/var/lib/windwatch/lock.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, 90*time.Minute, cfg.HistoryRetention)
	assert.Equal(t, 25, cfg.HistoryMaxStations)
	assert.Equal(t, "/var/lib/windwatch/lock.json", cfg.LockStatePath)
}

func TestLoad_InvalidEnv(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"BATCH_SIZE", "0"},
		{"BATCH_SIZE", "9999"},
		{"BATCH_SIZE", "many"},
		{"BATCH_FLUSH_INTERVAL", "not-a-duration"},
		{"HISTORY_RETENTION", "0s"},
		{"HISTORY_MAX_STATIONS", "-4"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_BrokersRequired(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_CriteriaFile(t *testing.T) {
	path := writeCriteria(t, `
alarm:
  minimum_average_speed: 14
  preferred_direction:
    center: 315
    half_width: 40
lock:
  time_zone: America/Denver
`)
	t.Setenv("CRITERIA_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, path, cfg.CriteriaFile)
	assert.InDelta(t, 14.0, cfg.Criteria.Alarm.MinimumAverageSpeed, 1e-9)
	require.NotNil(t, cfg.Criteria.Alarm.PreferredDirection)
	assert.InDelta(t, 315.0, cfg.Criteria.Alarm.PreferredDirection.Center, 1e-9)
	assert.Equal(t, 4, cfg.Criteria.Alarm.MinimumConsecutivePoints, "unset keys keep defaults")
	assert.Equal(t, "America/Denver", cfg.Criteria.Lock.TimeZone)
	assert.Equal(t, "06:00", cfg.Criteria.Lock.ActiveStart)
}

func TestLoad_CriteriaFileInvalid(t *testing.T) {
	t.Setenv("CRITERIA_FILE", writeCriteria(t, "katabatic:\n  weights:\n    precipitation: 50\n"))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRITERIA_FILE")
	assert.Contains(t, err.Error(), "weights")
}

func TestLoad_CriteriaFileMissing(t *testing.T) {
	t.Setenv("CRITERIA_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read criteria")
}

func TestParseCriteria(t *testing.T) {
	t.Run("empty document keeps defaults", func(t *testing.T) {
		c, err := ParseCriteria(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultCriteria(), c)
	})

	t.Run("durations and windows", func(t *testing.T) {
		c, err := ParseCriteria([]byte(`
alarm:
  window:
    lookback: 45m
katabatic:
  pressure_trend_window: 4h
  favorable_pressure_trend: falling
  prediction_window: {start: "05:30", end: "07:30"}
  weights:
    precipitation: 20
    sky_conditions: 20
    pressure_change: 20
    temperature_differential: 20
    wave_pattern: 10
    atmospheric_stability: 10
transmission:
  gap_threshold: 10m
  required_fields: [wind]
`))
		require.NoError(t, err)
		assert.Equal(t, 45*time.Minute, c.Alarm.Window.Lookback)
		assert.Equal(t, 4*time.Hour, c.Katabatic.PressureTrendWindow)
		assert.Equal(t, domain.PressureFalling, c.Katabatic.FavorablePressureTrend)
		assert.Equal(t, domain.ClockWindow{Start: "05:30", End: "07:30"}, c.Katabatic.PredictionWindow)
		assert.Equal(t, 10*time.Minute, c.Transmission.GapThreshold)
		assert.Equal(t, []string{domain.FieldWind}, c.Transmission.RequiredFields)
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		_, err := ParseCriteria([]byte("alarm:\n  minimum_avg_speed: 3\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode criteria")
	})

	t.Run("every violation reported", func(t *testing.T) {
		_, err := ParseCriteria([]byte(`
alarm:
  direction_consistency_threshold: 140
lock:
  active_start: "09:00"
transmission:
  gap_threshold: 0s
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "alarm criteria")
		assert.Contains(t, err.Error(), "lock schedule")
		assert.Contains(t, err.Error(), "gap threshold")
	})
}

func writeCriteria(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "criteria.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

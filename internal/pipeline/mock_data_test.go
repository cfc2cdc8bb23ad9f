package pipeline_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/windwatch/internal/domain"
	"github.com/couchcryptid/windwatch/internal/mockdata"
	"github.com/couchcryptid/windwatch/internal/pipeline"
)

var mockDate = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

// replayMockStream feeds the generated dawn-patrol stream through the
// transformer, advancing the fake clock to each sample's timestamp.
func replayMockStream(t *testing.T, f transformerFixture) map[string]domain.StationReport {
	t.Helper()

	last := map[string]domain.StationReport{}
	for _, s := range mockdata.Samples(mockDate) {
		if d := s.Timestamp.Sub(f.clock.Now()); d > 0 {
			f.clock.Advance(d)
		}
		payload, err := json.Marshal(s)
		require.NoError(t, err)

		report, err := f.transformer.Transform(context.Background(), domain.RawEvent{
			Key:   []byte(s.StationID),
			Value: payload,
			Topic: "raw-station-samples",
		})
		require.NoError(t, err)
		last[report.StationID] = report
	}
	return last
}

func TestStationTransformer_WithMockStream(t *testing.T) {
	f := newTransformerFixtureAt(t, 10, mockDate.Add(mockdata.StreamStart))

	reports := replayMockStream(t, f)
	require.Len(t, reports, 3)

	t.Run("steady station raises one alarm", func(t *testing.T) {
		r := reports[mockdata.StationSteady]
		assert.True(t, r.Verdict.IsAlarmWorthy, r.Verdict.Explanation)
		assert.InDelta(t, 315, r.Verdict.MeanDirection, 10)
		assert.Equal(t, domain.StatusGood, r.Health.CurrentTransmissionStatus)
		assert.Empty(t, r.Health.TransmissionGaps)

		raised := eventsFor(*f.events, mockdata.StationSteady)
		require.Len(t, raised, 1)
		assert.Equal(t, pipeline.AlarmRaised, raised[0].Kind)
		assert.Equal(t, mockDate.Add(mockdata.StreamStart+3*mockdata.Cadence), raised[0].At,
			"fourth consecutive good sample raises the alarm")
	})

	t.Run("fickle station never alarms", func(t *testing.T) {
		r := reports[mockdata.StationFickle]
		assert.False(t, r.Verdict.IsAlarmWorthy)
		assert.False(t, r.Verdict.SpeedMet)
		assert.Empty(t, eventsFor(*f.events, mockdata.StationFickle))
	})

	t.Run("flaky station reports both gaps", func(t *testing.T) {
		r := reports[mockdata.StationFlaky]
		require.Len(t, r.Health.TransmissionGaps, 2)

		dropout := r.Health.TransmissionGaps[0]
		assert.Equal(t, domain.GapPartialDegradation, dropout.Type)
		assert.Equal(t, mockDate.Add(mockdata.DropoutStart), dropout.StartTime)
		assert.Equal(t, mockDate.Add(mockdata.DropoutEnd), dropout.EndTime)

		outage := r.Health.TransmissionGaps[1]
		assert.Equal(t, domain.GapFullOutage, outage.Type)
		assert.Equal(t, mockDate.Add(mockdata.OutageStart), outage.StartTime)
		assert.Equal(t, mockDate.Add(mockdata.OutageEnd), outage.EndTime)
		assert.InDelta(t, 30.0, outage.DurationMinutes, 1e-9)

		assert.Equal(t, domain.StatusGood, r.Health.CurrentTransmissionStatus)
		assert.True(t, r.Verdict.IsAlarmWorthy, "the outage does not break the streak")
	})
}

func eventsFor(events []pipeline.AlarmEvent, stationID string) []pipeline.AlarmEvent {
	var out []pipeline.AlarmEvent
	for _, e := range events {
		if e.StationID == stationID {
			out = append(out, e)
		}
	}
	return out
}

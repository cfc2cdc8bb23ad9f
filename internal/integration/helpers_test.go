//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/windwatch/internal/domain"
	"github.com/couchcryptid/windwatch/internal/mockdata"
	"github.com/couchcryptid/windwatch/internal/observability"
	"github.com/couchcryptid/windwatch/internal/pipeline"
)

var mockDate = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("windwatch-test"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic so message order is preserved.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// newTransformer builds a station transformer whose clock is pinned to the
// end of the mock stream, so the whole stream stays inside the retention.
func newTransformer(t *testing.T, metrics *observability.Metrics) *pipeline.StationTransformer {
	t.Helper()

	pipeline.SetClock(clockwork.NewFakeClockAt(mockDate.Add(mockdata.StreamEnd)))
	t.Cleanup(func() { pipeline.SetClock(nil) })

	history := pipeline.NewStationHistory(100, 3*time.Hour)
	alarms := pipeline.NewAlarmTracker(pipeline.LogAlarms(discardLogger()), pipeline.CountAlarms(metrics))
	return pipeline.NewTransformer(
		domain.DefaultAlarmCriteria(),
		domain.NewTransmissionAnalyzer(domain.DefaultGapThreshold),
		history, alarms, metrics, discardLogger(),
	)
}

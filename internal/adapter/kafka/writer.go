package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/windwatch/internal/config"
	"github.com/couchcryptid/windwatch/internal/domain"
)

// Writer produces station reports to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic. Reports
// are keyed by station ID, so the hash balancer keeps each station's reports
// on one partition, in order.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes multiple station reports to the sink
// topic in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, reports []domain.StationReport) error {
	if len(reports) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(reports))
	for i := range reports {
		msg, err := serializeToMessage(reports[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write station reports: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a StationReport into a Kafka message.
func serializeToMessage(report domain.StationReport) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize station report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(report.StationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "station_id", Value: []byte(report.StationID)},
			{Key: "status", Value: []byte(report.Health.CurrentTransmissionStatus)},
			{Key: "alarm_worthy", Value: []byte(strconv.FormatBool(report.Verdict.IsAlarmWorthy))},
			{Key: "processed_at", Value: []byte(report.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}

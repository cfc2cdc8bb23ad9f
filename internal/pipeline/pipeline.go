package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/windwatch/internal/domain"
	"github.com/couchcryptid/windwatch/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw station sample into a station report.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.StationReport, error)
}

// BatchLoader writes multiple station reports to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, reports []domain.StationReport) error
}

// Retry delays after a failed extract or load. They double per consecutive
// failure and reset once a batch is extracted.
const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Pipeline orchestrates the extract-transform-load loop over station samples.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil if the pipeline has processed at least one message,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Run consumes station samples until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	delay := backoff{next: initialBackoff}
	for ctx.Err() == nil {
		if !p.processBatch(ctx, &delay) {
			break
		}
	}
	p.logger.Info("pipeline stopping", "reason", context.Cause(ctx))
	return nil
}

// backoff tracks the delay before the next retry.
type backoff struct {
	next time.Duration
}

func (b *backoff) reset() { b.next = initialBackoff }

// wait sleeps for the current delay and doubles it. It reports false when
// ctx ends first.
func (b *backoff) wait(ctx context.Context) bool {
	if ctx.Err() != nil || !retry.SleepWithContext(ctx, b.next) {
		return false
	}
	b.next = retry.NextBackoff(b.next, maxBackoff)
	return true
}

// processBatch runs one extract, transform, load cycle. It reports false
// when the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, delay *backoff) bool {
	start := clock.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return delay.wait(ctx)
	}
	if len(rawBatch) == 0 {
		return true
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	delay.reset()

	reports, processed := p.transformBatch(ctx, rawBatch)
	if len(reports) == 0 {
		return true
	}

	if err := p.loader.LoadBatch(ctx, reports); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(reports))
		return delay.wait(ctx)
	}
	p.metrics.MessagesProduced.Add(float64(len(reports)))
	for _, raw := range processed {
		p.commitOffset(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(clock.Since(start).Seconds())
	p.ready.Store(true)
	logBatch(p.logger, reports)
	return true
}

// transformBatch turns raw samples into station reports. Samples that fail
// to parse are committed and dropped here. The caller commits the events
// behind the returned reports once they are loaded.
func (p *Pipeline) transformBatch(ctx context.Context, rawBatch []domain.RawEvent) ([]domain.StationReport, []domain.RawEvent) {
	reports := make([]domain.StationReport, 0, len(rawBatch))
	processed := make([]domain.RawEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		report, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("skipping undecodable station sample",
				"error", err,
				"key", string(raw.Key),
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		reports = append(reports, report)
		processed = append(processed, raw)
	}
	return reports, processed
}

// logBatch summarizes a loaded batch by the latest verdict of each station.
func logBatch(logger *slog.Logger, reports []domain.StationReport) {
	latest := make(map[string]bool, len(reports))
	for _, r := range reports {
		latest[r.StationID] = r.Verdict.IsAlarmWorthy
	}
	worthy := 0
	for _, w := range latest {
		if w {
			worthy++
		}
	}
	logger.Debug("station batch loaded",
		"reports", len(reports),
		"stations", len(latest),
		"alarm_worthy_stations", worthy,
	)
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/windwatch/internal/domain"
	"github.com/couchcryptid/windwatch/internal/observability"
)

// StationTransformer implements Transformer. It folds each sample into the
// station's history and re-runs the wind and transmission analyses over it.
type StationTransformer struct {
	criteria domain.AlarmCriteria
	analyzer domain.TransmissionAnalyzer
	history  *StationHistory
	alarms   *AlarmTracker
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewTransformer creates a StationTransformer. Criteria are expected to have
// been validated at config load.
func NewTransformer(
	criteria domain.AlarmCriteria,
	analyzer domain.TransmissionAnalyzer,
	history *StationHistory,
	alarms *AlarmTracker,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *StationTransformer {
	return &StationTransformer{
		criteria: criteria,
		analyzer: analyzer,
		history:  history,
		alarms:   alarms,
		metrics:  metrics,
		logger:   logger,
	}
}

func (t *StationTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.StationReport, error) {
	stationID, sample, err := domain.ParseStationSample(raw)
	if err != nil {
		return domain.StationReport{}, err
	}

	now := clock.Now().UTC()
	previous, _ := t.history.Report(stationID)

	samples, evicted := t.history.Append(stationID, sample, now)
	if evicted != "" {
		t.alarms.Forget(evicted)
		t.metrics.HistoryEvictions.Inc()
		t.logger.Debug("station evicted from history", "station_id", evicted)
	}

	verdict := domain.AnalyzeWind(samples, t.criteria, now)
	health := t.analyzer.Summarize(samples)

	t.alarms.Observe(ctx, stationID, verdict, now)
	t.metrics.AlarmVerdicts.WithLabelValues(verdictOutcome(verdict)).Inc()
	t.countNewGaps(previous.Health.TransmissionGaps, health.TransmissionGaps)

	report := domain.StationReport{
		StationID:   stationID,
		Sample:      sample,
		Verdict:     verdict,
		Health:      health,
		ProcessedAt: now,
	}
	t.history.SetReport(stationID, report)
	t.recordStationGauges()

	return report, nil
}

// countNewGaps counts gaps whose start was not already reported.
func (t *StationTransformer) countNewGaps(before, after []domain.TransmissionGap) {
	seen := make(map[int64]bool, len(before))
	for _, g := range before {
		seen[g.StartTime.UnixNano()] = true
	}
	for _, g := range after {
		if !seen[g.StartTime.UnixNano()] {
			t.metrics.TransmissionGaps.WithLabelValues(string(g.Type)).Inc()
		}
	}
}

func (t *StationTransformer) recordStationGauges() {
	for status, n := range t.history.StatusCounts() {
		t.metrics.StationStatus.WithLabelValues(string(status)).Set(float64(n))
	}
	t.metrics.TrackedStations.Set(float64(t.history.Len()))
}

func verdictOutcome(v domain.AlarmVerdict) string {
	switch {
	case v.SampleCount == 0:
		return "no_data"
	case v.IsAlarmWorthy:
		return "worthy"
	default:
		return "not_worthy"
	}
}

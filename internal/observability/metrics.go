package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "windwatch"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// station pipeline and the prediction service.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Station analysis metrics. Verdict outcomes are worthy, not_worthy, or
	// no_data; transition kinds are raised or cleared.
	AlarmVerdicts    *prometheus.CounterVec
	AlarmTransitions *prometheus.CounterVec
	StationStatus    *prometheus.GaugeVec
	TransmissionGaps *prometheus.CounterVec
	TrackedStations  prometheus.Gauge
	HistoryEvictions prometheus.Counter

	// Katabatic prediction metrics. Predictions are labeled by
	// recommendation and source (computed or locked).
	Predictions         *prometheus.CounterVec
	LockPhase           *prometheus.GaugeVec
	EnhancementsApplied prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total station reports written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total messages that could not be parsed into a station sample.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		AlarmVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarm_verdicts_total",
			Help:      "Wind analyses by outcome.",
		}, []string{"outcome"}),
		AlarmTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarm_transitions_total",
			Help:      "Per-station alarm state changes.",
		}, []string{"kind"}),
		StationStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations_by_status",
			Help:      "Tracked stations by current transmission status.",
		}, []string{"status"}),
		TransmissionGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transmission_gaps_total",
			Help:      "Newly detected transmission gaps by type.",
		}, []string{"type"}),
		TrackedStations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_stations",
			Help:      "Stations currently held in the history buffer.",
		}),
		HistoryEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_evictions_total",
			Help:      "Stations evicted from the history buffer.",
		}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "katabatic_predictions_total",
			Help:      "Katabatic predictions served by recommendation and source.",
		}, []string{"recommendation", "source"}),
		LockPhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lock_phase",
			Help:      "1 for the current prediction lock phase, 0 otherwise.",
		}, []string{"phase"}),
		EnhancementsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "katabatic_enhancements_applied_total",
			Help:      "Predictions upgraded by a historical temperature differential.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// SetLockPhase marks phase as the only active lock phase.
func (m *Metrics) SetLockPhase(phase string) {
	for _, p := range []string{"pending", "active", "verification", "locked"} {
		v := 0.0
		if p == phase {
			v = 1
		}
		m.LockPhase.WithLabelValues(p).Set(v)
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.AlarmVerdicts,
		m.AlarmTransitions,
		m.StationStatus,
		m.TransmissionGaps,
		m.TrackedStations,
		m.HistoryEvictions,
		m.Predictions,
		m.LockPhase,
		m.EnhancementsApplied,
	}
}

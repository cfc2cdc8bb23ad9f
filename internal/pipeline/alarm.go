package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/windwatch/internal/domain"
	"github.com/couchcryptid/windwatch/internal/observability"
)

// AlarmTransition is the direction of an alarm state change.
type AlarmTransition string

const (
	AlarmRaised  AlarmTransition = "raised"
	AlarmCleared AlarmTransition = "cleared"
)

// AlarmEvent is emitted when a station's alarm-worthiness changes.
type AlarmEvent struct {
	StationID string
	Kind      AlarmTransition
	Verdict   domain.AlarmVerdict
	At        time.Time
}

// AlarmObserver is notified of alarm transitions. Observers run on the
// pipeline goroutine and must not block.
type AlarmObserver interface {
	OnAlarmTransition(ctx context.Context, event AlarmEvent)
}

// AlarmObserverFunc adapts a function to AlarmObserver.
type AlarmObserverFunc func(ctx context.Context, event AlarmEvent)

func (f AlarmObserverFunc) OnAlarmTransition(ctx context.Context, event AlarmEvent) { f(ctx, event) }

// AlarmTracker remembers each station's last alarm-worthiness and notifies
// observers when it flips. Stations start out not alarm-worthy.
type AlarmTracker struct {
	mu        sync.Mutex
	active    map[string]bool
	observers []AlarmObserver
}

// NewAlarmTracker creates a tracker notifying the given observers in order.
func NewAlarmTracker(observers ...AlarmObserver) *AlarmTracker {
	return &AlarmTracker{
		active:    make(map[string]bool),
		observers: observers,
	}
}

// Observe records a verdict and returns the transition it caused, if any.
func (t *AlarmTracker) Observe(ctx context.Context, stationID string, verdict domain.AlarmVerdict, at time.Time) (AlarmEvent, bool) {
	t.mu.Lock()
	was := t.active[stationID]
	now := verdict.IsAlarmWorthy
	if now {
		t.active[stationID] = true
	} else {
		delete(t.active, stationID)
	}
	t.mu.Unlock()

	if was == now {
		return AlarmEvent{}, false
	}

	event := AlarmEvent{StationID: stationID, Kind: AlarmCleared, Verdict: verdict, At: at}
	if now {
		event.Kind = AlarmRaised
	}
	for _, o := range t.observers {
		o.OnAlarmTransition(ctx, event)
	}
	return event, true
}

// Active reports whether a station is currently alarm-worthy.
func (t *AlarmTracker) Active(stationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[stationID]
}

// Forget drops a station's state without emitting a transition.
func (t *AlarmTracker) Forget(stationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, stationID)
}

// LogAlarms returns an observer that logs each transition.
func LogAlarms(logger *slog.Logger) AlarmObserver {
	return AlarmObserverFunc(func(ctx context.Context, e AlarmEvent) {
		logger.InfoContext(ctx, "alarm "+string(e.Kind),
			"station_id", e.StationID,
			"average_speed", e.Verdict.AverageSpeed,
			"direction_consistency", e.Verdict.DirectionConsistency,
			"consecutive_good_points", e.Verdict.ConsecutiveGoodPoints,
			"explanation", e.Verdict.Explanation,
		)
	})
}

// CountAlarms returns an observer that counts transitions by kind.
func CountAlarms(metrics *observability.Metrics) AlarmObserver {
	return AlarmObserverFunc(func(_ context.Context, e AlarmEvent) {
		metrics.AlarmTransitions.WithLabelValues(string(e.Kind)).Inc()
	})
}

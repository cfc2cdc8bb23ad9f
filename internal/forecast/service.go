// Package forecast serves katabatic predictions through the daily
// prediction lock. The lock manager is single-writer, so every request is
// serialized through the service's mutex.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/windwatch/internal/domain"
	"github.com/couchcryptid/windwatch/internal/observability"
)

// Prediction sources, as reported in metrics.
const (
	sourceComputed = "computed"
	sourceLocked   = "locked"
)

// Service resolves prediction requests against the lock state and persists
// the state after every change.
type Service struct {
	mu        sync.Mutex
	predictor *domain.KatabaticPredictor
	lock      *domain.PredictionLockManager
	store     StateStore
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewService builds a service from validated criteria and restores the lock
// state from store. An unreadable state is logged and replaced with a fresh
// one; only invalid criteria fail construction.
func NewService(
	ctx context.Context,
	criteria domain.KatabaticCriteria,
	schedule domain.LockSchedule,
	store StateStore,
	clock clockwork.Clock,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*Service, error) {
	predictor, err := domain.NewKatabaticPredictor(criteria)
	if err != nil {
		return nil, fmt.Errorf("create predictor: %w", err)
	}

	restored, err := store.Load(ctx)
	if err != nil {
		logger.Warn("discarding unreadable lock state", "error", err)
		restored = domain.PredictionLockState{}
	}

	lock, err := domain.NewPredictionLockManager(schedule, restored)
	if err != nil {
		return nil, fmt.Errorf("create lock manager: %w", err)
	}

	s := &Service{
		predictor: predictor,
		lock:      lock,
		store:     store,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
	}
	if restored.LockDate != "" {
		logger.Info("lock state restored",
			"lock_date", restored.LockDate,
			"phase", restored.Phase,
			"has_snapshot", restored.Snapshot != nil,
		)
	}
	metrics.SetLockPhase(string(lock.State().Phase))
	return s, nil
}

// Predict returns the prediction for input at the current time. Before the
// lock it is computed fresh; after it the frozen snapshot is returned and
// input is ignored.
func (s *Service) Predict(ctx context.Context, input domain.KatabaticInput) domain.LockResolution {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	before := s.lock.State()
	computed := false
	res := s.lock.Resolve(now, func() domain.KatabaticPrediction {
		computed = true
		return s.predictor.Predict(input, now)
	})

	source := sourceLocked
	if computed {
		source = sourceComputed
		if res.Prediction.Enhancement != nil && res.Prediction.Enhancement.Applied {
			s.metrics.EnhancementsApplied.Inc()
		}
	}
	s.metrics.Predictions.WithLabelValues(string(res.Prediction.Recommendation), source).Inc()
	s.metrics.SetLockPhase(string(res.Phase))

	if computed || stateChanged(before, s.lock.State()) {
		s.save(ctx)
	}

	s.logger.InfoContext(ctx, "katabatic prediction served",
		"phase", res.Phase,
		"source", source,
		"summary", res.Prediction.Summary(),
	)
	if res.Verification != nil && res.Phase == domain.PhaseVerification {
		s.logger.InfoContext(ctx, "prediction verified",
			"baseline_probability", res.Verification.BaselineProbability,
			"live_probability", res.Verification.LiveProbability,
			"probability_drift", res.Verification.ProbabilityDrift,
			"recommendation_changed", res.Verification.RecommendationChanged,
		)
	}
	return res
}

// Lock advances the lock state to the current time and returns a copy.
func (s *Service) Lock(ctx context.Context) domain.PredictionLockState {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.lock.State()
	phase := s.lock.Advance(s.clock.Now())
	after := s.lock.State()
	s.metrics.SetLockPhase(string(phase))

	if stateChanged(before, after) {
		if after.Snapshot != nil && before.Snapshot == nil {
			s.logger.InfoContext(ctx, "prediction locked", "lock_date", after.LockDate, "summary", after.Snapshot.Summary())
		}
		s.save(ctx)
	}
	return after
}

func (s *Service) save(ctx context.Context) {
	if err := s.store.Save(ctx, s.lock.State()); err != nil {
		s.logger.ErrorContext(ctx, "persist lock state failed", "error", err)
	}
}

// stateChanged reports whether Advance moved to a new phase, day, or snapshot.
func stateChanged(before, after domain.PredictionLockState) bool {
	return before.Phase != after.Phase ||
		before.LockDate != after.LockDate ||
		(before.Snapshot == nil) != (after.Snapshot == nil)
}

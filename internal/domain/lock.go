package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// LockPhase is the time-of-day phase of the daily prediction lifecycle.
type LockPhase string

const (
	PhasePending      LockPhase = "pending"
	PhaseActive       LockPhase = "active"
	PhaseVerification LockPhase = "verification"
	PhaseLocked       LockPhase = "locked"
)

// maxActivePredictions caps the active-phase history kept for verification.
const maxActivePredictions = 12

// LockSchedule sets the local clock times at which phases begin. Pending
// runs from midnight to ActiveStart; locked runs from LockAt to midnight.
type LockSchedule struct {
	ActiveStart       string `json:"active_start" yaml:"active_start"`
	VerificationStart string `json:"verification_start" yaml:"verification_start"`
	LockAt            string `json:"lock_at" yaml:"lock_at"`
	TimeZone          string `json:"time_zone,omitempty" yaml:"time_zone"`
}

// DefaultLockSchedule is the dawn-patrol schedule: active 06:00,
// verification 07:00, locked 08:00.
func DefaultLockSchedule() LockSchedule {
	return LockSchedule{ActiveStart: "06:00", VerificationStart: "07:00", LockAt: "08:00"}
}

// Validate checks that the phase boundaries parse and are ordered.
func (s LockSchedule) Validate() error {
	active, err := clockMinutes(s.ActiveStart)
	if err != nil {
		return fmt.Errorf("lock schedule: active_start: %w", err)
	}
	verification, err := clockMinutes(s.VerificationStart)
	if err != nil {
		return fmt.Errorf("lock schedule: verification_start: %w", err)
	}
	lock, err := clockMinutes(s.LockAt)
	if err != nil {
		return fmt.Errorf("lock schedule: lock_at: %w", err)
	}
	if active > verification || verification > lock || active == lock {
		return errors.New("lock schedule: want active_start <= verification_start <= lock_at with a non-empty decision window")
	}
	return validateZone(s.TimeZone)
}

// PhaseAt returns the phase in effect at now's local clock time.
func (s LockSchedule) PhaseAt(now time.Time) LockPhase {
	local := inLocation(now, s.TimeZone)
	minute := local.Hour()*60 + local.Minute()
	active, _ := clockMinutes(s.ActiveStart)
	verification, _ := clockMinutes(s.VerificationStart)
	lock, _ := clockMinutes(s.LockAt)

	switch {
	case minute >= lock:
		return PhaseLocked
	case minute >= verification:
		return PhaseVerification
	case minute >= active:
		return PhaseActive
	default:
		return PhasePending
	}
}

func clockMinutes(s string) (int, error) {
	h, m, err := parseClock(s)
	return h*60 + m, err
}

// VerificationRecord compares a verification-phase prediction with the
// predictions made during the active phase.
type VerificationRecord struct {
	BaselineProbability   float64   `json:"baseline_probability"`
	LiveProbability       float64   `json:"live_probability"`
	ProbabilityDrift      float64   `json:"probability_drift"`
	MeanAbsoluteDrift     float64   `json:"mean_absolute_drift"`
	RecommendationChanged bool      `json:"recommendation_changed"`
	ComparedPredictions   int       `json:"compared_predictions"`
	VerifiedAt            time.Time `json:"verified_at"`
}

// PredictionLockState is the persisted state of a PredictionLockManager.
// Callers store it across restarts and hand it back to NewPredictionLockManager.
type PredictionLockState struct {
	Phase             LockPhase             `json:"phase"`
	LockDate          string                `json:"lock_date"`
	LastComputedAt    *time.Time            `json:"last_computed_at,omitempty"`
	LastPrediction    *KatabaticPrediction  `json:"last_prediction,omitempty"`
	ActivePredictions []KatabaticPrediction `json:"active_predictions,omitempty"`
	Verification      *VerificationRecord   `json:"verification,omitempty"`
	Snapshot          *KatabaticPrediction  `json:"snapshot,omitempty"`
	LockedAt          *time.Time            `json:"locked_at,omitempty"`
}

// LockResolution is what the manager hands back for one request.
type LockResolution struct {
	Prediction   KatabaticPrediction `json:"prediction"`
	Phase        LockPhase           `json:"phase"`
	FromSnapshot bool                `json:"from_snapshot"`
	Verification *VerificationRecord `json:"verification,omitempty"`
}

// PredictionLockManager freezes a day's prediction once the decision window
// closes, so later forecast runs cannot overwrite the morning's call. It is
// single-writer and does no locking of its own.
type PredictionLockManager struct {
	schedule LockSchedule
	state    PredictionLockState
}

// NewPredictionLockManager validates the schedule and restores state.
func NewPredictionLockManager(schedule LockSchedule, restored PredictionLockState) (*PredictionLockManager, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	if restored.Phase == "" {
		restored.Phase = PhasePending
	}
	return &PredictionLockManager{schedule: schedule, state: restored}, nil
}

// State returns a copy of the current state for persistence.
func (m *PredictionLockManager) State() PredictionLockState {
	s := m.state
	s.ActivePredictions = append([]KatabaticPrediction(nil), m.state.ActivePredictions...)
	return s
}

// Advance moves the state to now: a new calendar date resets to pending, and
// crossing LockAt freezes the last computed prediction as the snapshot.
func (m *PredictionLockManager) Advance(now time.Time) LockPhase {
	local := inLocation(now, m.schedule.TimeZone)
	day := local.Format(time.DateOnly)
	if m.state.LockDate != day {
		m.state = PredictionLockState{Phase: PhasePending, LockDate: day}
	}

	phase := m.schedule.PhaseAt(local)
	if phase == PhaseLocked && m.state.Snapshot == nil && m.state.LastPrediction != nil {
		snap := *m.state.LastPrediction
		m.state.Snapshot = &snap
		lockedAt := now
		m.state.LockedAt = &lockedAt
	}
	m.state.Phase = phase
	return phase
}

// Resolve returns the prediction to show at now. Before the lock it calls
// compute and records the result; once locked it returns the frozen snapshot,
// computing and freezing one only if nothing was computed earlier that day.
func (m *PredictionLockManager) Resolve(now time.Time, compute func() KatabaticPrediction) LockResolution {
	phase := m.Advance(now)

	if phase == PhaseLocked {
		if m.state.Snapshot != nil {
			return LockResolution{Prediction: *m.state.Snapshot, Phase: phase, FromSnapshot: true, Verification: m.state.Verification}
		}
		p := compute()
		m.state.Snapshot = &p
		m.state.LastPrediction = &p
		computedAt := now
		m.state.LastComputedAt = &computedAt
		m.state.LockedAt = &computedAt
		return LockResolution{Prediction: p, Phase: phase, Verification: m.state.Verification}
	}

	p := compute()
	computedAt := now
	m.state.LastPrediction = &p
	m.state.LastComputedAt = &computedAt

	switch phase {
	case PhaseActive:
		m.recordActive(p)
	case PhaseVerification:
		m.state.Verification = verify(p, m.state.ActivePredictions, now)
	}
	return LockResolution{Prediction: p, Phase: phase, Verification: m.state.Verification}
}

// recordActive appends p, keeping the first active prediction as the
// verification baseline when the history is full.
func (m *PredictionLockManager) recordActive(p KatabaticPrediction) {
	m.state.ActivePredictions = append(m.state.ActivePredictions, p)
	if len(m.state.ActivePredictions) > maxActivePredictions {
		m.state.ActivePredictions = append(m.state.ActivePredictions[:1], m.state.ActivePredictions[2:]...)
	}
}

// verify compares live with the active-phase predictions. Without any
// active predictions there is nothing to verify against.
func verify(live KatabaticPrediction, active []KatabaticPrediction, now time.Time) *VerificationRecord {
	if len(active) == 0 {
		return nil
	}
	baseline := active[0]
	var drift float64
	for _, p := range active {
		drift += math.Abs(live.Probability - p.Probability)
	}
	return &VerificationRecord{
		BaselineProbability:   baseline.Probability,
		LiveProbability:       live.Probability,
		ProbabilityDrift:      round1(live.Probability - baseline.Probability),
		MeanAbsoluteDrift:     round1(drift / float64(len(active))),
		RecommendationChanged: live.Recommendation != baseline.Recommendation,
		ComparedPredictions:   len(active),
		VerifiedAt:            now,
	}
}

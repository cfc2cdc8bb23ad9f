package domain

// StreakTracker counts runs of qualifying observations in a single pass.
// Any disqualifying observation resets the current run; the longest run
// seen is retained.
type StreakTracker struct {
	current int
	longest int
}

// Observe records one observation.
func (s *StreakTracker) Observe(qualifies bool) {
	if !qualifies {
		s.current = 0
		return
	}
	s.current++
	if s.current > s.longest {
		s.longest = s.current
	}
}

// Current returns the length of the run ending at the last observation.
func (s *StreakTracker) Current() int { return s.current }

// Longest returns the longest run observed so far.
func (s *StreakTracker) Longest() int { return s.longest }

// LongestStreak returns the longest contiguous run of items satisfying qualifies.
func LongestStreak[T any](items []T, qualifies func(T) bool) int {
	var tracker StreakTracker
	for _, item := range items {
		tracker.Observe(qualifies(item))
	}
	return tracker.Longest()
}

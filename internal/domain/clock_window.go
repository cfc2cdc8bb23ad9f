package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockWindow is a recurring local time-of-day range, e.g. 06:00–08:00.
// A window whose end is not after its start wraps past midnight.
type ClockWindow struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// IsZero reports whether neither bound is set.
func (w ClockWindow) IsZero() bool { return w.Start == "" && w.End == "" }

// Validate checks that both bounds parse as HH:MM and differ.
func (w ClockWindow) Validate() error {
	sh, sm, err := parseClock(w.Start)
	if err != nil {
		return fmt.Errorf("window start: %w", err)
	}
	eh, em, err := parseClock(w.End)
	if err != nil {
		return fmt.Errorf("window end: %w", err)
	}
	if sh == eh && sm == em {
		return fmt.Errorf("window %s-%s is empty", w.Start, w.End)
	}
	return nil
}

func (w ClockWindow) String() string { return w.Start + "-" + w.End }

// startingOn returns the occurrence that starts on day's calendar date, in day's location.
func (w ClockWindow) startingOn(day time.Time) (time.Time, time.Time) {
	sh, sm, _ := parseClock(w.Start)
	eh, em, _ := parseClock(w.End)
	y, m, d := day.Date()
	loc := day.Location()

	start := time.Date(y, m, d, sh, sm, 0, 0, loc)
	end := time.Date(y, m, d, eh, em, 0, 0, loc)
	if !end.After(start) {
		end = time.Date(y, m, d+1, eh, em, 0, 0, loc)
	}
	return start, end
}

// Around returns the most recent occurrence that started at or before ref.
func (w ClockWindow) Around(ref time.Time) (time.Time, time.Time) {
	start, end := w.startingOn(ref)
	if ref.Before(start) {
		return w.startingOn(ref.AddDate(0, 0, -1))
	}
	return start, end
}

// NextEnding returns the earliest occurrence whose end is after ref.
func (w ClockWindow) NextEnding(ref time.Time) (time.Time, time.Time) {
	for offset := -1; offset <= 1; offset++ {
		start, end := w.startingOn(ref.AddDate(0, 0, offset))
		if end.After(ref) {
			return start, end
		}
	}
	return w.startingOn(ref.AddDate(0, 0, 2))
}

// EndingBy returns the latest occurrence that ends at or before ref.
func (w ClockWindow) EndingBy(ref time.Time) (time.Time, time.Time) {
	for offset := 0; offset >= -2; offset-- {
		start, end := w.startingOn(ref.AddDate(0, 0, offset))
		if !end.After(ref) {
			return start, end
		}
	}
	return w.startingOn(ref.AddDate(0, 0, -3))
}

// parseClock parses "HH:MM" (24-hour) into hour and minute.
func parseClock(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q, want HH:MM", s)
	}
	hour, errH := strconv.Atoi(parts[0])
	mins, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || mins < 0 || mins > 59 {
		return 0, 0, fmt.Errorf("invalid clock time %q, want HH:MM", s)
	}
	return hour, mins, nil
}

// inLocation converts t into the named zone. An empty or unknown name keeps
// t's own location; zone names are validated at config load.
func inLocation(t time.Time, zone string) time.Time {
	if zone == "" {
		return t
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return t
	}
	return t.In(loc)
}

func validateZone(zone string) error {
	if zone == "" {
		return nil
	}
	if _, err := time.LoadLocation(zone); err != nil {
		return fmt.Errorf("time zone %q: %w", zone, err)
	}
	return nil
}

// TimeWindow is a concrete interval.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

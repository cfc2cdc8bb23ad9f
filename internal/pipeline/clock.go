package pipeline

import "github.com/jonboulle/clockwork"

// clock is the pipeline's time source. It supplies the reference time for
// every analysis and the processed_at stamp of every report.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

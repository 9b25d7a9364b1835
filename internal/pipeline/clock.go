package pipeline

import "github.com/jonboulle/clockwork"

// clock times steps and runs so tests can freeze durations via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used for step timing. Pass nil to reset to
// real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

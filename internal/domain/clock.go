package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic output.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Yesterday returns the most recent complete day. Sources publish a day's
// counts after it ends, so this is the last date that can be derived.
func Yesterday() time.Time {
	return Day(clock.Now()).AddDate(0, 0, -1)
}

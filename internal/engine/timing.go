package engine

import (
	"fmt"
	"time"
)

// minElapsed is the floor for reported durations. Very fast stages still
// report a non-zero time.
const minElapsed = time.Millisecond

// formatSeconds renders max(d, 1ms) in seconds with three decimals.
func formatSeconds(d time.Duration) string {
	if d < minElapsed {
		d = minElapsed
	}
	return fmt.Sprintf("%.3f", d.Seconds())
}

// stopwatch measures one stage against the engine's time source.
type stopwatch struct {
	now   func() time.Time
	start time.Time
}

func startStopwatch(now func() time.Time) stopwatch {
	return stopwatch{now: now, start: now()}
}

func (s stopwatch) Elapsed() time.Duration {
	return s.now().Sub(s.start)
}

// Seconds returns the elapsed time formatted by formatSeconds.
func (s stopwatch) Seconds() string {
	return formatSeconds(s.Elapsed())
}

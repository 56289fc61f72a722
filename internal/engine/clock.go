package engine

import "sync/atomic"

// Clock stamps build generations.
//
// Each accepted submit takes the next generation. A deferred build only runs
// if its generation is still the latest one, which is how newer edits
// supersede older pending builds.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start.
// Used when the previous generation is seeded from the store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new generation.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the latest generation without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// IsCurrent reports whether gen is still the latest generation.
func (c *Clock) IsCurrent(gen int64) bool {
	return c.seq.Load() == gen
}

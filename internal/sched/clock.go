package sched

import "sync/atomic"

// Clock is a monotonic logical counter.
//
// The scheduler keeps two: one numbers generator handles in registration
// order (the merge tie-break), the other stamps Seq on emitted events.
// Neither depends on wall-clock time, so a replayed render assigns the same
// numbers in the same order.
//
// Clock is safe for concurrent use, although the scheduler only touches it
// from its owning goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific value.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

package testutil

import (
	"sync"
	"time"
)

// ManualClock is a time source that only moves when a test moves it.
//
// Now reports seconds since the session start. Channels returned by After
// fire once Set or Advance reaches their deadline, which lets a test step a
// dispatcher or engine through time without sleeping.
//
// Thread-safety: all methods are safe for concurrent use.
type ManualClock struct {
	mu      sync.Mutex
	now     float64
	waiters []waiter
	notify  chan struct{}
}

type waiter struct {
	deadline float64
	ch       chan time.Time
}

// NewManualClock creates a clock at t=0.
func NewManualClock() *ManualClock {
	return &ManualClock{notify: make(chan struct{}, 1)}
}

// Now returns the current time in seconds.
func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives once the clock has moved d past
// the current time. A non-positive d fires immediately.
func (c *ManualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	deadline := c.now + d.Seconds()
	if d <= 0 {
		ch <- stamp(c.now)
		return ch
	}
	c.waiters = append(c.waiters, waiter{deadline: deadline, ch: ch})

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return ch
}

// Advance moves the clock forward by d seconds.
func (c *ManualClock) Advance(d float64) {
	c.mu.Lock()
	t := c.now + d
	c.mu.Unlock()
	c.Set(t)
}

// Set moves the clock to t. Moving backwards is ignored.
func (c *ManualClock) Set(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t < c.now {
		return
	}
	c.now = t

	kept := c.waiters[:0]
	for _, w := range c.waiters {
		if w.deadline <= t {
			w.ch <- stamp(t)
			continue
		}
		kept = append(kept, w)
	}
	clear(c.waiters[len(kept):])
	c.waiters = kept
}

// Waiters returns the number of pending After channels.
func (c *ManualClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// BlockUntil waits until at least n After channels are pending or the
// timeout passes. Reports whether the count was reached.
func (c *ManualClock) BlockUntil(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if c.Waiters() >= n {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		select {
		case <-c.notify:
		case <-time.After(min(remaining, time.Millisecond)):
		}
	}
}

func stamp(seconds float64) time.Time {
	return time.Unix(0, 0).Add(time.Duration(seconds * float64(time.Second)))
}

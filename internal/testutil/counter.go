package testutil

import "sync"

// DeterministicCounter is a resettable monotonic counter for tests.
// The zero value is ready to use and its first Next returns 1.
type DeterministicCounter struct {
	mu  sync.Mutex
	seq int64
}

// Next increments and returns the counter.
func (c *DeterministicCounter) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the counter without incrementing.
func (c *DeterministicCounter) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset sets the counter back to 0.
func (c *DeterministicCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

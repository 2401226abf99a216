package dispatch

import "time"

// TimeSource is the dispatcher's notion of the current output time, in
// seconds since the session started.
type TimeSource interface {
	Now() float64
	After(d time.Duration) <-chan time.Time
}

// WallClock measures real time from its creation.
type WallClock struct {
	start time.Time
}

// NewWallClock starts a wall clock at the current instant.
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// Now implements TimeSource.
func (c *WallClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

// After implements TimeSource.
func (c *WallClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Seconds converts output seconds to a Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

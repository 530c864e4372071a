package host

import (
	"sync"
	"time"
)

// Clock supplies the current time in Unix seconds. Operations read it once
// and carry that value through every check they make.
type Clock interface {
	Now() int64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() int64

// Now calls f.
func (f ClockFunc) Now() int64 { return f() }

// SystemClock reads wall-clock time.
type SystemClock struct{}

// Now returns the current Unix time.
func (SystemClock) Now() int64 { return time.Now().Unix() }

// ManualClock is a settable clock for tests and offline simulation.
// It never moves backwards.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock returns a clock stopped at now.
func NewManualClock(now int64) *ManualClock {
	return &ManualClock{now: now}
}

// Now returns the current reading.
func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Earlier times are ignored.
func (c *ManualClock) Set(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t > c.now {
		c.now = t
	}
}

// Advance moves the clock forward by d seconds.
func (c *ManualClock) Advance(d int64) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

package core

import (
	"sync"
	"time"
)

// DefaultPeriod is the control loop period in seconds.
const DefaultPeriod = 0.02

// Clock supplies monotonic timestamps in seconds.
type Clock interface {
	Now() float64
}

// SimClock is a manually advanced clock used by the simulator and tests.
type SimClock struct {
	mu  sync.Mutex
	now float64
}

// NewSimClock returns a clock starting at the given time.
func NewSimClock(start float64) *SimClock {
	return &SimClock{now: start}
}

func (c *SimClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by dt seconds. Negative steps are ignored.
func (c *SimClock) Advance(dt float64) {
	if dt <= 0 {
		return
	}
	c.mu.Lock()
	c.now += dt
	c.mu.Unlock()
}

// Set moves the clock to t if t is not in the past.
func (c *SimClock) Set(t float64) {
	c.mu.Lock()
	if t > c.now {
		c.now = t
	}
	c.mu.Unlock()
}

// WallClock reports seconds elapsed since it was created.
type WallClock struct {
	start time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

func (c *WallClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

// Elapsed returns now-last, treating a clock that went backwards as no time.
func Elapsed(last, now float64) float64 {
	if now < last {
		return 0
	}
	return now - last
}

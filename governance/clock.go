package governance

import (
	"sync"
	"time"
)

// Clock supplies the host calendar: whole in-game days elapsed since the game
// started. Time of day is never interpreted.
type Clock interface {
	CurrentDay() int
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() int

// CurrentDay implements Clock.
func (f ClockFunc) CurrentDay() int { return f() }

// ManualClock is a Clock whose day is pushed by the host.
type ManualClock struct {
	mu  sync.RWMutex
	day int
}

// NewManualClock returns a ManualClock starting at day.
func NewManualClock(day int) *ManualClock {
	return &ManualClock{day: day}
}

// CurrentDay implements Clock.
func (c *ManualClock) CurrentDay() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.day
}

// Set moves the clock to day.
func (c *ManualClock) Set(day int) {
	c.mu.Lock()
	c.day = day
	c.mu.Unlock()
}

// Advance moves the clock forward by n days.
func (c *ManualClock) Advance(n int) {
	c.mu.Lock()
	c.day += n
	c.mu.Unlock()
}

// ElapsedClock derives the day from wall time: whole DayLength periods since
// Epoch. Before Epoch it reports day 0.
type ElapsedClock struct {
	Epoch     time.Time
	DayLength time.Duration
	Now       func() time.Time
}

// CurrentDay implements Clock.
func (c ElapsedClock) CurrentDay() int {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	length := c.DayLength
	if length <= 0 {
		length = 24 * time.Hour
	}
	elapsed := now().Sub(c.Epoch)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / length)
}

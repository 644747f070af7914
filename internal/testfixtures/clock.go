// Package testfixtures provides deterministic clocks, identifiers, a migrated
// SQLite store and service wiring for integration tests.
package testfixtures

import (
	"sync"
	"time"

	"github.com/example/office-calendar/internal/scheduler"
)

var referenceTime = time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)

// ReferenceTime is the instant every fixture clock starts at by default.
func ReferenceTime() time.Time {
	return referenceTime
}

// Clock is a manually advanced time source.
type Clock struct {
	mu       sync.Mutex
	current  time.Time
	location *time.Location
}

// NewClock returns a clock at start, or at ReferenceTime when start is zero.
// Wall clock helpers interpret dates in start's location.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start, location: start.Location()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now for injection into services.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// At builds a wall clock instant such as At("2026-03-02", "09:00") in the
// clock's location. It panics on malformed input.
func (c *Clock) At(date, clock string) time.Time {
	interval, err := scheduler.ParseInterval(date, clock, scheduler.MinDurationHours, c.location)
	if err != nil {
		panic(err)
	}
	return interval.Start
}

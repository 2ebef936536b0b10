// Package clock provides an abstraction for time operations to improve
// testability. Instead of calling time.Now() directly, code can use the
// Clock interface which can be mocked in tests to control time-dependent
// behavior.
package clock

import (
	"sync"
	"time"
)

// Clock is an interface for time operations.
// This allows code to be tested with mock clocks.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time from the system clock.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Ensure RealClock implements Clock.
var _ Clock = RealClock{}

// FakeClock implements Clock with a controllable time, for tests.
// Each call to Now advances the clock by Step so that successive
// timestamps are strictly monotonic.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time

	// Step is added to the clock on every Now call. Zero means frozen time.
	Step time.Duration
}

// NewFakeClock creates a FakeClock starting at the given time, advancing
// one millisecond per Now call.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{current: start, Step: time.Millisecond}
}

// Now returns the fake current time and advances it by Step.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.Step)
	return now
}

// Advance moves the fake clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Ensure FakeClock implements Clock.
var _ Clock = (*FakeClock)(nil)

package testutil

import (
	"sync"
	"time"
)

// FakeClock is a manually advanced wall clock for tests.
//
// It satisfies store.Clock. Time only moves when Set or Advance is called,
// so durations and generated file names are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// DefaultEpoch is the starting time of NewFakeClock: 2024-03-01 09:00:00 UTC.
var DefaultEpoch = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

// NewFakeClock creates a clock stopped at DefaultEpoch.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: DefaultEpoch}
}

// NewFakeClockAt creates a clock stopped at t (truncated to whole seconds).
func NewFakeClockAt(t time.Time) *FakeClock {
	return &FakeClock{now: t.Truncate(time.Second)}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is allowed; tests use it to
// provoke negative durations.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.Truncate(time.Second)
}

// Advance moves the clock forward by d and returns the new time.
func (c *FakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d).Truncate(time.Second)
	return c.now
}

// Package testutil holds deterministic stand-ins for time and identifiers so
// invoices, traces and golden files are byte-stable across runs.
package testutil

import (
	"sync"
	"time"
)

// Epoch is the instant NewFixedClock starts at when given the zero time.
var Epoch = time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC)

// FixedClock returns the same instant until moved explicitly.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock stopped at t, or at Epoch if t is zero.
func NewFixedClock(t time.Time) *FixedClock {
	if t.IsZero() {
		t = Epoch
	}
	return &FixedClock{now: t}
}

// Now returns the current fixed instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set stops the clock at t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

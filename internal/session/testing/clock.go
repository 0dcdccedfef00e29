// Package testing provides test doubles for the session package.
package testing

import (
	"context"
	"time"
)

// ManualClock replaces the session's inter-tick sleep. Each sleep request is
// published on Sleeps and blocks until Release is called or the run is
// cancelled. A received duration means the tick before it has finished.
type ManualClock struct {
	sleeps  chan time.Duration
	release chan struct{}
}

// NewManualClock creates a clock with no pending sleeps.
func NewManualClock() *ManualClock {
	return &ManualClock{
		sleeps:  make(chan time.Duration),
		release: make(chan struct{}),
	}
}

// Sleep matches session.SleepFunc.
func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) bool {
	select {
	case c.sleeps <- d:
	case <-ctx.Done():
		return false
	}
	select {
	case <-c.release:
		return true
	case <-ctx.Done():
		return false
	}
}

// Sleeps delivers the duration of each sleep as the loop enters it.
func (c *ManualClock) Sleeps() <-chan time.Duration {
	return c.sleeps
}

// Wait blocks until the loop starts sleeping or timeout passes.
func (c *ManualClock) Wait(timeout time.Duration) (time.Duration, bool) {
	select {
	case d := <-c.sleeps:
		return d, true
	case <-time.After(timeout):
		return 0, false
	}
}

// Release ends the current sleep. It returns false if no loop was sleeping
// within timeout.
func (c *ManualClock) Release(timeout time.Duration) bool {
	select {
	case c.release <- struct{}{}:
		return true
	case <-time.After(timeout):
		return false
	}
}

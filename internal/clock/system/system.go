// Package system provides the wall-clock implementations of crawler.Clock and
// crawler.Pauser.
package system

import (
	"context"
	"time"
)

// Clock implements crawler.Clock and crawler.Pauser using the real time.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Pause blocks for d or until ctx is done, whichever comes first.
func (Clock) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

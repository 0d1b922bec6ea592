// Package countdown provides cancellation-aware timed waits.
package countdown

import (
	"context"
	"time"

	"k8s.io/utils/clock"
)

// Countdown tracks a deadline on a clock.
type Countdown struct {
	clock    clock.Clock
	deadline time.Time
}

// Start begins a countdown of d on c.
func Start(c clock.Clock, d time.Duration) *Countdown {
	return &Countdown{clock: c, deadline: c.Now().Add(d)}
}

// Remaining is the time left, never negative.
func (c *Countdown) Remaining() time.Duration {
	r := c.deadline.Sub(c.clock.Now())
	if r < 0 {
		return 0
	}

	return r
}

func (c *Countdown) Expired() bool {
	return c.Remaining() == 0
}

// Wait blocks until the deadline or until ctx is done, returning ctx's
// error in the latter case.
func (c *Countdown) Wait(ctx context.Context) error {
	return Sleep(ctx, c.clock, c.Remaining())
}

// Sleep waits d on clk, returning early with ctx's error if ctx is done.
func Sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	t := clk.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

// internal/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter is a fixed-window rate limiter keyed by caller-chosen strings.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// Wait polls the limiter until a slot is allowed or the context is
// cancelled. It sleeps until the window resets between polls, so pacing
// never blocks cancellation.
func Wait(ctx context.Context, l Limiter, key string, limit int, window time.Duration) error {
	for {
		decision, err := l.Allow(ctx, key, limit, window)
		if err != nil {
			return err
		}
		if decision.Allowed {
			return nil
		}

		sleep := time.Until(decision.ResetAt)
		if sleep <= 0 {
			sleep = 100 * time.Millisecond
		}
		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

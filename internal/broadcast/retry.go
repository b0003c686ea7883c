package broadcast

import (
	"context"
	"time"

	"slotbot/internal/transport"
)

// Sleeper abstracts blocking waits so tests can run with a fake clock.
type Sleeper func(ctx context.Context, d time.Duration)

// SleepFunc is the production Sleeper; it returns early on cancellation.
func SleepFunc(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Policy governs delivery retries. Only rate-limit errors are retryable;
// the wait is the server-specified delay plus a fixed grace margin.
type Policy struct {
	MaxAttempts int
	Grace       time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 2, Grace: 500 * time.Millisecond}
}

// Do runs send until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The last error is returned as-is so callers can
// still classify it.
func (p Policy) Do(ctx context.Context, sleep Sleeper, send func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = send(); err == nil {
			return nil
		}
		rl, ok := transport.AsRateLimited(err)
		if !ok || i == attempts-1 {
			return err
		}
		sleep(ctx, rl.RetryAfter+p.Grace)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

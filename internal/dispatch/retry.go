package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy wraps a handler call in bounded exponential backoff.
// MaxAttempts counts every try including the first; fatal errors stop
// the loop immediately.
type RetryPolicy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	NewBackOff     func() backoff.BackOff
}

func DefaultRetryPolicy(attemptTimeout time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		AttemptTimeout: attemptTimeout,
		NewBackOff:     newExponentialBackOff,
	}
}

// newExponentialBackOff yields 1s, 2s, 4s, ... with jitter disabled so
// the wait before attempt n+1 is exactly 2^(n-1) seconds.
func newExponentialBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// Do runs op until it succeeds, fails fatally, or attempts are exhausted.
// A RetryAfterError's hint overrides the computed delay for that one wait.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	bo := p.NewBackOff()

	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = p.runAttempt(ctx, op)
		if lastErr == nil {
			return nil
		}

		var permanent *backoff.PermanentError
		if errors.As(lastErr, &permanent) {
			return permanent.Unwrap()
		}
		if isFatal(lastErr) {
			return lastErr
		}
		if attempt >= p.MaxAttempts {
			return fmt.Errorf("failed after %d attempt(s): %w", attempt, lastErr)
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			return fmt.Errorf("failed after %d attempt(s): %w", attempt, lastErr)
		}
		if hint, ok := retryAfterHint(lastErr); ok {
			delay = hint
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("failed after %d attempt(s): %w", attempt, ctx.Err())
		}
	}
}

func (p RetryPolicy) runAttempt(ctx context.Context, op func(ctx context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return op(attemptCtx)
}

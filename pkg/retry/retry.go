// Package retry provides a bounded exponential-backoff loop for
// operations that can fail transiently, such as calls to the remote
// database tool.
package retry

import (
	"context"
	"time"
)

// Policy bounds a retry loop. MaxRetries is the number of retries
// after the first attempt, so a policy with MaxRetries = 3 allows
// four attempts in total. The delay before retry n is
// BaseDelay * 2^(n-1).
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// OnRetry is called before each retry with the attempt number about
// to run (1-based), the delay that was slept, and the error that
// triggered the retry.
type OnRetry func(attempt int, delay time.Duration, err error)

// Do runs fn until it succeeds, returns a non-transient error, or the
// retry budget is exhausted. The transient classifier decides whether
// an error is worth retrying. The context cancels the backoff sleep;
// fn is responsible for honoring the context itself.
func Do[T any](ctx context.Context, p Policy, transient func(error) bool, onRetry OnRetry, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.BaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
			if onRetry != nil {
				onRetry(attempt, delay, lastErr)
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if transient == nil || !transient(err) {
			break
		}
	}

	return zero, lastErr
}

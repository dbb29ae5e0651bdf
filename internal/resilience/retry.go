package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Permanent wraps err so that [Retry] stops immediately instead of retrying.
func Permanent(err error) error {
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Retry calls fn up to attempts times, sleeping delay between tries. It stops
// early on success, on context cancellation, or when fn returns an error
// wrapped with [Permanent]. The delay is fixed; the call sites here are
// device/session init paths where exponential growth would only delay the
// fallback decision.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
	}
	return fmt.Errorf("resilience: %d attempts failed: %w", attempts, lastErr)
}

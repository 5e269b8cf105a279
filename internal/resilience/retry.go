package resilience

import (
	"context"
	"time"
)

// RetryConfig bounds the retry loop for one provider call.
type RetryConfig struct {
	// MaxAttempts is the total attempt ceiling including the first call.
	// Default: 3. The ceiling is shared across all transient error kinds;
	// a rate limit followed by two timeouts exhausts it the same as three
	// timeouts.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff: attempt n (zero-based)
	// sleeps BaseDelay * 2^n before retrying. Default: 500ms.
	BaseDelay time.Duration

	// Retryable classifies errors. Only errors it reports true for are
	// retried; everything else (validation failures in particular) aborts
	// the loop at once. A nil Retryable retries nothing.
	Retryable func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	return c
}

// RetryWithResult runs fn up to cfg.MaxAttempts times with exponential
// backoff between attempts, stopping early on success, on a non-retryable
// error, or when ctx is done. The last error is returned unwrapped so
// callers can still classify it.
func RetryWithResult[R any](ctx context.Context, cfg RetryConfig, fn func() (R, error)) (R, error) {
	cfg = cfg.withDefaults()

	var (
		zero    R
		lastErr error
	)
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.BaseDelay * (1 << (attempt - 1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if cfg.Retryable == nil || !cfg.Retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

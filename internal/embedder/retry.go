package embedder

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig controls backoff behavior for backend calls.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig returns sensible defaults for transient backend errors.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
	}
}

// retryWithBackoff retries fn with exponential backoff and jitter. It returns
// the last error if all attempts fail, and stops immediately when the context
// is cancelled.
func retryWithBackoff[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := cfg.BaseDelay * time.Duration(1<<(attempt-1))
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			// Jitter avoids synchronized retry storms.
			delay += time.Duration(rand.Int63n(int64(delay) / 4))

			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}

	return zero, fmt.Errorf("after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

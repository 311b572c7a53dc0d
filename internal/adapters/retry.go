package adapters

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Retry support for adapter health checks. Retries are explicit: the
// caller opts in and receives a full account of what happened. Query
// execution is never retried here; a failed query surfaces to the
// caller.

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts includes the first try. Default 3.
	MaxAttempts int

	// InitialDelay is the first backoff delay. Default 100ms.
	InitialDelay time.Duration

	// MaxDelay caps the backoff. Default 5s.
	MaxDelay time.Duration

	// BackoffMultiplier grows the delay between attempts. Default 2.0.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryResult is the full account of a retried operation.
type RetryResult struct {
	Attempts  int
	LastError error
	Errors    []error
	Success   bool
}

// String summarizes the result for logs.
func (r RetryResult) String() string {
	if r.Success {
		if r.Attempts == 1 {
			return "succeeded on first attempt"
		}
		return fmt.Sprintf("succeeded after %d attempts", r.Attempts)
	}
	return fmt.Sprintf("failed after %d attempts: %v", r.Attempts, r.LastError)
}

// IsRetryable reports whether an error is transient enough to retry.
// Context expiry and anything that is not clearly a network fault is
// final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return false
	}
	var netErr net.Error
	if asNetError(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func asNetError(err error, target *net.Error) bool {
	for err != nil {
		if ne, ok := err.(net.Error); ok {
			*target = ne
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ExecuteWithRetry runs fn up to MaxAttempts times with exponential
// backoff, stopping on success, a non-retryable error, or context
// expiry.
func ExecuteWithRetry(ctx context.Context, config RetryConfig, fn func() error) RetryResult {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}

	result := RetryResult{Errors: make([]error, 0, config.MaxAttempts)}
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			result.Errors = append(result.Errors, ctx.Err())
			return result
		}

		err := fn()
		if err == nil {
			result.Success = true
			return result
		}

		result.LastError = err
		result.Errors = append(result.Errors, err)

		if !IsRetryable(err) {
			return result
		}

		if attempt < config.MaxAttempts {
			select {
			case <-ctx.Done():
				result.LastError = ctx.Err()
				result.Errors = append(result.Errors, ctx.Err())
				return result
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * config.BackoffMultiplier)
				if delay > config.MaxDelay {
					delay = config.MaxDelay
				}
			}
		}
	}

	return result
}

package adapters

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// timeoutError mimics a transient network timeout.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil error retryable")
	}
	if IsRetryable(context.Canceled) || IsRetryable(context.DeadlineExceeded) {
		t.Error("context errors must be final")
	}
	if IsRetryable(fmt.Errorf("syntax error")) {
		t.Error("plain errors must be final")
	}
	if !IsRetryable(timeoutError{}) {
		t.Error("network timeout not retryable")
	}
	if !IsRetryable(fmt.Errorf("dial: %w", timeoutError{})) {
		t.Error("wrapped network timeout not retryable")
	}
}

func TestExecuteWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	res := ExecuteWithRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return nil
	})
	if !res.Success || res.Attempts != 1 || calls != 1 {
		t.Errorf("result = %+v, calls = %d", res, calls)
	}
	if res.String() != "succeeded on first attempt" {
		t.Errorf("String() = %s", res.String())
	}
}

func TestExecuteWithRetryStopsOnFinalError(t *testing.T) {
	calls := 0
	res := ExecuteWithRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return fmt.Errorf("permission denied")
	})
	if res.Success || res.Attempts != 1 || calls != 1 {
		t.Errorf("final error retried: %+v, calls = %d", res, calls)
	}
}

func TestExecuteWithRetryRetriesTransientErrors(t *testing.T) {
	calls := 0
	res := ExecuteWithRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		if calls < 3 {
			return timeoutError{}
		}
		return nil
	})
	if !res.Success || res.Attempts != 3 || calls != 3 {
		t.Errorf("result = %+v, calls = %d", res, calls)
	}
	if res.String() != "succeeded after 3 attempts" {
		t.Errorf("String() = %s", res.String())
	}
}

func TestExecuteWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	res := ExecuteWithRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return timeoutError{}
	})
	if res.Success || res.Attempts != 3 || calls != 3 {
		t.Errorf("result = %+v, calls = %d", res, calls)
	}
	if len(res.Errors) != 3 {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestExecuteWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	res := ExecuteWithRetry(ctx, fastRetryConfig(), func() error {
		calls++
		return nil
	})
	if res.Success || calls != 0 {
		t.Errorf("canceled context still executed: %+v, calls = %d", res, calls)
	}
}

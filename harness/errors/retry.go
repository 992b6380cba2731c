package errors

import (
	"context"
	"errors"
	"time"
)

// RetryConfig bounds an exponential backoff loop.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// RetryableErrors are retried in addition to whatever IsRetryable accepts.
	RetryableErrors []ErrorCode
}

// DefaultRetryConfig is the policy for ledger reads that have no explicit one.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		Multiplier:      2.0,
		RetryableErrors: []ErrorCode{ErrCodeRPC, ErrCodeTimeout},
	}
}

// RetryFunc is one attempt.
type RetryFunc func() error

func (c *RetryConfig) nextDelay(delay time.Duration) time.Duration {
	delay = time.Duration(float64(delay) * c.Multiplier)
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

func (c *RetryConfig) retries(err error) bool {
	codes := []ErrorCode{CodeOf(err)}
	var harnessErr *HarnessError
	if errors.As(err, &harnessErr) {
		codes = append(codes, harnessErr.Code)
	}
	for _, want := range c.RetryableErrors {
		for _, code := range codes {
			if code == want {
				return true
			}
		}
	}
	return IsRetryable(err)
}

// RetryWithConfig calls fn until it succeeds, fails with an error the
// config does not retry, or runs out of attempts. Running out is reported
// with the last error as cause and the attempt count in the context.
func RetryWithConfig(ctx context.Context, fn RetryFunc, config *RetryConfig) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	attempts := max(config.MaxAttempts, 1)

	var lastErr error
	delay := config.InitialDelay
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if !config.retries(lastErr) {
			return lastErr
		}
		if attempt >= attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = config.nextDelay(delay)
	}

	return WrapHarnessError(lastErr, ErrCodeInternal, "", "maximum retry attempts exceeded").
		WithContext("attempts", attempts)
}

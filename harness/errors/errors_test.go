package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedErr struct{ code ErrorCode }

func (c codedErr) Error() string   { return "coded" }
func (c codedErr) Code() ErrorCode { return c.code }

func TestHarnessError(t *testing.T) {
	t.Run("formats phase and cause", func(t *testing.T) {
		err := NewSubmissionError("send_trx", "send failed", fmt.Errorf("connection reset"))
		assert.Equal(t, "[send_trx:SUBMISSION] MEDIUM: send failed: connection reset", err.Error())
		assert.True(t, err.IsRetryable())
	})

	t.Run("construction errors are not retryable", func(t *testing.T) {
		err := NewConstructionError("message too long", nil)
		assert.False(t, err.IsRetryable())
		assert.Equal(t, SeverityHigh, err.Severity)
		assert.Equal(t, "[CONSTRUCTION] HIGH: message too long", err.Error())
	})

	t.Run("unwrap exposes cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := NewRPCError("get blockhash", cause)
		assert.True(t, errors.Is(err, cause))
	})
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"plain", errors.New("x"), ErrCodeInternal},
		{"harness", NewConfigError("bad"), ErrCodeConfig},
		{"coded", codedErr{ErrCodeDecode}, ErrCodeDecode},
		{"coded behind harness", NewHarnessError(ErrCodeInternal, "", "wrapped", codedErr{ErrCodeValidation}), ErrCodeValidation},
		{"wrapped coded", Wrap(codedErr{ErrCodeDecode}, "ctx"), ErrCodeDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestIsRetryablePatterns(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("Blockhash not found")))
	assert.True(t, IsRetryable(errors.New("i/o timeout")))
	assert.False(t, IsRetryable(errors.New("invalid instruction data")))
	assert.False(t, IsRetryable(nil))
}

func TestErrorGroup(t *testing.T) {
	eg := NewErrorGroup()
	require.NoError(t, eg.ErrOrNil())

	eg.Add(nil)
	eg.Add(errors.New("first"))
	assert.Equal(t, "first", eg.Error())

	eg.Add(errors.New("second"))
	assert.Equal(t, "2 errors occurred: first", eg.Error())
	assert.Error(t, eg.ErrOrNil())

	t.Run("members are visible to errors.As", func(t *testing.T) {
		eg := NewErrorGroup()
		eg.Add(errors.New("plain"))
		eg.Add(Wrapf(codedErr{ErrCodeValidation}, "job %d", 3))
		assert.Equal(t, ErrCodeValidation, CodeOf(eg.ErrOrNil()))

		var coded codedErr
		require.ErrorAs(t, eg, &coded)
	})
}

func TestWrapf(t *testing.T) {
	require.NoError(t, Wrapf(nil, "job %s", "x"))

	cause := codedErr{ErrCodeDecode}
	err := Wrapf(cause, "group %d record %d", 1, 2)
	assert.Equal(t, "group 1 record 2: coded", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, ErrCodeDecode, CodeOf(err))
}

func TestRetryWithConfig(t *testing.T) {
	fast := &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		Multiplier:      2.0,
		RetryableErrors: []ErrorCode{ErrCodeRPC},
	}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := RetryWithConfig(context.Background(), func() error {
			calls++
			if calls < 3 {
				return NewRPCError("flaky", nil)
			}
			return nil
		}, fast)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non retryable error", func(t *testing.T) {
		calls := 0
		err := RetryWithConfig(context.Background(), func() error {
			calls++
			return NewConstructionError("bad input", nil)
		}, fast)
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.True(t, IsHarnessError(err, ErrCodeConstruction))
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := RetryWithConfig(context.Background(), func() error {
			calls++
			return NewRPCError("down", nil)
		}, fast)
		require.Error(t, err)
		assert.Equal(t, 3, calls)

		var harnessErr *HarnessError
		require.True(t, errors.As(err, &harnessErr))
		assert.Equal(t, 3, harnessErr.Context["attempts"])
	})

	t.Run("retries domain codes listed in config", func(t *testing.T) {
		calls := 0
		cfg := *fast
		cfg.RetryableErrors = []ErrorCode{ErrCodeDecode}
		err := RetryWithConfig(context.Background(), func() error {
			calls++
			return NewHarnessError(ErrCodeInternal, "", "fetch", codedErr{ErrCodeDecode})
		}, &cfg)
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := RetryWithConfig(ctx, func() error { return nil }, fast)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

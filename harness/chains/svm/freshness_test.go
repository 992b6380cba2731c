package svm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/apetrovskiy/neon-evm/harness/chains/svm"
	"github.com/apetrovskiy/neon-evm/harness/chains/svm/svmtest"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func fastRetry() *harnesserrors.RetryConfig {
	return &harnesserrors.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func hashOf(b byte) solana.Hash { return solana.Hash{b} }

func TestFreshnessToken_IsStale(t *testing.T) {
	obtained := time.Unix(100, 0)
	token := svm.FreshnessToken{ObtainedAt: obtained}
	bound := 5 * time.Second

	assert.True(t, svm.FreshnessToken{}.IsStale(obtained, bound))
	assert.False(t, token.IsStale(obtained, bound))
	assert.False(t, token.IsStale(obtained.Add(bound-time.Nanosecond), bound))
	assert.True(t, token.IsStale(obtained.Add(bound), bound))
	assert.True(t, token.IsStale(obtained.Add(bound+time.Second), bound))
}

func TestBlockhashTracker_RefetchesOnlyWhenStale(t *testing.T) {
	ledger := new(svmtest.MockLedger)
	ledger.On("GetRecentBlockhash", mock.Anything).Return(hashOf(1), nil).Once()
	ledger.On("GetRecentBlockhash", mock.Anything).Return(hashOf(2), nil).Once()

	clock := newFakeClock()
	tracker := svm.NewBlockhashTracker(ledger, 5*time.Second, zerolog.Nop()).WithClock(clock.Now)
	ctx := context.Background()

	token, err := tracker.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, hashOf(1), token.Blockhash)
	ledger.AssertNumberOfCalls(t, "GetRecentBlockhash", 1)

	clock.Advance(4999 * time.Millisecond)
	token, err = tracker.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, hashOf(1), token.Blockhash)
	ledger.AssertNumberOfCalls(t, "GetRecentBlockhash", 1)

	clock.Advance(time.Millisecond)
	token, err = tracker.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, hashOf(2), token.Blockhash)
	assert.Equal(t, clock.Now(), token.ObtainedAt)
	ledger.AssertNumberOfCalls(t, "GetRecentBlockhash", 2)
	assert.Equal(t, 2, tracker.Refreshes())
	ledger.AssertExpectations(t)
}

func TestBlockhashTracker_Invalidate(t *testing.T) {
	ledger := new(svmtest.MockLedger)
	ledger.On("GetRecentBlockhash", mock.Anything).Return(hashOf(3), nil)

	tracker := svm.NewBlockhashTracker(ledger, time.Hour, zerolog.Nop())
	_, err := tracker.Current(context.Background())
	require.NoError(t, err)
	tracker.Invalidate()
	_, err = tracker.Current(context.Background())
	require.NoError(t, err)
	ledger.AssertNumberOfCalls(t, "GetRecentBlockhash", 2)
}

func TestBlockhashTracker_FetchErrors(t *testing.T) {
	t.Run("transient failure is retried", func(t *testing.T) {
		ledger := new(svmtest.MockLedger)
		ledger.On("GetRecentBlockhash", mock.Anything).Return(solana.Hash{}, harnesserrors.NewRPCError("unavailable", nil)).Once()
		ledger.On("GetRecentBlockhash", mock.Anything).Return(hashOf(4), nil).Once()

		tracker := svm.NewBlockhashTracker(ledger, time.Second, zerolog.Nop()).WithRetry(fastRetry())
		token, err := tracker.Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, hashOf(4), token.Blockhash)
		ledger.AssertExpectations(t)
	})

	t.Run("persistent failure surfaces", func(t *testing.T) {
		ledger := new(svmtest.MockLedger)
		ledger.On("GetRecentBlockhash", mock.Anything).Return(solana.Hash{}, errors.New("node offline"))

		tracker := svm.NewBlockhashTracker(ledger, time.Second, zerolog.Nop()).WithRetry(fastRetry())
		_, err := tracker.Current(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get recent blockhash")
		ledger.AssertNumberOfCalls(t, "GetRecentBlockhash", 1)
	})
}

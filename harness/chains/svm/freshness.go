package svm

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
)

// FreshnessToken is a recent blockhash plus the time it was obtained.
type FreshnessToken struct {
	Blockhash  solana.Hash
	ObtainedAt time.Time
}

// IsStale reports whether the token must be refetched: never obtained, or at
// least bound old.
func (t FreshnessToken) IsStale(now time.Time, bound time.Duration) bool {
	return t.ObtainedAt.IsZero() || now.Sub(t.ObtainedAt) >= bound
}

// BlockhashTracker hands out a FreshnessToken, replacing it wholesale once it
// goes stale.
type BlockhashTracker struct {
	source   BlockhashSource
	bound    time.Duration
	now      func() time.Time
	retry    *harnesserrors.RetryConfig
	observer Observer
	logger   zerolog.Logger

	mu        sync.Mutex
	token     FreshnessToken
	refreshes int
}

// NewBlockhashTracker creates a tracker with the given staleness bound.
func NewBlockhashTracker(source BlockhashSource, bound time.Duration, logger zerolog.Logger) *BlockhashTracker {
	return &BlockhashTracker{
		source:   source,
		bound:    bound,
		now:      time.Now,
		retry:    harnesserrors.DefaultRetryConfig(),
		observer: nopObserver{},
		logger:   logger.With().Str("component", "blockhash_tracker").Logger(),
	}
}

// WithClock replaces the time source.
func (t *BlockhashTracker) WithClock(now func() time.Time) *BlockhashTracker {
	t.now = now
	return t
}

// WithRetry replaces the retry policy used for fetches.
func (t *BlockhashTracker) WithRetry(cfg *harnesserrors.RetryConfig) *BlockhashTracker {
	t.retry = cfg
	return t
}

// WithObserver sets the refresh observer.
func (t *BlockhashTracker) WithObserver(o Observer) *BlockhashTracker {
	if o != nil {
		t.observer = o
	}
	return t
}

// Current returns a token that is not stale, fetching a new one if needed.
func (t *BlockhashTracker) Current(ctx context.Context) (FreshnessToken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.token.IsStale(now, t.bound) {
		return t.token, nil
	}

	var hash solana.Hash
	err := harnesserrors.RetryWithConfig(ctx, func() error {
		var innerErr error
		hash, innerErr = t.source.GetRecentBlockhash(ctx)
		return innerErr
	}, t.retry)
	if err != nil {
		return FreshnessToken{}, harnesserrors.WrapHarnessError(err, harnesserrors.ErrCodeRPC, "", "failed to get recent blockhash")
	}

	previous := t.token
	t.token = FreshnessToken{Blockhash: hash, ObtainedAt: t.now()}
	t.refreshes++
	t.observer.BlockhashRefreshed()

	event := t.logger.Debug().Str("blockhash", hash.String())
	if !previous.ObtainedAt.IsZero() {
		event = event.Dur("age", now.Sub(previous.ObtainedAt))
	}
	event.Msg("refreshed blockhash")

	return t.token, nil
}

// Invalidate forces the next Current call to refetch.
func (t *BlockhashTracker) Invalidate() {
	t.mu.Lock()
	t.token = FreshnessToken{}
	t.mu.Unlock()
}

// Refreshes returns how many times a blockhash has been fetched.
func (t *BlockhashTracker) Refreshes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshes
}

package db

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/apetrovskiy/neon-evm/harness/store"
)

// RunPruner deletes finished runs older than a retention period together
// with their transactions.
type RunPruner struct {
	db        *DB
	retention time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// NewRunPruner creates a pruner for database.
func NewRunPruner(database *DB, retention time.Duration, logger zerolog.Logger) *RunPruner {
	return &RunPruner{
		db:        database,
		retention: retention,
		now:       time.Now,
		logger:    logger.With().Str("component", "run_pruner").Logger(),
	}
}

// Prune removes expired runs and returns how many were deleted. Runs still
// marked running are never removed.
func (p *RunPruner) Prune(ctx context.Context) (int64, error) {
	start := p.now()
	cutoff := start.Add(-p.retention)

	var runIDs []string
	err := p.db.client.WithContext(ctx).
		Model(&store.BenchRun{}).
		Where("status <> ? AND updated_at < ?", store.RunStatusRunning, cutoff).
		Pluck("run_id", &runIDs).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to select expired runs")
	}
	if len(runIDs) == 0 {
		p.logger.Debug().Dur("retention_period", p.retention).Msg("no runs to prune")
		return 0, nil
	}

	var deleted int64
	err = p.db.client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("run_id IN ?", runIDs).Delete(&store.SubmittedTransaction{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete transactions")
		}
		res := tx.Unscoped().Where("run_id IN ?", runIDs).Delete(&store.BenchRun{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "failed to delete runs")
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	p.checkpointWAL()
	p.logger.Info().
		Int64("deleted_runs", deleted).
		Dur("duration", time.Since(start)).
		Msg("run pruning completed")
	return deleted, nil
}

// checkpointWAL truncates the write-ahead log after large deletes.
func (p *RunPruner) checkpointWAL() {
	if err := p.db.client.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		p.logger.Warn().Err(err).Msg("failed to checkpoint WAL")
	}
}

package db

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/apetrovskiy/neon-evm/harness/chains/svm"
	"github.com/apetrovskiy/neon-evm/harness/store"
)

// RunSummary is the final tally written when a run finishes.
type RunSummary struct {
	Total     int
	Errors    int
	Confirmed int
}

// RunRecorder persists one phase run and the state transitions of its
// transactions. It implements svm.StateRecorder.
type RunRecorder struct {
	db     *DB
	runID  string
	phase  string
	logger zerolog.Logger
}

var _ svm.StateRecorder = (*RunRecorder)(nil)

// StartRun inserts a running BenchRun row and returns a recorder bound to it.
func (d *DB) StartRun(ctx context.Context, runID, phase string, logger zerolog.Logger) (*RunRecorder, error) {
	run := store.BenchRun{RunID: runID, Phase: phase, Status: store.RunStatusRunning}
	if err := d.client.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to start run %s", runID)
	}
	return &RunRecorder{
		db:     d,
		runID:  runID,
		phase:  phase,
		logger: logger.With().Str("component", "run_recorder").Str("run_id", runID).Logger(),
	}, nil
}

// RunID returns the identifier of the recorded run.
func (r *RunRecorder) RunID() string {
	return r.runID
}

// RecordState upserts the transaction row for jobID.
func (r *RunRecorder) RecordState(ctx context.Context, jobID string, sig solana.Signature, state svm.TxState, cause error) error {
	row := store.SubmittedTransaction{
		RunID: r.runID,
		JobID: jobID,
		Phase: r.phase,
		State: string(state),
	}
	if sig != (solana.Signature{}) {
		row.Signature = sig.String()
	}
	if cause != nil {
		row.ErrorMsg = cause.Error()
	}

	updates := []string{"state", "error_msg", "updated_at"}
	if row.Signature != "" {
		updates = append(updates, "signature")
	}
	err := r.db.client.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&row).Error
	if err != nil {
		return errors.Wrapf(err, "failed to record state %s for job %s", state, jobID)
	}
	return nil
}

// Finish marks the run completed, or failed when runErr is non-nil.
func (r *RunRecorder) Finish(ctx context.Context, summary RunSummary, runErr error) error {
	now := time.Now()
	updates := map[string]any{
		"status":      store.RunStatusCompleted,
		"total":       summary.Total,
		"errors":      summary.Errors,
		"confirmed":   summary.Confirmed,
		"finished_at": &now,
	}
	if runErr != nil {
		updates["status"] = store.RunStatusFailed
		updates["error_msg"] = runErr.Error()
	}

	res := r.db.client.WithContext(ctx).Model(&store.BenchRun{}).Where("run_id = ?", r.runID).Updates(updates)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to finish run %s", r.runID)
	}
	if res.RowsAffected == 0 {
		return errors.Errorf("run %s not found", r.runID)
	}
	r.logger.Debug().Str("status", updates["status"].(string)).Msg("run finished")
	return nil
}

// GetRun loads a run by its identifier.
func (d *DB) GetRun(ctx context.Context, runID string) (*store.BenchRun, error) {
	var run store.BenchRun
	err := d.client.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load run %s", runID)
	}
	return &run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (d *DB) RecentRuns(ctx context.Context, limit int) ([]store.BenchRun, error) {
	var runs []store.BenchRun
	q := d.client.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	return runs, nil
}

// TransactionsByState returns the transactions of a run in the given state,
// in insertion order.
func (d *DB) TransactionsByState(ctx context.Context, runID string, state svm.TxState) ([]store.SubmittedTransaction, error) {
	var txs []store.SubmittedTransaction
	err := d.client.WithContext(ctx).
		Where("run_id = ? AND state = ?", runID, string(state)).
		Order("id ASC").
		Find(&txs).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %s transactions", state)
	}
	return txs, nil
}

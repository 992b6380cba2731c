package svm

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/apetrovskiy/neon-evm/harness/evmlog"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
)

// TxState is the lifecycle position of one batch transaction.
type TxState string

const (
	TxBuilt            TxState = "built"
	TxSigned           TxState = "signed"
	TxSubmitted        TxState = "submitted"
	TxConfirmed        TxState = "confirmed"
	TxSubmissionFailed TxState = "submission_failed"
)

// StateRecorder persists lifecycle transitions.
type StateRecorder interface {
	RecordState(ctx context.Context, jobID string, sig solana.Signature, state TxState, cause error) error
}

// LogCheck validates the decoded log of a confirmed transaction.
type LogCheck func(evmlog.Log) error

// Job is one transaction of a batch.
type Job struct {
	ID           string
	Instructions []solana.Instruction
	// Check is optional; nil skips validation.
	Check LogCheck
}

// Receipt is a successfully submitted job.
type Receipt struct {
	Job         Job
	Signature   solana.Signature
	SubmittedAt time.Time
}

// BatchResult summarizes the submission pass.
type BatchResult struct {
	Total     int
	Errors    int
	Receipts  []Receipt
	Confirmed int
}

// Batch runs the two-pass protocol: submit everything without waiting, then
// confirm and validate in submission order.
type Batch struct {
	composer *Composer
	client   LedgerClient
	opts     SendOptions
	recorder StateRecorder
	observer Observer
	phase    string
	logger   zerolog.Logger
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithRecorder persists state transitions through r.
func WithRecorder(r StateRecorder) BatchOption {
	return func(b *Batch) { b.recorder = r }
}

// WithObserver reports lifecycle events to o.
func WithObserver(o Observer) BatchOption {
	return func(b *Batch) {
		if o != nil {
			b.observer = o
		}
	}
}

// NewBatch creates a batch runner for one phase.
func NewBatch(phase string, composer *Composer, client LedgerClient, opts SendOptions, logger zerolog.Logger, options ...BatchOption) *Batch {
	b := &Batch{
		composer: composer,
		client:   client,
		opts:     opts,
		observer: nopObserver{},
		phase:    phase,
		logger:   logger.With().Str("component", "svm_batch").Str("phase", phase).Logger(),
	}
	for _, o := range options {
		o(b)
	}
	return b
}

// SubmitBatch signs and sends every job. Send failures are logged, counted
// and skipped; construction and blockhash failures abort the pass.
func (b *Batch) SubmitBatch(ctx context.Context, jobs []Job) (BatchResult, error) {
	result := BatchResult{Receipts: make([]Receipt, 0, len(jobs))}

	for _, job := range jobs {
		result.Total++
		b.record(ctx, job.ID, solana.Signature{}, TxBuilt, nil)

		tx, err := b.composer.Compose(ctx, job.Instructions...)
		if err != nil {
			return result, err
		}
		sig := tx.Signatures[0]
		b.record(ctx, job.ID, sig, TxSigned, nil)

		sent, err := b.client.SendTransaction(ctx, tx, b.opts)
		if err != nil {
			result.Errors++
			b.observer.SubmissionFailed()
			b.record(ctx, job.ID, sig, TxSubmissionFailed, err)
			b.logger.Warn().Err(err).Str("job", job.ID).Msg("submission failed")
			continue
		}

		b.observer.TransactionSubmitted()
		b.record(ctx, job.ID, sent, TxSubmitted, nil)
		result.Receipts = append(result.Receipts, Receipt{Job: job, Signature: sent, SubmittedAt: time.Now()})
	}

	b.logger.Info().
		Int("total", result.Total).
		Int("errors", result.Errors).
		Msg("submission pass finished")
	return result, nil
}

// ConfirmBatch waits for each receipt in order, then decodes and checks its
// log. Jobs without a check are confirmed without fetching the log. The first
// failure stops the pass.
func (b *Batch) ConfirmBatch(ctx context.Context, result *BatchResult) error {
	for _, receipt := range result.Receipts {
		log := b.logger.With().Str("job", receipt.Job.ID).Str("signature", receipt.Signature.String()).Logger()

		if err := b.client.ConfirmTransaction(ctx, receipt.Signature); err != nil {
			return harnesserrors.WrapHarnessError(err, harnesserrors.CodeOf(err), b.phase, "confirmation failed").
				WithContext("job", receipt.Job.ID)
		}

		records := 0
		if receipt.Job.Check != nil {
			decoded, err := b.fetchLog(ctx, receipt)
			if err != nil {
				b.observer.ValidationFailed()
				return err
			}
			if err := receipt.Job.Check(decoded); err != nil {
				b.observer.ValidationFailed()
				return harnesserrors.WrapHarnessError(err, harnesserrors.ErrCodeValidation, b.phase, "log validation failed").
					WithContext("job", receipt.Job.ID)
			}
			records = decoded.RecordCount()
		}

		result.Confirmed++
		b.observer.TransactionConfirmed()
		b.record(ctx, receipt.Job.ID, receipt.Signature, TxConfirmed, nil)
		log.Debug().Int("records", records).Msg("transaction confirmed")
	}
	return nil
}

// fetchLog loads and decodes the log of a confirmed job.
func (b *Batch) fetchLog(ctx context.Context, receipt Receipt) (evmlog.Log, error) {
	raw, err := b.client.GetTransactionLog(ctx, receipt.Signature)
	if err != nil {
		return evmlog.Log{}, harnesserrors.WrapHarnessError(err, harnesserrors.CodeOf(err), b.phase, "failed to fetch transaction log").
			WithContext("job", receipt.Job.ID)
	}
	decoded, err := evmlog.Decode(raw)
	if err != nil {
		return evmlog.Log{}, harnesserrors.WrapHarnessError(err, harnesserrors.ErrCodeDecode, b.phase, "failed to decode transaction log").
			WithContext("job", receipt.Job.ID)
	}
	return decoded, nil
}

// Run submits and confirms jobs.
func (b *Batch) Run(ctx context.Context, jobs []Job) (BatchResult, error) {
	result, err := b.SubmitBatch(ctx, jobs)
	if err != nil {
		return result, err
	}
	return result, b.ConfirmBatch(ctx, &result)
}

func (b *Batch) record(ctx context.Context, jobID string, sig solana.Signature, state TxState, cause error) {
	if b.recorder == nil {
		return
	}
	if err := b.recorder.RecordState(ctx, jobID, sig, state, cause); err != nil {
		b.logger.Warn().Err(err).Str("job", jobID).Str("state", string(state)).Msg("failed to record transaction state")
	}
}

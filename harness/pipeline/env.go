// Package pipeline runs the benchmark phases: deploy, create-accounts and
// mint, create-transactions, send-transactions and the block hash probe.
// Phases hand their results to each other through the state store.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/apetrovskiy/neon-evm/harness/chains/svm"
	"github.com/apetrovskiy/neon-evm/harness/config"
	"github.com/apetrovskiy/neon-evm/harness/db"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
	"github.com/apetrovskiy/neon-evm/harness/metrics"
	"github.com/apetrovskiy/neon-evm/harness/state"
)

// Phase names, used for logs, metrics labels and run records.
const (
	PhaseBootstrap          = "bootstrap"
	PhaseDeploy             = "deploy"
	PhaseCreateAccounts     = "create-accounts"
	PhaseMint               = "mint"
	PhaseCreateTransactions = "create-transactions"
	PhaseSendTransactions   = "send-transactions"
	PhaseProbeBlockhash     = "probe-blockhash"
)

// Env carries the collaborators shared by every phase.
type Env struct {
	Config   *config.Config
	Programs svm.Programs
	Payer    solana.PrivateKey
	Client   svm.LedgerClient
	State    *state.Store

	// DB and Metrics are optional.
	DB      *db.DB
	Metrics *metrics.Metrics

	Out    io.Writer
	Logger zerolog.Logger
	Rand   *rand.Rand

	// Retry overrides the blockhash fetch policy.
	Retry *harnesserrors.RetryConfig
}

func (e *Env) out() io.Writer {
	if e.Out == nil {
		return io.Discard
	}
	return e.Out
}

func (e *Env) rand() *rand.Rand {
	if e.Rand == nil {
		e.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e.Rand
}

// Report summarizes one phase.
type Report struct {
	Phase     string
	RunID     string
	Total     int
	Errors    int
	Confirmed int
	// Invalid counts confirmed transactions whose log check failed without
	// halting the phase.
	Invalid   int
	Elapsed   time.Duration
}

// Print writes the end-of-phase summary.
func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w, "phase: %s\n", r.Phase)
	fmt.Fprintf(w, "total: %d\n", r.Total)
	fmt.Fprintf(w, "errors: %d\n", r.Errors)
	fmt.Fprintf(w, "confirmed: %d\n", r.Confirmed)
	if r.Invalid > 0 {
		fmt.Fprintf(w, "validation failures: %d\n", r.Invalid)
	}
	fmt.Fprintf(w, "time: %.3f sec\n", r.Elapsed.Seconds())
}

// phaseRun holds the per-phase composer, blockhash tracker and bookkeeping.
type phaseRun struct {
	env      *Env
	name     string
	runID    string
	tracker  *svm.BlockhashTracker
	composer *svm.Composer
	observer svm.Observer
	recorder *db.RunRecorder
	started  time.Time
	logger   zerolog.Logger
}

func (e *Env) begin(ctx context.Context, phase string) (*phaseRun, error) {
	run := &phaseRun{
		env:     e,
		name:    phase,
		runID:   phase + "-" + uuid.NewString(),
		started: time.Now(),
	}
	run.logger = e.Logger.With().Str("phase", phase).Str("run_id", run.runID).Logger()

	if e.Metrics != nil {
		run.observer = e.Metrics.Observer(phase)
	}
	run.tracker = svm.NewBlockhashTracker(e.Client, e.Config.BlockhashStaleness(), run.logger).WithObserver(run.observer)
	if e.Retry != nil {
		run.tracker.WithRetry(e.Retry)
	}
	run.composer = svm.NewComposer(e.Payer, e.Programs, run.tracker, e.Config.Batch, run.logger)

	if e.DB != nil {
		rec, err := e.DB.StartRun(ctx, run.runID, phase, run.logger)
		if err != nil {
			return nil, harnesserrors.WrapHarnessError(err, harnesserrors.ErrCodeDatabase, phase, "failed to record run start")
		}
		run.recorder = rec
	}

	run.logger.Info().Msg("phase started")
	return run, nil
}

// batch returns a batch runner wired to the run's observer and recorder.
func (r *phaseRun) batch(skipPreflight bool) *svm.Batch {
	opts := []svm.BatchOption{svm.WithObserver(r.observer)}
	if r.recorder != nil {
		opts = append(opts, svm.WithRecorder(r.recorder))
	}
	send := svm.SendOptions{
		SkipPreflight:       skipPreflight,
		PreflightCommitment: rpc.CommitmentConfirmed,
	}
	return svm.NewBatch(r.name, r.composer, r.env.Client, send, r.logger, opts...)
}

// finish closes the run record, observes metrics and returns the report.
func (r *phaseRun) finish(ctx context.Context, result svm.BatchResult, runErr error) Report {
	report := Report{
		Phase:     r.name,
		RunID:     r.runID,
		Total:     result.Total,
		Errors:    result.Errors,
		Confirmed: result.Confirmed,
		Elapsed:   time.Since(r.started),
	}

	if r.env.Metrics != nil {
		r.env.Metrics.ObservePhase(r.name, report.Elapsed, runErr)
	}
	if r.recorder != nil {
		summary := db.RunSummary{Total: result.Total, Errors: result.Errors, Confirmed: result.Confirmed}
		if err := r.recorder.Finish(ctx, summary, runErr); err != nil {
			r.logger.Warn().Err(err).Msg("failed to record run finish")
		}
	}

	event := r.logger.Info()
	if runErr != nil {
		event = r.logger.Error().Err(runErr)
	}
	event.
		Int("total", report.Total).
		Int("errors", report.Errors).
		Int("confirmed", report.Confirmed).
		Dur("elapsed", report.Elapsed).
		Msg("phase finished")
	return report
}

package svm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/apetrovskiy/neon-evm/harness/evmlog"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
)

// RPCClient provides ledger RPC operations with round-robin failover.
type RPCClient struct {
	clients      []*rpc.Client
	index        uint64
	mu           sync.RWMutex
	pollInterval time.Duration
	confirmWait  time.Duration
	logProgram   solana.PublicKey
	logger       zerolog.Logger
}

var _ LedgerClient = (*RPCClient)(nil)

// NewRPCClient connects to every healthy endpoint in rpcURLs.
func NewRPCClient(ctx context.Context, rpcURLs []string, logger zerolog.Logger) (*RPCClient, error) {
	if len(rpcURLs) == 0 {
		return nil, harnesserrors.NewConfigError("no RPC URLs provided")
	}

	log := logger.With().Str("component", "svm_rpc_client").Logger()
	clients := make([]*rpc.Client, 0, len(rpcURLs))

	for _, url := range rpcURLs {
		client := rpc.New(url)

		health, err := client.GetHealth(ctx)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("failed to connect to RPC endpoint, skipping")
			continue
		}
		if health != "ok" {
			log.Warn().
				Str("url", url).
				Str("health", health).
				Msg("node is not healthy, skipping")
			continue
		}

		clients = append(clients, client)
		log.Info().Str("url", url).Msg("connected to RPC endpoint")
	}

	if len(clients) == 0 {
		return nil, harnesserrors.NewRPCError("failed to connect to any valid RPC endpoints", nil)
	}

	return &RPCClient{
		clients:      clients,
		pollInterval: 500 * time.Millisecond,
		confirmWait:  60 * time.Second,
		logger:       log,
	}, nil
}

// WithConfirmation sets the polling interval and overall wait used by
// ConfirmTransaction.
func (rc *RPCClient) WithConfirmation(pollInterval, timeout time.Duration) *RPCClient {
	if pollInterval > 0 {
		rc.pollInterval = pollInterval
	}
	if timeout > 0 {
		rc.confirmWait = timeout
	}
	return rc
}

// WithLogProgram sets the program whose inner instructions GetTransactionLog
// returns as log records.
func (rc *RPCClient) WithLogProgram(program solana.PublicKey) *RPCClient {
	rc.logProgram = program
	return rc
}

// nextClient returns the next endpoint in round-robin order.
func (rc *RPCClient) nextClient(operation string) (*rpc.Client, error) {
	rc.mu.RLock()
	clients := rc.clients
	rc.mu.RUnlock()

	if len(clients) == 0 {
		return nil, harnesserrors.NewRPCError(fmt.Sprintf("no RPC clients available for %s", operation), nil)
	}
	index := atomic.AddUint64(&rc.index, 1) - 1
	return clients[index%uint64(len(clients))], nil
}

// executeWithFailover executes a function with round-robin failover
func (rc *RPCClient) executeWithFailover(ctx context.Context, operation string, fn func(*rpc.Client) error) error {
	rc.mu.RLock()
	maxAttempts := len(rc.clients)
	rc.mu.RUnlock()

	if maxAttempts == 0 {
		return harnesserrors.NewRPCError(fmt.Sprintf("no RPC clients available for %s", operation), nil)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		client, err := rc.nextClient(operation)
		if err != nil {
			return err
		}

		err = fn(client)
		if err == nil {
			return nil
		}
		lastErr = err

		rc.logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Err(err).
			Msg("operation failed, trying next endpoint")
	}

	return harnesserrors.NewRPCError(
		fmt.Sprintf("operation %s failed after trying %d endpoints", operation, maxAttempts), lastErr)
}

// GetRecentBlockhash gets a recent blockhash for transaction building
func (rc *RPCClient) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	var blockhash solana.Hash
	err := rc.executeWithFailover(ctx, "get_recent_blockhash", func(client *rpc.Client) error {
		resp, innerErr := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if innerErr != nil {
			return innerErr
		}
		blockhash = resp.Value.Blockhash
		return nil
	})
	return blockhash, err
}

// SendTransaction hands a signed transaction to the next endpoint in
// round-robin order without waiting. A rejected send is not retried on
// another endpoint.
func (rc *RPCClient) SendTransaction(ctx context.Context, tx *solana.Transaction, opts SendOptions) (solana.Signature, error) {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, harnesserrors.NewConstructionError("transaction has no signatures", nil)
	}
	commitment := opts.PreflightCommitment
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}

	client, err := rc.nextClient("send_transaction")
	if err != nil {
		return solana.Signature{}, harnesserrors.NewSubmissionError("", "failed to send transaction", err)
	}
	sig, err := client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: commitment,
	})
	if err != nil {
		return solana.Signature{}, harnesserrors.NewSubmissionError("", "failed to send transaction", err)
	}
	return sig, nil
}

// ConfirmTransaction polls until the signature reaches confirmed commitment.
func (rc *RPCClient) ConfirmTransaction(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, rc.confirmWait)
	defer cancel()

	ticker := time.NewTicker(rc.pollInterval)
	defer ticker.Stop()

	for {
		var statuses *rpc.GetSignatureStatusesResult
		err := rc.executeWithFailover(ctx, "get_signature_statuses", func(client *rpc.Client) error {
			var innerErr error
			statuses, innerErr = client.GetSignatureStatuses(ctx, true, sig)
			return innerErr
		})
		if err != nil {
			rc.logger.Debug().Err(err).Msg("error checking transaction status")
		} else if statuses != nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return harnesserrors.NewHarnessError(harnesserrors.ErrCodeValidation, "",
					fmt.Sprintf("transaction %s failed on ledger", sig), fmt.Errorf("%v", status.Err))
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return harnesserrors.NewTimeoutError(fmt.Sprintf("transaction %s not confirmed", sig)).
				WithContext("wait", rc.confirmWait.String())
		case <-ticker.C:
		}
	}
}

// GetTransaction gets a confirmed transaction by signature
func (rc *RPCClient) GetTransaction(ctx context.Context, sig solana.Signature) (*rpc.GetTransactionResult, error) {
	var tx *rpc.GetTransactionResult
	err := rc.executeWithFailover(ctx, "get_transaction", func(client *rpc.Client) error {
		var innerErr error
		maxVersion := uint64(0)
		tx, innerErr = client.GetTransaction(
			ctx,
			sig,
			&rpc.GetTransactionOpts{
				Encoding:                       solana.EncodingBase64,
				Commitment:                     rpc.CommitmentConfirmed,
				MaxSupportedTransactionVersion: &maxVersion,
			},
		)
		return innerErr
	})
	return tx, err
}

// GetTransactionLog returns the log records the configured program emitted
// as inner instructions of a confirmed transaction.
func (rc *RPCClient) GetTransactionLog(ctx context.Context, sig solana.Signature) (evmlog.RawLog, error) {
	if rc.logProgram.IsZero() {
		return evmlog.RawLog{}, harnesserrors.NewConfigError("log program is not set")
	}
	tx, err := rc.GetTransaction(ctx, sig)
	if err != nil {
		return evmlog.RawLog{}, err
	}
	return evmlog.RawLogFromTransaction(tx, rc.logProgram)
}

// GetBalance returns the lamport balance of account.
func (rc *RPCClient) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var balance uint64
	err := rc.executeWithFailover(ctx, "get_balance", func(client *rpc.Client) error {
		resp, innerErr := client.GetBalance(ctx, account, rpc.CommitmentConfirmed)
		if innerErr != nil {
			return innerErr
		}
		balance = resp.Value
		return nil
	})
	return balance, err
}

// RequestAirdrop asks the ledger faucet for lamports.
func (rc *RPCClient) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	var sig solana.Signature
	err := rc.executeWithFailover(ctx, "request_airdrop", func(client *rpc.Client) error {
		var innerErr error
		sig, innerErr = client.RequestAirdrop(ctx, account, lamports, rpc.CommitmentConfirmed)
		return innerErr
	})
	return sig, err
}

// Close drops all endpoint clients.
func (rc *RPCClient) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.clients = nil
}

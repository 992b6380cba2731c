package svm

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/apetrovskiy/neon-evm/harness/evmlog"
)

// SendOptions controls how a transaction is handed to the ledger. Sends never
// wait for confirmation.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// BlockhashSource supplies recent blockhashes.
type BlockhashSource interface {
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
}

// LedgerClient is the ledger RPC surface the harness depends on.
type LedgerClient interface {
	BlockhashSource
	SendTransaction(ctx context.Context, tx *solana.Transaction, opts SendOptions) (solana.Signature, error)
	ConfirmTransaction(ctx context.Context, sig solana.Signature) error
	GetTransactionLog(ctx context.Context, sig solana.Signature) (evmlog.RawLog, error)
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error)
}

// Observer receives batch lifecycle notifications.
type Observer interface {
	BlockhashRefreshed()
	TransactionSubmitted()
	SubmissionFailed()
	TransactionConfirmed()
	ValidationFailed()
}

type nopObserver struct{}

func (nopObserver) BlockhashRefreshed()   {}
func (nopObserver) TransactionSubmitted() {}
func (nopObserver) SubmissionFailed()     {}
func (nopObserver) TransactionConfirmed() {}
func (nopObserver) ValidationFailed()     {}

// Package svmtest provides test doubles for the ledger client.
package svmtest

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/mock"

	"github.com/apetrovskiy/neon-evm/harness/chains/svm"
	"github.com/apetrovskiy/neon-evm/harness/evmlog"
)

// MockLedger is a testify mock of svm.LedgerClient.
type MockLedger struct {
	mock.Mock
}

var _ svm.LedgerClient = (*MockLedger)(nil)

func (m *MockLedger) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *MockLedger) SendTransaction(ctx context.Context, tx *solana.Transaction, opts svm.SendOptions) (solana.Signature, error) {
	args := m.Called(ctx, tx, opts)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockLedger) ConfirmTransaction(ctx context.Context, sig solana.Signature) error {
	args := m.Called(ctx, sig)
	return args.Error(0)
}

func (m *MockLedger) GetTransactionLog(ctx context.Context, sig solana.Signature) (evmlog.RawLog, error) {
	args := m.Called(ctx, sig)
	return args.Get(0).(evmlog.RawLog), args.Error(1)
}

func (m *MockLedger) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockLedger) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	args := m.Called(ctx, account, lamports)
	return args.Get(0).(solana.Signature), args.Error(1)
}

// SignatureOf returns the fee payer signature a send of tx will report.
func SignatureOf(tx *solana.Transaction) solana.Signature {
	if tx == nil || len(tx.Signatures) == 0 {
		return solana.Signature{}
	}
	return tx.Signatures[0]
}

// Ledger is a scripted in-memory ledger. Sends succeed unless Reject returns
// an error; every accepted transaction gets the log returned by LogFor.
type Ledger struct {
	mu sync.Mutex

	Blockhash solana.Hash
	Balance   uint64
	Reject    func(tx *solana.Transaction, n int) error
	LogFor    func(tx *solana.Transaction) evmlog.Log

	sent      []*solana.Transaction
	bySig     map[solana.Signature]*solana.Transaction
	airdrops  uint64
	hashCalls int
}

var _ svm.LedgerClient = (*Ledger)(nil)

// NewLedger returns a ledger with a fixed blockhash.
func NewLedger() *Ledger {
	return &Ledger{
		Blockhash: solana.Hash{1, 2, 3},
		bySig:     make(map[solana.Signature]*solana.Transaction),
	}
}

func (l *Ledger) GetRecentBlockhash(context.Context) (solana.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hashCalls++
	return l.Blockhash, nil
}

func (l *Ledger) SendTransaction(_ context.Context, tx *solana.Transaction, _ svm.SendOptions) (solana.Signature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.sent)
	l.sent = append(l.sent, tx)
	if l.Reject != nil {
		if err := l.Reject(tx, n); err != nil {
			return solana.Signature{}, err
		}
	}
	sig := SignatureOf(tx)
	l.bySig[sig] = tx
	return sig, nil
}

func (l *Ledger) ConfirmTransaction(_ context.Context, sig solana.Signature) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.bySig[sig]; !ok {
		return context.DeadlineExceeded
	}
	return nil
}

func (l *Ledger) GetTransactionLog(_ context.Context, sig solana.Signature) (evmlog.RawLog, error) {
	l.mu.Lock()
	tx := l.bySig[sig]
	l.mu.Unlock()
	if l.LogFor == nil || tx == nil {
		return evmlog.RawLog{}, nil
	}
	return evmlog.EncodeLog(l.LogFor(tx)), nil
}

func (l *Ledger) GetBalance(context.Context, solana.PublicKey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Balance + l.airdrops, nil
}

func (l *Ledger) RequestAirdrop(_ context.Context, _ solana.PublicKey, lamports uint64) (solana.Signature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.airdrops += lamports
	return solana.Signature{9}, nil
}

// Transaction returns the accepted transaction with signature sig.
func (l *Ledger) Transaction(sig solana.Signature) *solana.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bySig[sig]
}

// Sent returns every transaction handed to SendTransaction, accepted or not.
func (l *Ledger) Sent() []*solana.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*solana.Transaction(nil), l.sent...)
}

// BlockhashCalls returns how many blockhashes were requested.
func (l *Ledger) BlockhashCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hashCalls
}

// InstructionData returns the data of instruction i of tx.
func InstructionData(tx *solana.Transaction, i int) []byte {
	return []byte(tx.Message.Instructions[i].Data)
}

// InstructionAccounts resolves the account keys of instruction i of tx.
func InstructionAccounts(tx *solana.Transaction, i int) []solana.PublicKey {
	ix := tx.Message.Instructions[i]
	out := make([]solana.PublicKey, 0, len(ix.Accounts))
	for _, idx := range ix.Accounts {
		out = append(out, tx.Message.AccountKeys[idx])
	}
	return out
}

package pipeline

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"github.com/apetrovskiy/neon-evm/harness/chains/svm"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
	"github.com/apetrovskiy/neon-evm/harness/ethtx"
	"github.com/apetrovskiy/neon-evm/harness/evmlog"
	"github.com/apetrovskiy/neon-evm/harness/state"
	"github.com/apetrovskiy/neon-evm/harness/validator"
)

// CreateTransactions pre-signs count ERC20 transfers. Contracts and payers
// are taken round-robin and each receiver is a random account other than
// the payer. Payer nonces advance locally and are written back to
// accounts.json.
func CreateTransactions(ctx context.Context, env *Env, count int) (Report, error) {
	report := Report{Phase: PhaseCreateTransactions}
	if count < 1 {
		return report, harnesserrors.NewConfigError("count must be at least 1")
	}
	contracts, err := env.State.LoadContracts()
	if err != nil {
		return report, err
	}
	accounts, err := env.State.LoadAccounts()
	if err != nil {
		return report, err
	}
	if len(contracts) == 0 {
		return report, harnesserrors.NewStateError("no contracts to transfer from", nil)
	}
	if len(accounts) < 2 {
		return report, harnesserrors.NewStateError(fmt.Sprintf("need at least 2 accounts, have %d", len(accounts)), nil)
	}

	log := env.Logger.With().Str("phase", PhaseCreateTransactions).Logger()
	cfg := env.Config
	amount := new(big.Int).SetUint64(cfg.TransferAmount)
	amountText := strconv.FormatUint(cfg.TransferAmount, 10)

	keys := make(map[int]keyedAccount, len(accounts))
	txs := make([]state.Transaction, 0, count)
	ci, ai := 0, 0
	for len(txs) < count {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		contract := contracts[ci%len(contracts)]
		payerIdx := ai % len(accounts)
		ci++
		ai++

		receiverIdx := env.rand().Intn(len(accounts))
		if receiverIdx == payerIdx {
			continue
		}

		payer, err := resolveAccount(keys, accounts, payerIdx)
		if err != nil {
			return report, err
		}
		token, err := ethtx.ParseAddress(contract.Ether)
		if err != nil {
			return report, harnesserrors.NewStateError("contract ether", err)
		}
		receiver, err := ethtx.ParseAddress(accounts[receiverIdx].Ether)
		if err != nil {
			return report, harnesserrors.NewStateError("receiver ether", err)
		}

		callData, err := ethtx.TransferCallData(receiver, amount)
		if err != nil {
			return report, harnesserrors.NewConstructionError("failed to encode transfer", err)
		}
		payload, err := ethtx.Sign(ethtx.TxFields{
			Nonce:    accounts[payerIdx].Nonce,
			GasPrice: new(big.Int).SetUint64(cfg.Ethereum.GasPrice),
			GasLimit: cfg.Ethereum.GasLimit,
			To:       &token,
			Value:    new(big.Int).SetUint64(cfg.Ethereum.Value),
			Data:     callData,
			ChainID:  new(big.Int).SetUint64(cfg.Ethereum.ChainID),
		}, payer.key)
		if err != nil {
			return report, harnesserrors.NewConstructionError("failed to sign transfer", err)
		}
		if payload.SignerAddress() != payer.ether {
			return report, harnesserrors.NewConstructionError(
				fmt.Sprintf("signer %s does not match payer %s", payload.SignerAddress().Hex(), payer.ether.Hex()), nil)
		}

		accounts[payerIdx].Nonce++
		txs = append(txs, state.NewTransaction(payload, contract, accounts[payerIdx], receiver, amountText))
	}

	// nonces are persisted before the transactions that consume them
	if err := env.State.SaveAccounts(accounts); err != nil {
		return report, err
	}
	if err := env.State.SaveTransactions(txs); err != nil {
		return report, err
	}

	report.Total = len(txs)
	log.Info().Int("transactions", len(txs)).Msg("transactions created")
	fmt.Fprintf(env.out(), "transactions: %d\n", len(txs))
	return report, nil
}

type keyedAccount struct {
	key   *ecdsa.PrivateKey
	ether common.Address
}

func resolveAccount(cache map[int]keyedAccount, accounts []state.Account, idx int) (keyedAccount, error) {
	if k, ok := cache[idx]; ok {
		return k, nil
	}
	a := accounts[idx]
	key, err := ethtx.KeyFromHex(a.PrivateKey)
	if err != nil {
		return keyedAccount{}, harnesserrors.NewStateError(fmt.Sprintf("account %d private key", idx), err)
	}
	ether, err := ethtx.ParseAddress(a.Ether)
	if err != nil {
		return keyedAccount{}, harnesserrors.NewStateError(fmt.Sprintf("account %d ether", idx), err)
	}
	k := keyedAccount{key: key, ether: ether}
	cache[idx] = k
	return k, nil
}

// TransferOptions controls the send-transactions phase.
type TransferOptions struct {
	// Count limits how many stored transfers are sent; 0 sends all.
	Count int
	// KeepGoing collects Transfer mismatches and reports them after the
	// batch instead of halting at the first.
	KeepGoing bool
}

// SendTransactions wraps the stored transfers in ledger transactions,
// submits them without waiting and then confirms each in order, validating
// its Transfer event.
func SendTransactions(ctx context.Context, env *Env, opts TransferOptions) (Report, error) {
	stored, err := env.State.LoadTransactions()
	if err != nil {
		return Report{Phase: PhaseSendTransactions}, err
	}
	if opts.Count > 0 && opts.Count < len(stored) {
		stored = stored[:opts.Count]
	}

	run, err := env.begin(ctx, PhaseSendTransactions)
	if err != nil {
		return Report{Phase: PhaseSendTransactions}, err
	}

	var collector *validator.Collector
	if opts.KeepGoing {
		collector = validator.NewCollector()
	}

	jobs := make([]svm.Job, 0, len(stored))
	for i, t := range stored {
		job, err := transferJob(run.composer, t)
		if err != nil {
			err = harnesserrors.WrapHarnessError(err, harnesserrors.ErrCodeState, PhaseSendTransactions, fmt.Sprintf("transaction %d", i))
			return run.finish(ctx, svm.BatchResult{}, err), err
		}
		job.ID = fmt.Sprintf("transfer-%d", i)
		if collector != nil {
			job.Check = collector.Defer(job.ID, job.Check)
		}
		jobs = append(jobs, job)
	}

	result, err := run.batch(env.Config.Batch.SkipPreflight).Run(ctx, jobs)
	if err == nil && collector != nil {
		if failures := collector.ErrOrNil(); failures != nil {
			err = harnesserrors.NewHarnessError(harnesserrors.ErrCodeValidation, PhaseSendTransactions,
				fmt.Sprintf("%d transfers failed validation", collector.Len()), failures)
		}
	}
	report := run.finish(ctx, result, err)
	if collector != nil {
		report.Invalid = collector.Len()
	}
	report.Print(env.out())
	return report, err
}

func transferJob(composer *svm.Composer, t state.Transaction) (svm.Job, error) {
	payload, err := t.Payload()
	if err != nil {
		return svm.Job{}, err
	}
	token, err := state.Contract{Storage: t.TokenStorage, Ether: t.TokenEther, Code: t.TokenCode}.Resolve()
	if err != nil {
		return svm.Job{}, err
	}
	payerStorage, err := solana.PublicKeyFromBase58(t.PayerStorage)
	if err != nil {
		return svm.Job{}, fmt.Errorf("payer storage %q: %w", t.PayerStorage, err)
	}
	from, err := ethtx.ParseAddress(t.PayerEther)
	if err != nil {
		return svm.Job{}, err
	}
	to, err := ethtx.ParseAddress(t.ReceiverEther)
	if err != nil {
		return svm.Job{}, err
	}
	amount, ok := new(big.Int).SetString(t.Amount, 10)
	if !ok {
		return svm.Job{}, fmt.Errorf("invalid amount %q", t.Amount)
	}

	pair, err := composer.EthereumCall(payload, svm.EvmCallAccounts{
		Contract:     token.Storage,
		ContractCode: token.Code,
		Caller:       payerStorage,
	}, 0)
	if err != nil {
		return svm.Job{}, err
	}

	return svm.Job{
		Instructions: pair.Instructions(),
		Check: func(l evmlog.Log) error {
			return validator.CheckTransfer(l, validator.Transfer{
				Token:  evmlog.Address(token.Ether),
				From:   evmlog.Address(from),
				To:     evmlog.Address(to),
				Amount: amount,
				Status: evmlog.StatusReturned,
			})
		},
	}, nil
}

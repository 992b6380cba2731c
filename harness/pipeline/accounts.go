package pipeline

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"github.com/apetrovskiy/neon-evm/harness/chains/svm"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
	"github.com/apetrovskiy/neon-evm/harness/ethtx"
	"github.com/apetrovskiy/neon-evm/harness/evmlog"
	"github.com/apetrovskiy/neon-evm/harness/loader"
	"github.com/apetrovskiy/neon-evm/harness/state"
	"github.com/apetrovskiy/neon-evm/harness/validator"
)

// CreateAccounts creates count random Ethereum accounts, stores them in
// accounts.json and mints tokens of every deployed contract to each.
func CreateAccounts(ctx context.Context, env *Env, count int) (Report, Report, error) {
	if count < 1 {
		return Report{Phase: PhaseCreateAccounts}, Report{Phase: PhaseMint}, harnesserrors.NewConfigError("count must be at least 1")
	}
	// fail before spending lamports when deploy has not run
	if _, err := env.State.LoadContracts(); err != nil {
		return Report{Phase: PhaseCreateAccounts}, Report{Phase: PhaseMint}, err
	}

	run, err := env.begin(ctx, PhaseCreateAccounts)
	if err != nil {
		return Report{Phase: PhaseCreateAccounts}, Report{Phase: PhaseMint}, err
	}

	planned := make(map[string]state.Account, count)
	jobs := make([]svm.Job, 0, count)
	for i := 0; i < count; i++ {
		key, ether, err := ethtx.GenerateKey()
		if err != nil {
			err = harnesserrors.NewInternalError("failed to generate account key", err)
			return run.finish(ctx, svm.BatchResult{}, err), Report{Phase: PhaseMint}, err
		}
		ix, acct, err := loader.NewCreateEtherAccountInstruction(env.Programs, env.Payer.PublicKey(), ether,
			env.Config.Accounts.EtherAccountLamports, env.Config.Accounts.EtherAccountSpace, solana.PublicKey{})
		if err != nil {
			err = harnesserrors.NewConstructionError("failed to build ether account instruction", err)
			return run.finish(ctx, svm.BatchResult{}, err), Report{Phase: PhaseMint}, err
		}

		id := fmt.Sprintf("account-%d", i)
		planned[id] = state.Account{
			Ether:      ether.Hex(),
			PrivateKey: ethtx.KeyToHex(key),
			Storage:    acct.Storage.String(),
		}
		jobs = append(jobs, svm.Job{ID: id, Instructions: []solana.Instruction{ix}})
	}

	result, err := run.batch(env.Config.Batch.SkipPreflight).Run(ctx, jobs)
	accountsReport := run.finish(ctx, result, err)
	accountsReport.Print(env.out())
	if err != nil {
		return accountsReport, Report{Phase: PhaseMint}, err
	}

	accounts := make([]state.Account, 0, len(result.Receipts))
	for _, receipt := range result.Receipts {
		acct := planned[receipt.Job.ID]
		accounts = append(accounts, acct)
		run.logger.Debug().Str("ether", acct.Ether).Str("storage", acct.Storage).Msg("account created")
	}
	if err := env.State.SaveAccounts(accounts); err != nil {
		return accountsReport, Report{Phase: PhaseMint}, err
	}

	mintReport, err := Mint(ctx, env)
	return accountsReport, mintReport, err
}

// Mint mints the configured amount of every stored contract to every stored
// account. Each mint must log a Transfer from the zero address.
func Mint(ctx context.Context, env *Env) (Report, error) {
	contracts, err := env.State.LoadContracts()
	if err != nil {
		return Report{Phase: PhaseMint}, err
	}
	accounts, err := env.State.LoadAccounts()
	if err != nil {
		return Report{Phase: PhaseMint}, err
	}
	amount, ok := env.Config.MintAmountInt()
	if !ok {
		return Report{Phase: PhaseMint}, harnesserrors.NewConfigError(fmt.Sprintf("invalid mint amount %q", env.Config.MintAmount))
	}

	run, err := env.begin(ctx, PhaseMint)
	if err != nil {
		return Report{Phase: PhaseMint}, err
	}

	jobs := make([]svm.Job, 0, len(contracts)*len(accounts))
	for ci, c := range contracts {
		token, err := c.Resolve()
		if err != nil {
			err = harnesserrors.NewStateError(fmt.Sprintf("contract %d", ci), err)
			return run.finish(ctx, svm.BatchResult{}, err), err
		}
		for ai, a := range accounts {
			job, err := mintJob(env, token, a, amount)
			if err != nil {
				err = harnesserrors.WrapHarnessError(err, harnesserrors.ErrCodeConstruction, PhaseMint, fmt.Sprintf("mint %d/%d", ci, ai))
				return run.finish(ctx, svm.BatchResult{}, err), err
			}
			job.ID = fmt.Sprintf("mint-%d-%d", ci, ai)
			jobs = append(jobs, job)
		}
	}

	// mint always skips preflight
	result, err := run.batch(true).Run(ctx, jobs)
	report := run.finish(ctx, result, err)
	report.Print(env.out())
	return report, err
}

func mintJob(env *Env, token state.ResolvedContract, a state.Account, amount *big.Int) (svm.Job, error) {
	to, err := ethtx.ParseAddress(a.Ether)
	if err != nil {
		return svm.Job{}, harnesserrors.NewStateError("account ether", err)
	}
	storage, err := solana.PublicKeyFromBase58(a.Storage)
	if err != nil {
		return svm.Job{}, harnesserrors.NewStateError("account storage", err)
	}
	callData, err := ethtx.MintCallData(to, amount)
	if err != nil {
		return svm.Job{}, harnesserrors.NewConstructionError("failed to encode mint", err)
	}

	ix := loader.NewLedgerCallInstruction(env.Programs, loader.LedgerCallAccounts{
		Contract:     token.Storage,
		ContractCode: token.Code,
		Signer:       env.Payer.PublicKey(),
		Touched:      []solana.PublicKey{storage},
	}, callData)

	return svm.Job{
		Instructions: []solana.Instruction{ix},
		Check: func(l evmlog.Log) error {
			return validator.CheckTransfer(l, validator.Transfer{
				Token:  evmlog.Address(token.Ether),
				From:   evmlog.Address(common.Address{}),
				To:     evmlog.Address(to),
				Amount: amount,
				Status: evmlog.StatusStopped,
			})
		},
	}, nil
}

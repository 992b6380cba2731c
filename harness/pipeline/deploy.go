package pipeline

import (
	"context"
	"fmt"

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

// Factory is the pre-deployed ERC20 factory contract.
type Factory struct {
	Storage solana.PublicKey
	Code    solana.PublicKey
	Ether   common.Address
}

// ParseFactory reads the factory accounts from config.
func ParseFactory(env *Env) (Factory, error) {
	fc := env.Config.Factory
	if fc.Storage == "" || fc.Code == "" || fc.Ether == "" {
		return Factory{}, harnesserrors.NewConfigError("factory storage, code and ether must be configured")
	}
	c, err := state.Contract{Storage: fc.Storage, Code: fc.Code, Ether: fc.Ether}.Resolve()
	if err != nil {
		return Factory{}, harnesserrors.NewHarnessError(harnesserrors.ErrCodeConfig, PhaseDeploy, "invalid factory", err)
	}
	return Factory{Storage: c.Storage, Code: c.Code, Ether: c.Ether}, nil
}

// DeployOptions controls the deploy phase.
type DeployOptions struct {
	Count int
	// SaltBase is added to the contract index to form each CREATE2 salt.
	SaltBase uint64
}

// Deploy creates Count ERC20 contracts through the factory and stores them
// in contracts.json.
func Deploy(ctx context.Context, env *Env, opts DeployOptions) (Report, error) {
	if opts.Count < 1 {
		return Report{Phase: PhaseDeploy}, harnesserrors.NewConfigError("count must be at least 1")
	}
	factory, err := ParseFactory(env)
	if err != nil {
		return Report{Phase: PhaseDeploy}, err
	}

	run, err := env.begin(ctx, PhaseDeploy)
	if err != nil {
		return Report{Phase: PhaseDeploy}, err
	}
	batch := run.batch(env.Config.Batch.SkipPreflight)

	initHash, err := readInitCodeHash(ctx, env, batch, factory)
	if err != nil {
		return run.finish(ctx, svm.BatchResult{}, err), err
	}
	run.logger.Info().Str("init_code_hash", common.Hash(initHash).Hex()).Msg("read factory init code hash")

	plan := make(map[string]state.Contract, opts.Count)
	jobs := make([]svm.Job, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		salt := ethtx.SaltFromIndex(opts.SaltBase + uint64(i))
		erc20 := ethtx.Create2Address(factory.Ether, salt, initHash[:])

		instructions, contract, err := createERC20Instructions(env, factory, erc20, salt)
		if err != nil {
			return run.finish(ctx, svm.BatchResult{}, err), err
		}

		id := fmt.Sprintf("erc20-%d", i)
		plan[id] = contract
		jobs = append(jobs, svm.Job{
			ID:           id,
			Instructions: instructions,
			Check: func(l evmlog.Log) error {
				return validator.CheckAddressCreation(l, validator.AddressCreation{
					Factory:    evmlog.Address(factory.Ether),
					Created:    evmlog.Address(erc20),
					GroupCount: 2,
					GroupIndex: 1,
				})
			},
		})
		run.logger.Debug().Str("erc20", erc20.Hex()).Str("storage", contract.Storage).Str("code", contract.Code).Msg("planned contract")
	}

	result, err := batch.Run(ctx, jobs)
	report := run.finish(ctx, result, err)
	report.Print(env.out())
	if err != nil {
		return report, err
	}

	contracts := make([]state.Contract, 0, len(result.Receipts))
	for _, receipt := range result.Receipts {
		contracts = append(contracts, plan[receipt.Job.ID])
	}
	if err := env.State.SaveContracts(contracts); err != nil {
		return report, err
	}
	return report, nil
}

// readInitCodeHash calls get_hash() on the factory and returns the word its
// single-topic event carries.
func readInitCodeHash(ctx context.Context, env *Env, batch *svm.Batch, factory Factory) ([32]byte, error) {
	var hash [32]byte
	ix := loader.NewLedgerCallInstruction(env.Programs, loader.LedgerCallAccounts{
		Contract:     factory.Storage,
		ContractCode: factory.Code,
		Signer:       env.Payer.PublicKey(),
	}, ethtx.NoArgCallData(ethtx.SigGetHash))

	result, err := batch.Run(ctx, []svm.Job{{
		ID:           "get-hash",
		Instructions: []solana.Instruction{ix},
		Check: func(l evmlog.Log) error {
			var err error
			hash, err = validator.ExtractSingleTopicData(l, evmlog.Address(factory.Ether))
			return err
		},
	}})
	if err != nil {
		return hash, err
	}
	if result.Confirmed != 1 {
		return hash, harnesserrors.NewSubmissionError(PhaseDeploy, "get_hash transaction was not accepted", nil)
	}
	return hash, nil
}

// createERC20Instructions funds the seed code account, creates the ether
// account linked to it and asks the factory to deploy into them.
func createERC20Instructions(env *Env, factory Factory, erc20 common.Address, salt [32]byte) ([]solana.Instruction, state.Contract, error) {
	payer := env.Payer.PublicKey()
	accounts := env.Config.Accounts

	codeIx, code, err := loader.NewCreateCodeAccountInstruction(payer, env.Programs.EvmLoader, erc20,
		accounts.CodeAccountLamports, accounts.CodeAccountSpace)
	if err != nil {
		return nil, state.Contract{}, harnesserrors.NewConstructionError("failed to build code account instruction", err)
	}
	etherIx, acct, err := loader.NewCreateEtherAccountInstruction(env.Programs, payer, erc20,
		accounts.EtherAccountLamports, accounts.EtherAccountSpace, code)
	if err != nil {
		return nil, state.Contract{}, harnesserrors.NewConstructionError("failed to build ether account instruction", err)
	}
	callData, err := ethtx.CreateERC20CallData(salt)
	if err != nil {
		return nil, state.Contract{}, harnesserrors.NewConstructionError("failed to encode create_erc20", err)
	}
	callIx := loader.NewLedgerCallInstruction(env.Programs, loader.LedgerCallAccounts{
		Contract:     factory.Storage,
		ContractCode: factory.Code,
		Signer:       payer,
		Touched:      []solana.PublicKey{acct.Storage, code},
	}, callData)

	contract := state.Contract{
		Storage: acct.Storage.String(),
		Ether:   erc20.Hex(),
		Code:    code.String(),
	}
	return []solana.Instruction{codeIx, etherIx, callIx}, contract, nil
}

package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/apetrovskiy/neon-evm/harness/chains/svm"
	"github.com/apetrovskiy/neon-evm/harness/config"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
	"github.com/apetrovskiy/neon-evm/harness/ethtx"
	"github.com/apetrovskiy/neon-evm/harness/evmlog"
	"github.com/apetrovskiy/neon-evm/harness/state"
)

// probeReturnSkip is the prefix of the probe's return data that precedes
// the block hash values.
const probeReturnSkip = 8

// ProbeOptions selects what the block hash probe asks for.
type ProbeOptions struct {
	// Source is config.ProbeSourceRecentBlockhashes or config.ProbeSourceSlotHashes;
	// empty uses the configured default.
	Source string
	// Slot calls getValues(slot) instead of getCurrentValues() when set.
	Slot *uint64
	// Nonce is the caller's next transaction nonce.
	Nonce uint64
}

// ProbeResult is the decoded answer of the probe contract.
type ProbeResult struct {
	Source string
	Status byte
	Data   []byte
}

// ProbeBlockhash calls the block hash test contract with the selected sysvar
// as an extra account and returns the values it reports.
func ProbeBlockhash(ctx context.Context, env *Env, caller Caller, opts ProbeOptions) (ProbeResult, error) {
	source := opts.Source
	if source == "" {
		source = env.Config.Probe.BlockhashSource
	}
	sourceAccount, err := probeSourceAccount(env.Programs, source)
	if err != nil {
		return ProbeResult{}, err
	}

	pc := env.Config.Probe
	if pc.Storage == "" || pc.Code == "" || pc.Ether == "" {
		return ProbeResult{}, harnesserrors.NewConfigError("probe storage, code and ether must be configured")
	}
	contract, err := state.Contract{Storage: pc.Storage, Code: pc.Code, Ether: pc.Ether}.Resolve()
	if err != nil {
		return ProbeResult{}, harnesserrors.NewHarnessError(harnesserrors.ErrCodeConfig, PhaseProbeBlockhash, "invalid probe contract", err)
	}

	callData := ethtx.NoArgCallData(ethtx.SigGetCurrentValues)
	if opts.Slot != nil {
		if callData, err = ethtx.GetValuesCallData(new(big.Int).SetUint64(*opts.Slot)); err != nil {
			return ProbeResult{}, harnesserrors.NewConstructionError("failed to encode getValues", err)
		}
	}
	payload, err := ethtx.Sign(ethtx.TxFields{
		Nonce:    opts.Nonce,
		GasPrice: new(big.Int).SetUint64(pc.GasPrice),
		GasLimit: pc.GasLimit,
		To:       &contract.Ether,
		Value:    new(big.Int),
		Data:     callData,
		ChainID:  new(big.Int).SetUint64(env.Config.Ethereum.ChainID),
	}, caller.Key)
	if err != nil {
		return ProbeResult{}, harnesserrors.NewConstructionError("failed to sign probe call", err)
	}

	run, err := env.begin(ctx, PhaseProbeBlockhash)
	if err != nil {
		return ProbeResult{}, err
	}
	pair, err := run.composer.EthereumCall(payload, svm.EvmCallAccounts{
		Contract:     contract.Storage,
		ContractCode: contract.Code,
		Caller:       caller.Storage,
	}, 0, solana.NewAccountMeta(sourceAccount, false, false))
	if err != nil {
		run.finish(ctx, svm.BatchResult{}, err)
		return ProbeResult{}, err
	}

	out := ProbeResult{Source: source}
	result, err := run.batch(env.Config.Batch.SkipPreflight).Run(ctx, []svm.Job{{
		ID:           "probe",
		Instructions: pair.Instructions(),
		Check: func(l evmlog.Log) error {
			ret, err := lastReturn(l)
			if err != nil {
				return err
			}
			out.Status = ret.Status
			if len(ret.Data) > probeReturnSkip {
				out.Data = ret.Data[probeReturnSkip:]
			}
			return nil
		},
	}})
	if err == nil && result.Confirmed != 1 {
		err = harnesserrors.NewSubmissionError(PhaseProbeBlockhash, "probe transaction was not accepted", nil)
	}
	run.finish(ctx, result, err)
	if err != nil {
		return ProbeResult{}, err
	}

	fmt.Fprintf(env.out(), "%s result: %s\n", source, hex.EncodeToString(out.Data))
	return out, nil
}

func probeSourceAccount(programs svm.Programs, source string) (solana.PublicKey, error) {
	switch source {
	case config.ProbeSourceRecentBlockhashes:
		return programs.SysvarRecentBlockhashes, nil
	case config.ProbeSourceSlotHashes:
		return programs.SysvarSlotHashes, nil
	default:
		return solana.PublicKey{}, harnesserrors.NewConfigError(fmt.Sprintf("unknown block hash source %q", source))
	}
}

// lastReturn returns the final record of the first group, which must be a
// Return.
func lastReturn(l evmlog.Log) (evmlog.Return, error) {
	if len(l.Groups) == 0 || len(l.Groups[0].Records) == 0 {
		return evmlog.Return{}, harnesserrors.NewHarnessError(harnesserrors.ErrCodeValidation, PhaseProbeBlockhash, "probe produced no records", nil)
	}
	records := l.Groups[0].Records
	ret, ok := records[len(records)-1].(evmlog.Return)
	if !ok {
		return evmlog.Return{}, harnesserrors.NewHarnessError(harnesserrors.ErrCodeValidation, PhaseProbeBlockhash,
			fmt.Sprintf("last record is %s, expected return", records[len(records)-1].Kind()), nil)
	}
	return ret, nil
}

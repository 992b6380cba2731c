package pipeline

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/apetrovskiy/neon-evm/harness/chains/svm"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
	"github.com/apetrovskiy/neon-evm/harness/ethtx"
	"github.com/apetrovskiy/neon-evm/harness/loader"
)

// LoadOrCreatePayer reads a solana-keygen keypair file, generating and
// saving a new key when the file does not exist.
func LoadOrCreatePayer(path string, logger zerolog.Logger) (solana.PrivateKey, error) {
	if _, err := os.Stat(path); err == nil {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
		if err != nil {
			return nil, harnesserrors.NewHarnessError(harnesserrors.ErrCodeConfig, PhaseBootstrap,
				fmt.Sprintf("failed to read payer keypair %s", path), err)
		}
		return key, nil
	} else if !os.IsNotExist(err) {
		return nil, harnesserrors.NewHarnessError(harnesserrors.ErrCodeConfig, PhaseBootstrap, "failed to stat payer keypair", err)
	}

	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, harnesserrors.NewInternalError("failed to generate payer keypair", err)
	}

	// solana-keygen stores the 64-byte secret as a JSON array of numbers
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return nil, harnesserrors.NewInternalError("failed to encode payer keypair", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, harnesserrors.NewHarnessError(harnesserrors.ErrCodeConfig, PhaseBootstrap, "failed to create keypair directory", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, harnesserrors.NewHarnessError(harnesserrors.ErrCodeConfig, PhaseBootstrap, "failed to write payer keypair", err)
	}

	logger.Info().Str("path", path).Str("payer", key.PublicKey().String()).Msg("generated payer keypair")
	return key, nil
}

// Caller is the Ethereum identity derived from the payer secret key.
type Caller struct {
	Key     *ecdsa.PrivateKey
	Ether   common.Address
	Storage solana.PublicKey
	Nonce   uint8
}

// DeriveCaller returns the caller identity of payer.
func DeriveCaller(programs svm.Programs, payer solana.PrivateKey) (Caller, error) {
	key, err := ethtx.KeyFromSolana(payer)
	if err != nil {
		return Caller{}, harnesserrors.NewConstructionError("failed to derive caller key", err)
	}
	ether := crypto.PubkeyToAddress(key.PublicKey)
	storage, nonce, err := loader.StorageAddress(programs.EvmLoader, ether)
	if err != nil {
		return Caller{}, harnesserrors.NewConstructionError("failed to derive caller storage", err)
	}
	return Caller{Key: key, Ether: ether, Storage: storage, Nonce: nonce}, nil
}

// balancePoll bounds how long Bootstrap waits for an airdrop to land.
var balancePoll = &harnesserrors.RetryConfig{
	MaxAttempts:     20,
	InitialDelay:    250 * time.Millisecond,
	MaxDelay:        2 * time.Second,
	Multiplier:      1.5,
	RetryableErrors: []harnesserrors.ErrorCode{harnesserrors.ErrCodeRPC, harnesserrors.ErrCodeTimeout},
}

// Bootstrap funds the payer when it has no balance and creates the caller's
// ether account when it does not exist yet.
func Bootstrap(ctx context.Context, env *Env) (Caller, error) {
	log := env.Logger.With().Str("phase", PhaseBootstrap).Logger()
	payer := env.Payer.PublicKey()

	balance, err := env.Client.GetBalance(ctx, payer)
	if err != nil {
		return Caller{}, err
	}
	if balance == 0 && env.Config.AirdropLamports > 0 {
		if _, err := env.Client.RequestAirdrop(ctx, payer, env.Config.AirdropLamports); err != nil {
			return Caller{}, err
		}
		pollErr := harnesserrors.RetryWithConfig(ctx, func() error {
			var balanceErr error
			if balance, balanceErr = env.Client.GetBalance(ctx, payer); balanceErr != nil {
				return balanceErr
			}
			if balance == 0 {
				return harnesserrors.NewTimeoutError("airdrop not credited yet")
			}
			return nil
		}, balancePoll)
		if pollErr != nil {
			return Caller{}, harnesserrors.WrapHarnessError(pollErr, harnesserrors.ErrCodeTimeout, PhaseBootstrap, "request_airdrop error")
		}
	}
	if balance == 0 {
		return Caller{}, harnesserrors.NewHarnessError(harnesserrors.ErrCodeConfig, PhaseBootstrap, "payer has no balance", nil).
			WithContext("payer", payer.String())
	}

	caller, err := DeriveCaller(env.Programs, env.Payer)
	if err != nil {
		return Caller{}, err
	}

	callerBalance, err := env.Client.GetBalance(ctx, caller.Storage)
	if err != nil {
		return Caller{}, err
	}
	if callerBalance == 0 {
		log.Info().Str("caller", caller.Ether.Hex()).Msg("creating caller account")
		if err := createCallerAccount(ctx, env, caller); err != nil {
			return Caller{}, err
		}
	}

	log.Info().
		Str("payer", payer.String()).
		Uint64("balance", balance).
		Str("caller", caller.Ether.Hex()).
		Str("caller_storage", caller.Storage.String()).
		Uint8("caller_nonce", caller.Nonce).
		Msg("bootstrap complete")
	return caller, nil
}

func createCallerAccount(ctx context.Context, env *Env, caller Caller) error {
	run, err := env.begin(ctx, PhaseBootstrap)
	if err != nil {
		return err
	}
	ix, _, err := loader.NewCreateEtherAccountInstruction(
		env.Programs,
		env.Payer.PublicKey(),
		caller.Ether,
		env.Config.Accounts.EtherAccountLamports,
		env.Config.Accounts.EtherAccountSpace,
		solana.PublicKey{},
	)
	if err != nil {
		return harnesserrors.NewConstructionError("failed to build caller account instruction", err)
	}

	result, err := run.batch(env.Config.Batch.SkipPreflight).Run(ctx, []svm.Job{{
		ID:           "caller-account",
		Instructions: []solana.Instruction{ix},
	}})
	if err == nil && result.Confirmed == 0 {
		err = harnesserrors.NewSubmissionError(PhaseBootstrap, "caller account creation was not submitted", nil)
	}
	run.finish(ctx, result, err)
	return err
}

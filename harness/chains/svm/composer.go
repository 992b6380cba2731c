package svm

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/apetrovskiy/neon-evm/harness/config"
	"github.com/apetrovskiy/neon-evm/harness/ethtx"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
)

// InstructionPair is the keccak proof instruction followed by the EVM call it
// attests.
type InstructionPair struct {
	Keccak       *solana.GenericInstruction
	EvmCall      *solana.GenericInstruction
	SiblingIndex uint8
}

// Instructions returns the pair in transaction order.
func (p InstructionPair) Instructions() []solana.Instruction {
	return []solana.Instruction{p.Keccak, p.EvmCall}
}

// PairOptions controls sibling index resolution and extra call accounts.
type PairOptions struct {
	Mode      config.SiblingIndexMode
	FixedSlot uint8
	// Position is the index the keccak instruction will occupy.
	Position  int
	Extra     []*solana.AccountMeta
}

// ResolveSiblingIndex returns the index the proof instruction must reference.
func ResolveSiblingIndex(mode config.SiblingIndexMode, fixedSlot uint8, keccakPosition int) (int, error) {
	switch mode {
	case config.SiblingIndexFixed:
		return int(fixedSlot), nil
	case config.SiblingIndexPositional:
		if keccakPosition < 0 {
			return 0, harnesserrors.NewConstructionError(fmt.Sprintf("invalid keccak position %d", keccakPosition), nil)
		}
		return keccakPosition + 1, nil
	default:
		return 0, harnesserrors.NewConstructionError(fmt.Sprintf("unknown sibling index mode %q", mode), nil)
	}
}

// NewEthereumCallPair builds the two instructions that execute a signed
// Ethereum transaction.
func NewEthereumCallPair(
	programs Programs,
	payload ethtx.SignedPayload,
	accounts EvmCallAccounts,
	opts PairOptions,
) (InstructionPair, error) {
	sibling, err := ResolveSiblingIndex(opts.Mode, opts.FixedSlot, opts.Position)
	if err != nil {
		return InstructionPair{}, err
	}
	keccak, err := NewKeccakInstruction(programs, SignatureOffsetsLayout{
		SiblingIndex:  sibling,
		DataStart:     EvmCallDataStart,
		MessageLength: len(payload.Message),
	})
	if err != nil {
		return InstructionPair{}, err
	}
	return InstructionPair{
		Keccak:       keccak,
		EvmCall:      NewEvmCallInstruction(programs, payload, accounts, opts.Extra...),
		SiblingIndex: uint8(sibling),
	}, nil
}

// Composer turns instruction lists into signed ledger transactions.
type Composer struct {
	payer     solana.PrivateKey
	programs  Programs
	tracker   *BlockhashTracker
	mode      config.SiblingIndexMode
	fixedSlot uint8
	logger    zerolog.Logger
}

// NewComposer creates a composer signing with payer.
func NewComposer(
	payer solana.PrivateKey,
	programs Programs,
	tracker *BlockhashTracker,
	batch config.BatchConfig,
	logger zerolog.Logger,
) *Composer {
	return &Composer{
		payer:     payer,
		programs:  programs,
		tracker:   tracker,
		mode:      batch.SiblingIndexMode,
		fixedSlot: batch.FixedSiblingSlot,
		logger:    logger.With().Str("component", "svm_composer").Logger(),
	}
}

// Payer returns the fee payer public key.
func (c *Composer) Payer() solana.PublicKey {
	return c.payer.PublicKey()
}

// Programs returns the program ids the composer was built with.
func (c *Composer) Programs() Programs {
	return c.programs
}

// EthereumCall builds a pair whose keccak instruction sits at position.
func (c *Composer) EthereumCall(
	payload ethtx.SignedPayload,
	accounts EvmCallAccounts,
	position int,
	extra ...*solana.AccountMeta,
) (InstructionPair, error) {
	return NewEthereumCallPair(c.programs, payload, accounts, PairOptions{
		Mode:      c.mode,
		FixedSlot: c.fixedSlot,
		Position:  position,
		Extra:     extra,
	})
}

// Compose checks proof references, attaches a fresh blockhash and signs.
// Instruction order is preserved.
func (c *Composer) Compose(ctx context.Context, instructions ...solana.Instruction) (*solana.Transaction, error) {
	if len(instructions) == 0 {
		return nil, harnesserrors.NewConstructionError("transaction has no instructions", nil)
	}
	if err := c.verifyProofs(instructions); err != nil {
		return nil, err
	}

	token, err := c.tracker.Current(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(instructions, token.Blockhash, solana.TransactionPayer(c.payer.PublicKey()))
	if err != nil {
		return nil, harnesserrors.NewConstructionError("failed to create transaction", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.payer.PublicKey()) {
			return &c.payer
		}
		return nil
	}); err != nil {
		return nil, harnesserrors.NewConstructionError("failed to sign transaction", err)
	}
	return tx, nil
}

// verifyProofs rejects keccak instructions that do not point at an EVM call.
func (c *Composer) verifyProofs(instructions []solana.Instruction) error {
	for i, ix := range instructions {
		if !ix.ProgramID().Equals(c.programs.KeccakSecp256k1) {
			continue
		}
		data, err := ix.Data()
		if err != nil {
			return harnesserrors.NewConstructionError(fmt.Sprintf("instruction %d: unreadable data", i), err)
		}
		offsets, err := ParseKeccakInstructionData(data)
		if err != nil {
			return harnesserrors.NewConstructionError(fmt.Sprintf("instruction %d", i), err)
		}

		sibling := int(offsets.MessageInstructionIndex)
		if int(offsets.SignatureInstructionIndex) != sibling || int(offsets.EthAddressInstructionIndex) != sibling {
			return harnesserrors.NewConstructionError(fmt.Sprintf("instruction %d: proof references more than one instruction", i), nil)
		}
		if c.mode == config.SiblingIndexFixed && sibling != int(c.fixedSlot) {
			return harnesserrors.NewConstructionError(
				fmt.Sprintf("instruction %d: proof references %d, fixed slot is %d", i, sibling, c.fixedSlot), nil)
		}
		if sibling >= len(instructions) {
			return harnesserrors.NewConstructionError(
				fmt.Sprintf("instruction %d: proof references %d of %d instructions", i, sibling, len(instructions)), nil)
		}

		call := instructions[sibling]
		callData, err := call.Data()
		if err != nil || !call.ProgramID().Equals(c.programs.EvmLoader) || len(callData) == 0 || callData[0] != TagEvmCall {
			return harnesserrors.NewConstructionError(
				fmt.Sprintf("instruction %d: EVM call expected at slot %d", i, sibling), nil)
		}
		if end := int(offsets.MessageDataOffset) + int(offsets.MessageDataSize); end > len(callData) {
			return harnesserrors.NewConstructionError(
				fmt.Sprintf("instruction %d: message range ends at %d beyond call data length %d", i, end, len(callData)), nil)
		}
	}
	return nil
}

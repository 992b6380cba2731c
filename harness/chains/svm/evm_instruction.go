package svm

import (
	"github.com/gagliardetto/solana-go"

	"github.com/apetrovskiy/neon-evm/harness/ethtx"
)

const (
	// TagEvmCall selects the loader's "call with Ethereum-signed payload" entry point.
	TagEvmCall byte = 0x05

	// EvmCallDataStart is the offset of the signer address in EVM call data.
	EvmCallDataStart = 1

	// EvmCallFixedAccounts is the number of leading accounts whose order never changes.
	EvmCallFixedAccounts = 6
)

// EvmCallAccounts are the per-call accounts of an EVM call instruction.
type EvmCallAccounts struct {
	Contract     solana.PublicKey
	ContractCode solana.PublicKey
	Caller       solana.PublicKey
}

// EvmCallData returns tag ‖ signer ‖ signature ‖ message.
func EvmCallData(payload ethtx.SignedPayload) []byte {
	return append([]byte{TagEvmCall}, payload.Bytes()...)
}

// NewEvmCallInstruction builds the EVM execution instruction. Extra accounts
// are appended after the fixed prefix.
func NewEvmCallInstruction(
	programs Programs,
	payload ethtx.SignedPayload,
	accounts EvmCallAccounts,
	extra ...*solana.AccountMeta,
) *solana.GenericInstruction {
	metas := make(solana.AccountMetaSlice, 0, EvmCallFixedAccounts+len(extra))
	metas = append(metas,
		solana.NewAccountMeta(accounts.Contract, true, false),
		solana.NewAccountMeta(accounts.ContractCode, true, false),
		solana.NewAccountMeta(accounts.Caller, true, false),
		solana.NewAccountMeta(programs.SysvarInstructions, false, false),
		solana.NewAccountMeta(programs.EvmLoader, false, false),
		solana.NewAccountMeta(programs.SysvarClock, false, false),
	)
	metas = append(metas, extra...)
	return solana.NewInstruction(programs.EvmLoader, metas, EvmCallData(payload))
}

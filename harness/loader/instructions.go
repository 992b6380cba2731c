package loader

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"github.com/apetrovskiy/neon-evm/harness/chains/svm"
)

const (
	// TagCreateEtherAccount creates the storage account of an Ethereum address.
	TagCreateEtherAccount byte = 0x02

	// TagLedgerCall calls a contract with the ledger signer as origin.
	TagLedgerCall byte = 0x03
)

// CreateEtherAccountData returns tag ‖ lamports ‖ space ‖ ether ‖ nonce.
func CreateEtherAccountData(lamports, space uint64, ether common.Address, nonce uint8) []byte {
	out := make([]byte, 0, 1+8+8+common.AddressLength+1)
	out = append(out, TagCreateEtherAccount)
	out = binary.LittleEndian.AppendUint64(out, lamports)
	out = binary.LittleEndian.AppendUint64(out, space)
	out = append(out, ether.Bytes()...)
	return append(out, nonce)
}

// NewCreateEtherAccountInstruction creates the storage account of ether,
// linking code when it is non-zero.
func NewCreateEtherAccountInstruction(
	programs svm.Programs,
	funder solana.PublicKey,
	ether common.Address,
	lamports, space uint64,
	code solana.PublicKey,
) (*solana.GenericInstruction, EtherAccount, error) {
	storage, nonce, err := StorageAddress(programs.EvmLoader, ether)
	if err != nil {
		return nil, EtherAccount{}, err
	}

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(funder, true, true),
		solana.NewAccountMeta(storage, true, false),
	}
	if !code.IsZero() {
		metas = append(metas, solana.NewAccountMeta(code, true, false))
	}
	metas = append(metas, solana.NewAccountMeta(solana.SystemProgramID, false, false))

	ix := solana.NewInstruction(programs.EvmLoader, metas, CreateEtherAccountData(lamports, space, ether, nonce))
	return ix, EtherAccount{Ether: ether, Storage: storage, Nonce: nonce, Code: code}, nil
}

// LedgerCallAccounts are the accounts of a ledger-signed contract call.
type LedgerCallAccounts struct {
	Contract     solana.PublicKey
	ContractCode solana.PublicKey
	Signer       solana.PublicKey
	// Touched are extra writable accounts the call reads or creates.
	Touched []solana.PublicKey
}

// NewLedgerCallInstruction calls a contract with ABI call data, signed by the
// ledger signer rather than an Ethereum key.
func NewLedgerCallInstruction(programs svm.Programs, accounts LedgerCallAccounts, callData []byte) *solana.GenericInstruction {
	metas := make(solana.AccountMetaSlice, 0, 5+len(accounts.Touched))
	metas = append(metas,
		solana.NewAccountMeta(accounts.Contract, true, false),
		solana.NewAccountMeta(accounts.ContractCode, true, false),
		solana.NewAccountMeta(accounts.Signer, false, true),
	)
	for _, pk := range accounts.Touched {
		metas = append(metas, solana.NewAccountMeta(pk, true, false))
	}
	metas = append(metas,
		solana.NewAccountMeta(programs.EvmLoader, false, false),
		solana.NewAccountMeta(programs.SysvarClock, false, false),
	)
	return solana.NewInstruction(programs.EvmLoader, metas, append([]byte{TagLedgerCall}, callData...))
}

// Package loader builds the EVM loader's native (non Ethereum-signed)
// instructions and derives the ledger accounts that back Ethereum addresses.
package loader

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mr-tron/base58"
)

// EtherAccount is an Ethereum address and the ledger accounts backing it.
type EtherAccount struct {
	Ether   common.Address
	Storage solana.PublicKey
	Nonce   uint8
	// Code is zero for accounts without contract code.
	Code solana.PublicKey
}

// StorageAddress derives the program address that stores ether's state.
func StorageAddress(loader solana.PublicKey, ether common.Address) (solana.PublicKey, uint8, error) {
	pda, bump, err := solana.FindProgramAddress([][]byte{ether.Bytes()}, loader)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive storage address for %s: %w", ether.Hex(), err)
	}
	return pda, bump, nil
}

// CodeAccountSeed is the seed string for a contract's code account.
func CodeAccountSeed(ether common.Address) string {
	return base58.Encode(ether.Bytes())
}

// CodeAddress derives the seed account holding a contract's code.
func CodeAddress(base, loader solana.PublicKey, ether common.Address) (solana.PublicKey, error) {
	addr, err := solana.CreateWithSeed(base, CodeAccountSeed(ether), loader)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive code address for %s: %w", ether.Hex(), err)
	}
	return addr, nil
}

// NewCreateCodeAccountInstruction funds the code account of ether from payer.
func NewCreateCodeAccountInstruction(
	payer, loader solana.PublicKey,
	ether common.Address,
	lamports, space uint64,
) (solana.Instruction, solana.PublicKey, error) {
	code, err := CodeAddress(payer, loader, ether)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	ix := system.NewCreateAccountWithSeedInstruction(
		payer,
		CodeAccountSeed(ether),
		lamports,
		space,
		loader,
		payer,
		code,
		payer,
	).Build()
	return ix, code, nil
}

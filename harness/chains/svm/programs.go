package svm

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/apetrovskiy/neon-evm/harness/config"
)

// Programs holds the program and sysvar ids every builder needs. It is built
// once from config and passed by value.
type Programs struct {
	EvmLoader               solana.PublicKey
	KeccakSecp256k1         solana.PublicKey
	SysvarInstructions      solana.PublicKey
	SysvarClock             solana.PublicKey
	SysvarRecentBlockhashes solana.PublicKey
	SysvarSlotHashes        solana.PublicKey
}

// ParsePrograms decodes the base58 ids from config.
func ParsePrograms(cfg config.ProgramsConfig) (Programs, error) {
	var p Programs
	fields := []struct {
		name string
		src  string
		dst  *solana.PublicKey
	}{
		{"evm_loader", cfg.EvmLoader, &p.EvmLoader},
		{"keccak_secp256k1", cfg.KeccakSecp256k1, &p.KeccakSecp256k1},
		{"sysvar_instructions", cfg.SysvarInstructions, &p.SysvarInstructions},
		{"sysvar_clock", cfg.SysvarClock, &p.SysvarClock},
		{"sysvar_recent_blockhashes", cfg.SysvarRecentBlockhashes, &p.SysvarRecentBlockhashes},
		{"sysvar_slot_hashes", cfg.SysvarSlotHashes, &p.SysvarSlotHashes},
	}
	for _, f := range fields {
		pk, err := solana.PublicKeyFromBase58(f.src)
		if err != nil {
			return Programs{}, fmt.Errorf("invalid %s program id %q: %w", f.name, f.src, err)
		}
		*f.dst = pk
	}
	return p, nil
}

package ethtx

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
)

// KeyFromSolana derives the Ethereum key of a ledger keypair from the first
// 32 bytes (the ed25519 seed) of its secret key.
func KeyFromSolana(pk solana.PrivateKey) (*ecdsa.PrivateKey, error) {
	if len(pk) < 32 {
		return nil, fmt.Errorf("ledger private key too short: %d bytes", len(pk))
	}
	key, err := crypto.ToECDSA(pk[:32])
	if err != nil {
		return nil, fmt.Errorf("failed to derive ethereum key: %w", err)
	}
	return key, nil
}

// GenerateKey returns a fresh random key and its address.
func GenerateKey() (*ecdsa.PrivateKey, common.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

// KeyToHex encodes a private key without 0x prefix.
func KeyToHex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(crypto.FromECDSA(key))
}

// KeyFromHex parses a hex private key, with or without 0x prefix.
func KeyFromHex(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// ParseAddress parses a hex address, with or without 0x prefix.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid ethereum address %q", s)
	}
	return common.HexToAddress(s), nil
}

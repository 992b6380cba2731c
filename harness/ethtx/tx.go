// Package ethtx signs the Ethereum transactions the harness wraps into ledger
// instructions and builds the ABI call data they carry.
package ethtx

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

const (
	AddressLength   = common.AddressLength
	SignatureLength = crypto.SignatureLength
)

// TxFields are the fields of an unsigned legacy transaction.
type TxFields struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	// To is nil for contract creation.
	To      *common.Address
	Value   *big.Int
	Data    []byte
	ChainID *big.Int
}

// SignedPayload is what the EVM-call instruction carries after its tag.
type SignedPayload struct {
	Signer    [AddressLength]byte
	Signature [SignatureLength]byte
	Message   []byte
}

// Bytes returns signer ‖ signature ‖ message.
func (p SignedPayload) Bytes() []byte {
	out := make([]byte, 0, AddressLength+SignatureLength+len(p.Message))
	out = append(out, p.Signer[:]...)
	out = append(out, p.Signature[:]...)
	return append(out, p.Message...)
}

// SignerAddress returns the signer as a go-ethereum address.
func (p SignedPayload) SignerAddress() common.Address {
	return common.Address(p.Signer)
}

// UnsignedMessage returns the EIP-155 signing preimage:
// rlp([nonce, gasPrice, gas, to, value, data, chainId, 0, 0]).
func UnsignedMessage(f TxFields) ([]byte, error) {
	var to []byte
	if f.To != nil {
		to = f.To.Bytes()
	}
	msg, err := rlp.EncodeToBytes([]interface{}{
		f.Nonce,
		bigOrZero(f.GasPrice),
		f.GasLimit,
		to,
		bigOrZero(f.Value),
		f.Data,
		bigOrZero(f.ChainID),
		uint(0),
		uint(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	return msg, nil
}

// Sign produces the payload for an EVM call. The signature is r ‖ s ‖ v with
// v in {0, 1}.
func Sign(f TxFields, key *ecdsa.PrivateKey) (SignedPayload, error) {
	if key == nil {
		return SignedPayload{}, fmt.Errorf("signing key is required")
	}
	msg, err := UnsignedMessage(f)
	if err != nil {
		return SignedPayload{}, err
	}
	sig, err := crypto.Sign(crypto.Keccak256(msg), key)
	if err != nil {
		return SignedPayload{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	var payload SignedPayload
	copy(payload.Signer[:], crypto.PubkeyToAddress(key.PublicKey).Bytes())
	copy(payload.Signature[:], sig)
	payload.Message = msg
	return payload, nil
}

// Recover returns the address that produced the payload signature.
func Recover(p SignedPayload) (common.Address, error) {
	pub, err := crypto.SigToPub(crypto.Keccak256(p.Message), p.Signature[:])
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

package state

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"github.com/apetrovskiy/neon-evm/harness/ethtx"
)

// Contract is a deployed ERC20 instance.
type Contract struct {
	Storage string `json:"storage"` // base58
	Ether   string `json:"ether"`   // 0x-prefixed
	Code    string `json:"code"`    // base58
}

// Account is a funded Ethereum account and its ledger storage.
type Account struct {
	Ether      string `json:"ether"`
	PrivateKey string `json:"private_key"` // hex, no prefix
	Storage    string `json:"storage"`
	// Nonce is the next transaction nonce, tracked locally.
	Nonce uint64 `json:"nonce"`
}

// Transaction is a pre-signed ERC20 transfer ready to be wrapped.
type Transaction struct {
	Signer        string `json:"signer"`
	Signature     string `json:"signature"`
	Message       string `json:"message"`
	TokenStorage  string `json:"token_storage"`
	TokenEther    string `json:"token_ether"`
	TokenCode     string `json:"token_code"`
	PayerStorage  string `json:"payer_storage"`
	PayerEther    string `json:"payer_ether"`
	ReceiverEther string `json:"receiver_ether"`
	Amount        string `json:"amount"`
}

// ResolvedContract is a Contract with parsed keys.
type ResolvedContract struct {
	Storage solana.PublicKey
	Ether   common.Address
	Code    solana.PublicKey
}

func (c Contract) Resolve() (ResolvedContract, error) {
	var out ResolvedContract
	var err error
	if out.Storage, err = solana.PublicKeyFromBase58(c.Storage); err != nil {
		return out, fmt.Errorf("contract storage %q: %w", c.Storage, err)
	}
	if out.Code, err = solana.PublicKeyFromBase58(c.Code); err != nil {
		return out, fmt.Errorf("contract code %q: %w", c.Code, err)
	}
	if out.Ether, err = ethtx.ParseAddress(c.Ether); err != nil {
		return out, err
	}
	return out, nil
}

// NewTransaction flattens a signed payload and its routing accounts.
func NewTransaction(payload ethtx.SignedPayload, token Contract, payer Account, receiver common.Address, amount string) Transaction {
	return Transaction{
		Signer:        hex.EncodeToString(payload.Signer[:]),
		Signature:     hex.EncodeToString(payload.Signature[:]),
		Message:       hex.EncodeToString(payload.Message),
		TokenStorage:  token.Storage,
		TokenEther:    token.Ether,
		TokenCode:     token.Code,
		PayerStorage:  payer.Storage,
		PayerEther:    payer.Ether,
		ReceiverEther: receiver.Hex(),
		Amount:        amount,
	}
}

// Payload rebuilds the signed payload.
func (t Transaction) Payload() (ethtx.SignedPayload, error) {
	var p ethtx.SignedPayload
	signer, err := decodeFixed(t.Signer, len(p.Signer))
	if err != nil {
		return p, fmt.Errorf("signer: %w", err)
	}
	sig, err := decodeFixed(t.Signature, len(p.Signature))
	if err != nil {
		return p, fmt.Errorf("signature: %w", err)
	}
	msg, err := hex.DecodeString(strings.TrimPrefix(t.Message, "0x"))
	if err != nil {
		return p, fmt.Errorf("message: %w", err)
	}
	copy(p.Signer[:], signer)
	copy(p.Signature[:], sig)
	p.Message = msg
	return p, nil
}

func decodeFixed(s string, n int) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("expected %d bytes, got %d", n, len(b))
	}
	return b, nil
}

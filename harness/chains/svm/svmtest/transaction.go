package svmtest

import (
	"encoding/base64"
	"encoding/json"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// EncodeTransaction returns the base64 wire form of tx.
func EncodeTransaction(tx *solana.Transaction) (string, error) {
	encoded, err := tx.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(encoded), nil
}

// ConfirmedTransaction wraps tx and its inner instructions the way
// getTransaction returns them with base64 encoding.
func ConfirmedTransaction(tx *solana.Transaction, inner ...rpc.InnerInstruction) (*rpc.GetTransactionResult, error) {
	encoded, err := EncodeTransaction(tx)
	if err != nil {
		return nil, err
	}
	envelopeJSON, err := json.Marshal([]string{encoded, string(solana.EncodingBase64)})
	if err != nil {
		return nil, err
	}
	envelope := new(rpc.TransactionResultEnvelope)
	if err := envelope.UnmarshalJSON(envelopeJSON); err != nil {
		return nil, err
	}
	return &rpc.GetTransactionResult{
		Transaction: envelope,
		Meta:        &rpc.TransactionMeta{InnerInstructions: inner},
	}, nil
}

// ProgramIndex returns the account key index of program in tx.
func ProgramIndex(tx *solana.Transaction, program solana.PublicKey) (uint16, bool) {
	for i, key := range tx.Message.AccountKeys {
		if key.Equals(program) {
			return uint16(i), true
		}
	}
	return 0, false
}

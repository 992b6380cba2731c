package evmlog

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"

	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
)

// RawLogFromTransaction extracts the inner-instruction groups of a confirmed
// transaction. Only instructions executed by program are kept as records;
// calls into other programs, such as the system program creating an account,
// are dropped while their group is kept so group positions match the
// top-level instructions that produced them. A transaction that failed on the
// ledger is reported as a validation error.
func RawLogFromTransaction(tx *rpc.GetTransactionResult, program solana.PublicKey) (RawLog, error) {
	if tx == nil || tx.Meta == nil {
		return RawLog{}, harnesserrors.NewHarnessError(harnesserrors.ErrCodeDecode, "", "transaction has no metadata", nil)
	}
	if tx.Meta.Err != nil {
		return RawLog{}, harnesserrors.NewHarnessError(
			harnesserrors.ErrCodeValidation, "", "transaction failed on ledger",
			fmt.Errorf("%v", tx.Meta.Err),
		)
	}

	keys, err := accountKeys(tx)
	if err != nil {
		return RawLog{}, err
	}

	raw := RawLog{Groups: make([]RawGroup, 0, len(tx.Meta.InnerInstructions))}
	for _, inner := range tx.Meta.InnerInstructions {
		group := RawGroup{Index: int(inner.Index), Records: make([][]byte, 0, len(inner.Instructions))}
		for _, ix := range inner.Instructions {
			if int(ix.ProgramIDIndex) >= len(keys) {
				return RawLog{}, harnesserrors.NewHarnessError(harnesserrors.ErrCodeDecode, "",
					fmt.Sprintf("inner instruction of group %d references program index %d of %d keys",
						inner.Index, ix.ProgramIDIndex, len(keys)), nil)
			}
			if !keys[ix.ProgramIDIndex].Equals(program) {
				continue
			}
			group.Records = append(group.Records, []byte(ix.Data))
		}
		raw.Groups = append(raw.Groups, group)
	}
	return raw, nil
}

// accountKeys lists the static keys of the message followed by the writable
// and read-only keys loaded from address tables.
func accountKeys(tx *rpc.GetTransactionResult) (solana.PublicKeySlice, error) {
	if tx.Transaction == nil {
		return nil, harnesserrors.NewHarnessError(harnesserrors.ErrCodeDecode, "", "transaction has no message", nil)
	}
	parsed, err := tx.Transaction.GetTransaction()
	if err != nil || parsed == nil {
		return nil, harnesserrors.NewHarnessError(harnesserrors.ErrCodeDecode, "", "failed to parse transaction message", err)
	}
	keys := make(solana.PublicKeySlice, 0,
		len(parsed.Message.AccountKeys)+len(tx.Meta.LoadedAddresses.Writable)+len(tx.Meta.LoadedAddresses.ReadOnly))
	keys = append(keys, parsed.Message.AccountKeys...)
	keys = append(keys, tx.Meta.LoadedAddresses.Writable...)
	keys = append(keys, tx.Meta.LoadedAddresses.ReadOnly...)
	return keys, nil
}

// RawGroupFromBase58 builds a group from base58 instruction data strings as
// they appear in getTransaction JSON responses.
func RawGroupFromBase58(index int, data ...string) (RawGroup, error) {
	group := RawGroup{Index: index, Records: make([][]byte, 0, len(data))}
	for i, s := range data {
		b, err := base58.Decode(s)
		if err != nil {
			return RawGroup{}, harnesserrors.NewHarnessError(
				harnesserrors.ErrCodeDecode, "",
				fmt.Sprintf("group %d record %d is not valid base58", index, i), err,
			)
		}
		group.Records = append(group.Records, b)
	}
	return group, nil
}

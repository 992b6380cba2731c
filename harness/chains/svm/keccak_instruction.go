package svm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"

	"github.com/apetrovskiy/neon-evm/harness/ethtx"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
)

const (
	// SignatureOffsetsLength is the serialized size of one SignatureOffsets record.
	SignatureOffsetsLength = 11

	// KeccakInstructionLength is the size of a single-signature proof instruction.
	KeccakInstructionLength = 1 + SignatureOffsetsLength
)

// SignatureOffsets locates the signer address, signature and message that the
// keccak-secp256k1 precompile must verify, inside a sibling instruction.
type SignatureOffsets struct {
	SignatureOffset            uint16
	SignatureInstructionIndex  uint8
	EthAddressOffset           uint16
	EthAddressInstructionIndex uint8
	MessageDataOffset          uint16
	MessageDataSize            uint16
	MessageInstructionIndex    uint8
}

// AppendBinary appends the little-endian wire form of o.
func (o SignatureOffsets) AppendBinary(b []byte) []byte {
	b = binary.LittleEndian.AppendUint16(b, o.SignatureOffset)
	b = append(b, o.SignatureInstructionIndex)
	b = binary.LittleEndian.AppendUint16(b, o.EthAddressOffset)
	b = append(b, o.EthAddressInstructionIndex)
	b = binary.LittleEndian.AppendUint16(b, o.MessageDataOffset)
	b = binary.LittleEndian.AppendUint16(b, o.MessageDataSize)
	return append(b, o.MessageInstructionIndex)
}

// SignatureOffsetsLayout describes where a signed payload sits in the sibling
// EVM call instruction.
type SignatureOffsetsLayout struct {
	// SiblingIndex is the position of the EVM call instruction in the transaction.
	SiblingIndex int
	// DataStart is the length of the tag prefix preceding the signer address.
	DataStart int
	// MessageLength is the length of the signed RLP message.
	MessageLength int
}

// NewSignatureOffsets computes the offsets table, refusing any value that
// would not fit its field.
func NewSignatureOffsets(layout SignatureOffsetsLayout) (SignatureOffsets, error) {
	if layout.SiblingIndex < 0 || layout.SiblingIndex > math.MaxUint8 {
		return SignatureOffsets{}, harnesserrors.NewConstructionError(
			fmt.Sprintf("sibling instruction index %d does not fit in u8", layout.SiblingIndex), nil)
	}
	if layout.DataStart < 0 || layout.MessageLength < 0 {
		return SignatureOffsets{}, harnesserrors.NewConstructionError("negative offset or length", nil)
	}

	ethOffset := layout.DataStart
	sigOffset := ethOffset + ethtx.AddressLength
	msgOffset := sigOffset + ethtx.SignatureLength

	for _, v := range []struct {
		name  string
		value int
	}{
		{"eth address offset", ethOffset},
		{"signature offset", sigOffset},
		{"message offset", msgOffset},
		{"message size", layout.MessageLength},
	} {
		if v.value > math.MaxUint16 {
			return SignatureOffsets{}, harnesserrors.NewConstructionError(
				fmt.Sprintf("%s %d does not fit in u16", v.name, v.value), nil)
		}
	}

	idx := uint8(layout.SiblingIndex)
	return SignatureOffsets{
		SignatureOffset:            uint16(sigOffset),
		SignatureInstructionIndex:  idx,
		EthAddressOffset:           uint16(ethOffset),
		EthAddressInstructionIndex: idx,
		MessageDataOffset:          uint16(msgOffset),
		MessageDataSize:            uint16(layout.MessageLength),
		MessageInstructionIndex:    idx,
	}, nil
}

// BuildKeccakInstructionData returns count(1) followed by one offsets record.
func BuildKeccakInstructionData(layout SignatureOffsetsLayout) ([]byte, error) {
	offsets, err := NewSignatureOffsets(layout)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, KeccakInstructionLength)
	out = append(out, 1)
	return offsets.AppendBinary(out), nil
}

// ParseKeccakInstructionData decodes a single-signature proof instruction.
func ParseKeccakInstructionData(data []byte) (SignatureOffsets, error) {
	if len(data) != KeccakInstructionLength || data[0] != 1 {
		return SignatureOffsets{}, fmt.Errorf("unexpected keccak instruction data (len %d)", len(data))
	}
	d := data[1:]
	return SignatureOffsets{
		SignatureOffset:            binary.LittleEndian.Uint16(d[0:2]),
		SignatureInstructionIndex:  d[2],
		EthAddressOffset:           binary.LittleEndian.Uint16(d[3:5]),
		EthAddressInstructionIndex: d[5],
		MessageDataOffset:          binary.LittleEndian.Uint16(d[6:8]),
		MessageDataSize:            binary.LittleEndian.Uint16(d[8:10]),
		MessageInstructionIndex:    d[10],
	}, nil
}

// NewKeccakInstruction builds the precompile proof instruction.
func NewKeccakInstruction(programs Programs, layout SignatureOffsetsLayout) (*solana.GenericInstruction, error) {
	data, err := BuildKeccakInstructionData(layout)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		programs.KeccakSecp256k1,
		solana.AccountMetaSlice{solana.NewAccountMeta(programs.KeccakSecp256k1, false, false)},
		data,
	), nil
}

package svm

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apetrovskiy/neon-evm/harness/config"
	"github.com/apetrovskiy/neon-evm/harness/ethtx"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
)

func testPrograms(t *testing.T) Programs {
	t.Helper()
	cfg, err := config.LoadDefaultConfig()
	require.NoError(t, err)
	p, err := ParsePrograms(cfg.Programs)
	require.NoError(t, err)
	return p
}

func testPayload(msgLen int) ethtx.SignedPayload {
	var p ethtx.SignedPayload
	copy(p.Signer[:], bytes.Repeat([]byte{0xAA}, 20))
	copy(p.Signature[:], bytes.Repeat([]byte{0xBB}, 65))
	p.Message = bytes.Repeat([]byte{0xCC}, msgLen)
	return p
}

func TestBuildKeccakInstructionData(t *testing.T) {
	data, err := BuildKeccakInstructionData(SignatureOffsetsLayout{SiblingIndex: 1, DataStart: EvmCallDataStart, MessageLength: 100})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x01,       // count
		0x15, 0x00, // signature offset 21
		0x01,       // signature instruction
		0x01, 0x00, // eth address offset 1
		0x01,       // eth address instruction
		0x56, 0x00, // message offset 86
		0x64, 0x00, // message size 100
		0x01,       // message instruction
	}, data)

	parsed, err := ParseKeccakInstructionData(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(100), parsed.MessageDataSize)
	assert.Equal(t, uint8(1), parsed.MessageInstructionIndex)
}

func TestBuildKeccakInstructionData_Offsets(t *testing.T) {
	for _, start := range []int{1, 5} {
		offsets, err := NewSignatureOffsets(SignatureOffsetsLayout{SiblingIndex: 2, DataStart: start, MessageLength: 7})
		require.NoError(t, err)
		assert.Equal(t, uint16(start), offsets.EthAddressOffset)
		assert.Equal(t, uint16(start+20), offsets.SignatureOffset)
		assert.Equal(t, uint16(start+85), offsets.MessageDataOffset)
		assert.Equal(t, uint8(2), offsets.SignatureInstructionIndex)
		assert.Equal(t, uint8(2), offsets.EthAddressInstructionIndex)
	}
}

func TestBuildKeccakInstructionData_Overflow(t *testing.T) {
	tests := []struct {
		name   string
		layout SignatureOffsetsLayout
		errMsg string
	}{
		{"message too long", SignatureOffsetsLayout{SiblingIndex: 1, DataStart: 1, MessageLength: 65536}, "message size 65536"},
		{"message offset too large", SignatureOffsetsLayout{SiblingIndex: 1, DataStart: 65500, MessageLength: 1}, "does not fit in u16"},
		{"sibling too large", SignatureOffsetsLayout{SiblingIndex: 256, DataStart: 1, MessageLength: 1}, "does not fit in u8"},
		{"negative sibling", SignatureOffsetsLayout{SiblingIndex: -1, DataStart: 1, MessageLength: 1}, "does not fit in u8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildKeccakInstructionData(tt.layout)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Equal(t, harnesserrors.ErrCodeConstruction, harnesserrors.CodeOf(err))
		})
	}

	_, err := BuildKeccakInstructionData(SignatureOffsetsLayout{SiblingIndex: 1, DataStart: 1, MessageLength: 65535})
	require.NoError(t, err)
}

func TestNewKeccakInstruction(t *testing.T) {
	programs := testPrograms(t)
	ix, err := NewKeccakInstruction(programs, SignatureOffsetsLayout{SiblingIndex: 1, DataStart: 1, MessageLength: 10})
	require.NoError(t, err)
	assert.Equal(t, programs.KeccakSecp256k1, ix.ProgramID())
	require.Len(t, ix.Accounts(), 1)
	assert.Equal(t, programs.KeccakSecp256k1, ix.Accounts()[0].PublicKey)
	assert.False(t, ix.Accounts()[0].IsWritable)
	assert.False(t, ix.Accounts()[0].IsSigner)
}

func TestNewEvmCallInstruction(t *testing.T) {
	programs := testPrograms(t)
	payload := testPayload(40)
	accounts := EvmCallAccounts{
		Contract:     solana.NewWallet().PublicKey(),
		ContractCode: solana.NewWallet().PublicKey(),
		Caller:       solana.NewWallet().PublicKey(),
	}

	base := NewEvmCallInstruction(programs, payload, accounts)
	data, err := base.Data()
	require.NoError(t, err)
	assert.Equal(t, TagEvmCall, data[0])
	assert.Equal(t, payload.Bytes(), data[1:])
	assert.Len(t, data, 1+20+65+40)

	wantPrefix := []struct {
		key      solana.PublicKey
		writable bool
	}{
		{accounts.Contract, true},
		{accounts.ContractCode, true},
		{accounts.Caller, true},
		{programs.SysvarInstructions, false},
		{programs.EvmLoader, false},
		{programs.SysvarClock, false},
	}

	for _, extras := range [][]*solana.AccountMeta{
		nil,
		{solana.NewAccountMeta(programs.SysvarRecentBlockhashes, false, false)},
		{
			solana.NewAccountMeta(programs.SysvarSlotHashes, false, false),
			solana.NewAccountMeta(solana.NewWallet().PublicKey(), true, false),
		},
	} {
		ix := NewEvmCallInstruction(programs, payload, accounts, extras...)
		metas := ix.Accounts()
		require.Len(t, metas, EvmCallFixedAccounts+len(extras))
		for i, want := range wantPrefix {
			assert.Equal(t, want.key, metas[i].PublicKey, "account %d", i)
			assert.Equal(t, want.writable, metas[i].IsWritable, "account %d", i)
			assert.False(t, metas[i].IsSigner, "account %d", i)
		}
		for i, extra := range extras {
			assert.Same(t, extra, metas[EvmCallFixedAccounts+i])
		}
		assert.Equal(t, programs.EvmLoader, ix.ProgramID())
	}
}

func TestResolveSiblingIndex(t *testing.T) {
	idx, err := ResolveSiblingIndex(config.SiblingIndexFixed, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = ResolveSiblingIndex(config.SiblingIndexPositional, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, idx)

	_, err = ResolveSiblingIndex("guess", 1, 0)
	assert.Equal(t, harnesserrors.ErrCodeConstruction, harnesserrors.CodeOf(err))
}

func TestParsePrograms(t *testing.T) {
	p := testPrograms(t)
	assert.Equal(t, "634bKMgVZhw7JGCBLtngW7Lmaad7UDVQDkVbC3gfRmGr", p.EvmLoader.String())
	assert.Equal(t, solana.SysVarInstructionsPubkey, p.SysvarInstructions)
	assert.Equal(t, solana.SysVarClockPubkey, p.SysvarClock)

	_, err := ParsePrograms(config.ProgramsConfig{EvmLoader: "not-base58!"})
	require.ErrorContains(t, err, "invalid evm_loader program id")
}

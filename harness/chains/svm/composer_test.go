package svm_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apetrovskiy/neon-evm/harness/chains/svm"
	"github.com/apetrovskiy/neon-evm/harness/chains/svm/svmtest"
	"github.com/apetrovskiy/neon-evm/harness/config"
	"github.com/apetrovskiy/neon-evm/harness/ethtx"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
)

func programs(t *testing.T) svm.Programs {
	t.Helper()
	cfg, err := config.LoadDefaultConfig()
	require.NoError(t, err)
	p, err := svm.ParsePrograms(cfg.Programs)
	require.NoError(t, err)
	return p
}

func payload(msgLen int) ethtx.SignedPayload {
	var p ethtx.SignedPayload
	copy(p.Signer[:], bytes.Repeat([]byte{0x01}, 20))
	copy(p.Signature[:], bytes.Repeat([]byte{0x02}, 65))
	p.Message = bytes.Repeat([]byte{0x03}, msgLen)
	return p
}

func callAccounts() svm.EvmCallAccounts {
	return svm.EvmCallAccounts{
		Contract:     solana.NewWallet().PublicKey(),
		ContractCode: solana.NewWallet().PublicKey(),
		Caller:       solana.NewWallet().PublicKey(),
	}
}

func newComposer(t *testing.T, ledger svm.BlockhashSource, batch config.BatchConfig) (*svm.Composer, solana.PrivateKey) {
	t.Helper()
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	tracker := svm.NewBlockhashTracker(ledger, batch.BlockhashStaleness(), zerolog.Nop())
	return svm.NewComposer(payer, programs(t), tracker, batch, zerolog.Nop()), payer
}

func fixedBatch(slot uint8) config.BatchConfig {
	return config.BatchConfig{BlockhashStalenessMillis: 5000, SiblingIndexMode: config.SiblingIndexFixed, FixedSiblingSlot: slot}
}

func dummyInstruction() solana.Instruction {
	return solana.NewInstruction(solana.SystemProgramID, solana.AccountMetaSlice{}, []byte{0xFF})
}

func TestCompose_EthereumCallPair(t *testing.T) {
	ledger := svmtest.NewLedger()
	composer, payer := newComposer(t, ledger, fixedBatch(1))
	p := programs(t)

	pair, err := composer.EthereumCall(payload(50), callAccounts(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), pair.SiblingIndex)

	tx, err := composer.Compose(context.Background(), pair.Instructions()...)
	require.NoError(t, err)
	require.NoError(t, tx.VerifySignatures())
	assert.Equal(t, payer.PublicKey(), tx.Message.AccountKeys[0])
	assert.Equal(t, ledger.Blockhash, tx.Message.RecentBlockhash)

	require.Len(t, tx.Message.Instructions, 2)
	assert.Equal(t, p.KeccakSecp256k1, tx.Message.AccountKeys[tx.Message.Instructions[0].ProgramIDIndex])
	assert.Equal(t, p.EvmLoader, tx.Message.AccountKeys[tx.Message.Instructions[1].ProgramIDIndex])

	offsets, err := svm.ParseKeccakInstructionData(svmtest.InstructionData(tx, 0))
	require.NoError(t, err)
	assert.Equal(t, uint8(1), offsets.MessageInstructionIndex)
	assert.Equal(t, uint16(50), offsets.MessageDataSize)

	callData := svmtest.InstructionData(tx, 1)
	signed := payload(50)
	assert.Equal(t, signed.Message, callData[offsets.MessageDataOffset:int(offsets.MessageDataOffset)+int(offsets.MessageDataSize)])
	assert.Equal(t, signed.Signer[:], callData[offsets.EthAddressOffset:offsets.EthAddressOffset+20])
}

func TestCompose_SiblingIndexModes(t *testing.T) {
	tests := []struct {
		name     string
		batch    config.BatchConfig
		prefix   bool
		errMsg   string
		expected uint8
	}{
		{name: "fixed slot matches", batch: fixedBatch(1), expected: 1},
		{name: "fixed slot with leading instruction", batch: fixedBatch(1), prefix: true, errMsg: "EVM call expected at slot 1"},
		{name: "fixed slot out of range", batch: fixedBatch(2), errMsg: "proof references 2 of 2 instructions"},
		{
			name:     "positional with leading instruction",
			batch:    config.BatchConfig{BlockhashStalenessMillis: 5000, SiblingIndexMode: config.SiblingIndexPositional},
			prefix:   true,
			expected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			composer, _ := newComposer(t, svmtest.NewLedger(), tt.batch)

			var instructions []solana.Instruction
			if tt.prefix {
				instructions = append(instructions, dummyInstruction())
			}
			pair, err := composer.EthereumCall(payload(20), callAccounts(), len(instructions))
			require.NoError(t, err)
			instructions = append(instructions, pair.Instructions()...)

			tx, err := composer.Compose(context.Background(), instructions...)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Nil(t, tx)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Equal(t, harnesserrors.ErrCodeConstruction, harnesserrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, pair.SiblingIndex)
		})
	}
}

func TestCompose_RejectsEmpty(t *testing.T) {
	composer, _ := newComposer(t, svmtest.NewLedger(), fixedBatch(1))
	_, err := composer.Compose(context.Background())
	assert.Equal(t, harnesserrors.ErrCodeConstruction, harnesserrors.CodeOf(err))
}

func TestCompose_PlainInstructionsNeedNoProof(t *testing.T) {
	ledger := svmtest.NewLedger()
	composer, _ := newComposer(t, ledger, fixedBatch(1))
	tx, err := composer.Compose(context.Background(), dummyInstruction(), dummyInstruction())
	require.NoError(t, err)
	assert.Len(t, tx.Message.Instructions, 2)
	assert.Equal(t, 1, ledger.BlockhashCalls())
}

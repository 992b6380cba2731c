package loader

import (
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apetrovskiy/neon-evm/harness/chains/svm"
	"github.com/apetrovskiy/neon-evm/harness/config"
)

var testEther = common.HexToAddress("0x7a250d5630b4cf539739df2c5dacb4c659f2488d")

func testPrograms(t *testing.T) svm.Programs {
	t.Helper()
	cfg, err := config.LoadDefaultConfig()
	require.NoError(t, err)
	p, err := svm.ParsePrograms(cfg.Programs)
	require.NoError(t, err)
	return p
}

func TestStorageAddress(t *testing.T) {
	p := testPrograms(t)
	pda, bump, err := StorageAddress(p.EvmLoader, testEther)
	require.NoError(t, err)

	again, _, err := StorageAddress(p.EvmLoader, testEther)
	require.NoError(t, err)
	assert.Equal(t, pda, again)

	direct, err := solana.CreateProgramAddress([][]byte{testEther.Bytes(), {bump}}, p.EvmLoader)
	require.NoError(t, err)
	assert.Equal(t, pda, direct)

	other, _, err := StorageAddress(p.EvmLoader, common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.NotEqual(t, pda, other)
}

func TestCodeAddress(t *testing.T) {
	p := testPrograms(t)
	payer := solana.NewWallet().PublicKey()

	seed := CodeAccountSeed(testEther)
	decoded, err := base58.Decode(seed)
	require.NoError(t, err)
	assert.Equal(t, testEther.Bytes(), decoded)
	assert.LessOrEqual(t, len(seed), 32)

	code, err := CodeAddress(payer, p.EvmLoader, testEther)
	require.NoError(t, err)
	want, err := solana.CreateWithSeed(payer, seed, p.EvmLoader)
	require.NoError(t, err)
	assert.Equal(t, want, code)

	ix, created, err := NewCreateCodeAccountInstruction(payer, p.EvmLoader, testEther, 1_000_000_000, 20000)
	require.NoError(t, err)
	assert.Equal(t, code, created)
	assert.Equal(t, solana.SystemProgramID, ix.ProgramID())

	accounts := ix.Accounts()
	require.GreaterOrEqual(t, len(accounts), 2)
	assert.Equal(t, payer, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, code, accounts[1].PublicKey)
	assert.True(t, accounts[1].IsWritable)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, system.Instruction_CreateAccountWithSeed, binary.LittleEndian.Uint32(data[:4]))
}

func TestNewCreateEtherAccountInstruction(t *testing.T) {
	p := testPrograms(t)
	funder := solana.NewWallet().PublicKey()

	t.Run("plain account", func(t *testing.T) {
		ix, acct, err := NewCreateEtherAccountInstruction(p, funder, testEther, 0, 0, solana.PublicKey{})
		require.NoError(t, err)
		assert.Equal(t, p.EvmLoader, ix.ProgramID())

		metas := ix.Accounts()
		require.Len(t, metas, 3)
		assert.Equal(t, funder, metas[0].PublicKey)
		assert.True(t, metas[0].IsSigner)
		assert.Equal(t, acct.Storage, metas[1].PublicKey)
		assert.Equal(t, solana.SystemProgramID, metas[2].PublicKey)

		data, err := ix.Data()
		require.NoError(t, err)
		require.Len(t, data, 38)
		assert.Equal(t, TagCreateEtherAccount, data[0])
		assert.Equal(t, testEther.Bytes(), data[17:37])
		assert.Equal(t, acct.Nonce, data[37])
	})

	t.Run("contract account links code", func(t *testing.T) {
		code := solana.NewWallet().PublicKey()
		ix, acct, err := NewCreateEtherAccountInstruction(p, funder, testEther, 5, 7, code)
		require.NoError(t, err)
		assert.Equal(t, code, acct.Code)

		metas := ix.Accounts()
		require.Len(t, metas, 4)
		assert.Equal(t, code, metas[2].PublicKey)
		assert.True(t, metas[2].IsWritable)

		data, _ := ix.Data()
		assert.Equal(t, uint64(5), binary.LittleEndian.Uint64(data[1:9]))
		assert.Equal(t, uint64(7), binary.LittleEndian.Uint64(data[9:17]))
	})
}

func TestNewLedgerCallInstruction(t *testing.T) {
	p := testPrograms(t)
	accounts := LedgerCallAccounts{
		Contract:     solana.NewWallet().PublicKey(),
		ContractCode: solana.NewWallet().PublicKey(),
		Signer:       solana.NewWallet().PublicKey(),
		Touched:      []solana.PublicKey{solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()},
	}

	ix := NewLedgerCallInstruction(p, accounts, []byte{0xde, 0xad})
	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{TagLedgerCall, 0xde, 0xad}, data)

	metas := ix.Accounts()
	require.Len(t, metas, 7)
	assert.Equal(t, accounts.Signer, metas[2].PublicKey)
	assert.True(t, metas[2].IsSigner)
	assert.False(t, metas[2].IsWritable)
	assert.Equal(t, accounts.Touched[0], metas[3].PublicKey)
	assert.Equal(t, accounts.Touched[1], metas[4].PublicKey)
	assert.Equal(t, p.EvmLoader, metas[5].PublicKey)
	assert.Equal(t, p.SysvarClock, metas[6].PublicKey)
}

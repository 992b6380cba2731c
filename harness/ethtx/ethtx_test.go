package ethtx

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestSign(t *testing.T) {
	key, err := KeyFromHex(testKeyHex)
	require.NoError(t, err)
	to := common.HexToAddress("0x00000000000000000000000000000000000000ee")
	data, err := TransferCallData(common.HexToAddress("0x1111111111111111111111111111111111111111"), big.NewInt(1))
	require.NoError(t, err)

	fields := TxFields{
		Nonce:    7,
		GasPrice: big.NewInt(1),
		GasLimit: 1,
		To:       &to,
		Value:    big.NewInt(1),
		Data:     data,
		ChainID:  big.NewInt(111),
	}

	payload, err := Sign(fields, key)
	require.NoError(t, err)

	t.Run("message hash matches EIP-155 signer", func(t *testing.T) {
		tx := types.NewTransaction(fields.Nonce, to, fields.Value, fields.GasLimit, fields.GasPrice, fields.Data)
		want := types.NewEIP155Signer(fields.ChainID).Hash(tx)
		assert.Equal(t, want, crypto.Keccak256Hash(payload.Message))
	})

	t.Run("signature recovers signer", func(t *testing.T) {
		assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), payload.SignerAddress())
		recovered, err := Recover(payload)
		require.NoError(t, err)
		assert.Equal(t, payload.SignerAddress(), recovered)
		assert.LessOrEqual(t, payload.Signature[64], byte(1))
	})

	t.Run("bytes layout", func(t *testing.T) {
		raw := payload.Bytes()
		require.Len(t, raw, AddressLength+SignatureLength+len(payload.Message))
		assert.Equal(t, payload.Signer[:], raw[:20])
		assert.Equal(t, payload.Signature[:], raw[20:85])
		assert.Equal(t, payload.Message, raw[85:])
	})

	t.Run("nil key", func(t *testing.T) {
		_, err := Sign(fields, nil)
		require.Error(t, err)
	})
}

func TestUnsignedMessage_ContractCreation(t *testing.T) {
	fields := TxFields{Nonce: 0, GasLimit: 21000, Data: []byte{0x60, 0x00}, ChainID: big.NewInt(111)}
	msg, err := UnsignedMessage(fields)
	require.NoError(t, err)

	tx := types.NewContractCreation(0, new(big.Int), 21000, new(big.Int), fields.Data)
	assert.Equal(t, types.NewEIP155Signer(fields.ChainID).Hash(tx), crypto.Keccak256Hash(msg))
}

func TestSelectorsAndTopics(t *testing.T) {
	assert.Equal(t, "a9059cbb", hex.EncodeToString(FunctionSelector(SigTransfer)))
	assert.Equal(t, "40c10f19", hex.EncodeToString(FunctionSelector(SigMint)))
	assert.Equal(t,
		"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		EventSignatureHash(EventTransfer).Hex())
}

func TestCallData(t *testing.T) {
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	data, err := MintCallData(to, big.NewInt(5))
	require.NoError(t, err)
	require.Len(t, data, 4+64)
	assert.Equal(t, FunctionSelector(SigMint), data[:4])
	assert.Equal(t, common.LeftPadBytes(to.Bytes(), 32), data[4:36])
	assert.Equal(t, byte(5), data[67])

	salt := SaltFromIndex(258)
	assert.Equal(t, byte(1), salt[30])
	assert.Equal(t, byte(2), salt[31])

	data, err = CreateERC20CallData(salt)
	require.NoError(t, err)
	assert.Equal(t, append(FunctionSelector(SigCreateERC20), salt[:]...), data)

	assert.Equal(t, FunctionSelector(SigGetHash), NoArgCallData(SigGetHash))

	data, err = GetValuesCallData(big.NewInt(300))
	require.NoError(t, err)
	require.Len(t, data, 4+32)
	assert.Equal(t, common.BigToHash(big.NewInt(300)).Bytes(), data[4:])
}

func TestCreate2Address(t *testing.T) {
	// EIP-1014 example 0
	factory := common.HexToAddress("0x0000000000000000000000000000000000000000")
	var salt [32]byte
	initCode, _ := hex.DecodeString("00")
	addr := Create2Address(factory, salt, crypto.Keccak256(initCode))
	assert.Equal(t, common.HexToAddress("0x4D1A2e2bB4F88F0250f26Ffff098B0b30B26BF38"), addr)
}

func TestKeys(t *testing.T) {
	t.Run("from ledger keypair", func(t *testing.T) {
		pk, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		key, err := KeyFromSolana(pk)
		require.NoError(t, err)
		assert.Equal(t, []byte(pk[:32]), crypto.FromECDSA(key))

		_, err = KeyFromSolana(solana.PrivateKey{1, 2})
		require.Error(t, err)
	})

	t.Run("hex round trip", func(t *testing.T) {
		key, addr, err := GenerateKey()
		require.NoError(t, err)
		parsed, err := KeyFromHex("0x" + KeyToHex(key))
		require.NoError(t, err)
		assert.Equal(t, addr, crypto.PubkeyToAddress(parsed.PublicKey))
	})

	t.Run("address parsing", func(t *testing.T) {
		_, err := ParseAddress("zz")
		require.Error(t, err)
		addr, err := ParseAddress("1111111111111111111111111111111111111111")
		require.NoError(t, err)
		assert.Equal(t, byte(0x11), addr[0])
	})
}

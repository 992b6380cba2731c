package ethtx

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signatures of the contract entry points and events the harness drives.
const (
	SigGetHash          = "get_hash()"
	SigCreateERC20      = "create_erc20(bytes32)"
	SigMint             = "mint(address,uint256)"
	SigTransfer         = "transfer(address,uint256)"
	SigGetCurrentValues = "getCurrentValues()"
	SigGetValues        = "getValues(uint256)"

	EventAddress  = "Address(address)"
	EventTransfer = "Transfer(address,address,uint256)"
)

var (
	addressType, _ = abi.NewType("address", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)
	bytes32Type, _ = abi.NewType("bytes32", "", nil)

	addressAmountArgs = abi.Arguments{{Type: addressType}, {Type: uint256Type}}
	bytes32Args       = abi.Arguments{{Type: bytes32Type}}
	uint256Args       = abi.Arguments{{Type: uint256Type}}
)

// FunctionSelector returns the first four bytes of keccak256(signature).
func FunctionSelector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// EventSignatureHash returns keccak256(signature), the first topic of an event.
func EventSignatureHash(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

// TransferCallData encodes transfer(to, amount).
func TransferCallData(to common.Address, amount *big.Int) ([]byte, error) {
	return packCall(SigTransfer, addressAmountArgs, to, amount)
}

// MintCallData encodes mint(to, amount).
func MintCallData(to common.Address, amount *big.Int) ([]byte, error) {
	return packCall(SigMint, addressAmountArgs, to, amount)
}

// CreateERC20CallData encodes create_erc20(salt).
func CreateERC20CallData(salt [32]byte) ([]byte, error) {
	return packCall(SigCreateERC20, bytes32Args, salt)
}

// GetValuesCallData encodes getValues(slot).
func GetValuesCallData(slot *big.Int) ([]byte, error) {
	return packCall(SigGetValues, uint256Args, slot)
}

// NoArgCallData returns just the selector of a function without parameters.
func NoArgCallData(signature string) []byte {
	return FunctionSelector(signature)
}

func packCall(signature string, args abi.Arguments, values ...interface{}) ([]byte, error) {
	packed, err := args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s arguments: %w", signature, err)
	}
	return append(FunctionSelector(signature), packed...), nil
}

// SaltFromIndex left-pads n into a 32-byte CREATE2 salt.
func SaltFromIndex(n uint64) [32]byte {
	var salt [32]byte
	new(big.Int).SetUint64(n).FillBytes(salt[:])
	return salt
}

// Create2Address derives the address a factory deploys to for a salt and
// init-code hash.
func Create2Address(factory common.Address, salt [32]byte, initCodeHash []byte) common.Address {
	return crypto.CreateAddress2(factory, salt, initCodeHash)
}

package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ApproveData encodes approve(spender, amount) on an ERC-20 token.
func ApproveData(spender common.Address, amount *big.Int) (string, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return "", fmt.Errorf("packing approve: %w", err)
	}
	return hexutil.Encode(data), nil
}

// CreateData encodes create(admin) on the space factory.
func CreateData(admin common.Address) (string, error) {
	data, err := factoryABI.Pack("create", admin)
	if err != nil {
		return "", fmt.Errorf("packing create: %w", err)
	}
	return hexutil.Encode(data), nil
}

// RegisterData encodes register(space) on the corral contract.
func RegisterData(space common.Address) (string, error) {
	data, err := corralABI.Pack("register", space)
	if err != nil {
		return "", fmt.Errorf("packing register: %w", err)
	}
	return hexutil.Encode(data), nil
}

// JoinData encodes joinSpace(member) on a space contract.
func JoinData(member common.Address) (string, error) {
	data, err := spaceABI.Pack("joinSpace", member)
	if err != nil {
		return "", fmt.Errorf("packing joinSpace: %w", err)
	}
	return hexutil.Encode(data), nil
}

package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/corralhq/corral/lib/engine"
)

// Event signature hashes of the logs the backend decodes. Lookup is by exact topic[0] match, first match wins over
// the receipt's log order. Matching does not filter by emitting contract address; a receipt with two contracts
// emitting same-signature events decodes the first one. That mirrors the protocol's given behaviour and is
// documented rather than disambiguated here.
var (
	// NewSpace(address indexed owner, address indexed space)
	NewSpaceTopic = crypto.Keccak256Hash([]byte("NewSpace(address,address)"))
	// Register(address indexed ring, address sharesToken, address inviteToken, address treasury)
	RegisterTopic = crypto.Keccak256Hash([]byte("Register(address,address,address,address)"))
)

// ErrEventNotFound is returned when the receipt holds no log with the requested signature.
var ErrEventNotFound = errors.New("event not found in receipt logs")

// RegisterResult holds the contract addresses announced when a space is registered with the protocol.
type RegisterResult struct {
	Space       common.Address
	SharesToken common.Address
	InviteToken common.Address
	Treasury    common.Address
}

// firstMatch returns the first log whose topic[0] equals sig, preserving on-chain emission order.
func firstMatch(logs []engine.Log, sig common.Hash) (engine.Log, error) {
	for _, l := range logs {
		if len(l.Topics) > 0 && common.HexToHash(l.Topics[0]) == sig {
			return l, nil
		}
	}
	return engine.Log{}, fmt.Errorf("%w: topic %s", ErrEventNotFound, sig.Hex())
}

// DecodeNewSpace extracts the deployed space address from the first NewSpace log of a receipt.
func DecodeNewSpace(logs []engine.Log) (common.Address, error) {
	l, err := firstMatch(logs, NewSpaceTopic)
	if err != nil {
		return common.Address{}, err
	}
	if len(l.Topics) < 3 {
		return common.Address{}, fmt.Errorf("malformed NewSpace log: %d topics", len(l.Topics))
	}
	// space is the second indexed parameter
	return common.HexToAddress(l.Topics[2]), nil
}

// DecodeRegister extracts the ring's contract set from the first Register log of a receipt: the space address from
// the indexed topic, the shares/invite/treasury addresses from the data words.
func DecodeRegister(logs []engine.Log) (RegisterResult, error) {
	l, err := firstMatch(logs, RegisterTopic)
	if err != nil {
		return RegisterResult{}, err
	}
	if len(l.Topics) < 2 {
		return RegisterResult{}, fmt.Errorf("malformed Register log: %d topics", len(l.Topics))
	}

	data, err := hexutil.Decode(l.Data)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("decoding Register log data: %w", err)
	}
	if len(data) < 96 {
		return RegisterResult{}, fmt.Errorf("malformed Register log: %d data bytes", len(data))
	}

	return RegisterResult{
		Space:       common.HexToAddress(l.Topics[1]),
		SharesToken: common.BytesToAddress(data[0:32]),
		InviteToken: common.BytesToAddress(data[32:64]),
		Treasury:    common.BytesToAddress(data[64:96]),
	}, nil
}

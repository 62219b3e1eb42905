// Package chain implements read-only access to the corral protocol contracts and calldata encoding for the calls the
// backend relays. All amounts are unbounded-precision integers; nothing here ever floats.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Reader is the set of on-chain reads the service needs. It has been kept small so tests can inject fakes instead of
// a live node.
type Reader interface {
	// Treasury returns the treasury address holding the pooled funds of a ring.
	Treasury(ctx context.Context, ring common.Address) (common.Address, error)
	// SharesToken returns the shares token contract of a ring.
	SharesToken(ctx context.Context, ring common.Address) (common.Address, error)
	// Position returns a pooled position of a ring.
	Position(ctx context.Context, positionID *big.Int, ring common.Address) (Position, error)
	// Shares returns the share balance of owner in position positionID of the given shares token.
	Shares(ctx context.Context, sharesToken, owner common.Address, positionID *big.Int) (*big.Int, error)
	// Allowance returns the amount of token that spender may transfer on behalf of owner.
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	// Members enumerates the current member addresses of a space, deduplicated.
	Members(ctx context.Context, space common.Address) ([]common.Address, error)
}

// Position is a pooled on-chain holding whose shares determine a member's proportional claim on exit.
type Position struct {
	ID                 *big.Int
	TotalShares        *big.Int
	TargetToken        common.Address
	TargetTokenBalance *big.Int
	BaseTokenSpent     *big.Int
	Creator            common.Address
	PerformanceFeeBps  *big.Int
	StakeBalance       *big.Int
}

// memberIndexSlot is the storage slot of the membership token's next id, read to bound member enumeration.
var memberIndexSlot = common.HexToHash("0x6569bde4a160c636ea8b8d11acb83a60d7fec0b8f2e09389306cba0e1340df00")

// Client reads the corral contracts through an ethereum node.
type Client struct {
	ec     *ethclient.Client
	corral common.Address
}

// Dial connects to the node and returns a Client bound to the corral protocol contract.
func Dial(node string, corral common.Address) (*Client, error) {
	ec, err := ethclient.Dial(node)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to node in %s: %w", node, err)
	}
	return &Client{ec: ec, corral: corral}, nil
}

// Close ends the node connection.
func (c *Client) Close() {
	c.ec.Close()
}

// call performs an eth_call of method on the contract at addr and unpacks the outputs.
func (c *Client) call(ctx context.Context, a *abi.ABI, addr common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}
	raw, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling %s on %s: %w", method, addr.Hex(), err)
	}
	out, err := a.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s result: %w", method, err)
	}
	return out, nil
}

func (c *Client) Treasury(ctx context.Context, ring common.Address) (common.Address, error) {
	out, err := c.call(ctx, &corralABI, c.corral, "getTreasury", ring)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

func (c *Client) SharesToken(ctx context.Context, ring common.Address) (common.Address, error) {
	out, err := c.call(ctx, &corralABI, c.corral, "getSharesToken", ring)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

func (c *Client) Position(ctx context.Context, positionID *big.Int, ring common.Address) (Position, error) {
	out, err := c.call(ctx, &corralABI, c.corral, "getPosition", positionID, ring)
	if err != nil {
		return Position{}, err
	}
	// the tuple unpacks into an anonymous struct mirroring the ABI components
	p := out[0].(struct {
		Id                 *big.Int       `json:"id"`
		TotalShares        *big.Int       `json:"totalShares"`
		TargetToken        common.Address `json:"targetToken"`
		TargetTokenBalance *big.Int       `json:"targetTokenBalance"`
		BaseTokenSpent     *big.Int       `json:"baseTokenSpent"`
		Creator            common.Address `json:"creator"`
		PerformanceFeeBps  *big.Int       `json:"performanceFeeBps"`
		StakeBalance       *big.Int       `json:"stakeBalance"`
	})
	return Position{
		ID:                 p.Id,
		TotalShares:        p.TotalShares,
		TargetToken:        p.TargetToken,
		TargetTokenBalance: p.TargetTokenBalance,
		BaseTokenSpent:     p.BaseTokenSpent,
		Creator:            p.Creator,
		PerformanceFeeBps:  p.PerformanceFeeBps,
		StakeBalance:       p.StakeBalance,
	}, nil
}

func (c *Client) Shares(ctx context.Context, sharesToken, owner common.Address, positionID *big.Int) (*big.Int, error) {
	out, err := c.call(ctx, &sharesABI, sharesToken, "balanceOf", owner, positionID)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := c.call(ctx, &erc20ABI, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Members reads the membership token's next id from its storage slot and walks ownerOf up to it, deduplicating
// owners along the way.
func (c *Client) Members(ctx context.Context, space common.Address) ([]common.Address, error) {
	raw, err := c.ec.StorageAt(ctx, space, memberIndexSlot, nil)
	if err != nil {
		return nil, fmt.Errorf("reading member index of %s: %w", space.Hex(), err)
	}
	next := new(big.Int).SetBytes(raw)

	var members []common.Address
	seen := map[common.Address]bool{}
	for i := big.NewInt(0); i.Cmp(next) < 0; i = new(big.Int).Add(i, big.NewInt(1)) {
		out, err := c.call(ctx, &sharesABI, space, "ownerOf", i)
		if err != nil {
			return nil, err
		}
		owner := out[0].(common.Address)
		if !seen[owner] {
			members = append(members, owner)
			seen[owner] = true
		}
	}
	return members, nil
}

// mustABI parses a JSON ABI at init time.
func mustABI(js string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(js))
	if err != nil {
		panic(err)
	}
	return a
}

var corralABI = mustABI(`[
	{"type":"function","name":"getTreasury","stateMutability":"view",
		"inputs":[{"name":"ring","type":"address"}],
		"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getSharesToken","stateMutability":"view",
		"inputs":[{"name":"ring","type":"address"}],
		"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getPosition","stateMutability":"view",
		"inputs":[{"name":"positionId","type":"uint96"},{"name":"ring","type":"address"}],
		"outputs":[{"name":"","type":"tuple","components":[
			{"name":"id","type":"uint256"},
			{"name":"totalShares","type":"uint256"},
			{"name":"targetToken","type":"address"},
			{"name":"targetTokenBalance","type":"uint256"},
			{"name":"baseTokenSpent","type":"uint256"},
			{"name":"creator","type":"address"},
			{"name":"performanceFeeBps","type":"uint96"},
			{"name":"stakeBalance","type":"uint256"}]}]},
	{"type":"function","name":"register","stateMutability":"nonpayable",
		"inputs":[{"name":"space","type":"address"}],"outputs":[]}
]`)

var erc20ABI = mustABI(`[
	{"type":"function","name":"allowance","stateMutability":"view",
		"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable",
		"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
		"outputs":[{"name":"","type":"bool"}]}
]`)

var sharesABI = mustABI(`[
	{"type":"function","name":"balanceOf","stateMutability":"view",
		"inputs":[{"name":"owner","type":"address"},{"name":"id","type":"uint256"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"ownerOf","stateMutability":"view",
		"inputs":[{"name":"id","type":"uint256"}],
		"outputs":[{"name":"","type":"address"}]}
]`)

var factoryABI = mustABI(`[
	{"type":"function","name":"create","stateMutability":"nonpayable",
		"inputs":[{"name":"admin","type":"address"}],
		"outputs":[{"name":"","type":"address"}]}
]`)

var spaceABI = mustABI(`[
	{"type":"function","name":"joinSpace","stateMutability":"nonpayable",
		"inputs":[{"name":"member","type":"address"}],"outputs":[]}
]`)

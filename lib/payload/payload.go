// Package payload assembles and signs the EIP-712 swap intents that authorize a ring to execute a position entry or
// exit. A payload bundles the sub-calls the ring must perform (an optional ERC-20 approval followed by the swap
// transaction supplied by the quote service) with the parameters the protocol contract verifies against the
// signature.
package payload

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"

	"github.com/corralhq/corral/lib/apierr"
	"github.com/corralhq/corral/lib/chain"
	"github.com/corralhq/corral/lib/swap"
)

// Signer produces an EIP-712 signature over a typed-data message. Satisfied by *engine.Engine.
type Signer interface {
	SignTypedData(ctx context.Context, domain apitypes.TypedDataDomain, types apitypes.Types, value apitypes.TypedDataMessage) (string, error)
}

// Builder assembles signed swap intents. All intents share one domain separator, bound to the protocol contract and
// chain the builder was configured with.
type Builder struct {
	reader chain.Reader
	signer Signer
	corral common.Address
	domain apitypes.TypedDataDomain

	buyWindow  time.Duration
	exitWindow time.Duration

	now    func() time.Time
	newUID func() string
}

// New returns a Builder bound to the protocol contract at corral on chainID. Deadlines of buy and exit intents are
// set buyWindow and exitWindow ahead of assembly time respectively.
func New(reader chain.Reader, signer Signer, corral common.Address, chainID uint64, buyWindow, exitWindow time.Duration) *Builder {
	return &Builder{
		reader: reader,
		signer: signer,
		corral: corral,
		domain: apitypes.TypedDataDomain{
			Name:              "Corral",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: corral.Hex(),
		},
		buyWindow:  buyWindow,
		exitWindow: exitWindow,
		now:        time.Now,
		newUID:     uuid.NewString,
	}
}

// BuyRequest carries the intent parameters that do not come from the quote.
type BuyRequest struct {
	Ring              common.Address
	Signer            common.Address
	PerformanceFeeBps uint64
	BuyToken          common.Address // token entering the treasury, the position's target
	SellToken         common.Address // base token spent to enter the position
	SellAmount        *big.Int
}

// ExitRequest carries the intent parameters of a position exit.
type ExitRequest struct {
	Ring       common.Address
	Signer     common.Address
	PositionID *big.Int
	SellToken  common.Address // target token sold back into base
	SellAmount *big.Int
}

// BuildBuy assembles and signs a buy intent around the quoted swap. When the quote reports an allowance issue and
// the ring's live allowance to the reported spender does not cover the sell amount, an approval sub-call is
// prepended; the quoted swap transaction is always the last sub-call.
func (b *Builder) BuildBuy(ctx context.Context, q *swap.Quote, req BuyRequest) (*Intent, error) {
	targets, data, err := b.subCalls(ctx, q, req.SellToken, req.SellAmount)
	if err != nil {
		return nil, err
	}
	deadline := b.now().Add(b.buyWindow).Unix()
	intent := &Intent{
		Domain:      b.domain,
		Types:       BuyTypes,
		PrimaryType: PrimaryBuy,
		Message: apitypes.TypedDataMessage{
			"uid":               b.uid(),
			"ring":              req.Ring.Hex(),
			"signer":            req.Signer.Hex(),
			"performanceFeeBps": new(big.Int).SetUint64(req.PerformanceFeeBps).String(),
			"tokenIn":           req.BuyToken.Hex(),
			"deadlineTimestamp": big.NewInt(deadline).String(),
			"tokenOutAmount":    req.SellAmount.String(),
			"minTokenInAmount":  q.MinBuyAmount,
			"target":            targets,
			"data":              data,
			"corralSig":         "0x",
		},
	}
	return b.sign(ctx, intent)
}

// BuildExit assembles and signs an exit intent around the quoted swap. Sub-call assembly follows the same allowance
// rule as BuildBuy, with the position's target token as the token being approved and sold.
func (b *Builder) BuildExit(ctx context.Context, q *swap.Quote, req ExitRequest) (*Intent, error) {
	targets, data, err := b.subCalls(ctx, q, req.SellToken, req.SellAmount)
	if err != nil {
		return nil, err
	}
	deadline := b.now().Add(b.exitWindow).Unix()
	intent := &Intent{
		Domain:      b.domain,
		Types:       ExitTypes,
		PrimaryType: PrimaryExit,
		Message: apitypes.TypedDataMessage{
			"uid":               b.uid(),
			"ring":              req.Ring.Hex(),
			"positionId":        req.PositionID.String(),
			"signer":            req.Signer.Hex(),
			"deadlineTimestamp": big.NewInt(deadline).String(),
			"minTokenInAmount":  q.MinBuyAmount,
			"target":            targets,
			"data":              data,
			"corralSig":         "0x",
		},
	}
	return b.sign(ctx, intent)
}

// subCalls builds the ordered target and calldata lists for an intent. The live allowance is compared exactly
// against the sell amount; an approval is emitted only when it falls short.
func (b *Builder) subCalls(ctx context.Context, q *swap.Quote, sellToken common.Address, sellAmount *big.Int) ([]string, []string, error) {
	var targets, data []string
	if q.Issues.Allowance != nil {
		spender := common.HexToAddress(q.Issues.Allowance.Spender)
		current, err := b.reader.Allowance(ctx, sellToken, b.corral, spender)
		if err != nil {
			return nil, nil, apierr.Internal(err)
		}
		if current.Cmp(sellAmount) < 0 {
			approve, err := chain.ApproveData(spender, sellAmount)
			if err != nil {
				return nil, nil, apierr.Internal(err)
			}
			targets = append(targets, sellToken.Hex())
			data = append(data, approve)
		}
	}
	targets = append(targets, q.Transaction.To)
	data = append(data, q.Transaction.Data)
	return targets, data, nil
}

// uid derives a payload identifier from a freshly generated UUID. Hashing keeps the identifier a uniform bytes32
// regardless of the UUID's textual form.
func (b *Builder) uid() string {
	return hexutil.Encode(crypto.Keccak256([]byte(b.newUID())))
}

func (b *Builder) sign(ctx context.Context, intent *Intent) (*Intent, error) {
	sig, err := b.signer.SignTypedData(ctx, intent.Domain, intent.Types, intent.Message)
	if err != nil {
		return nil, err
	}
	intent.SetSignature(sig)
	return intent, nil
}

package payload

import (
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Primary type names of the two swap intents.
const (
	PrimaryBuy  = "BuyParams"
	PrimaryExit = "ExitParams"
)

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// BuyTypes describes the typed-data schema of a buy intent. Field order matches the on-chain struct hashing order
// and must not be changed.
var BuyTypes = apitypes.Types{
	"EIP712Domain": domainType,
	PrimaryBuy: {
		{Name: "uid", Type: "bytes32"},
		{Name: "ring", Type: "address"},
		{Name: "signer", Type: "address"},
		{Name: "performanceFeeBps", Type: "uint96"},
		{Name: "tokenIn", Type: "address"},
		{Name: "deadlineTimestamp", Type: "uint96"},
		{Name: "tokenOutAmount", Type: "uint256"},
		{Name: "minTokenInAmount", Type: "uint256"},
		{Name: "target", Type: "address[]"},
		{Name: "data", Type: "bytes[]"},
		{Name: "corralSig", Type: "bytes"},
	},
}

// ExitTypes describes the typed-data schema of an exit intent.
var ExitTypes = apitypes.Types{
	"EIP712Domain": domainType,
	PrimaryExit: {
		{Name: "uid", Type: "bytes32"},
		{Name: "ring", Type: "address"},
		{Name: "positionId", Type: "uint96"},
		{Name: "signer", Type: "address"},
		{Name: "deadlineTimestamp", Type: "uint96"},
		{Name: "minTokenInAmount", Type: "uint256"},
		{Name: "target", Type: "address[]"},
		{Name: "data", Type: "bytes[]"},
		{Name: "corralSig", Type: "bytes"},
	},
}

// Intent is an assembled typed-data message authorizing a swap on behalf of a ring. The signature field starts empty
// and is populated last; an Intent must never reach the caller unsigned on the success path.
type Intent struct {
	Domain      apitypes.TypedDataDomain  `json:"domain"`
	Types       apitypes.Types            `json:"types"`
	PrimaryType string                    `json:"primaryType"`
	Message     apitypes.TypedDataMessage `json:"message"`
}

// SetSignature populates the signature field. It is the only mutation an Intent ever sees after assembly.
func (i *Intent) SetSignature(sig string) {
	i.Message["corralSig"] = sig
}

// Signature returns the signature field, "0x" until SetSignature.
func (i *Intent) Signature() string {
	s, _ := i.Message["corralSig"].(string)
	return s
}

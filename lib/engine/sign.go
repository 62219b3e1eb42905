package engine

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/corralhq/corral/lib/apierr"
)

// SignTypedData asks the engine's backend wallet to sign the assembled typed-data object and returns the signature
// hex. The message itself is passed through untouched: a caller can rely on the signed payload's fields being exactly
// the ones it assembled. Any failure surfaces as SIGNING_FAILED so callers can tell "quoted but never authorized"
// apart from "authorized but never executed".
func (e *Engine) SignTypedData(ctx context.Context, domain apitypes.TypedDataDomain, types apitypes.Types, value apitypes.TypedDataMessage) (string, error) {
	body := struct {
		Domain apitypes.TypedDataDomain `json:"domain"`
		Types  apitypes.Types           `json:"types"`
		Value  apitypes.TypedDataMessage `json:"value"`
	}{domain, types, value}

	var resp struct {
		Result string `json:"result"`
	}
	if err := e.do(ctx, http.MethodPost, "/backend-wallet/sign-typed-data", body, &resp); err != nil {
		return "", apierr.SigningFailed(err)
	}
	if _, err := hexutil.Decode(resp.Result); err != nil {
		return "", apierr.SigningFailed(err)
	}
	return resp.Result, nil
}

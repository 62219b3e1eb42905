package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/corralhq/corral/lib/apierr"
)

// TxRequest is a prepared call ready for submission: target address, calldata, value and target chain. Address and
// calldata are validated by the caller before this client is invoked; they are not re-validated here.
type TxRequest struct {
	To      string
	Data    string
	Value   string
	ChainID uint64
}

// Relay submits the prepared call to the engine under the backend-wallet identity and returns the opaque queue
// identifier referencing the in-flight submission. A rejection is surfaced as RELAY_FAILED and is not retried here:
// a blind retry could double-submit the transaction.
func (e *Engine) Relay(ctx context.Context, tx TxRequest) (string, error) {
	body := struct {
		ToAddress string `json:"toAddress"`
		Data      string `json:"data"`
		Value     string `json:"value"`
	}{tx.To, tx.Data, tx.Value}

	var resp struct {
		Result struct {
			QueueID string `json:"queueId"`
		} `json:"result"`
	}

	path := fmt.Sprintf("/backend-wallet/%d/send-transaction", tx.ChainID)
	if err := e.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return "", apierr.RelayFailed(se.statusText, err)
		}
		return "", fmt.Errorf("relaying transaction: %w", err)
	}
	return resp.Result.QueueID, nil
}

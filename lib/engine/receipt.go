package engine

import (
	"context"
	"fmt"
	"net/http"
)

// Log is one event emitted during execution, in original on-chain emission order.
type Log struct {
	Address  string   `json:"address"`
	Topics   []string `json:"topics"`
	Data     string   `json:"data"`
	LogIndex int      `json:"logIndex"`
}

// Receipt is the full transaction receipt as reported by the engine. Fetched once per mined transaction.
type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	BlockHash       string `json:"blockHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	Status          int    `json:"status"`
	GasUsed         string `json:"gasUsed"`
	Logs            []Log  `json:"logs"`
}

// Receipt retrieves the receipt of a mined transaction, used downstream to decode on-chain event data.
func (e *Engine) Receipt(ctx context.Context, chainID uint64, txHash string) (*Receipt, error) {
	var resp struct {
		Result Receipt `json:"result"`
	}
	path := fmt.Sprintf("/transaction/%d/tx-hash/%s", chainID, txHash)
	if err := e.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching receipt for %s: %w", txHash, err)
	}
	return &resp.Result, nil
}

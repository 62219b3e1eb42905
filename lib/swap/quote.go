// Package swap implements the client to the external swap-quote service. A quote is a read-once snapshot of a route:
// it can go stale if execution is delayed and there is no re-quote mechanism, which is the caller's risk to manage.
package swap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/corralhq/corral/lib/apierr"
)

const requestTimeout = 15 * time.Second

// Client queries the swap-quote service.
type Client struct {
	url     string
	apiKey  string
	chainID uint64
	hc      *http.Client
}

// New returns a quote client for the given service endpoint, API key and chain.
func New(url, apiKey string, chainID uint64) *Client {
	return &Client{url: url, apiKey: apiKey, chainID: chainID, hc: &http.Client{Timeout: requestTimeout}}
}

// Request identifies the buy/sell token pair, the amount sold and the taker executing the swap.
type Request struct {
	BuyToken    string
	SellToken   string
	SellAmount  string
	Taker       string
	SlippageBps int
}

// Quote is the parsed response: the routed transaction, the minimum-output guarantee and, when the taker has not yet
// granted the route's spender enough allowance, the required approval.
type Quote struct {
	LiquidityAvailable bool        `json:"liquidityAvailable"`
	BuyAmount          string      `json:"buyAmount"`
	MinBuyAmount       string      `json:"minBuyAmount"`
	Issues             Issues      `json:"issues"`
	Transaction        Transaction `json:"transaction"`
}

// Issues carries the actionable problems the quote service found with the request.
type Issues struct {
	Allowance *Allowance `json:"allowance"`
}

// Transaction is the routed swap call to execute verbatim.
type Transaction struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// Allowance names the spender that must be approved before the routed swap can pull the sell token.
type Allowance struct {
	Spender string `json:"spender"`
	Token   string `json:"token"`
}

// Get queries the quote service for the given pair and amount. A non-2xx response surfaces as QUOTE_SERVICE_ERROR
// with the status and any parsed error body; liquidityAvailable=false surfaces as INSUFFICIENT_LIQUIDITY carrying
// the requested amounts and the raw quote, a client-class condition rather than a server failure.
func (c *Client) Get(ctx context.Context, q Request) (*Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building quote request: %w", err)
	}

	vals := req.URL.Query()
	vals.Set("chainId", strconv.FormatUint(c.chainID, 10))
	vals.Set("buyToken", q.BuyToken)
	vals.Set("sellToken", q.SellToken)
	vals.Set("sellAmount", q.SellAmount)
	vals.Set("taker", q.Taker)
	vals.Set("slippageBps", strconv.Itoa(q.SlippageBps))
	req.URL.RawQuery = vals.Encode()

	req.Header.Set("0x-api-key", c.apiKey)
	req.Header.Set("0x-version", "v2")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// keep the service's own error body: callers need the detail, not a masked 500
		var body interface{}
		if raw, errRead := io.ReadAll(resp.Body); errRead == nil && len(raw) > 0 {
			if json.Unmarshal(raw, &body) != nil {
				body = string(raw)
			}
		}
		return nil, apierr.QuoteService(resp.StatusCode, resp.Status, body)
	}

	var quote Quote
	if err = json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("decoding quote response: %w", err)
	}

	if !quote.LiquidityAvailable {
		return nil, apierr.InsufficientLiquidity(map[string]interface{}{
			"buyToken":   q.BuyToken,
			"sellToken":  q.SellToken,
			"sellAmount": q.SellAmount,
			"quote":      quote,
		})
	}
	return &quote, nil
}

package server

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/corralhq/corral/lib/apierr"
	"github.com/corralhq/corral/lib/engine"
	"github.com/corralhq/corral/lib/payload"
	"github.com/corralhq/corral/lib/swap"
)

// parseAddress validates and parses an ethereum address from client input.
func parseAddress(v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, apierr.ValidationAddress(v)
	}

	return common.HexToAddress(v), nil
}

// checkHex validates 0x-prefixed byte-string calldata from client input.
func checkHex(v string) error {
	if _, err := hexutil.Decode(v); err != nil {
		return apierr.ValidationHex(v)
	}

	return nil
}

// parseAmount validates a positive decimal token amount.
func parseAmount(v string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(v, 10)
	if !ok || n.Sign() <= 0 {
		return nil, apierr.Validation("Invalid token amount", map[string]interface{}{
			"expectedFormat": "positive decimal integer",
			"receivedValue":  v,
		})
	}

	return n, nil
}

// homeHandler just replies a welcome message to the client.
func (s *Server) homeHandler(rw http.ResponseWriter, r *http.Request) {
	s.respond(rw, http.StatusOK, map[string]string{"body": "Hello, this is your corral backend!"})
}

// relayAndWait submits the transaction through the engine and blocks until it is mined, the engine declares it
// failed or the poll budget runs out.
func (s *Server) relayAndWait(r *http.Request, tx engine.TxRequest) (string, error) {
	queueID, err := s.eng.Relay(r.Context(), tx)
	if err != nil {
		return "", err
	}

	out, err := s.eng.WaitMined(r.Context(), queueID, s.polls)
	if err != nil {
		return "", err
	}

	if err := out.Err(); err != nil {
		return "", err
	}

	return out.TransactionHash, nil
}

type relayRequest struct {
	To      string `json:"to"`
	Data    string `json:"data"`
	ChainID uint64 `json:"chainId,string,omitempty"`
}

// relayHandler validates and relays an unsigned call on the default chain, replying the transaction hash once
// mined.
func (s *Server) relayHandler(rw http.ResponseWriter, r *http.Request) {
	s.relay(rw, r, false)
}

// relayChainHandler is relayHandler with an explicit chain identifier in the body.
func (s *Server) relayChainHandler(rw http.ResponseWriter, r *http.Request) {
	s.relay(rw, r, true)
}

func (s *Server) relay(rw http.ResponseWriter, r *http.Request, explicitChain bool) {
	var req relayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(rw, r, apierr.Validation("Invalid JSON body", nil))
		return
	}

	if _, err := parseAddress(req.To); err != nil {
		s.fail(rw, r, err)
		return
	}

	if err := checkHex(req.Data); err != nil {
		s.fail(rw, r, err)
		return
	}

	chainID := s.chainID
	if explicitChain {
		if req.ChainID == 0 {
			s.fail(rw, r, apierr.Validation("Missing chainId", nil))
			return
		}

		chainID = req.ChainID
	}

	hash, err := s.relayAndWait(r, engine.TxRequest{To: req.To, Data: req.Data, Value: "0", ChainID: chainID})
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	s.respond(rw, http.StatusOK, map[string]string{"transactionHash": hash})
}

// quoteHandler resolves the space's treasury as taker and replies the swap quote for the requested pair.
func (s *Server) quoteHandler(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	space, err := parseAddress(q.Get("spaceAddress"))
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	buyToken, err := parseAddress(q.Get("buyTokenAddress"))
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	sellToken, err := parseAddress(q.Get("sellTokenAddress"))
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	sellAmount, err := parseAmount(q.Get("sellAmount"))
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	treasury, err := s.reader.Treasury(r.Context(), space)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	if treasury == (common.Address{}) {
		s.fail(rw, r, apierr.NotFound("Treasury not found for this space"))
		return
	}

	quote, err := s.quote.Get(r.Context(), swap.Request{
		BuyToken:    buyToken.Hex(),
		SellToken:   sellToken.Hex(),
		SellAmount:  sellAmount.String(),
		Taker:       treasury.Hex(),
		SlippageBps: s.slippage,
	})
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	s.respond(rw, http.StatusOK, map[string]interface{}{"quote": quote})
}

// payloadBuyHandler assembles and signs a buy intent: treasury lookup, quote, conditional approval, typed-data
// signature. The reply carries the full signed typed-data payload.
func (s *Server) payloadBuyHandler(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	space, err := parseAddress(q.Get("spaceEthereumAddress"))
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	signer, err := parseAddress(q.Get("signerAddress"))
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	buyToken, err := parseAddress(q.Get("buyTokenAddress"))
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	sellAmount, err := parseAmount(q.Get("sellTokenAmount"))
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	feeBps, err := strconv.ParseUint(q.Get("performanceFeeBps"), 10, 64)
	if err != nil {
		s.fail(rw, r, apierr.Validation("Invalid performance fee", map[string]interface{}{
			"expectedFormat": "decimal basis points",
			"receivedValue":  q.Get("performanceFeeBps"),
		}))

		return
	}

	treasury, err := s.reader.Treasury(r.Context(), space)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	quote, err := s.quote.Get(r.Context(), swap.Request{
		BuyToken:    buyToken.Hex(),
		SellToken:   s.baseToken.Hex(),
		SellAmount:  sellAmount.String(),
		Taker:       treasury.Hex(),
		SlippageBps: s.slippage,
	})
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	intent, err := s.builder.BuildBuy(r.Context(), quote, payload.BuyRequest{
		Ring:              space,
		Signer:            signer,
		PerformanceFeeBps: feeBps,
		BuyToken:          buyToken,
		SellToken:         s.baseToken,
		SellAmount:        sellAmount,
	})
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	s.respond(rw, http.StatusOK, intent)
}

// payloadExitHandler assembles and signs an exit intent. The amount sold is the signer's proportional share of the
// position's target-token balance.
func (s *Server) payloadExitHandler(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	space, err := parseAddress(q.Get("spaceEthereumAddress"))
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	signer, err := parseAddress(q.Get("signerAddress"))
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	positionID, err := parseAmount(q.Get("positionId"))
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	position, err := s.reader.Position(r.Context(), positionID, space)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	sharesToken, err := s.reader.SharesToken(r.Context(), space)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	signerShares, err := s.reader.Shares(r.Context(), sharesToken, signer, positionID)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	if position.TotalShares.Sign() == 0 || signerShares.Sign() == 0 {
		s.fail(rw, r, apierr.NotFound("No shares held in this position"))
		return
	}

	// proportional claim on the position's target-token balance
	exitAmount := new(big.Int).Mul(position.TargetTokenBalance, signerShares)
	exitAmount.Quo(exitAmount, position.TotalShares)

	treasury, err := s.reader.Treasury(r.Context(), space)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	quote, err := s.quote.Get(r.Context(), swap.Request{
		BuyToken:    s.baseToken.Hex(),
		SellToken:   position.TargetToken.Hex(),
		SellAmount:  exitAmount.String(),
		Taker:       treasury.Hex(),
		SlippageBps: s.slippage,
	})
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	intent, err := s.builder.BuildExit(r.Context(), quote, payload.ExitRequest{
		Ring:       space,
		Signer:     signer,
		PositionID: positionID,
		SellToken:  position.TargetToken,
		SellAmount: exitAmount,
	})
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	s.respond(rw, http.StatusOK, intent)
}

// walletPhoneHandler provisions (or retrieves) a wallet for the phone number in the query.
func (s *Server) walletPhoneHandler(rw http.ResponseWriter, r *http.Request) {
	address, err := s.prov.ImportPhone(r.Context(), r.URL.Query().Get("phoneNumber"))
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	s.respond(rw, http.StatusOK, map[string]string{"walletAddress": address})
}

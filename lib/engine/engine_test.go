package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"

	"github.com/corralhq/corral/lib/apierr"
)

func domainFixture() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{Name: "Corral", Version: "1"}
}

// mockStatus serves the status endpoint with a scripted sequence, repeating the last entry, and counts polls.
type mockStatus struct {
	mu    sync.Mutex
	seq   []map[string]string
	polls int
}

func (m *mockStatus) handler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.polls++

	body := m.seq[0]
	if len(m.seq) > 1 {
		m.seq = m.seq[1:]
	}

	json.NewEncoder(w).Encode(map[string]interface{}{"result": body})
}

func newTestEngine(t *testing.T, h http.HandlerFunc) *Engine {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	e := New(srv.URL, "token", "0x9fD042a18E90Ce326073fA70F111DC9D798D9a52")
	e.Interval = time.Millisecond

	return e
}

func TestRelay(t *testing.T) {
	var gotPath, gotAuth, gotWallet string

	var gotBody map[string]string

	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotWallet = r.Header.Get("X-Backend-Wallet-Address")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{"result": map[string]string{"queueId": "q-42"}})
	})

	queueID, err := e.Relay(context.Background(), TxRequest{
		To: "0xAb00000000000000000000000000000000000001", Data: "0xdeadbeef", Value: "0", ChainID: 8453,
	})
	require.NoError(t, err)
	require.Equal(t, "q-42", queueID)
	require.Equal(t, "/backend-wallet/8453/send-transaction", gotPath)
	require.Equal(t, "Bearer token", gotAuth)
	require.Equal(t, "0x9fD042a18E90Ce326073fA70F111DC9D798D9a52", gotWallet)
	require.Equal(t, "0xdeadbeef", gotBody["data"])
	require.Equal(t, "0", gotBody["value"])
}

func TestRelayRejected(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	_, err := e.Relay(context.Background(), TxRequest{To: "0x0", Data: "0x", Value: "0", ChainID: 8453})

	ae := apierr.As(err)
	require.NotNil(t, ae)
	require.Equal(t, apierr.CodeRelayFailed, ae.Code)
	require.Equal(t, http.StatusBadGateway, ae.Status)
}

func TestWaitMinedStopsOnMined(t *testing.T) {
	m := &mockStatus{seq: []map[string]string{
		{"status": "queued"},
		{"status": "sent"},
		{"status": "mined", "transactionHash": "0xabc"},
	}}
	e := newTestEngine(t, m.handler)

	out, err := e.WaitMined(context.Background(), "q-1", 10)
	require.NoError(t, err)
	require.Equal(t, StatusMined, out.Status)
	require.Equal(t, "0xabc", out.TransactionHash)
	// mined on the third poll: no further polls issued
	require.Equal(t, 3, m.polls)
}

func TestWaitMinedStopsOnErrored(t *testing.T) {
	m := &mockStatus{seq: []map[string]string{
		{"status": "queued"},
		{"status": "errored", "errorMessage": "execution reverted"},
	}}
	e := newTestEngine(t, m.handler)

	out, err := e.WaitMined(context.Background(), "q-1", 10)
	require.NoError(t, err)
	require.Equal(t, StatusErrored, out.Status)
	require.Equal(t, "execution reverted", out.Reason)
	require.Equal(t, 2, m.polls)

	ae := apierr.As(out.Err())
	require.NotNil(t, ae)
	require.Equal(t, apierr.CodeMiningErrored, ae.Code)
}

func TestWaitMinedErroredBeforeMined(t *testing.T) {
	// a response carrying both terminal states resolves to errored
	m := &mockStatus{seq: []map[string]string{
		{"status": "errored", "errorMessage": "reverted", "transactionHash": "0xabc"},
	}}
	e := newTestEngine(t, m.handler)

	out, err := e.WaitMined(context.Background(), "q-1", 10)
	require.NoError(t, err)
	require.Equal(t, StatusErrored, out.Status)
}

func TestWaitMinedExhaustsBudget(t *testing.T) {
	m := &mockStatus{seq: []map[string]string{{"status": "queued"}}}
	e := newTestEngine(t, m.handler)

	out, err := e.WaitMined(context.Background(), "q-7", 10)
	require.NoError(t, err)
	require.Equal(t, StatusTimedOut, out.Status)
	require.Equal(t, "queued", out.LastStatus)
	require.Equal(t, "q-7", out.QueueID)
	// exactly the poll budget, never more
	require.Equal(t, 10, m.polls)

	ae := apierr.As(out.Err())
	require.NotNil(t, ae)
	require.Equal(t, apierr.CodeMiningTimedOut, ae.Code)
	require.Equal(t, http.StatusGatewayTimeout, ae.Status)
}

func TestWaitMinedTransientErrors(t *testing.T) {
	var calls int

	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]string{"status": "mined", "transactionHash": "0xabc"},
		})
	})

	out, err := e.WaitMined(context.Background(), "q-1", 10)
	require.NoError(t, err)
	require.Equal(t, StatusMined, out.Status)
	require.Equal(t, 3, calls)
}

func TestWaitMinedFlatBody(t *testing.T) {
	// some engine builds reply without the result wrapper
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "mined", "transactionHash": "0xflat"})
	})

	out, err := e.WaitMined(context.Background(), "q-1", 10)
	require.NoError(t, err)
	require.Equal(t, StatusMined, out.Status)
	require.Equal(t, "0xflat", out.TransactionHash)
}

func TestWaitMinedContextCancelled(t *testing.T) {
	m := &mockStatus{seq: []map[string]string{{"status": "queued"}}}
	e := newTestEngine(t, m.handler)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.WaitMined(ctx, "q-1", 10)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, m.polls)
}

func TestReceipt(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/8453/tx-hash/0xabc", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"result": map[string]interface{}{
			"transactionHash": "0xabc",
			"blockHash":       "0xblock",
			"status":          1,
			"logs": []map[string]interface{}{
				{"address": "0x1", "topics": []string{"0xt0"}, "data": "0x", "logIndex": 0},
			},
		}})
	})

	rec, err := e.Receipt(context.Background(), 8453, "0xabc")
	require.NoError(t, err)
	require.Equal(t, "0xblock", rec.BlockHash)
	require.Len(t, rec.Logs, 1)
	require.Equal(t, "0xt0", rec.Logs[0].Topics[0])
}

func TestSignTypedData(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/backend-wallet/sign-typed-data", r.URL.Path)

		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Contains(t, body, "domain")
		require.Contains(t, body, "types")
		require.Contains(t, body, "value")

		json.NewEncoder(w).Encode(map[string]string{"result": "0xc0ffee"})
	})

	sig, err := e.SignTypedData(context.Background(), domainFixture(), nil, map[string]interface{}{"uid": "0x1"})
	require.NoError(t, err)
	require.Equal(t, "0xc0ffee", sig)
}

func TestSignTypedDataFailure(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "signer unavailable", http.StatusServiceUnavailable)
	})

	_, err := e.SignTypedData(context.Background(), domainFixture(), nil, nil)

	ae := apierr.As(err)
	require.NotNil(t, ae)
	require.Equal(t, apierr.CodeSigningFailed, ae.Code)
}

// Package engine implements the client to the external transaction-execution service. The engine holds the backend
// wallet keys; this client only submits prepared calls, polls mining status, fetches receipts and requests typed-data
// signatures. It never signs anything itself.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const requestTimeout = 15 * time.Second

// Engine is a client to one engine instance, acting under a fixed backend-wallet identity.
type Engine struct {
	url    string // instance base URL, no trailing slash
	token  string // bearer token
	wallet string // backend wallet address

	hc *http.Client

	// Interval is the pause between mining polls. One second unless overridden (tests shorten it).
	Interval time.Duration
}

// New returns an Engine client for the given instance, access token and backend wallet address.
func New(url, token, wallet string) *Engine {
	return &Engine{
		url:      url,
		token:    token,
		wallet:   wallet,
		hc:       &http.Client{Timeout: requestTimeout},
		Interval: time.Second,
	}
}

// Wallet returns the backend wallet address this client acts under.
func (e *Engine) Wallet() string {
	return e.wallet
}

// do issues an authenticated request to the engine and decodes the JSON response into out when the status is 2xx.
// Non-2xx responses are returned as errors carrying the HTTP status text.
func (e *Engine) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		pl, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding engine request: %w", err)
		}
		rdr = bytes.NewReader(pl)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.url+path, rdr)
	if err != nil {
		return fmt.Errorf("building engine request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("X-Backend-Wallet-Address", e.wallet)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.hc.Do(req)
	if err != nil {
		return fmt.Errorf("engine request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{status: resp.StatusCode, statusText: resp.Status}
	}
	if out != nil {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding engine response: %w", err)
		}
	}
	return nil
}

// statusError reports a non-2xx engine response.
type statusError struct {
	status     int
	statusText string
}

func (s *statusError) Error() string {
	return fmt.Sprintf("engine returned %s", s.statusText)
}

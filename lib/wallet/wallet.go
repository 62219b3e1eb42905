// Package wallet provisions custodial wallets for users identified by phone number through the wallet provider's
// user-import API.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/corralhq/corral/lib/apierr"
)

// e164 matches a plus sign, a non-zero country code digit and up to 14 more digits.
var e164 = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ValidE164 reports whether phone is a well-formed E.164 number.
func ValidE164(phone string) bool {
	return e164.MatchString(phone)
}

// Provisioner creates or retrieves wallets keyed by a user's phone number.
type Provisioner struct {
	url    string
	appID  string
	secret string
	hc     *http.Client
}

// New returns a Provisioner talking to the provider instance at url with the given application credentials.
func New(url, appID, secret string) *Provisioner {
	return &Provisioner{
		url:    url,
		appID:  appID,
		secret: secret,
		hc:     &http.Client{Timeout: 30 * time.Second},
	}
}

type importRequest struct {
	LinkedAccounts       []linkedAccount `json:"linked_accounts"`
	CreateEthereumWallet bool            `json:"create_ethereum_wallet"`
}

type linkedAccount struct {
	Type    string `json:"type"`
	Number  string `json:"number,omitempty"`
	Address string `json:"address,omitempty"`
}

// ImportPhone registers the phone number with the provider and returns the address of its ethereum wallet. The call
// is idempotent on the provider side; a number registered earlier returns its existing wallet.
func (p *Provisioner) ImportPhone(ctx context.Context, phone string) (string, error) {
	if !ValidE164(phone) {
		return "", apierr.Validation("Invalid E164 phone number format", map[string]interface{}{
			"expectedFormat": "E164 phone number",
			"receivedValue":  phone,
		})
	}

	body, err := json.Marshal(importRequest{
		LinkedAccounts:       []linkedAccount{{Type: "phone", Number: phone}},
		CreateEthereumWallet: true,
	})
	if err != nil {
		return "", apierr.Internal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/api/v1/users", bytes.NewReader(body))
	if err != nil {
		return "", apierr.Internal(err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("privy-app-id", p.appID)
	req.SetBasicAuth(p.appID, p.secret)

	res, err := p.hc.Do(req)
	if err != nil {
		return "", apierr.Internal(fmt.Errorf("wallet provider unreachable: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return "", apierr.Internal(fmt.Errorf("wallet provider returned %s", res.Status))
	}

	var user struct {
		LinkedAccounts []linkedAccount `json:"linked_accounts"`
	}
	if err := json.NewDecoder(res.Body).Decode(&user); err != nil {
		return "", apierr.Internal(fmt.Errorf("cannot decode wallet provider response: %w", err))
	}

	for _, a := range user.LinkedAccounts {
		if a.Type == "wallet" && a.Address != "" {
			return a.Address, nil
		}
	}

	return "", apierr.Internal(fmt.Errorf("wallet provider response carries no wallet for %s", phone))
}

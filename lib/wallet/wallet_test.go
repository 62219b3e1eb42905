package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corralhq/corral/lib/apierr"
)

func TestValidE164(t *testing.T) {
	cases := []struct {
		phone string
		ok    bool
	}{
		{"+14155552671", true},
		{"+442071838750", true},
		{"+12", true},
		{"+123456789012345", true},
		{"", false},
		{"14155552671", false},
		{"+04155552671", false},
		{"+1415555a671", false},
		{"+1234567890123456", false},
	}

	for _, c := range cases {
		require.Equal(t, c.ok, ValidE164(c.phone), "phone %q", c.phone)
	}
}

func TestImportPhone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/users", r.URL.Path)
		require.Equal(t, "app-1", r.Header.Get("privy-app-id"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "app-1", user)
		require.Equal(t, "secret-1", pass)

		var req importRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.CreateEthereumWallet)
		require.Equal(t, "+14155552671", req.LinkedAccounts[0].Number)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"linked_accounts": []map[string]string{
				{"type": "phone", "number": "+14155552671"},
				{"type": "wallet", "address": "0x9fD042a18E90Ce326073fA70F111DC9D798D9a52"},
			},
		})
	}))
	defer srv.Close()

	p := New(srv.URL, "app-1", "secret-1")

	addr, err := p.ImportPhone(context.Background(), "+14155552671")
	require.NoError(t, err)
	require.Equal(t, "0x9fD042a18E90Ce326073fA70F111DC9D798D9a52", addr)
}

func TestImportPhoneInvalidNumber(t *testing.T) {
	p := New("http://unused", "app-1", "secret-1")

	_, err := p.ImportPhone(context.Background(), "not-a-number")
	e := apierr.As(err)
	require.NotNil(t, e)
	require.Equal(t, apierr.CodeValidation, e.Code)
	require.Equal(t, http.StatusBadRequest, e.Status)
}

func TestImportPhoneProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := New(srv.URL, "app-1", "bad-secret")

	_, err := p.ImportPhone(context.Background(), "+14155552671")
	e := apierr.As(err)
	require.NotNil(t, e)
	require.Equal(t, apierr.CodeServer, e.Code)
}

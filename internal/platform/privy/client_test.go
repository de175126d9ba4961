package privy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/signbroker/internal/domain"
)

func testPayload() domain.TypedData {
	return domain.TypedData{
		Domain:      map[string]any{"name": "USD Coin", "chainId": float64(137)},
		Types:       map[string][]domain.TypedDataField{"Permit": {{Name: "owner", Type: "address"}}},
		PrimaryType: "Permit",
		Message:     map[string]any{"owner": "0x1111111111111111111111111111111111111111"},
	}
}

func TestSignTypedData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/wallets/wallet-ref-1/rpc", r.URL.Path)
		// Basic base64("app-id:app-secret")
		assert.Equal(t, "Basic YXBwLWlkOmFwcC1zZWNyZXQ=", r.Header.Get("Authorization"))
		assert.Equal(t, "app-id", r.Header.Get("privy-app-id"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		// eth_signTypedData_v4 keys are camelCase on the wire.
		assert.True(t, bytes.Contains(raw, []byte(`"primaryType"`)))
		assert.False(t, bytes.Contains(raw, []byte(`"primary_type"`)))

		var req rpcRequest
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Equal(t, signMethod, req.Method)
		assert.Equal(t, "Permit", req.Params.TypedData.PrimaryType)

		json.NewEncoder(w).Encode(rpcResponse{
			Method: signMethod,
			Data:   rpcData{Signature: "0xdeadbeef", Encoding: "hex"},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, AppID: "app-id", AppSecret: "app-secret"})

	sig, err := c.SignTypedData(context.Background(), "wallet-ref-1", testPayload())
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", sig)
}

func TestSignTypedDataAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(apiError{Error: "invalid app secret"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, AppID: "app-id", AppSecret: "wrong"})

	_, err := c.SignTypedData(context.Background(), "wallet-ref-1", testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid app secret")
	assert.Contains(t, err.Error(), "401")
}

func TestSignTypedDataEmptySignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rpcResponse{Method: signMethod})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, AppID: "app-id", AppSecret: "app-secret"})

	_, err := c.SignTypedData(context.Background(), "wallet-ref-1", testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no signature")
}

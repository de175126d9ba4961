// Package privy is the REST client for the Privy wallet API, the custodial
// signing provider. Keys live with Privy; this client only submits typed
// payloads against an opaque wallet id and receives signatures back.
package privy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/signbroker/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Config holds the Privy API credentials and endpoint.
type Config struct {
	BaseURL   string
	AppID     string
	AppSecret string
	Timeout   time.Duration
}

// Client implements domain.Signer against the Privy wallet RPC endpoint.
type Client struct {
	baseURL    string
	appID      string
	authHeader string
	httpClient *http.Client
}

// New creates a Privy Client. Requests authenticate with HTTP Basic auth
// over the app id and secret, plus the privy-app-id header.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	creds := base64.StdEncoding.EncodeToString([]byte(cfg.AppID + ":" + cfg.AppSecret))

	return &Client{
		baseURL:    cfg.BaseURL,
		appID:      cfg.AppID,
		authHeader: "Basic " + creds,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SignTypedData submits an EIP-712 payload for the wallet identified by
// walletRef and returns the hex-encoded signature.
func (c *Client) SignTypedData(ctx context.Context, walletRef string, payload domain.TypedData) (string, error) {
	body := rpcRequest{
		Method: signMethod,
		Params: rpcParams{TypedData: payload},
	}

	path := fmt.Sprintf("/v1/wallets/%s/rpc", walletRef)
	respBody, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", fmt.Errorf("privy: sign typed data: %w", err)
	}

	var result rpcResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("privy: decode sign response: %w", err)
	}
	if result.Data.Signature == "" {
		return "", fmt.Errorf("privy: sign response carried no signature")
	}

	return result.Data.Signature, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("privy-app-id", c.appID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to errors, surfacing the API's
// error message when one is present.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("status %d: %s", statusCode, apiErr.Error)
	}

	snippet := body
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	return fmt.Errorf("status %d: %s", statusCode, string(snippet))
}

// Compile-time interface check.
var _ domain.Signer = (*Client)(nil)

// Package guardianrpc is a thin wrapper around a federation guardian's
// JSON-RPC endpoint: session fetch, status, and client-config fetch.
package guardianrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotReady is returned by FetchSession when the requested session has
// not yet been agreed upon by the federation.
var ErrNotReady = errors.New("guardianrpc: session not ready")

// Config configures a single-peer client.
type Config struct {
	BaseURL    string
	PeerIndex  int
	Timeout    time.Duration
	LongPoll   time.Duration // max time FetchSession may block waiting for NotReady -> ready
}

// Client talks to exactly one guardian peer.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient returns a client for a single guardian peer.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LongPoll == 0 {
		cfg.LongPoll = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call performs a single JSON-RPC request/response round trip over HTTP POST.
func (c *Client) call(ctx context.Context, method string, params []interface{}, timeout time.Duration) (json.RawMessage, error) {
	reqBody, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("guardianrpc: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("guardianrpc: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := c.httpClient
	if timeout > 0 && timeout != c.cfg.Timeout {
		client = &http.Client{Timeout: timeout}
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("guardianrpc: %s: http request: %w", method, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("guardianrpc: %s: read body: %w", method, err)
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("guardianrpc: %s: unmarshal rpc response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("guardianrpc: %s: %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

// FetchSession returns the raw session blob for index n. If the federation
// has not yet agreed on session n, it returns ErrNotReady rather than
// blocking indefinitely; it may long-poll up to cfg.LongPoll before giving up.
func (c *Client) FetchSession(ctx context.Context, sessionIndex uint64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LongPoll)
	defer cancel()

	raw, err := c.call(ctx, "fetch_session", []interface{}{sessionIndex}, c.cfg.LongPoll)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Ready bool   `json:"ready"`
		Data  []byte `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("guardianrpc: fetch_session: unmarshal result: %w", err)
	}
	if !resp.Ready {
		return nil, ErrNotReady
	}
	return resp.Data, nil
}

// FetchClientConfig returns the federation's client config blob.
func (c *Client) FetchClientConfig(ctx context.Context) ([]byte, error) {
	raw, err := c.call(ctx, "fetch_client_config", nil, c.cfg.Timeout)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Config []byte `json:"config"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("guardianrpc: fetch_client_config: unmarshal result: %w", err)
	}
	return resp.Config, nil
}

// Status is the guardian's self-reported liveness snapshot.
type Status struct {
	BlockHeightEstimate int64 `json:"blockHeightEstimate"`
	SessionCount        int64 `json:"sessionCount"`
	PeerVisibleLiveness bool  `json:"peerVisibleLiveness"`
	UptimeSeconds       int64 `json:"uptimeSeconds"`
}

// Status queries the peer's status endpoint.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	raw, err := c.call(ctx, "status", nil, c.cfg.Timeout)
	if err != nil {
		return nil, err
	}
	var s Status
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("guardianrpc: status: unmarshal result: %w", err)
	}
	return &s, nil
}

// PeerIndex returns the guardian peer index this client is bound to.
func (c *Client) PeerIndex() int { return c.cfg.PeerIndex }

// BaseURL returns the guardian's base URL.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

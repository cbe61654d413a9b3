// Package explorer is a client for an external Bitcoin block explorer REST
// API: block timestamps by height, and the spending transaction (if any)
// of a given outpoint. Results are cacheable/immutable once observed.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/fedimint-observer/observer/internal/backoff"
)

// Config configures the explorer client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	CacheSize  int
}

// Client queries a block explorer for block timestamps and spending
// transactions. Callers are expected to run it off the ingestion critical
// path: operations may block for seconds.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu    sync.Mutex
	times *blockTimeLRU
}

// NewClient builds an explorer client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		times:      newBlockTimeLRU(cfg.CacheSize),
	}
}

// OutPoint identifies a previous transaction output.
type OutPoint struct {
	Txid string
	Vout uint32
}

// OnChainInput is one input of an on-chain transaction returned by the explorer.
type OnChainInput struct {
	PrevTxid string
	PrevVout uint32
}

// OnChainOutput is one output of an on-chain transaction returned by the explorer.
type OnChainOutput struct {
	Vout       uint32
	Address    string
	AmountSats int64
}

// Amount returns the output's value as a btcutil.Amount, so callers get
// BTC-denominated formatting (via String/ToBTC) for free instead of
// hand-rolling satoshi-to-BTC division.
func (o OnChainOutput) Amount() btcutil.Amount { return btcutil.Amount(o.AmountSats) }

// OnChainTx is the full on-chain transaction spending an outpoint.
type OnChainTx struct {
	Txid    string
	Inputs  []OnChainInput
	Outputs []OnChainOutput
}

// TotalOutputValue sums every output's amount as a btcutil.Amount.
func (tx *OnChainTx) TotalOutputValue() btcutil.Amount {
	var total btcutil.Amount
	for _, out := range tx.Outputs {
		total += out.Amount()
	}
	return total
}

// GetBlockTime returns the timestamp (unix seconds) of the given block
// height. Results are immutable and memoized in a bounded in-memory LRU.
func (c *Client) GetBlockTime(ctx context.Context, height int64) (int64, error) {
	c.mu.Lock()
	if t, ok := c.times.get(height); ok {
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	var result int64
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		t, err := c.fetchBlockTime(ctx, height)
		if err == nil {
			result = t
			lastErr = nil
			break
		}
		lastErr = err
		var perm *PermanentError
		if asPermanent(err, &perm) {
			return 0, err
		}
		if err := backoff.Sleep(ctx, backoff.Default, attempt); err != nil {
			return 0, err
		}
	}
	if lastErr != nil {
		return 0, lastErr
	}

	c.mu.Lock()
	c.times.put(height, result)
	c.mu.Unlock()
	return result, nil
}

func (c *Client) fetchBlockTime(ctx context.Context, height int64) (int64, error) {
	url := fmt.Sprintf("%s/block-height/%d/time", c.cfg.BaseURL, height)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &PermanentError{Op: "get_block_time", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &TransientError{Op: "get_block_time", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return 0, &TransientError{Op: "get_block_time", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return 0, &PermanentError{Op: "get_block_time", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var body struct {
		Time int64 `json:"time"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, &PermanentError{Op: "get_block_time", Err: err}
	}
	return body.Time, nil
}

// GetSpendingTx returns the on-chain transaction that spends the given
// outpoint, or nil if it is unspent.
func (c *Client) GetSpendingTx(ctx context.Context, op OutPoint) (*OnChainTx, error) {
	if _, err := chainhash.NewHashFromStr(op.Txid); err != nil {
		return nil, &PermanentError{Op: "get_spending_tx", Err: fmt.Errorf("malformed outpoint txid %q: %w", op.Txid, err)}
	}

	var result *OnChainTx
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		tx, err := c.fetchSpendingTx(ctx, op)
		if err == nil {
			result = tx
			lastErr = nil
			break
		}
		lastErr = err
		var perm *PermanentError
		if asPermanent(err, &perm) {
			return nil, err
		}
		if err := backoff.Sleep(ctx, backoff.Default, attempt); err != nil {
			return nil, err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return result, nil
}

func (c *Client) fetchSpendingTx(ctx context.Context, op OutPoint) (*OnChainTx, error) {
	url := fmt.Sprintf("%s/tx/%s/outspend/%d", c.cfg.BaseURL, op.Txid, op.Vout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &PermanentError{Op: "get_spending_tx", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Op: "get_spending_tx", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &TransientError{Op: "get_spending_tx", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return nil, &PermanentError{Op: "get_spending_tx", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var spend struct {
		Spent bool   `json:"spent"`
		Txid  string `json:"txid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&spend); err != nil {
		return nil, &PermanentError{Op: "get_spending_tx", Err: err}
	}
	if !spend.Spent {
		return nil, nil
	}

	return c.fetchTx(ctx, spend.Txid)
}

func (c *Client) fetchTx(ctx context.Context, txid string) (*OnChainTx, error) {
	url := fmt.Sprintf("%s/tx/%s", c.cfg.BaseURL, txid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &PermanentError{Op: "get_tx", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Op: "get_tx", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &TransientError{Op: "get_tx", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return nil, &PermanentError{Op: "get_tx", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var raw struct {
		Txid string `json:"txid"`
		Vin  []struct {
			Txid string `json:"txid"`
			Vout uint32 `json:"vout"`
		} `json:"vin"`
		Vout []struct {
			ScriptPubKeyAddress string  `json:"scriptpubkey_address"`
			Value               int64   `json:"value"` // sats
		} `json:"vout"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &PermanentError{Op: "get_tx", Err: err}
	}

	txidHash, err := chainhash.NewHashFromStr(raw.Txid)
	if err != nil {
		return nil, &PermanentError{Op: "get_tx", Err: fmt.Errorf("explorer returned malformed txid %q: %w", raw.Txid, err)}
	}

	tx := &OnChainTx{Txid: txidHash.String()}
	for _, in := range raw.Vin {
		tx.Inputs = append(tx.Inputs, OnChainInput{PrevTxid: in.Txid, PrevVout: in.Vout})
	}
	for i, out := range raw.Vout {
		tx.Outputs = append(tx.Outputs, OnChainOutput{
			Vout:       uint32(i),
			Address:    out.ScriptPubKeyAddress,
			AmountSats: out.Value,
		})
	}
	return tx, nil
}

func asPermanent(err error, target **PermanentError) bool {
	p, ok := err.(*PermanentError)
	if ok {
		*target = p
	}
	return ok
}

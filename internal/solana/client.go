// Package solana speaks JSON-RPC to Solana nodes through an ordered
// pool of rate-limited endpoints. Every call tries endpoints in
// preference order and fails over on transport or node errors.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentinelos/sentineld/internal/metrics"
)

// ErrUpstreamUnavailable is returned when every configured RPC endpoint
// failed to serve a request.
var ErrUpstreamUnavailable = errors.New("solana: all rpc endpoints unavailable")

// SOLMint is the mint address of wrapped SOL.
const SOLMint = "So11111111111111111111111111111111111111112"

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

const (
	confirmPollInterval = 2 * time.Second
	confirmMaxAttempts  = 30
	errorCooldown       = 30 * time.Second
)

// Client is a JSON-RPC client over the endpoint pool.
type Client struct {
	pool   *Pool
	logger zerolog.Logger
}

func NewClient(pool *Pool, logger zerolog.Logger) *Client {
	return &Client{
		pool:   pool,
		logger: logger.With().Str("component", "solana_rpc").Logger(),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// call performs a JSON-RPC request against the endpoints in preference
// order. An endpoint that errors is put in cooldown and the next one is
// tried; when all endpoints fail the last error is wrapped in
// ErrUpstreamUnavailable.
func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	var lastErr error
	for _, endpoint := range c.pool.endpoints {
		if !endpoint.available() {
			continue
		}

		if err := endpoint.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := c.callEndpoint(ctx, endpoint, method, body)
		if err == nil {
			metrics.RecordRPCRequest(method, "success")
			return result, nil
		}

		lastErr = err
		metrics.RecordRPCRequest(method, "error")
		c.pool.SetCooldown(endpoint.url, errorCooldown)
		c.logger.Warn().
			Err(err).
			Str("endpoint", endpoint.url).
			Str("method", method).
			Msg("RPC endpoint failed, trying next")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no endpoint available")
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, method, lastErr)
}

func (c *Client) callEndpoint(ctx context.Context, endpoint *Endpoint, method string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := endpoint.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	return rpcResp.Result, nil
}

// GetBalance returns the SOL balance of an address.
func (c *Client) GetBalance(ctx context.Context, address string) (float64, error) {
	result, err := c.call(ctx, "getBalance", []interface{}{
		address,
		map[string]string{"commitment": "confirmed"},
	})
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Value uint64 `json:"value"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse balance: %w", err)
	}

	return float64(parsed.Value) / LamportsPerSOL, nil
}

// TokenBalance describes the holdings of an owner for a single mint.
type TokenBalance struct {
	// Amount is the human-readable balance (raw / 10^decimals).
	Amount float64
	// RawAmount is the integer token amount as the chain reports it.
	RawAmount string
	Decimals  int
	// HasAccount is false when the owner holds no token account for the
	// mint at all, which is distinct from holding a zero balance.
	HasAccount bool
}

// GetTokenBalance returns the owner's balance for a given mint, summed
// across all token accounts.
func (c *Client) GetTokenBalance(ctx context.Context, owner, mint string) (TokenBalance, error) {
	result, err := c.call(ctx, "getTokenAccountsByOwner", []interface{}{
		owner,
		map[string]string{"mint": mint},
		map[string]string{"encoding": "jsonParsed"},
	})
	if err != nil {
		return TokenBalance{}, err
	}

	var parsed struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								Amount   string  `json:"amount"`
								Decimals int     `json:"decimals"`
								UIAmount float64 `json:"uiAmount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return TokenBalance{}, fmt.Errorf("failed to parse token accounts: %w", err)
	}

	if len(parsed.Value) == 0 {
		return TokenBalance{}, nil
	}

	balance := TokenBalance{HasAccount: true}
	for _, acct := range parsed.Value {
		ta := acct.Account.Data.Parsed.Info.TokenAmount
		balance.Amount += ta.UIAmount
		balance.Decimals = ta.Decimals
		if balance.RawAmount == "" {
			balance.RawAmount = ta.Amount
		}
	}

	return balance, nil
}

// SendTransaction submits a base64-encoded signed transaction and
// returns its signature.
func (c *Client) SendTransaction(ctx context.Context, base64Tx string) (string, error) {
	result, err := c.call(ctx, "sendTransaction", []interface{}{
		base64Tx,
		map[string]interface{}{
			"encoding":      "base64",
			"skipPreflight": false,
			"maxRetries":    3,
		},
	})
	if err != nil {
		return "", err
	}

	var signature string
	if err := json.Unmarshal(result, &signature); err != nil {
		return "", fmt.Errorf("failed to parse signature: %w", err)
	}

	return signature, nil
}

// ConfirmTransaction polls signature status until the transaction is
// confirmed, fails, or the polling budget is exhausted. It returns true
// only on confirmation; an exhausted budget returns false with no error.
func (c *Client) ConfirmTransaction(ctx context.Context, signature string) (bool, error) {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < confirmMaxAttempts; attempt++ {
		result, err := c.call(ctx, "getSignatureStatuses", []interface{}{
			[]string{signature},
		})
		if err != nil {
			return false, err
		}

		var parsed struct {
			Value []*struct {
				ConfirmationStatus string           `json:"confirmationStatus"`
				Err                *json.RawMessage `json:"err"`
			} `json:"value"`
		}
		if err := json.Unmarshal(result, &parsed); err != nil {
			return false, fmt.Errorf("failed to parse signature status: %w", err)
		}

		if len(parsed.Value) > 0 && parsed.Value[0] != nil {
			status := parsed.Value[0]
			if status.Err != nil {
				return false, fmt.Errorf("transaction failed on chain: %s", string(*status.Err))
			}
			if status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized" {
				return true, nil
			}
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}

	c.logger.Warn().Str("signature", signature).Msg("Confirmation polling budget exhausted")
	return false, nil
}

// Stats exposes pool statistics.
func (c *Client) Stats() map[string]interface{} {
	return c.pool.Stats()
}

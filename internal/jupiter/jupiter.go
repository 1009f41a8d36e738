// Package jupiter talks to the Jupiter swap aggregator: quotes, swap
// transaction assembly, and spot prices.
package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentinelos/sentineld/internal/metrics"
	"github.com/sentinelos/sentineld/internal/utils"
)

// ErrQuoteUnavailable is returned when the aggregator cannot produce a
// quote for the requested pair and amount.
var ErrQuoteUnavailable = errors.New("jupiter: quote unavailable")

// ErrTransactionBuildFailed is returned when the aggregator fails to
// assemble a swap transaction from a quote.
var ErrTransactionBuildFailed = errors.New("jupiter: swap transaction build failed")

// DefaultSlippageBps is applied when the caller does not specify
// slippage tolerance.
const DefaultSlippageBps = 50

const priorityFeeLamports = 5_000_000

// Token describes a tradable token.
type Token struct {
	Symbol   string `json:"symbol"`
	Mint     string `json:"mint"`
	Decimals int    `json:"decimals"`
	Name     string `json:"name"`
}

// PopularTokens is the curated list served when no discovery data is
// requested. SOL must stay first; callers use it as the default input.
var PopularTokens = []Token{
	{Symbol: "SOL", Mint: "So11111111111111111111111111111111111111112", Decimals: 9, Name: "Solana"},
	{Symbol: "USDC", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6, Name: "USD Coin"},
	{Symbol: "USDT", Mint: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6, Name: "Tether USD"},
	{Symbol: "BONK", Mint: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Decimals: 5, Name: "Bonk"},
	{Symbol: "JUP", Mint: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Decimals: 6, Name: "Jupiter"},
	{Symbol: "RAY", Mint: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", Decimals: 6, Name: "Raydium"},
	{Symbol: "ORCA", Mint: "orcaEKTdK7LKz57vaAYr9QeNsVEPfiu6QeMU1kektZE", Decimals: 6, Name: "Orca"},
}

// Quote is an aggregator quote. Raw preserves the exact quote body,
// which must be echoed verbatim when requesting the swap transaction.
type Quote struct {
	InputMint            string `json:"inputMint"`
	InAmount             string `json:"inAmount"`
	OutputMint           string `json:"outputMint"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	SwapMode             string `json:"swapMode"`
	SlippageBps          int    `json:"slippageBps"`
	PriceImpactPct       string `json:"priceImpactPct"`

	Raw json.RawMessage `json:"-"`
}

// Client calls the Jupiter swap and price APIs.
type Client struct {
	swap   *utils.HTTPClient
	price  *utils.HTTPClient
	logger zerolog.Logger
}

func NewClient(swapBaseURL, priceBaseURL string, logger zerolog.Logger) *Client {
	return &Client{
		swap: utils.NewHTTPClient(
			utils.WithBaseURL(swapBaseURL),
			utils.WithTimeout(15*time.Second),
		),
		price: utils.NewHTTPClient(
			utils.WithBaseURL(priceBaseURL),
			utils.WithTimeout(10*time.Second),
			utils.WithRetries(2, 300*time.Millisecond),
		),
		logger: logger.With().Str("component", "jupiter").Logger(),
	}
}

// GetQuote fetches a swap quote for amount raw units of inputMint into
// outputMint. slippageBps <= 0 falls back to DefaultSlippageBps.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint, amount string, slippageBps int) (*Quote, error) {
	if slippageBps <= 0 {
		slippageBps = DefaultSlippageBps
	}

	start := time.Now()
	resp, err := c.swap.Get(ctx, "/quote", map[string]string{
		"inputMint":   inputMint,
		"outputMint":  outputMint,
		"amount":      amount,
		"slippageBps": strconv.Itoa(slippageBps),
	})
	metrics.RecordQuoteLatency(time.Since(start).Seconds())
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("input_mint", inputMint).
			Str("output_mint", outputMint).
			Msg("Quote request failed")
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}

	var quote Quote
	if err := resp.DecodeJSON(&quote); err != nil {
		return nil, fmt.Errorf("%w: malformed quote: %v", ErrQuoteUnavailable, err)
	}
	if quote.OutAmount == "" {
		return nil, fmt.Errorf("%w: empty quote", ErrQuoteUnavailable)
	}
	quote.Raw = json.RawMessage(resp.Body)

	return &quote, nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports int             `json:"prioritizationFeeLamports"`
}

// SwapTransaction is the assembled, unsigned transaction to be signed
// and submitted by the caller.
type SwapTransaction struct {
	// SwapTransaction is the base64-encoded unsigned transaction.
	SwapTransaction           string `json:"swapTransaction"`
	LastValidBlockHeight      uint64 `json:"lastValidBlockHeight"`
	PrioritizationFeeLamports int    `json:"prioritizationFeeLamports"`
}

// BuildSwapTransaction asks the aggregator to assemble the swap
// transaction for a previously fetched quote.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string) (*SwapTransaction, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return nil, fmt.Errorf("%w: missing quote", ErrTransactionBuildFailed)
	}

	resp, err := c.swap.Post(ctx, "/swap", swapRequest{
		QuoteResponse:             quote.Raw,
		UserPublicKey:             userPublicKey,
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: priorityFeeLamports,
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("Swap transaction build failed")
		return nil, fmt.Errorf("%w: %v", ErrTransactionBuildFailed, err)
	}

	var tx SwapTransaction
	if err := resp.DecodeJSON(&tx); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrTransactionBuildFailed, err)
	}
	if tx.SwapTransaction == "" {
		return nil, fmt.Errorf("%w: empty transaction", ErrTransactionBuildFailed)
	}

	return &tx, nil
}

// GetTokenPrice returns the USD price of a mint, or 0 when the price
// service has no answer. Price lookups are best effort and never fail
// a trade.
func (c *Client) GetTokenPrice(ctx context.Context, mint string) float64 {
	resp, err := c.price.Get(ctx, "/price", map[string]string{"ids": mint})
	if err != nil {
		c.logger.Debug().Err(err).Str("mint", mint).Msg("Price lookup failed")
		return 0
	}

	var parsed struct {
		Data map[string]struct {
			Price float64 `json:"price"`
		} `json:"data"`
	}
	if err := resp.DecodeJSON(&parsed); err != nil {
		return 0
	}

	return parsed.Data[mint].Price
}

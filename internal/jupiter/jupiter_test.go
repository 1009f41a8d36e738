package jupiter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quoteBody = `{
	"inputMint": "So11111111111111111111111111111111111111112",
	"inAmount": "100000000",
	"outputMint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"outAmount": "14500000",
	"otherAmountThreshold": "14427500",
	"swapMode": "ExactIn",
	"slippageBps": 50,
	"priceImpactPct": "0.01",
	"routePlan": [{"swapInfo": {"ammKey": "abc", "label": "Orca"}, "percent": 100}]
}`

func TestGetQuote(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quote", r.URL.Path)
		gotQuery = map[string]string{}
		for k, v := range r.URL.Query() {
			gotQuery[k] = v[0]
		}
		w.Write([]byte(quoteBody))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, zerolog.Nop())
	quote, err := client.GetQuote(context.Background(), "So11111111111111111111111111111111111111112", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "100000000", 0)
	require.NoError(t, err)

	assert.Equal(t, "100000000", quote.InAmount)
	assert.Equal(t, "14500000", quote.OutAmount)
	assert.Equal(t, 50, quote.SlippageBps)

	// Default slippage applied when caller passes none
	assert.Equal(t, "50", gotQuery["slippageBps"])
	assert.Equal(t, "100000000", gotQuery["amount"])

	// Raw preserves the full quote body for the swap request
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(quote.Raw, &raw))
	assert.Contains(t, raw, "routePlan")
}

func TestGetQuoteUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no route"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, zerolog.Nop())
	_, err := client.GetQuote(context.Background(), "mintA", "mintB", "1", 50)
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
}

func TestBuildSwapTransaction(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/swap", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"swapTransaction":"c2lnbmVkLXR4","lastValidBlockHeight":12345,"prioritizationFeeLamports":5000000}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, zerolog.Nop())
	quote := &Quote{OutAmount: "14500000", Raw: json.RawMessage(quoteBody)}

	tx, err := client.BuildSwapTransaction(context.Background(), quote, "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")
	require.NoError(t, err)
	assert.Equal(t, "c2lnbmVkLXR4", tx.SwapTransaction)
	assert.Equal(t, uint64(12345), tx.LastValidBlockHeight)

	// The quote must be echoed verbatim with the fixed execution options
	assert.Equal(t, "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", gotBody["userPublicKey"])
	assert.Equal(t, true, gotBody["wrapAndUnwrapSol"])
	assert.Equal(t, true, gotBody["dynamicComputeUnitLimit"])
	assert.Equal(t, float64(5000000), gotBody["prioritizationFeeLamports"])
	quoteEcho, ok := gotBody["quoteResponse"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, quoteEcho, "routePlan")
}

func TestBuildSwapTransactionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, zerolog.Nop())
	quote := &Quote{OutAmount: "1", Raw: json.RawMessage(`{}`)}

	_, err := client.BuildSwapTransaction(context.Background(), quote, "user")
	assert.ErrorIs(t, err, ErrTransactionBuildFailed)

	_, err = client.BuildSwapTransaction(context.Background(), nil, "user")
	assert.ErrorIs(t, err, ErrTransactionBuildFailed)
}

func TestGetTokenPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/price", r.URL.Path)
		w.Write([]byte(`{"data":{"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263":{"price":0.000025}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, zerolog.Nop())
	price := client.GetTokenPrice(context.Background(), "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263")
	assert.Equal(t, 0.000025, price)

	// Unknown mint resolves to zero, never an error
	price = client.GetTokenPrice(context.Background(), "UnknownMint")
	assert.Zero(t, price)
}

func TestPopularTokens(t *testing.T) {
	require.NotEmpty(t, PopularTokens)
	assert.Equal(t, "SOL", PopularTokens[0].Symbol)
	assert.Equal(t, "So11111111111111111111111111111111111111112", PopularTokens[0].Mint)
}

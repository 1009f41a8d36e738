package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelos/sentineld/internal/agent"
	"github.com/sentinelos/sentineld/internal/auth"
	"github.com/sentinelos/sentineld/internal/jupiter"
	"github.com/sentinelos/sentineld/internal/models"
	"github.com/sentinelos/sentineld/internal/session"
	solrpc "github.com/sentinelos/sentineld/internal/solana"
	"github.com/sentinelos/sentineld/internal/trader"
)

type fakeAuth struct {
	challenge string
	loginErr  error
	user      *models.User
}

func (f *fakeAuth) Challenge(ctx context.Context, walletAddress string) (string, error) {
	return f.challenge, nil
}

func (f *fakeAuth) Login(ctx context.Context, walletAddress, signature string) (*models.User, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.user, nil
}

type fakeSessions struct {
	token      string
	resolveErr error
	revoked    []string
}

func (f *fakeSessions) Create(ctx context.Context, userID uint) (string, error) {
	return f.token, nil
}

func (f *fakeSessions) Resolve(ctx context.Context, token string) (uint, error) {
	if f.resolveErr != nil {
		return 0, f.resolveErr
	}
	return 1, nil
}

func (f *fakeSessions) Revoke(ctx context.Context, token string) error {
	f.revoked = append(f.revoked, token)
	return nil
}

type fakeGateway struct {
	quote    *jupiter.Quote
	quoteErr error
	swapTx   *jupiter.SwapTransaction
	swapErr  error
	price    float64

	gotAmount   string
	gotSlippage int
}

func (f *fakeGateway) GetQuote(ctx context.Context, inputMint, outputMint, amount string, slippageBps int) (*jupiter.Quote, error) {
	f.gotAmount = amount
	f.gotSlippage = slippageBps
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.quote, nil
}

func (f *fakeGateway) BuildSwapTransaction(ctx context.Context, quote *jupiter.Quote, userPublicKey string) (*jupiter.SwapTransaction, error) {
	if f.swapErr != nil {
		return nil, f.swapErr
	}
	return f.swapTx, nil
}

func (f *fakeGateway) GetTokenPrice(ctx context.Context, mint string) float64 {
	return f.price
}

type fakeChain struct {
	balance float64
	err     error
}

func (f *fakeChain) GetBalance(ctx context.Context, address string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.balance, nil
}

func (f *fakeChain) Stats() map[string]interface{} {
	return map[string]interface{}{"healthy_endpoints": 2}
}

type fakeOracle struct {
	decision agent.Decision
	analysis map[string]interface{}
}

func (f *fakeOracle) GetDecision(ctx context.Context, a *models.Agent, marketData map[string]interface{}) agent.Decision {
	return f.decision
}

func (f *fakeOracle) AnalyzeMarketConditions(ctx context.Context, tokenSymbol string) map[string]interface{} {
	return f.analysis
}

type fakeHub struct {
	events []string
}

func (f *fakeHub) Broadcast(eventType string, data interface{}) {
	f.events = append(f.events, eventType)
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Auth == nil {
		deps.Auth = &fakeAuth{}
	}
	if deps.Sessions == nil {
		deps.Sessions = &fakeSessions{}
	}
	if deps.Gateway == nil {
		deps.Gateway = &fakeGateway{}
	}
	if deps.Chain == nil {
		deps.Chain = &fakeChain{}
	}
	if deps.Oracle == nil {
		deps.Oracle = &fakeOracle{}
	}
	return NewServer(ServerConfig{Port: 0}, deps, zerolog.Nop())
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return parsed
}

func TestHealthIncludesRPCStats(t *testing.T) {
	server := newTestServer(t, Deps{})

	rec := doJSON(t, server.Handler(), http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "sentineld", body["service"])
	rpc := body["rpc"].(map[string]interface{})
	assert.Equal(t, float64(2), rpc["healthy_endpoints"])
}

func TestAuthNonce(t *testing.T) {
	server := newTestServer(t, Deps{Auth: &fakeAuth{challenge: "sign this"}})

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/auth/nonce",
		map[string]string{"walletAddress": "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sign this", decodeBody(t, rec)["message"])
}

func TestAuthNonceRequiresWalletAddress(t *testing.T) {
	server := newTestServer(t, Deps{})

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/auth/nonce", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthVerifyIssuesToken(t *testing.T) {
	user := &models.User{WalletAddress: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin", Username: "anon"}
	user.ID = 7
	server := newTestServer(t, Deps{
		Auth:     &fakeAuth{user: user},
		Sessions: &fakeSessions{token: "tok123"},
	})

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/auth/verify",
		map[string]string{"walletAddress": user.WalletAddress, "signature": "sig"})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "tok123", body["token"])
	assert.Equal(t, float64(7), body["user"].(map[string]interface{})["id"])
}

func TestAuthVerifyBadSignature(t *testing.T) {
	server := newTestServer(t, Deps{Auth: &fakeAuth{loginErr: auth.ErrInvalidSignature}})

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/auth/verify",
		map[string]string{"walletAddress": "addr", "signature": "bad"})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication failed", decodeBody(t, rec)["error"])
}

func TestRequireAuthWithoutToken(t *testing.T) {
	server := newTestServer(t, Deps{})

	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/auth/me", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthExpiredSession(t *testing.T) {
	server := newTestServer(t, Deps{Sessions: &fakeSessions{resolveErr: session.ErrNotFound}})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authenticated", decodeBody(t, rec)["error"])
}

func TestWalletBalance(t *testing.T) {
	server := newTestServer(t, Deps{Chain: &fakeChain{balance: 2.5}})

	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/wallet/balance/someaddress", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "someaddress", body["address"])
	assert.Equal(t, 2.5, body["balance"])
}

func TestWalletBalanceUpstreamDown(t *testing.T) {
	server := newTestServer(t, Deps{Chain: &fakeChain{err: fmt.Errorf("%w: all dead", solrpc.ErrUpstreamUnavailable)}})

	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/wallet/balance/someaddress", nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "All RPC endpoints unavailable", decodeBody(t, rec)["error"])
}

func TestSwapTokensListsCuratedSet(t *testing.T) {
	server := newTestServer(t, Deps{})

	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/swap/tokens", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var tokens []jupiter.Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	require.Len(t, tokens, 7)
	assert.Equal(t, "SOL", tokens[0].Symbol)
}

func TestSwapPrice(t *testing.T) {
	server := newTestServer(t, Deps{Gateway: &fakeGateway{price: 1.23}})

	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/swap/price/somemint", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "somemint", body["mint"])
	assert.Equal(t, 1.23, body["price"])
}

func TestSwapQuoteValidation(t *testing.T) {
	server := newTestServer(t, Deps{})

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/swap/quote",
		map[string]string{"inputMint": "a"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields: inputMint, outputMint, amount", decodeBody(t, rec)["error"])
}

func TestSwapQuoteEchoesRawBody(t *testing.T) {
	raw := json.RawMessage(`{"inputMint":"a","outputMint":"b","outAmount":"999","routePlan":[]}`)
	gateway := &fakeGateway{quote: &jupiter.Quote{OutAmount: "999", Raw: raw}}
	hub := &fakeHub{}
	server := newTestServer(t, Deps{Gateway: gateway, Hub: hub})

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/swap/quote", map[string]interface{}{
		"inputMint":  "a",
		"outputMint": "b",
		"amount":     1000000,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())
	assert.Equal(t, "1000000", gateway.gotAmount)
	assert.Contains(t, hub.events, "swap_quote")
}

func TestSwapQuoteAcceptsStringAmount(t *testing.T) {
	gateway := &fakeGateway{quote: &jupiter.Quote{OutAmount: "1", Raw: json.RawMessage(`{}`)}}
	server := newTestServer(t, Deps{Gateway: gateway})

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/swap/quote", map[string]interface{}{
		"inputMint":  "a",
		"outputMint": "b",
		"amount":     "42",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", gateway.gotAmount)
}

func TestSwapQuoteUpstreamFailure(t *testing.T) {
	server := newTestServer(t, Deps{Gateway: &fakeGateway{quoteErr: jupiter.ErrQuoteUnavailable}})

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/swap/quote", map[string]interface{}{
		"inputMint":  "a",
		"outputMint": "b",
		"amount":     "42",
	})

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Failed to get swap quote", decodeBody(t, rec)["error"])
}

func TestSwapTransaction(t *testing.T) {
	hub := &fakeHub{}
	server := newTestServer(t, Deps{
		Gateway: &fakeGateway{swapTx: &jupiter.SwapTransaction{
			SwapTransaction:      "base64tx",
			LastValidBlockHeight: 123,
		}},
		Hub: hub,
	})

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/swap/transaction", map[string]interface{}{
		"quoteResponse": map[string]string{"outAmount": "1"},
		"userPublicKey": "pubkey",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "base64tx", body["swapTransaction"])
	assert.Contains(t, hub.events, "swap_transaction_created")
}

func TestSwapTransactionValidation(t *testing.T) {
	server := newTestServer(t, Deps{})

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/swap/transaction",
		map[string]string{"userPublicKey": "pubkey"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarketAnalyzeDefaultsToSOL(t *testing.T) {
	oracle := &fakeOracle{analysis: map[string]interface{}{"symbol": "SOL", "trend": "neutral"}}
	server := newTestServer(t, Deps{Oracle: oracle})

	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/market/analyze", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SOL", decodeBody(t, rec)["symbol"])
}

func TestMapErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid signature", auth.ErrInvalidSignature, http.StatusUnauthorized},
		{"session missing", session.ErrNotFound, http.StatusUnauthorized},
		{"quote unavailable", jupiter.ErrQuoteUnavailable, http.StatusBadGateway},
		{"build failed", jupiter.ErrTransactionBuildFailed, http.StatusBadGateway},
		{"submission failed", trader.ErrSubmissionFailed, http.StatusBadGateway},
		{"insufficient balance", trader.ErrInsufficientBalance, http.StatusBadRequest},
		{"rpc down", solrpc.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := mapError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.NotEmpty(t, message)
			if tt.name == "unknown" {
				assert.Equal(t, "An internal error occurred", message)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	server := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodOptions, "/api/swap/tokens", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

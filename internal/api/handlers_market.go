package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/sentinelos/sentineld/internal/jupiter"
	"github.com/sentinelos/sentineld/internal/models"
)

// handleDiscoveredTokens serves the latest discovery snapshots.
func (s *Server) handleDiscoveredTokens(w http.ResponseWriter, r *http.Request) {
	tokens := []models.DiscoveredToken{}
	if err := s.db.WithContext(r.Context()).
		Order("created_at DESC").
		Limit(queryLimit(r, 50)).
		Find(&tokens).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	respondJSON(w, http.StatusOK, tokens)
}

// handleTokensRefresh forces an immediate discovery cycle.
func (s *Server) handleTokensRefresh(w http.ResponseWriter, r *http.Request) {
	count, err := s.ingestor.RunOnce(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "Token refresh failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"ingestedCount": count,
	})
}

// handleMarketAnalyze returns the oracle's read on a token.
func (s *Server) handleMarketAnalyze(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		symbol = "SOL"
	}

	analysis := s.oracle.AnalyzeMarketConditions(r.Context(), symbol)
	respondJSON(w, http.StatusOK, analysis)
}

// handleSwapTokens serves the curated token list.
func (s *Server) handleSwapTokens(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, jupiter.PopularTokens)
}

// handleSwapPrice returns the USD price of a mint.
func (s *Server) handleSwapPrice(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]

	price := s.gateway.GetTokenPrice(r.Context(), mint)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"mint":  mint,
		"price": price,
	})
}

type swapQuoteRequest struct {
	InputMint   string          `json:"inputMint"`
	OutputMint  string          `json:"outputMint"`
	Amount      json.RawMessage `json:"amount"`
	SlippageBps int             `json:"slippageBps"`
}

// amountString accepts the amount as either a JSON number or string.
func (req *swapQuoteRequest) amountString() string {
	if len(req.Amount) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(req.Amount, &asString); err == nil {
		return asString
	}

	var asNumber float64
	if err := json.Unmarshal(req.Amount, &asNumber); err == nil {
		return strconv.FormatUint(uint64(asNumber), 10)
	}

	return ""
}

func (s *Server) handleSwapQuote(w http.ResponseWriter, r *http.Request) {
	var req swapQuoteRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount := req.amountString()
	if req.InputMint == "" || req.OutputMint == "" || amount == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields: inputMint, outputMint, amount")
		return
	}

	quote, err := s.gateway.GetQuote(r.Context(), req.InputMint, req.OutputMint, amount, req.SlippageBps)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	s.broadcast("swap_quote", map[string]interface{}{
		"inputMint":  req.InputMint,
		"outputMint": req.OutputMint,
		"outAmount":  quote.OutAmount,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(quote.Raw)
}

type swapTransactionRequest struct {
	QuoteResponse json.RawMessage `json:"quoteResponse"`
	UserPublicKey string          `json:"userPublicKey"`
}

func (s *Server) handleSwapTransaction(w http.ResponseWriter, r *http.Request) {
	var req swapTransactionRequest
	if err := parseJSONBody(r, &req); err != nil || len(req.QuoteResponse) == 0 || req.UserPublicKey == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields: quoteResponse, userPublicKey")
		return
	}

	quote := &jupiter.Quote{Raw: req.QuoteResponse}
	tx, err := s.gateway.BuildSwapTransaction(r.Context(), quote, req.UserPublicKey)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	s.broadcast("swap_transaction_created", map[string]interface{}{
		"userPublicKey": req.UserPublicKey,
	})

	respondJSON(w, http.StatusOK, tx)
}

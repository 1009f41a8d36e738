package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sentinelos/sentineld/internal/auth"
	"github.com/sentinelos/sentineld/internal/jupiter"
	"github.com/sentinelos/sentineld/internal/keyvault"
	"github.com/sentinelos/sentineld/internal/session"
	solrpc "github.com/sentinelos/sentineld/internal/solana"
	"github.com/sentinelos/sentineld/internal/trader"
	"github.com/sentinelos/sentineld/internal/wallet"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// parseJSONBody parses a JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// mapError translates domain errors into HTTP status codes. Unknown
// errors collapse to 500 with a generic message so internals never
// leak.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidSignature), errors.Is(err, auth.ErrUnknownWallet):
		return http.StatusUnauthorized, "Authentication failed"
	case errors.Is(err, session.ErrNotFound):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, wallet.ErrNoWallet):
		return http.StatusNotFound, "No managed wallet found"
	case errors.Is(err, trader.ErrInsufficientBalance):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, trader.ErrNoTokenAccount), errors.Is(err, trader.ErrZeroBalance):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, jupiter.ErrQuoteUnavailable):
		return http.StatusBadGateway, "Failed to get swap quote"
	case errors.Is(err, jupiter.ErrTransactionBuildFailed):
		return http.StatusBadGateway, "Failed to create swap transaction"
	case errors.Is(err, trader.ErrSubmissionFailed):
		return http.StatusBadGateway, "Transaction submission failed"
	case errors.Is(err, solrpc.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "All RPC endpoints unavailable"
	case errors.Is(err, keyvault.ErrDecryption):
		return http.StatusInternalServerError, "Wallet key unavailable"
	default:
		return http.StatusInternalServerError, "An internal error occurred"
	}
}

// respondMappedError maps a domain error and writes the response.
func respondMappedError(w http.ResponseWriter, err error) {
	status, message := mapError(err)
	respondError(w, status, message)
}

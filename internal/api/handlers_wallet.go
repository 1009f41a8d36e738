package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/sentinelos/sentineld/internal/models"
	solrpc "github.com/sentinelos/sentineld/internal/solana"
)

func walletPayload(w *models.ManagedWallet) map[string]interface{} {
	return map[string]interface{}{
		"id":        w.ID,
		"publicKey": w.PublicKey,
		"balance":   w.Balance,
		"status":    w.Status,
	}
}

// handleManagedWallet returns the user's custodial wallet, refreshing
// the cached balance from chain when the RPC pool cooperates.
func (s *Server) handleManagedWallet(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	// Refresh is best-effort; a stale cached balance beats a 503.
	if _, err := s.wallets.RefreshBalance(r.Context(), user.ID); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", user.ID).Msg("Balance refresh failed")
	}

	managed, err := s.wallets.Get(r.Context(), user.ID)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, walletPayload(managed))
}

// handleWalletTransactions lists the user's deposit/withdrawal history.
func (s *Server) handleWalletTransactions(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	txs, err := s.wallets.Transactions(r.Context(), user.ID, limit)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, txs)
}

type depositRequest struct {
	Amount float64 `json:"amount"`
	TxHash string  `json:"txHash"`
}

// handleWalletDeposit records an intended deposit and returns the
// custodial address to send funds to.
func (s *Server) handleWalletDeposit(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req depositRequest
	if err := parseJSONBody(r, &req); err != nil || req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "A positive amount is required")
		return
	}

	managed, err := s.wallets.Get(r.Context(), user.ID)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	status := models.WalletTxStatusAwaitingDeposit
	if req.TxHash != "" {
		status = models.WalletTxStatusPending
	}

	tx := &models.WalletTransaction{
		UserID:      user.ID,
		WalletID:    managed.ID,
		TxHash:      req.TxHash,
		TxType:      "deposit",
		Direction:   "in",
		Amount:      req.Amount,
		TokenMint:   solrpc.SOLMint,
		TokenSymbol: "SOL",
		Status:      status,
	}
	if err := s.wallets.RecordTransaction(r.Context(), tx); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to record deposit")
		return
	}

	s.broadcast("deposit_initiated", map[string]interface{}{
		"transactionId": tx.ID,
		"amount":        req.Amount,
		"status":        status,
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transactionId":  tx.ID,
		"depositAddress": managed.PublicKey,
		"amount":         req.Amount,
		"status":         status,
		"message":        fmt.Sprintf("Send %g SOL to %s to complete deposit", req.Amount, managed.PublicKey),
	})
}

type depositConfirmRequest struct {
	TransactionID uint   `json:"transactionId"`
	TxHash        string `json:"txHash"`
}

// handleWalletDepositConfirm marks a deposit confirmed and re-reads the
// on-chain balance.
func (s *Server) handleWalletDepositConfirm(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req depositConfirmRequest
	if err := parseJSONBody(r, &req); err != nil || req.TransactionID == 0 {
		respondError(w, http.StatusBadRequest, "Transaction ID required")
		return
	}

	var tx models.WalletTransaction
	if err := s.db.WithContext(r.Context()).
		Where("id = ? AND user_id = ?", req.TransactionID, user.ID).
		First(&tx).Error; err != nil {
		respondError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	balance, err := s.wallets.RefreshBalance(r.Context(), user.ID)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	updates := map[string]interface{}{"status": models.WalletTxStatusConfirmed}
	if req.TxHash != "" {
		updates["tx_hash"] = req.TxHash
	}
	if err := s.db.WithContext(r.Context()).Model(&tx).Updates(updates).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to confirm deposit")
		return
	}

	s.broadcast("deposit_confirmed", map[string]interface{}{
		"transactionId": tx.ID,
		"balance":       balance,
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"balance": balance,
		"message": "Deposit confirmed",
	})
}

type withdrawRequest struct {
	Amount      float64 `json:"amount"`
	Destination string  `json:"destination"`
}

// handleWalletWithdraw records a withdrawal request. The destination
// defaults to the wallet address the user logged in with.
func (s *Server) handleWalletWithdraw(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req withdrawRequest
	if err := parseJSONBody(r, &req); err != nil || req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "A positive amount is required")
		return
	}

	managed, err := s.wallets.Get(r.Context(), user.ID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	if managed.Balance < req.Amount {
		respondError(w, http.StatusBadRequest, "Insufficient balance")
		return
	}

	destination := req.Destination
	if destination == "" {
		destination = user.WalletAddress
	}

	tx := &models.WalletTransaction{
		UserID:      user.ID,
		WalletID:    managed.ID,
		TxType:      "withdraw",
		Direction:   "out",
		Amount:      req.Amount,
		TokenMint:   solrpc.SOLMint,
		TokenSymbol: "SOL",
		Status:      models.WalletTxStatusPending,
	}
	if err := s.wallets.RecordTransaction(r.Context(), tx); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to record withdrawal")
		return
	}

	s.broadcast("withdraw_initiated", map[string]interface{}{
		"transactionId": tx.ID,
		"amount":        req.Amount,
		"destination":   destination,
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transactionId": tx.ID,
		"amount":        req.Amount,
		"destination":   destination,
		"status":        models.WalletTxStatusPending,
	})
}

// handleWalletBalance reads the live SOL balance of any address.
func (s *Server) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	balance, err := s.chain.GetBalance(r.Context(), address)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address": address,
		"balance": balance,
	})
}

// broadcast pushes an event to connected clients when a hub is wired.
func (s *Server) broadcast(eventType string, data interface{}) {
	if s.hub != nil {
		s.hub.Broadcast(eventType, data)
	}
}

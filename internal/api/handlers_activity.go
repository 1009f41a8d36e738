package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/sentinelos/sentineld/internal/models"
)

// userAgentIDs returns the IDs of every agent the user owns. Activity
// and transaction queries are scoped through these.
func (s *Server) userAgentIDs(r *http.Request) ([]uint, error) {
	user := currentUser(r)

	var ids []uint
	err := s.db.WithContext(r.Context()).
		Model(&models.Agent{}).
		Where("user_id = ?", user.ID).
		Pluck("id", &ids).Error
	return ids, err
}

// ownsAgent reports whether the authenticated user owns the agent.
func (s *Server) ownsAgent(r *http.Request, agentID uint) bool {
	var count int64
	s.db.WithContext(r.Context()).
		Model(&models.Agent{}).
		Where("id = ? AND user_id = ?", agentID, currentUser(r).ID).
		Count(&count)
	return count > 0
}

func queryLimit(r *http.Request, fallback int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.userAgentIDs(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	query := s.db.WithContext(r.Context()).Where("agent_id IN ?", ids)
	if raw := r.URL.Query().Get("agentId"); raw != "" {
		agentID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || !s.ownsAgent(r, uint(agentID)) {
			respondError(w, http.StatusNotFound, "Agent not found")
			return
		}
		query = query.Where("agent_id = ?", agentID)
	}

	txs := []models.Transaction{}
	if err := query.Order("created_at DESC").Limit(queryLimit(r, 100)).Find(&txs).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	respondJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	var tx models.Transaction
	if err := s.db.WithContext(r.Context()).First(&tx, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Transaction not found")
		} else {
			respondError(w, http.StatusInternalServerError, "An internal error occurred")
		}
		return
	}
	if !s.ownsAgent(r, tx.AgentID) {
		respondError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	respondJSON(w, http.StatusOK, tx)
}

type createTransactionRequest struct {
	AgentID     uint    `json:"agentId"`
	TxHash      string  `json:"txHash"`
	TxType      string  `json:"txType"`
	Amount      float64 `json:"amount"`
	TokenSymbol string  `json:"tokenSymbol"`
	Status      string  `json:"status"`
	FromAddress string  `json:"fromAddress"`
	ToAddress   string  `json:"toAddress"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := parseJSONBody(r, &req); err != nil || req.AgentID == 0 || req.TxType == "" {
		respondError(w, http.StatusBadRequest, "Invalid transaction data")
		return
	}
	if !s.ownsAgent(r, req.AgentID) {
		respondError(w, http.StatusNotFound, "Agent not found")
		return
	}

	tx := models.Transaction{
		AgentID:     req.AgentID,
		TxHash:      req.TxHash,
		TxType:      req.TxType,
		Amount:      req.Amount,
		TokenSymbol: req.TokenSymbol,
		Status:      req.Status,
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
	}
	if tx.TokenSymbol == "" {
		tx.TokenSymbol = "SOL"
	}
	if tx.Status == "" {
		tx.Status = "pending"
	}

	if err := s.db.WithContext(r.Context()).Create(&tx).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create transaction")
		return
	}

	s.db.WithContext(r.Context()).Model(&models.Agent{}).
		Where("id = ?", req.AgentID).
		Update("total_transactions", gorm.Expr("total_transactions + 1"))

	s.db.WithContext(r.Context()).Create(&models.ActivityLog{
		AgentID: req.AgentID,
		Action:  fmt.Sprintf("Transaction %s", req.TxType),
		Details: fmt.Sprintf("%g %s (%s)", tx.Amount, tx.TokenSymbol, tx.Status),
		Level:   models.LogLevelInfo,
	})

	s.broadcast("transaction_created", tx)
	respondJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleListActivityLogs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.userAgentIDs(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	query := s.db.WithContext(r.Context()).Where("agent_id IN ?", ids)
	if raw := r.URL.Query().Get("agentId"); raw != "" {
		agentID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || !s.ownsAgent(r, uint(agentID)) {
			respondError(w, http.StatusNotFound, "Agent not found")
			return
		}
		query = query.Where("agent_id = ?", agentID)
	}

	logs := []models.ActivityLog{}
	if err := query.Order("created_at DESC").Limit(queryLimit(r, 100)).Find(&logs).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	respondJSON(w, http.StatusOK, logs)
}

func (s *Server) handleRecentActivityLogs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.userAgentIDs(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	logs := []models.ActivityLog{}
	if err := s.db.WithContext(r.Context()).
		Where("agent_id IN ?", ids).
		Order("created_at DESC").
		Limit(queryLimit(r, 20)).
		Find(&logs).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	respondJSON(w, http.StatusOK, logs)
}

type createActivityLogRequest struct {
	AgentID uint   `json:"agentId"`
	Action  string `json:"action"`
	Details string `json:"details"`
	Level   string `json:"level"`
}

func (s *Server) handleCreateActivityLog(w http.ResponseWriter, r *http.Request) {
	var req createActivityLogRequest
	if err := parseJSONBody(r, &req); err != nil || req.AgentID == 0 || req.Action == "" {
		respondError(w, http.StatusBadRequest, "Invalid activity log data")
		return
	}
	if !s.ownsAgent(r, req.AgentID) {
		respondError(w, http.StatusNotFound, "Agent not found")
		return
	}

	entry := models.ActivityLog{
		AgentID: req.AgentID,
		Action:  req.Action,
		Details: req.Details,
		Level:   req.Level,
	}
	if entry.Level == "" {
		entry.Level = models.LogLevelInfo
	}

	if err := s.db.WithContext(r.Context()).Create(&entry).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create activity log")
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

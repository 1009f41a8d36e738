package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/sentinelos/sentineld/internal/models"
)

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	items := []models.WatchlistItem{}
	if err := s.db.WithContext(r.Context()).
		Where("user_id = ?", user.ID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	respondJSON(w, http.StatusOK, items)
}

type watchlistItemRequest struct {
	TokenMint        string   `json:"tokenMint"`
	Symbol           string   `json:"symbol"`
	Name             string   `json:"name"`
	TargetBuyPrice   *float64 `json:"targetBuyPrice"`
	TargetSellPrice  *float64 `json:"targetSellPrice"`
	AutoTradeEnabled *bool    `json:"autoTradeEnabled"`
	MaxBuyAmount     *float64 `json:"maxBuyAmount"`
	AlertsEnabled    *bool    `json:"alertsEnabled"`
	Notes            *string  `json:"notes"`
}

func (s *Server) handleAddWatchlistItem(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req watchlistItemRequest
	if err := parseJSONBody(r, &req); err != nil || req.TokenMint == "" {
		respondError(w, http.StatusBadRequest, "Token mint required")
		return
	}

	// Ownership always comes from the session, never the body.
	item := models.WatchlistItem{
		UserID:          user.ID,
		TokenMint:       req.TokenMint,
		Symbol:          req.Symbol,
		Name:            req.Name,
		TargetBuyPrice:  req.TargetBuyPrice,
		TargetSellPrice: req.TargetSellPrice,
		MaxBuyAmount:    0.1,
		AlertsEnabled:   true,
	}
	if req.AutoTradeEnabled != nil {
		item.AutoTradeEnabled = *req.AutoTradeEnabled
	}
	if req.MaxBuyAmount != nil {
		item.MaxBuyAmount = *req.MaxBuyAmount
	}
	if req.AlertsEnabled != nil {
		item.AlertsEnabled = *req.AlertsEnabled
	}
	if req.Notes != nil {
		item.Notes = *req.Notes
	}

	if err := s.db.WithContext(r.Context()).Create(&item).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to add watchlist item")
		return
	}

	s.broadcast("watchlist_added", item)
	respondJSON(w, http.StatusCreated, item)
}

// loadOwnedWatchlistItem fetches the item in the path, scoped to the
// authenticated user. A nil return means the response is written.
func (s *Server) loadOwnedWatchlistItem(w http.ResponseWriter, r *http.Request) *models.WatchlistItem {
	user := currentUser(r)

	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid watchlist item ID")
		return nil
	}

	var item models.WatchlistItem
	if err := s.db.WithContext(r.Context()).
		Where("id = ? AND user_id = ?", id, user.ID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Watchlist item not found")
		} else {
			respondError(w, http.StatusInternalServerError, "An internal error occurred")
		}
		return nil
	}
	return &item
}

func (s *Server) handleUpdateWatchlistItem(w http.ResponseWriter, r *http.Request) {
	item := s.loadOwnedWatchlistItem(w, r)
	if item == nil {
		return
	}

	var req watchlistItemRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid watchlist data")
		return
	}

	updates := map[string]interface{}{}
	if req.Symbol != "" {
		updates["symbol"] = req.Symbol
	}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.TargetBuyPrice != nil {
		updates["target_buy_price"] = *req.TargetBuyPrice
	}
	if req.TargetSellPrice != nil {
		updates["target_sell_price"] = *req.TargetSellPrice
	}
	if req.AutoTradeEnabled != nil {
		updates["auto_trade_enabled"] = *req.AutoTradeEnabled
	}
	if req.MaxBuyAmount != nil {
		updates["max_buy_amount"] = *req.MaxBuyAmount
	}
	if req.AlertsEnabled != nil {
		updates["alerts_enabled"] = *req.AlertsEnabled
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(r.Context()).Model(item).Updates(updates).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update watchlist item")
			return
		}
	}

	respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteWatchlistItem(w http.ResponseWriter, r *http.Request) {
	item := s.loadOwnedWatchlistItem(w, r)
	if item == nil {
		return
	}

	if err := s.db.WithContext(r.Context()).Delete(item).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete watchlist item")
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// handleAutoExecute sweeps the user's watchlist against current market
// data and executes whatever triggers fire.
func (s *Server) handleAutoExecute(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	results, err := s.auto.ProcessAutoTrades(r.Context(), user.ID)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	s.broadcast("auto_trades_processed", map[string]interface{}{
		"userId": user.ID,
		"count":  len(results),
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"trades":  results,
	})
}

type tradeExecuteRequest struct {
	AgentID   uint    `json:"agentId"`
	TokenMint string  `json:"tokenMint"`
	Action    string  `json:"action"`
	Amount    float64 `json:"amount"`
}

// handleTradeExecute runs one manual trade through the executor.
func (s *Server) handleTradeExecute(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req tradeExecuteRequest
	if err := parseJSONBody(r, &req); err != nil || req.AgentID == 0 || req.TokenMint == "" || req.Action == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields: agentId, tokenMint, action")
		return
	}
	if req.Action != "buy" && req.Action != "sell" {
		respondError(w, http.StatusBadRequest, "Action must be buy or sell")
		return
	}

	var a models.Agent
	if err := s.db.WithContext(r.Context()).
		Where("id = ? AND user_id = ?", req.AgentID, user.ID).
		First(&a).Error; err != nil {
		respondError(w, http.StatusNotFound, "Agent not found")
		return
	}

	result, err := s.executor.Execute(r.Context(), &a, req.TokenMint, req.Action, req.Amount)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	s.broadcast("trade_executed", result)
	respondJSON(w, http.StatusOK, result)
}

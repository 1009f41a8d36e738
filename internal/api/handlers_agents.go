package api

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/sentinelos/sentineld/internal/jupiter"
	"github.com/sentinelos/sentineld/internal/models"
)

// loadOwnedAgent fetches the agent in the path, scoped to the
// authenticated user. A nil return means the response is written.
func (s *Server) loadOwnedAgent(w http.ResponseWriter, r *http.Request) *models.Agent {
	user := currentUser(r)

	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid agent ID")
		return nil
	}

	var a models.Agent
	if err := s.db.WithContext(r.Context()).
		Where("id = ? AND user_id = ?", id, user.ID).
		First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Agent not found")
		} else {
			respondError(w, http.StatusInternalServerError, "An internal error occurred")
		}
		return nil
	}
	return &a
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var agents []models.Agent
	if err := s.db.WithContext(r.Context()).
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Find(&agents).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	respondJSON(w, http.StatusOK, agents)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	a := s.loadOwnedAgent(w, r)
	if a == nil {
		return
	}
	respondJSON(w, http.StatusOK, a)
}

type createAgentRequest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	TaskType          string   `json:"taskType"`
	BudgetLimit       *float64 `json:"budgetLimit"`
	TargetTokens      string   `json:"targetTokens"`
	AutoTradeEnabled  bool     `json:"autoTradeEnabled"`
	MaxTradeAmount    *float64 `json:"maxTradeAmount"`
	StopLossPercent   *float64 `json:"stopLossPercent"`
	TakeProfitPercent *float64 `json:"takeProfitPercent"`
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req createAgentRequest
	if err := parseJSONBody(r, &req); err != nil || req.Name == "" || req.TaskType == "" {
		respondError(w, http.StatusBadRequest, "Invalid agent data")
		return
	}

	a := models.Agent{
		UserID:           user.ID,
		Name:             req.Name,
		Description:      req.Description,
		TaskType:         req.TaskType,
		Status:           models.AgentStatusIdle,
		TargetTokens:     req.TargetTokens,
		AutoTradeEnabled: req.AutoTradeEnabled,
	}
	if req.BudgetLimit != nil {
		a.BudgetLimit = *req.BudgetLimit
	} else {
		a.BudgetLimit = 1.0
	}
	if req.MaxTradeAmount != nil {
		a.MaxTradeAmount = *req.MaxTradeAmount
	} else {
		a.MaxTradeAmount = 0.1
	}
	if req.StopLossPercent != nil {
		a.StopLossPercent = *req.StopLossPercent
	} else {
		a.StopLossPercent = 10
	}
	if req.TakeProfitPercent != nil {
		a.TakeProfitPercent = *req.TakeProfitPercent
	} else {
		a.TakeProfitPercent = 20
	}

	if managed, err := s.wallets.Get(r.Context(), user.ID); err == nil {
		a.ManagedWalletID = &managed.ID
	}

	if err := s.db.WithContext(r.Context()).Create(&a).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create agent")
		return
	}

	s.db.WithContext(r.Context()).Create(&models.ActivityLog{
		AgentID: a.ID,
		Action:  "Agent deployed",
		Details: fmt.Sprintf("Agent %q created with task type %s", a.Name, a.TaskType),
		Level:   models.LogLevelSuccess,
	})

	s.broadcast("agent_created", a)
	respondJSON(w, http.StatusCreated, a)
}

type updateAgentRequest struct {
	Name              *string  `json:"name"`
	Description       *string  `json:"description"`
	Status            *string  `json:"status"`
	BudgetLimit       *float64 `json:"budgetLimit"`
	TargetTokens      *string  `json:"targetTokens"`
	AutoTradeEnabled  *bool    `json:"autoTradeEnabled"`
	MaxTradeAmount    *float64 `json:"maxTradeAmount"`
	StopLossPercent   *float64 `json:"stopLossPercent"`
	TakeProfitPercent *float64 `json:"takeProfitPercent"`
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	a := s.loadOwnedAgent(w, r)
	if a == nil {
		return
	}

	var req updateAgentRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid agent data")
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.BudgetLimit != nil {
		updates["budget_limit"] = *req.BudgetLimit
	}
	if req.TargetTokens != nil {
		updates["target_tokens"] = *req.TargetTokens
	}
	if req.AutoTradeEnabled != nil {
		updates["auto_trade_enabled"] = *req.AutoTradeEnabled
	}
	if req.MaxTradeAmount != nil {
		updates["max_trade_amount"] = *req.MaxTradeAmount
	}
	if req.StopLossPercent != nil {
		updates["stop_loss_percent"] = *req.StopLossPercent
	}
	if req.TakeProfitPercent != nil {
		updates["take_profit_percent"] = *req.TakeProfitPercent
	}

	statusChanged := req.Status != nil && *req.Status != a.Status
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(r.Context()).Model(a).Updates(updates).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update agent")
			return
		}
	}

	if statusChanged {
		s.db.WithContext(r.Context()).Create(&models.ActivityLog{
			AgentID: a.ID,
			Action:  fmt.Sprintf("Agent status changed to %s", *req.Status),
			Level:   models.LogLevelInfo,
		})
		s.broadcast("agent_status_changed", map[string]interface{}{
			"agentId": a.ID,
			"status":  *req.Status,
		})
	}

	s.broadcast("agent_updated", a)
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	a := s.loadOwnedAgent(w, r)
	if a == nil {
		return
	}

	if err := s.db.WithContext(r.Context()).Delete(a).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete agent")
		return
	}

	s.broadcast("agent_deleted", map[string]interface{}{"agentId": a.ID})
	respondJSON(w, http.StatusNoContent, nil)
}

type decideRequest struct {
	MarketData map[string]interface{} `json:"marketData"`
}

// handleAgentDecide asks the oracle what the agent should do next.
func (s *Server) handleAgentDecide(w http.ResponseWriter, r *http.Request) {
	a := s.loadOwnedAgent(w, r)
	if a == nil {
		return
	}

	var req decideRequest
	if err := parseJSONBody(r, &req); err != nil {
		req.MarketData = nil
	}

	decision := s.oracle.GetDecision(r.Context(), a, req.MarketData)
	respondJSON(w, http.StatusOK, decision)
}

type executeRequest struct {
	Action      string  `json:"action"`
	TokenSymbol string  `json:"tokenSymbol"`
	Amount      float64 `json:"amount"`
}

// handleAgentExecute runs a single agent action. Swap actions are
// quoted only; the caller confirms before anything is submitted.
func (s *Server) handleAgentExecute(w http.ResponseWriter, r *http.Request) {
	a := s.loadOwnedAgent(w, r)
	if a == nil {
		return
	}
	if a.Status != models.AgentStatusRunning {
		respondError(w, http.StatusBadRequest, "Agent must be running to execute actions")
		return
	}

	var req executeRequest
	if err := parseJSONBody(r, &req); err != nil || req.Action == "" {
		respondError(w, http.StatusBadRequest, "Action required")
		return
	}

	amount := req.Amount
	if amount <= 0 {
		amount = a.MaxTradeAmount
	}

	var result map[string]interface{}
	switch strings.ToLower(req.Action) {
	case "swap":
		result = s.executeSwapAction(r, a, req.TokenSymbol, amount)
	case "stake":
		apy := 5.5 + rand.Float64()*3
		result = map[string]interface{}{
			"action": "stake",
			"amount": amount,
			"apy":    apy,
			"status": "pending",
		}
	case "monitor", "wait":
		result = map[string]interface{}{
			"action": req.Action,
			"status": "acknowledged",
		}
	default:
		result = map[string]interface{}{
			"action": req.Action,
			"status": "unknown_action",
		}
	}

	if result["status"] == "quote_ready" || result["status"] == "pending" {
		s.db.WithContext(r.Context()).Model(a).
			Update("total_transactions", gorm.Expr("total_transactions + 1"))
	}

	s.broadcast("agent_action_executed", map[string]interface{}{
		"agentId": a.ID,
		"result":  result,
	})

	respondJSON(w, http.StatusOK, result)
}

// executeSwapAction quotes a SOL-to-token swap for the agent.
func (s *Server) executeSwapAction(r *http.Request, a *models.Agent, tokenSymbol string, amount float64) map[string]interface{} {
	if tokenSymbol == "" {
		tokenSymbol = "USDC"
	}

	var target *jupiter.Token
	for i := range jupiter.PopularTokens {
		if strings.EqualFold(jupiter.PopularTokens[i].Symbol, tokenSymbol) {
			target = &jupiter.PopularTokens[i]
			break
		}
	}
	if target == nil {
		return map[string]interface{}{
			"action": "swap",
			"status": "failed",
			"error":  fmt.Sprintf("Unknown token symbol: %s", tokenSymbol),
		}
	}

	sol := jupiter.PopularTokens[0]
	rawAmount := strconv.FormatUint(uint64(math.Floor(amount*math.Pow10(sol.Decimals))), 10)

	quote, err := s.gateway.GetQuote(r.Context(), sol.Mint, target.Mint, rawAmount, jupiter.DefaultSlippageBps)
	if err != nil {
		return map[string]interface{}{
			"action": "swap",
			"status": "failed",
			"error":  "Failed to get swap quote",
		}
	}

	s.db.WithContext(r.Context()).Create(&models.ActivityLog{
		AgentID: a.ID,
		Action:  "Swap quote",
		Details: fmt.Sprintf("Quoted %g SOL -> %s", amount, target.Symbol),
		Level:   models.LogLevelInfo,
	})

	return map[string]interface{}{
		"action":     "swap",
		"status":     "quote_ready",
		"inputMint":  sol.Mint,
		"outputMint": target.Mint,
		"amount":     amount,
		"outAmount":  quote.OutAmount,
		"quote":      quote.Raw,
	}
}

package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelos/sentineld/internal/models"
)

type recordingLogger struct {
	logs []models.ActivityLog
}

func (r *recordingLogger) AppendActivityLog(ctx context.Context, log *models.ActivityLog) error {
	r.logs = append(r.logs, *log)
	return nil
}

func completionResponse(content string) string {
	return `{"id":"cmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":` + content + `},"finish_reason":"stop"}]}`
}

func TestGetDecision(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse(`"{\"action\":\"swap\",\"confidence\":85,\"reasoning\":\"Momentum building\"}"`)))
	}))
	defer server.Close()

	logs := &recordingLogger{}
	oracle := NewOracle("test-key", server.URL+"/v1", logs, zerolog.Nop())

	agent := &models.Agent{Name: "sniper-1", TaskType: models.TaskTypeTokenSniper, BudgetLimit: 1.0}
	agent.ID = 3

	decision := oracle.GetDecision(context.Background(), agent, map[string]interface{}{"trend": "bullish"})
	assert.Equal(t, "swap", decision.Action)
	assert.Equal(t, 85, decision.Confidence)
	assert.Equal(t, "Momentum building", decision.Reasoning)

	require.Len(t, logs.logs, 1)
	assert.Equal(t, "AI Decision: swap", logs.logs[0].Action)
	assert.Equal(t, models.LogLevelInfo, logs.logs[0].Level)
}

func TestGetDecisionDegradesOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	logs := &recordingLogger{}
	oracle := NewOracle("test-key", server.URL+"/v1", logs, zerolog.Nop())

	decision := oracle.GetDecision(context.Background(), &models.Agent{Name: "a"}, nil)
	assert.Equal(t, "wait", decision.Action)
	assert.Equal(t, 50, decision.Confidence)

	// Degraded decisions are not logged as AI decisions
	assert.Empty(t, logs.logs)
}

func TestGetDecisionWithoutAPIKey(t *testing.T) {
	oracle := NewOracle("", "", nil, zerolog.Nop())

	decision := oracle.GetDecision(context.Background(), &models.Agent{Name: "a"}, nil)
	assert.Equal(t, "wait", decision.Action)
	assert.Equal(t, 50, decision.Confidence)
}

func TestAnalyzeMarketConditions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse(`"{\"symbol\":\"SOL\",\"price\":145.2,\"trend\":\"bullish\"}"`)))
	}))
	defer server.Close()

	oracle := NewOracle("test-key", server.URL+"/v1", nil, zerolog.Nop())

	analysis := oracle.AnalyzeMarketConditions(context.Background(), "SOL")
	assert.Equal(t, "SOL", analysis["symbol"])
	assert.Equal(t, 145.2, analysis["price"])
	assert.Equal(t, "bullish", analysis["trend"])
}

func TestAnalyzeMarketConditionsFallback(t *testing.T) {
	oracle := NewOracle("", "", nil, zerolog.Nop())

	analysis := oracle.AnalyzeMarketConditions(context.Background(), "")
	assert.Equal(t, "SOL", analysis["symbol"])
	assert.Equal(t, "neutral", analysis["trend"])
	assert.Equal(t, "Unable to analyze market conditions", analysis["recommendation"])
}

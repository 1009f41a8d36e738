// Package agent produces trading decisions for autonomous agents by
// consulting a language model. The oracle is advisory: when the model
// is unreachable or misconfigured every decision degrades to a safe
// wait.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sentinelos/sentineld/internal/logger"
	"github.com/sentinelos/sentineld/internal/models"
)

const decisionModel = "gpt-5.1"

// ActivityLogger records oracle decisions on the agent's activity feed.
type ActivityLogger interface {
	AppendActivityLog(ctx context.Context, log *models.ActivityLog) error
}

// Decision is the oracle's verdict for one agent cycle.
type Decision struct {
	Action     string                 `json:"action"`
	Confidence int                    `json:"confidence"`
	Reasoning  string                 `json:"reasoning"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// waitDecision is returned whenever the model cannot be consulted.
func waitDecision() Decision {
	return Decision{
		Action:     "wait",
		Confidence: 50,
		Reasoning:  "Unable to make decision due to an error. Waiting for next cycle.",
	}
}

// Oracle consults the model for agent decisions and market analysis.
type Oracle struct {
	client *openai.Client
	logs   ActivityLogger
	logger zerolog.Logger
}

// NewOracle builds an oracle. An empty API key yields a degraded oracle
// that always waits.
func NewOracle(apiKey, baseURL string, logs ActivityLogger, logger zerolog.Logger) *Oracle {
	o := &Oracle{
		logs:   logs,
		logger: logger.With().Str("component", "oracle").Logger(),
	}
	if apiKey == "" {
		o.logger.Warn().Msg("No API key configured, oracle will always wait")
		return o
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	o.client = openai.NewClientWithConfig(cfg)
	return o
}

// GetDecision asks the model what the agent should do next. The
// decision is recorded on the agent's activity feed.
func (o *Oracle) GetDecision(ctx context.Context, agent *models.Agent, marketData map[string]interface{}) Decision {
	if o.client == nil {
		return waitDecision()
	}

	systemPrompt := fmt.Sprintf(`You are an AI agent for the SentinelOS DeFi platform on Solana. You are managing an autonomous trading agent.

Agent Configuration:
- Name: %s
- Task Type: %s
- Budget Limit: %g SOL
- Current Balance: %g SOL
- Total Transactions: %d
- Success Rate: %g%%

Your task is to analyze the current situation and make a decision for this agent.
Available actions:
- swap: Execute a token swap
- stake: Stake tokens for yield
- wait: Wait for better conditions
- monitor: Continue monitoring without action
- alert: Alert the user about important conditions

Respond with a JSON object containing:
{
  "action": "one of the available actions",
  "confidence": 0-100 (how confident you are in this decision),
  "reasoning": "brief explanation of your decision",
  "parameters": {} (optional parameters for the action)
}`,
		agent.Name, agent.TaskType, agent.BudgetLimit, agent.CurrentBalance, agent.TotalTransactions, agent.SuccessRate)

	userPrompt := "What action should the agent take based on its current configuration?"
	if marketData != nil {
		if encoded, err := json.Marshal(marketData); err == nil {
			userPrompt = fmt.Sprintf("Current market conditions: %s\n\nWhat action should the agent take?", encoded)
		}
	}

	content, err := o.complete(ctx, systemPrompt, userPrompt, 500)
	if err != nil {
		agentLogger := logger.WithAgent(o.logger, agent.ID)
		agentLogger.Error().Err(err).Msg("Decision request failed")
		return waitDecision()
	}

	var decision Decision
	if err := json.Unmarshal([]byte(content), &decision); err != nil {
		o.logger.Error().Err(err).Msg("Model returned malformed decision")
		return waitDecision()
	}

	if o.logs != nil {
		lerr := o.logs.AppendActivityLog(ctx, &models.ActivityLog{
			AgentID: agent.ID,
			Action:  "AI Decision: " + decision.Action,
			Details: decision.Reasoning,
			Level:   models.LogLevelInfo,
		})
		if lerr != nil {
			o.logger.Error().Err(lerr).Msg("Failed to record decision")
		}
	}

	return decision
}

// AnalyzeMarketConditions asks the model for a market overview of a
// token. On any failure a neutral snapshot is returned.
func (o *Oracle) AnalyzeMarketConditions(ctx context.Context, tokenSymbol string) map[string]interface{} {
	if tokenSymbol == "" {
		tokenSymbol = "SOL"
	}

	fallback := map[string]interface{}{
		"symbol":         tokenSymbol,
		"price":          100,
		"change24h":      0,
		"volume24h":      1000,
		"trend":          "neutral",
		"signals":        []string{},
		"recommendation": "Unable to analyze market conditions",
	}

	if o.client == nil {
		return fallback
	}

	systemPrompt := fmt.Sprintf(`You are a market analysis AI for the SentinelOS DeFi platform. Generate realistic mock market data for demonstration purposes.

Generate a JSON object with current market conditions for %s including:
{
  "symbol": "%s",
  "price": number (realistic SOL price in USD),
  "change24h": number (percentage change),
  "volume24h": number (in millions USD),
  "marketCap": number (in billions USD),
  "trend": "bullish" | "bearish" | "neutral",
  "signals": ["array of trading signals"],
  "recommendation": "brief recommendation"
}`, tokenSymbol, tokenSymbol)

	content, err := o.complete(ctx, systemPrompt, "Provide current market analysis for "+tokenSymbol, 300)
	if err != nil {
		o.logger.Error().Err(err).Str("symbol", tokenSymbol).Msg("Market analysis failed")
		return fallback
	}

	var analysis map[string]interface{}
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return fallback
	}
	return analysis
}

func (o *Oracle) complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: decisionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("empty model response")
	}
	return resp.Choices[0].Message.Content, nil
}

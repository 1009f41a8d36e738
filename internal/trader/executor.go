// Package trader turns watchlist triggers into executed swaps: it
// evaluates price conditions, asks the aggregator for quotes, signs
// with the custodial key, and submits to the chain. Every terminal
// outcome leaves exactly one activity log entry on the owning agent.
package trader

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/sentinelos/sentineld/internal/jupiter"
	"github.com/sentinelos/sentineld/internal/logger"
	"github.com/sentinelos/sentineld/internal/metrics"
	"github.com/sentinelos/sentineld/internal/models"
	solrpc "github.com/sentinelos/sentineld/internal/solana"
)

// Store is the persistence slice the executor needs.
type Store interface {
	ManagedWalletByUser(ctx context.Context, userID uint) (*models.ManagedWallet, error)
	AppendActivityLog(ctx context.Context, log *models.ActivityLog) error
	// RecordTradeSuccess commits the wallet's refreshed balance and the
	// agent's transaction counter in one transaction: both move, or
	// neither does.
	RecordTradeSuccess(ctx context.Context, walletID, agentID uint, newBalance float64) error
}

// Gateway is the swap aggregator slice the executor needs.
type Gateway interface {
	GetQuote(ctx context.Context, inputMint, outputMint, amount string, slippageBps int) (*jupiter.Quote, error)
	BuildSwapTransaction(ctx context.Context, quote *jupiter.Quote, userPublicKey string) (*jupiter.SwapTransaction, error)
}

// Chain is the RPC slice the executor needs.
type Chain interface {
	GetBalance(ctx context.Context, address string) (float64, error)
	GetTokenBalance(ctx context.Context, owner, mint string) (solrpc.TokenBalance, error)
	SendTransaction(ctx context.Context, base64Tx string) (string, error)
	ConfirmTransaction(ctx context.Context, signature string) (bool, error)
}

// WalletAccess exposes key custody and per-wallet locking.
type WalletAccess interface {
	SecretKey(w *models.ManagedWallet) (solana.PrivateKey, error)
	Lock(walletID uint) func()
}

// Result is the outcome of a trade attempt that did not fail outright.
type Result struct {
	Success     bool    `json:"success"`
	Action      string  `json:"action"`
	TokenMint   string  `json:"tokenMint"`
	TokenSymbol string  `json:"tokenSymbol"`
	Amount      float64 `json:"amount,omitempty"`
	TxID        string  `json:"txId,omitempty"`
	Reason      string  `json:"reason"`
	// ManualApproval is set when no signing key is available: the quote
	// was obtained but execution is left to the user.
	ManualApproval bool `json:"manualApproval,omitempty"`
}

// Executor runs individual trades for an agent.
type Executor struct {
	store   Store
	gateway Gateway
	chain   Chain
	wallets WalletAccess
	signer  Signer
	logger  zerolog.Logger
}

func NewExecutor(store Store, gateway Gateway, chain Chain, wallets WalletAccess, logger zerolog.Logger) *Executor {
	return &Executor{
		store:   store,
		gateway: gateway,
		chain:   chain,
		wallets: wallets,
		signer:  TransactionSigner{},
		logger:  logger.With().Str("component", "trader").Logger(),
	}
}

// Execute runs one buy or sell for the agent. Buys spend the given SOL
// amount; sells liquidate the wallet's entire balance of the token
// regardless of amount. Execution is serialized per wallet.
func (e *Executor) Execute(ctx context.Context, agent *models.Agent, tokenMint, action string, amount float64) (*Result, error) {
	w, err := e.store.ManagedWalletByUser(ctx, agent.UserID)
	if err != nil {
		e.logActivity(ctx, agent.ID, fmt.Sprintf("Trade Failed: %s %s", actionLabel(action), shortMint(tokenMint)),
			"No managed wallet found for user", models.LogLevelError)
		return nil, err
	}

	unlock := e.wallets.Lock(w.ID)
	defer unlock()

	if action == ActionBuy && w.Balance < amount {
		reason := fmt.Sprintf("%g SOL available, %g SOL needed", w.Balance, amount)
		e.logActivity(ctx, agent.ID, fmt.Sprintf("Trade Failed: BUY %s", shortMint(tokenMint)),
			"Insufficient balance: "+reason, models.LogLevelWarning)
		metrics.RecordTrade(action, "failed")
		return nil, fmt.Errorf("%w: %s", ErrInsufficientBalance, reason)
	}

	inputMint, outputMint := tokenMint, solrpc.SOLMint
	if action == ActionBuy {
		inputMint, outputMint = solrpc.SOLMint, tokenMint
	}

	var rawAmount string
	if action == ActionBuy {
		rawAmount = strconv.FormatUint(uint64(math.Floor(amount*solrpc.LamportsPerSOL)), 10)
	} else {
		balance, err := e.chain.GetTokenBalance(ctx, w.PublicKey, tokenMint)
		if err != nil {
			e.logActivity(ctx, agent.ID, "Sell Failed: "+shortMint(tokenMint),
				"Token balance lookup failed: "+err.Error(), models.LogLevelError)
			return nil, err
		}
		if !balance.HasAccount {
			e.logActivity(ctx, agent.ID, "Sell Skipped: "+shortMint(tokenMint),
				"No token account found in wallet for this token", models.LogLevelWarning)
			metrics.RecordTrade(action, "failed")
			return nil, ErrNoTokenAccount
		}
		if balance.Amount == 0 {
			e.logActivity(ctx, agent.ID, "Sell Skipped: "+shortMint(tokenMint),
				"Token account exists but balance is zero", models.LogLevelWarning)
			metrics.RecordTrade(action, "failed")
			return nil, ErrZeroBalance
		}

		rawAmount = balance.RawAmount
		e.logActivity(ctx, agent.ID, "Sell Prepare: "+shortMint(tokenMint),
			fmt.Sprintf("Found %g tokens (%d decimals) to sell", balance.Amount, balance.Decimals), models.LogLevelInfo)
	}

	quote, err := e.gateway.GetQuote(ctx, inputMint, outputMint, rawAmount, 0)
	if err != nil {
		e.logActivity(ctx, agent.ID, fmt.Sprintf("Trade Failed: %s %s", actionLabel(action), shortMint(tokenMint)),
			"Failed to get swap quote: "+err.Error(), models.LogLevelError)
		metrics.RecordTrade(action, "failed")
		return nil, err
	}

	// Without a signing key the trade degrades to a ready quote
	// awaiting manual execution.
	if w.EncryptedSecretKey == "" {
		e.logActivity(ctx, agent.ID, fmt.Sprintf("Trade Signal: %s %s", actionLabel(action), shortMint(tokenMint)),
			"Quote obtained but no private key available for execution. Manual execution required.", models.LogLevelWarning)
		metrics.RecordTrade(action, "manual_approval")
		return &Result{
			Success:        true,
			Action:         action,
			TokenMint:      tokenMint,
			Amount:         amount,
			ManualApproval: true,
			Reason:         fmt.Sprintf("%s quote ready. Awaiting manual approval for execution.", actionLabel(action)),
		}, nil
	}

	txID, err := e.executeSwap(ctx, w, quote)
	if err != nil {
		e.logActivity(ctx, agent.ID, fmt.Sprintf("Trade Failed: %s %s", actionLabel(action), shortMint(tokenMint)),
			"Execution failed: "+err.Error(), models.LogLevelError)
		metrics.RecordTrade(action, "failed")
		return nil, err
	}

	// Wallet balance and the agent's counters only move on success, and
	// move together.
	newBalance := w.Balance
	if refreshed, berr := e.chain.GetBalance(ctx, w.PublicKey); berr == nil {
		newBalance = refreshed
	} else {
		walletLogger := logger.WithWallet(e.logger, w.PublicKey)
		walletLogger.Warn().Err(berr).Msg("Post-trade balance refresh failed, keeping cached value")
	}
	if err := e.store.RecordTradeSuccess(ctx, w.ID, agent.ID, newBalance); err != nil {
		e.logActivity(ctx, agent.ID, fmt.Sprintf("Trade Executed: %s %s", actionLabel(action), shortMint(tokenMint)),
			fmt.Sprintf("Swap confirmed on-chain (TX: %s) but recording the result failed: %v", txID, err), models.LogLevelError)
		metrics.RecordTrade(action, "failed")
		return nil, err
	}

	e.logActivity(ctx, agent.ID, fmt.Sprintf("Trade Executed: %s %s", actionLabel(action), shortMint(tokenMint)),
		fmt.Sprintf("Successfully executed %s for %g SOL. TX: %s", action, amount, txID), models.LogLevelSuccess)
	metrics.RecordTrade(action, "success")

	return &Result{
		Success:   true,
		Action:    action,
		TokenMint: tokenMint,
		Amount:    amount,
		TxID:      txID,
		Reason:    fmt.Sprintf("%s executed successfully. TX: %s", actionLabel(action), txID),
	}, nil
}

// executeSwap builds, signs, submits, and confirms the transaction.
func (e *Executor) executeSwap(ctx context.Context, w *models.ManagedWallet, quote *jupiter.Quote) (string, error) {
	swapTx, err := e.gateway.BuildSwapTransaction(ctx, quote, w.PublicKey)
	if err != nil {
		return "", err
	}

	key, err := e.wallets.SecretKey(w)
	if err != nil {
		return "", err
	}

	signed, err := e.signer.SignBase64Transaction(swapTx.SwapTransaction, key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	txID, err := e.chain.SendTransaction(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	confirmed, err := e.chain.ConfirmTransaction(ctx, txID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	if !confirmed {
		return "", fmt.Errorf("%w: transaction %s not confirmed in time", ErrSubmissionFailed, txID)
	}

	return txID, nil
}

func (e *Executor) logActivity(ctx context.Context, agentID uint, action, details, level string) {
	err := e.store.AppendActivityLog(ctx, &models.ActivityLog{
		AgentID: agentID,
		Action:  action,
		Details: details,
		Level:   level,
	})
	if err != nil {
		agentLogger := logger.WithAgent(e.logger, agentID)
		agentLogger.Error().Err(err).Msg("Failed to append activity log")
	}
}

func shortMint(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:8] + "..."
}

func actionLabel(action string) string {
	switch action {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return action
	}
}

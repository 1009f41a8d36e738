package trader

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sentinelos/sentineld/internal/models"
)

// AutoStore extends Store with the queries the auto-trade sweep needs.
type AutoStore interface {
	Store
	Watchlist(ctx context.Context, userID uint) ([]models.WatchlistItem, error)
	DiscoveredToken(ctx context.Context, mint string) (*models.DiscoveredToken, error)
	ActiveSniperAgent(ctx context.Context, userID uint) (*models.Agent, error)
}

// TradeRunner executes a single trade for an agent.
type TradeRunner interface {
	Execute(ctx context.Context, agent *models.Agent, tokenMint, action string, amount float64) (*Result, error)
}

// AutoTrader sweeps a user's watchlist and fires trades whose
// conditions are met.
type AutoTrader struct {
	store    AutoStore
	executor TradeRunner
	logger   zerolog.Logger
}

func NewAutoTrader(store AutoStore, executor TradeRunner, logger zerolog.Logger) *AutoTrader {
	return &AutoTrader{
		store:    store,
		executor: executor,
		logger:   logger.With().Str("component", "autotrade").Logger(),
	}
}

// ProcessAutoTrades evaluates every auto-trade-enabled watchlist item
// for the user and executes the ones that trigger. One result is
// returned per evaluated item; items with auto-trade disabled are
// ignored entirely. A failing item never stops the sweep.
func (a *AutoTrader) ProcessAutoTrades(ctx context.Context, userID uint) ([]Result, error) {
	watchlist, err := a.store.Watchlist(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(watchlist))
	for _, item := range watchlist {
		if !item.AutoTradeEnabled {
			continue
		}

		snapshot, err := a.store.DiscoveredToken(ctx, item.TokenMint)
		if err != nil {
			a.logger.Error().Err(err).Str("mint", item.TokenMint).Msg("Snapshot lookup failed")
			results = append(results, Result{
				Action:      ActionSkip,
				TokenMint:   item.TokenMint,
				TokenSymbol: item.Symbol,
				Reason:      "Unable to load market snapshot",
			})
			continue
		}

		signal := Evaluate(item, snapshot)
		if signal.Action == ActionSkip {
			results = append(results, Result{
				Action:      signal.Action,
				TokenMint:   signal.TokenMint,
				TokenSymbol: signal.TokenSymbol,
				Reason:      signal.Reason,
			})
			continue
		}

		agent, err := a.store.ActiveSniperAgent(ctx, userID)
		if err != nil {
			return nil, err
		}
		if agent == nil {
			results = append(results, Result{
				Action:      signal.Action,
				TokenMint:   signal.TokenMint,
				TokenSymbol: signal.TokenSymbol,
				Amount:      signal.Amount,
				Reason:      "No running token_sniper agent found to execute trade",
			})
			continue
		}

		execution, err := a.executor.Execute(ctx, agent, item.TokenMint, signal.Action, signal.Amount)
		if err != nil {
			results = append(results, Result{
				Action:      signal.Action,
				TokenMint:   signal.TokenMint,
				TokenSymbol: signal.TokenSymbol,
				Amount:      signal.Amount,
				Reason:      err.Error(),
			})
			continue
		}
		if execution.TokenSymbol == "" {
			execution.TokenSymbol = signal.TokenSymbol
		}
		results = append(results, *execution)
	}

	return results, nil
}

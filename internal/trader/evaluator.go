package trader

import (
	"fmt"

	"github.com/sentinelos/sentineld/internal/models"
)

// Trade actions.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionSkip = "skip"
)

// Signal is the outcome of evaluating one watchlist item against the
// latest market snapshot.
type Signal struct {
	Action      string  `json:"action"`
	TokenMint   string  `json:"tokenMint"`
	TokenSymbol string  `json:"tokenSymbol"`
	Amount      float64 `json:"amount,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Reason      string  `json:"reason"`
}

// Evaluate decides whether a watchlist item's trigger fires at the
// given market snapshot. When both the buy and sell thresholds are
// satisfied the buy wins; a position must exist before it can be
// exited.
func Evaluate(item models.WatchlistItem, snapshot *models.DiscoveredToken) Signal {
	symbol := item.Symbol
	if symbol == "" {
		symbol = "UNKNOWN"
	}
	signal := Signal{
		Action:      ActionSkip,
		TokenMint:   item.TokenMint,
		TokenSymbol: symbol,
	}

	if !item.AutoTradeEnabled {
		signal.Reason = "Auto-trade not enabled for this token"
		return signal
	}

	var price float64
	if snapshot != nil {
		price = snapshot.Price
	}
	if price == 0 {
		signal.Reason = "Unable to determine current price"
		return signal
	}

	if item.TargetBuyPrice != nil && *item.TargetBuyPrice > 0 && price <= *item.TargetBuyPrice {
		amount := item.MaxBuyAmount
		if amount <= 0 {
			amount = 0.1
		}
		signal.Action = ActionBuy
		signal.Amount = amount
		signal.Price = price
		signal.Reason = fmt.Sprintf("Price %g is at or below target buy price %g", price, *item.TargetBuyPrice)
		return signal
	}

	if item.TargetSellPrice != nil && *item.TargetSellPrice > 0 && price >= *item.TargetSellPrice {
		amount := item.MaxBuyAmount
		if amount <= 0 {
			amount = 0.1
		}
		signal.Action = ActionSell
		signal.Amount = amount
		signal.Price = price
		signal.Reason = fmt.Sprintf("Price %g is at or above target sell price %g", price, *item.TargetSellPrice)
		return signal
	}

	signal.Reason = fmt.Sprintf("Current price %g does not meet target conditions", price)
	return signal
}

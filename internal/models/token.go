package models

import (
	"gorm.io/gorm"
)

// DiscoveredToken is an externally ingested market snapshot keyed by mint
// address. Upserted on every ingestion cycle, never deleted.
type DiscoveredToken struct {
	gorm.Model
	MintAddress    string `gorm:"size:44;uniqueIndex;not null"`
	Symbol         string `gorm:"size:20;index"`
	Name           string
	Decimals       int     `gorm:"default:9"`
	Price          float64
	PriceChange24h float64 `gorm:"column:price_change_24h"`
	Volume24h      float64 `gorm:"column:volume_24h"`
	MarketCap      float64
	Liquidity      float64
	Holders        int
	// RiskScore is a 1..10 heuristic; higher is riskier.
	RiskScore float64
	Source    string `gorm:"size:20;default:pulse"`
}

// WatchlistItem is a per-user per-token trigger configuration driving the
// auto-trade evaluator. Nil target prices mean the threshold is not set.
type WatchlistItem struct {
	gorm.Model
	UserID           uint   `gorm:"index;not null"`
	TokenMint        string `gorm:"size:44;index;not null"`
	Symbol           string `gorm:"size:20"`
	Name             string
	TargetBuyPrice   *float64
	TargetSellPrice  *float64
	AutoTradeEnabled bool    `gorm:"default:false"`
	MaxBuyAmount     float64 `gorm:"default:0.1"`
	AlertsEnabled    bool    `gorm:"default:true"`
	Notes            string
}

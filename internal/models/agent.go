package models

import (
	"gorm.io/gorm"
)

// Agent task types
const (
	TaskTypeDefiSwap     = "defi_swap"
	TaskTypeYieldFarming = "yield_farming"
	TaskTypeAutoDCA      = "auto_dca"
	TaskTypeHedging      = "hedging"
	TaskTypePayment      = "payment"
	TaskTypeArbitrage    = "arbitrage"
	TaskTypeMonitoring   = "monitoring"
	TaskTypeTokenSniper  = "token_sniper"
)

// Agent statuses
const (
	AgentStatusIdle      = "idle"
	AgentStatusRunning   = "running"
	AgentStatusPaused    = "paused"
	AgentStatusError     = "error"
	AgentStatusCompleted = "completed"
)

// Activity log levels
const (
	LogLevelInfo    = "info"
	LogLevelSuccess = "success"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// Agent is a named automation unit owned by a user. Agents reference the
// user's managed wallet but do not own funds; execution draws from the
// wallet directly.
type Agent struct {
	gorm.Model
	UserID          uint  `gorm:"index"`
	ManagedWalletID *uint `gorm:"index"`
	Name            string `gorm:"not null"`
	Description     string
	TaskType        string  `gorm:"size:50;not null;index"`
	Status          string  `gorm:"size:20;not null;default:idle;index"`
	BudgetLimit     float64 `gorm:"default:1.0"`
	CurrentBalance  float64 `gorm:"default:0"`
	// TotalTransactions only ever increases.
	TotalTransactions int     `gorm:"default:0"`
	SuccessRate       float64 `gorm:"default:0"`
	TargetTokens      string  `gorm:"type:text"`
	AutoTradeEnabled  bool    `gorm:"default:false"`
	MaxTradeAmount    float64 `gorm:"default:0.1"`
	StopLossPercent   float64 `gorm:"default:10"`
	TakeProfitPercent float64 `gorm:"default:20"`
	IsActive          bool    `gorm:"default:true"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE"`
	ActivityLogs []ActivityLog `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE"`
}

// Transaction is a trade or transfer record produced by an agent
type Transaction struct {
	gorm.Model
	AgentID     uint    `gorm:"index;not null"`
	TxHash      string  `gorm:"size:88;index"`
	TxType      string  `gorm:"size:20;not null"`
	Amount      float64
	TokenSymbol string `gorm:"size:20;default:SOL"`
	Status      string `gorm:"size:20;not null;default:pending"`
	FromAddress string `gorm:"size:44"`
	ToAddress   string `gorm:"size:44"`
}

// ActivityLog is the append-only narrative record of everything an agent
// did. It is the only durable place failures and reasoning are recorded.
type ActivityLog struct {
	gorm.Model
	AgentID uint   `gorm:"index;not null"`
	Action  string `gorm:"not null"`
	Details string `gorm:"type:text"`
	Level   string `gorm:"size:10;default:info"`
}

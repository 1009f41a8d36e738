package models

import (
	"gorm.io/gorm"
)

// Managed wallet statuses
const (
	WalletStatusActive    = "active"
	WalletStatusSuspended = "suspended"
)

// Wallet transaction statuses
const (
	WalletTxStatusPending         = "pending"
	WalletTxStatusAwaitingDeposit = "awaiting_deposit"
	WalletTxStatusConfirmed       = "confirmed"
	WalletTxStatusFailed          = "failed"
)

// ManagedWallet is a server-held custodial keypair, exactly one per user.
// The secret key is stored encrypted and never leaves the server; only the
// public key and the cached SOL balance are ever exposed.
type ManagedWallet struct {
	gorm.Model
	UserID             uint   `gorm:"uniqueIndex;not null"`
	PublicKey          string `gorm:"size:44;uniqueIndex;not null"`
	EncryptedSecretKey string `gorm:"type:text;not null"`
	// Balance is a cache of the on-chain SOL balance, refreshed
	// opportunistically. The chain is the source of truth.
	Balance float64 `gorm:"default:0"`
	Status  string  `gorm:"size:20;default:active"`

	// Relationships
	Transactions []WalletTransaction `gorm:"foreignKey:WalletID;constraint:OnDelete:CASCADE"`
}

// WalletTransaction is an append-only deposit/withdrawal record against a
// managed wallet. Amount is immutable after creation; only status and
// tx hash transition.
type WalletTransaction struct {
	gorm.Model
	UserID      uint    `gorm:"index;not null"`
	WalletID    uint    `gorm:"index;not null"`
	TxHash      string  `gorm:"size:88;index"`
	TxType      string  `gorm:"size:20;not null"`
	Direction   string  `gorm:"size:3;not null"` // in / out
	Amount      float64 `gorm:"not null"`
	TokenMint   string  `gorm:"size:44"`
	TokenSymbol string  `gorm:"size:20;default:SOL"`
	Status      string  `gorm:"size:20;default:pending"`
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a dashboard user identified by their wallet address
type User struct {
	gorm.Model
	WalletAddress string `gorm:"size:44;uniqueIndex;not null"`
	Username      string
	AvatarURL     string
	// Nonce is the single-use login challenge value. Rotated on every
	// successful authentication.
	Nonce       string `gorm:"size:64"`
	LastLoginAt *time.Time

	// Relationships
	ManagedWallet      *ManagedWallet      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	WalletTransactions []WalletTransaction `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Agents             []Agent             `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Watchlist          []WatchlistItem     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

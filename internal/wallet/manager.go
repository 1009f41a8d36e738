// Package wallet manages custodial wallets: lookup, balance refresh,
// transaction history, secret key access, and per-wallet execution
// locking.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/sentinelos/sentineld/internal/keyvault"
	"github.com/sentinelos/sentineld/internal/logger"
	"github.com/sentinelos/sentineld/internal/models"
)

// ErrNoWallet is returned when a user has no managed wallet yet.
var ErrNoWallet = errors.New("wallet: no managed wallet")

// ChainClient is the slice of the RPC client the manager needs.
type ChainClient interface {
	GetBalance(ctx context.Context, address string) (float64, error)
}

// Manager serves wallet state and guards access to sealed keys.
type Manager struct {
	db     *gorm.DB
	chain  ChainClient
	vault  *keyvault.Vault
	locks  *lockTable
	logger zerolog.Logger
}

func NewManager(db *gorm.DB, chain ChainClient, vault *keyvault.Vault, logger zerolog.Logger) *Manager {
	return &Manager{
		db:     db,
		chain:  chain,
		vault:  vault,
		locks:  newLockTable(),
		logger: logger.With().Str("component", "wallet").Logger(),
	}
}

// Get returns the user's managed wallet.
func (m *Manager) Get(ctx context.Context, userID uint) (*models.ManagedWallet, error) {
	var w models.ManagedWallet
	err := m.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoWallet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return &w, nil
}

// RefreshBalance reads the on-chain SOL balance and updates the cached
// value. The fresh balance is returned; on RPC failure the stale cache
// is left untouched and the error propagated.
func (m *Manager) RefreshBalance(ctx context.Context, userID uint) (float64, error) {
	w, err := m.Get(ctx, userID)
	if err != nil {
		return 0, err
	}

	balance, err := m.chain.GetBalance(ctx, w.PublicKey)
	if err != nil {
		return 0, err
	}

	if err := m.db.WithContext(ctx).Model(w).Update("balance", balance).Error; err != nil {
		return 0, fmt.Errorf("failed to cache balance: %w", err)
	}

	walletLogger := logger.WithWallet(m.logger, w.PublicKey)
	walletLogger.Debug().Float64("balance", balance).Msg("Refreshed wallet balance")
	return balance, nil
}

// Transactions returns the wallet's transaction history, newest first.
func (m *Manager) Transactions(ctx context.Context, userID uint, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var txs []models.WalletTransaction
	err := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet transactions: %w", err)
	}
	return txs, nil
}

// RecordTransaction appends a deposit or withdrawal record.
func (m *Manager) RecordTransaction(ctx context.Context, tx *models.WalletTransaction) error {
	if err := m.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("failed to record wallet transaction: %w", err)
	}
	return nil
}

// SecretKey opens the wallet's sealed key. Callers must hold the
// wallet's execution lock and must not retain the key beyond the
// signing call.
func (m *Manager) SecretKey(w *models.ManagedWallet) (solana.PrivateKey, error) {
	raw, err := m.vault.Open(w.EncryptedSecretKey)
	if err != nil {
		return nil, err
	}
	return solana.PrivateKey(raw), nil
}

// Lock acquires the wallet's execution lock and returns the unlock
// function. Concurrent trades against the same wallet serialize here.
func (m *Manager) Lock(walletID uint) func() {
	return m.locks.Lock(walletID)
}

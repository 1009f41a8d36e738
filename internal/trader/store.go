package trader

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sentinelos/sentineld/internal/models"
	"github.com/sentinelos/sentineld/internal/wallet"
)

// GormStore is the database-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ManagedWalletByUser(ctx context.Context, userID uint) (*models.ManagedWallet, error) {
	var w models.ManagedWallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wallet.ErrNoWallet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return &w, nil
}

func (s *GormStore) AppendActivityLog(ctx context.Context, log *models.ActivityLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to append activity log: %w", err)
	}
	return nil
}

// RecordTradeSuccess persists the post-trade bookkeeping atomically:
// the wallet balance and the agent's counter/balance land in the same
// transaction so a partial write can never split them.
func (s *GormStore) RecordTradeSuccess(ctx context.Context, walletID, agentID uint, newBalance float64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if terr := tx.Model(&models.ManagedWallet{}).
			Where("id = ?", walletID).
			Update("balance", newBalance).Error; terr != nil {
			return fmt.Errorf("failed to update wallet balance: %w", terr)
		}
		if terr := tx.Model(&models.Agent{}).
			Where("id = ?", agentID).
			Updates(map[string]interface{}{
				"total_transactions": gorm.Expr("total_transactions + 1"),
				"current_balance":    newBalance,
			}).Error; terr != nil {
			return fmt.Errorf("failed to record agent trade: %w", terr)
		}
		return nil
	})
}

func (s *GormStore) Watchlist(ctx context.Context, userID uint) ([]models.WatchlistItem, error) {
	var items []models.WatchlistItem
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlist: %w", err)
	}
	return items, nil
}

func (s *GormStore) DiscoveredToken(ctx context.Context, mint string) (*models.DiscoveredToken, error) {
	var token models.DiscoveredToken
	err := s.db.WithContext(ctx).Where("mint_address = ?", mint).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load discovered token: %w", err)
	}
	return &token, nil
}

// ActiveSniperAgent returns the user's running sniper agent, or nil
// when none is running.
func (s *GormStore) ActiveSniperAgent(ctx context.Context, userID uint) (*models.Agent, error) {
	var agent models.Agent
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND task_type = ? AND status = ?", userID, models.TaskTypeTokenSniper, models.AgentStatusRunning).
		Order("created_at ASC").
		First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sniper agent: %w", err)
	}
	return &agent, nil
}

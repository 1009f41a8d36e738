package database

import (
	"fmt"
	"time"

	"github.com/sentinelos/sentineld/internal/config"
	"github.com/sentinelos/sentineld/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
		cfg.DBSSLMode,
	)

	// Configure GORM with optimized settings
	gormConfig := &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Silent),
		PrepareStmt: true, // Prepare statement for better performance
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	// Set connection pool limits
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Migrate database schema
	if err := migrateSchema(db); err != nil {
		return nil, err
	}

	return db, nil
}

func migrateSchema(db *gorm.DB) error {
	// Migrate models
	if err := db.AutoMigrate(
		&models.User{},
		&models.ManagedWallet{},
		&models.WalletTransaction{},
		&models.DiscoveredToken{},
		&models.Agent{},
		&models.Transaction{},
		&models.ActivityLog{},
		&models.WatchlistItem{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Add composite indexes for common query patterns
	db.Exec("CREATE INDEX IF NOT EXISTS idx_activity_logs_agent_created ON activity_logs(agent_id, created_at)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_wallet_transactions_wallet_created ON wallet_transactions(wallet_id, created_at)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_watchlist_items_user_token ON watchlist_items(user_id, token_mint)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_discovered_tokens_price ON discovered_tokens(price)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_agents_user_status ON agents(user_id, status)")

	return nil
}

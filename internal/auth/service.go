// Package auth implements wallet-signature authentication: a
// nonce-bearing challenge message, ed25519 verification of the signed
// challenge, and first-login provisioning of a managed wallet.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/sentinelos/sentineld/internal/keyvault"
	"github.com/sentinelos/sentineld/internal/metrics"
	"github.com/sentinelos/sentineld/internal/models"
)

// ErrInvalidSignature is returned when a login signature does not verify
// against the user's current challenge.
var ErrInvalidSignature = errors.New("auth: signature verification failed")

// ErrUnknownWallet is returned when login is attempted for an address
// that never requested a challenge.
var ErrUnknownWallet = errors.New("auth: unknown wallet address")

// Service issues challenges and verifies signed logins.
type Service struct {
	db    *gorm.DB
	vault *keyvault.Vault
	log   zerolog.Logger
}

func NewService(db *gorm.DB, vault *keyvault.Vault, log zerolog.Logger) *Service {
	return &Service{
		db:    db,
		vault: vault,
		log:   log.With().Str("component", "auth").Logger(),
	}
}

// Challenge returns the message the given wallet must sign. A fresh
// nonce is generated and persisted on every call, invalidating any
// previously issued challenge; the user row is created on first
// contact.
func (s *Service) Challenge(ctx context.Context, walletAddress string) (string, error) {
	if _, err := solana.PublicKeyFromBase58(walletAddress); err != nil {
		return "", fmt.Errorf("invalid wallet address: %w", err)
	}

	nonce, err := GenerateNonce()
	if err != nil {
		return "", err
	}

	var user models.User
	err = s.db.WithContext(ctx).Where("wallet_address = ?", walletAddress).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{WalletAddress: walletAddress, Nonce: nonce}
		if cerr := s.db.WithContext(ctx).Create(&user).Error; cerr != nil {
			return "", fmt.Errorf("failed to create user: %w", cerr)
		}
		s.log.Info().Str("wallet", walletAddress).Msg("New wallet requested a challenge")
	case err != nil:
		return "", fmt.Errorf("failed to load user: %w", err)
	default:
		if uerr := s.db.WithContext(ctx).Model(&user).Update("nonce", nonce).Error; uerr != nil {
			return "", fmt.Errorf("failed to store nonce: %w", uerr)
		}
	}

	return BuildChallenge(walletAddress, nonce), nil
}

// Login verifies a signed challenge. On success the nonce is rotated,
// the login timestamp updated, and a managed wallet provisioned if the
// user does not have one yet; user and wallet are committed atomically.
// On failure the nonce is left untouched so the client may retry
// signing the same challenge.
func (s *Service) Login(ctx context.Context, walletAddress, signature string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("wallet_address = ?", walletAddress).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.RecordAuthAttempt("failed")
		return nil, ErrUnknownWallet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.Nonce == "" {
		metrics.RecordAuthAttempt("failed")
		return nil, ErrInvalidSignature
	}

	message := BuildChallenge(walletAddress, user.Nonce)
	ok, err := VerifySignature(walletAddress, message, signature)
	if err != nil || !ok {
		metrics.RecordAuthAttempt("failed")
		s.log.Warn().Str("wallet", walletAddress).Msg("Signature verification failed")
		return nil, ErrInvalidSignature
	}

	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if terr := tx.Model(&user).Updates(map[string]interface{}{
			"nonce":         nonce,
			"last_login_at": now,
		}).Error; terr != nil {
			return fmt.Errorf("failed to rotate nonce: %w", terr)
		}

		var count int64
		if terr := tx.Model(&models.ManagedWallet{}).Where("user_id = ?", user.ID).Count(&count).Error; terr != nil {
			return fmt.Errorf("failed to check managed wallet: %w", terr)
		}
		if count > 0 {
			return nil
		}

		managed, terr := s.provisionWallet(user.ID)
		if terr != nil {
			return terr
		}
		if terr := tx.Create(managed).Error; terr != nil {
			return fmt.Errorf("failed to create managed wallet: %w", terr)
		}
		s.log.Info().
			Str("wallet", walletAddress).
			Str("managed_pubkey", managed.PublicKey).
			Msg("Provisioned managed wallet on first login")
		return nil
	})
	if err != nil {
		return nil, err
	}

	user.Nonce = nonce
	user.LastLoginAt = &now
	metrics.RecordAuthAttempt("success")
	return &user, nil
}

// provisionWallet generates a fresh keypair and seals the secret key.
func (s *Service) provisionWallet(userID uint) (*models.ManagedWallet, error) {
	w := solana.NewWallet()
	sealed, err := s.vault.Seal(w.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to seal wallet key: %w", err)
	}
	return &models.ManagedWallet{
		UserID:             userID,
		PublicKey:          w.PublicKey().String(),
		EncryptedSecretKey: sealed,
		Balance:            0,
		Status:             models.WalletStatusActive,
	}, nil
}

// Package session issues and resolves opaque bearer tokens backed by
// Redis. A token maps to a user ID and expires after the configured TTL;
// logout deletes it immediately.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a token does not resolve to a live session.
var ErrNotFound = errors.New("session: not found")

const keyPrefix = "session:"

// Store issues and validates session tokens.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Create mints a fresh token for the user and stores it with the TTL.
func (s *Store) Create(ctx context.Context, userID uint) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: token generation failed: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := s.rdb.Set(ctx, keyPrefix+token, strconv.FormatUint(uint64(userID), 10), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("session: store failed: %w", err)
	}
	return token, nil
}

// Resolve returns the user ID a token belongs to, refreshing its TTL.
func (s *Store) Resolve(ctx context.Context, token string) (uint, error) {
	if token == "" {
		return 0, ErrNotFound
	}

	val, err := s.rdb.Get(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("session: lookup failed: %w", err)
	}

	userID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("session: corrupt session value: %w", err)
	}

	// Sliding expiry: active sessions stay alive.
	s.rdb.Expire(ctx, keyPrefix+token, s.ttl)

	return uint(userID), nil
}

// Revoke deletes a token. Revoking a token that no longer exists is not
// an error.
func (s *Store) Revoke(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("session: revoke failed: %w", err)
	}
	return nil
}

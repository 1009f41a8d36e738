package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb, time.Hour), mr
}

func TestCreateAndResolve(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	userID, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}

func TestCreateMintsUniqueTokens(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, 1)
	require.NoError(t, err)
	second, err := store.Create(ctx, 1)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	// Both resolve independently
	userID, err := store.Resolve(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, uint(1), userID)
	userID, err = store.Resolve(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, uint(1), userID)
}

func TestResolveUnknownToken(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Resolve(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveExpiredToken(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, 7)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = store.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevoke(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, 9)
	require.NoError(t, err)

	require.NoError(t, store.Revoke(ctx, token))

	_, err = store.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)

	// Idempotent
	assert.NoError(t, store.Revoke(ctx, token))
}

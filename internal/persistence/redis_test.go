package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return s, rdb
}

func TestLimiterStorage_RoundTrip(t *testing.T) {
	s, rdb := newMiniRedis(t)
	store := NewLimiterStorage(rdb, "limiter:")

	val, err := store.Get("1.2.3.4")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, store.Set("1.2.3.4", []byte("hits"), time.Minute))
	assert.True(t, s.Exists("limiter:1.2.3.4"))

	val, err = store.Get("1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, []byte("hits"), val)

	s.FastForward(2 * time.Minute)
	val, err = store.Get("1.2.3.4")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestLimiterStorage_ResetOnlyTouchesPrefix(t *testing.T) {
	s, rdb := newMiniRedis(t)
	store := NewLimiterStorage(rdb, "limiter:")

	require.NoError(t, store.Set("a", []byte("1"), 0))
	require.NoError(t, store.Set("b", []byte("2"), 0))
	require.NoError(t, s.Set("other", "keep"))

	require.NoError(t, store.Reset())
	assert.False(t, s.Exists("limiter:a"))
	assert.False(t, s.Exists("limiter:b"))
	assert.True(t, s.Exists("other"))

	require.NoError(t, store.Set("c", []byte("3"), 0))
	require.NoError(t, store.Delete("c"))
	assert.False(t, s.Exists("limiter:c"))
}

func TestResetTokenStore_ConsumeOnce(t *testing.T) {
	_, rdb := newMiniRedis(t)
	store := NewResetTokenStore(rdb)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok", "user-1", time.Minute))
	assert.Error(t, store.Save(ctx, "tok", "user-2", time.Minute))

	userID, err := store.Consume(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	_, err = store.Consume(ctx, "tok")
	assert.ErrorIs(t, err, ErrResetTokenNotFound)
}

func TestResetTokenStore_Expires(t *testing.T) {
	s, rdb := newMiniRedis(t)
	store := NewResetTokenStore(rdb)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok", "user-1", time.Minute))
	s.FastForward(time.Minute + time.Second)

	_, err := store.Consume(ctx, "tok")
	assert.ErrorIs(t, err, ErrResetTokenNotFound)
}

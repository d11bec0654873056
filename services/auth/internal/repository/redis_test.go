package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRateLimit_FixedWindow(t *testing.T) {
	mr, rdb := newRedis(t)
	rl := NewRateLimitRepository(rdb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "otp:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}

	ok, err := rl.Allow(ctx, "otp:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rl.Allow(ctx, "otp:5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other clients have their own window")

	mr.FastForward(time.Minute + time.Second)
	ok, err = rl.Allow(ctx, "otp:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "window resets")
}

func TestRateLimit_RedisDown(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()

	_, err := NewRateLimitRepository(rdb).Allow(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
}

func TestRedisBlacklist(t *testing.T) {
	mr, rdb := newRedis(t)
	now := time.Now()
	bl := NewRedisBlacklist(rdb, func() time.Time { return now })
	ctx := context.Background()

	revoked, err := bl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, bl.Revoke(ctx, "jti-1", now.Add(time.Hour)))
	revoked, err = bl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(time.Hour + time.Second)
	revoked, err = bl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "entry expires with the token")
}

func TestRedisBlacklist_AlreadyExpiredIsNoop(t *testing.T) {
	_, rdb := newRedis(t)
	now := time.Now()
	bl := NewRedisBlacklist(rdb, func() time.Time { return now })

	require.NoError(t, bl.Revoke(context.Background(), "old", now.Add(-time.Minute)))
	revoked, err := bl.IsRevoked(context.Background(), "old")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryBlacklist(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	bl := NewMemoryBlacklist(clock)
	ctx := context.Background()

	require.NoError(t, bl.Revoke(ctx, "a", now.Add(time.Minute)))
	revoked, _ := bl.IsRevoked(ctx, "a")
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, _ = bl.IsRevoked(ctx, "a")
	assert.False(t, revoked)
}

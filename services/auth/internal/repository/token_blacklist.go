package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist remembers revoked refresh-token ids until they would have
// expired anyway.
type TokenBlacklist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type redisBlacklist struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisBlacklist(rdb *redis.Client, now func() time.Time) TokenBlacklist {
	if now == nil {
		now = time.Now
	}
	return &redisBlacklist{rdb: rdb, prefix: "touristalert:revoked:", now: now}
}

func (b *redisBlacklist) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(b.now())
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := b.rdb.Set(ctx, b.prefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (b *redisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	n, err := b.rdb.Exists(ctx, b.prefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// MemoryBlacklist is the single-process fallback when redis is not configured.
type MemoryBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryBlacklist(now func() time.Time) *MemoryBlacklist {
	if now == nil {
		now = time.Now
	}
	return &MemoryBlacklist{revoked: map[string]time.Time{}, now: now}
}

func (m *MemoryBlacklist) Revoke(_ context.Context, jti string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = until
	return nil
}

func (m *MemoryBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.revoked[jti]
	if !ok {
		return false, nil
	}
	if !m.now().Before(until) {
		delete(m.revoked, jti)
		return false, nil
	}
	return true, nil
}

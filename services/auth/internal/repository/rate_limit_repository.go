package repository

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitRepository is a fixed-window counter per key.
type RateLimitRepository interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type rateLimitRepository struct {
	rdb    *redis.Client
	prefix string
}

func NewRateLimitRepository(rdb *redis.Client) RateLimitRepository {
	return &rateLimitRepository{rdb: rdb, prefix: "touristalert:ratelimit:"}
}

func (r *rateLimitRepository) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	// Hash the key so client addresses never land in redis verbatim.
	sum := sha256.Sum256([]byte(key))
	redisKey := fmt.Sprintf("%s%x", r.prefix, sum[:16])

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	n, err := r.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit: %w", err)
	}
	if n == 1 {
		if err := r.rdb.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	return n <= int64(limit), nil
}

// NoopRateLimit allows everything. Used when redis is not configured.
type NoopRateLimit struct{}

func (NoopRateLimit) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

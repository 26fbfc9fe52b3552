package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SultanSulimanSerj/portal/internal/domain"
)

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("login limiter unavailable")

const keyPrefix = "portal:login:"

// LoginLimiter counts failed logins per key in Redis. A key is blocked once it
// reaches maxAttempts failures inside window; the window starts at the first
// failure.
type LoginLimiter struct {
	redis       redis.Cmdable
	maxAttempts int64
	window      time.Duration
}

// NewLoginLimiter creates a limiter. Non-positive limits fall back to 5
// attempts per 15 minutes.
func NewLoginLimiter(client redis.Cmdable, maxAttempts int, window time.Duration) *LoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LoginLimiter{redis: client, maxAttempts: int64(maxAttempts), window: window}
}

// key hashes the raw key so emails never appear in Redis.
func (l *LoginLimiter) key(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// Check returns domain.ErrTooManyAttempts when key is blocked.
func (l *LoginLimiter) Check(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= l.maxAttempts {
		return domain.ErrTooManyAttempts
	}
	return nil
}

// RecordFailure counts one failed attempt and returns domain.ErrTooManyAttempts
// once the limit is reached.
func (l *LoginLimiter) RecordFailure(ctx context.Context, key string) error {
	k := l.key(key)
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if count >= l.maxAttempts {
		return domain.ErrTooManyAttempts
	}
	return nil
}

// Reset clears the failures of key.
func (l *LoginLimiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

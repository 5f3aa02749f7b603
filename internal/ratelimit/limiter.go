// Package ratelimit implements the mesh hub's rate limiter (C2): fixed-window
// counters backed by Redis, with a fail-open default when no backing store
// is configured.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter checks and increments fixed-window counters.
type Limiter struct {
	client *redis.Client
	logger *slog.Logger
}

// New wraps a redis client. A nil client makes every check fail-open.
func New(client *redis.Client, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{client: client, logger: logger}
}

// CheckAndIncrement reports whether key is within limit for the current
// fixed window of length window, after incrementing. window = floor(now /
// window) * window; the first hit in a window sets the expiry (spec §4.2).
// Absent a configured Redis client, it fails open and logs a warning.
func (l *Limiter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.client == nil {
		l.logger.WarnContext(ctx, "rate limiter has no backing store, failing open", "key", key)
		return true, nil
	}
	if limit <= 0 {
		limit = 1
	}

	windowSeconds := int64(window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	bucket := time.Now().Unix() / windowSeconds
	windowKey := fmt.Sprintf("%s:%d", key, bucket)

	count, err := l.client.Incr(ctx, windowKey).Result()
	if err != nil {
		return false, fmt.Errorf("increment rate limit counter %s: %w", windowKey, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, windowKey, window).Err(); err != nil {
			l.logger.WarnContext(ctx, "failed to set rate limit window expiry", "key", windowKey, "error", err)
		}
	}
	return count <= int64(limit), nil
}

// KeyForAPIKey builds the per-credential rate limit key (default 100/min).
func KeyForAPIKey(apiKeyID string) string {
	return fmt.Sprintf("rl:api:%s", apiKeyID)
}

// KeyForOrg builds the per-org rate limit key (env-configurable, default 600/min).
func KeyForOrg(orgID string) string {
	return fmt.Sprintf("rl:org:%s", orgID)
}

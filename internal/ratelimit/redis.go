// ABOUTME: Redis-backed fixed-window limiter for deployments not sharing a SQLite file
// ABOUTME: INCR + EXPIRE in one pipeline; keys self-expire after two windows

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts against a shared Redis instance. INCR is atomic on
// the server, so concurrent replicas never lose an increment.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
}

// NewRedisLimiter creates a limiter backed by the given Redis address.
func NewRedisLimiter(addr string, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		window: window,
	}
}

// windowKey builds the counter key for one tenant window.
func windowKey(tenantID string, ws int64) string {
	return fmt.Sprintf("hookgate:rate:%s:%d", tenantID, ws)
}

// IncrementAndCheck atomically increments the tenant's current window
// and compares against quota. The key expires after two windows, which
// is the Redis equivalent of lazy reclamation.
func (l *RedisLimiter) IncrementAndCheck(ctx context.Context, tenantID string, quota int) (Result, error) {
	now := time.Now().UTC()
	ws := windowStart(now, l.window)
	key := windowKey(tenantID, ws)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("incrementing redis window: %w", err)
	}

	return buildResult(incr.Val(), quota, ws, l.window), nil
}

// Usage reads the current window count without incrementing.
func (l *RedisLimiter) Usage(ctx context.Context, tenantID string, quota int) (Result, error) {
	now := time.Now().UTC()
	ws := windowStart(now, l.window)

	count, err := l.client.Get(ctx, windowKey(tenantID, ws)).Int64()
	if errors.Is(err, redis.Nil) {
		count = 0
	} else if err != nil {
		return Result{}, fmt.Errorf("reading redis window: %w", err)
	}

	return buildResult(count, quota, ws, l.window), nil
}

// Close releases the underlying Redis connection pool.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

// Ensure RedisLimiter implements Limiter.
var _ Limiter = (*RedisLimiter)(nil)

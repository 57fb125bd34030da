// Package ratelimit bounds protocol requests per caller key with a Redis fixed window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyPrefix namespaces rate limit counters in Redis.
const KeyPrefix = "voicetrust:ratelimit:"

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// Count is the number of requests seen in the current window, including this one.
	Count int64
	// RetryAfter is the remaining window when the request was refused.
	RetryAfter time.Duration
}

// Limiter is a fixed-window counter. A nil *Limiter allows everything.
type Limiter struct {
	client *redis.Client
	max    int64
	window time.Duration
	log    *zap.Logger
}

// New returns a Limiter allowing max requests per window and key. max <= 0 disables limiting.
func New(client *redis.Client, max int, window time.Duration, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{client: client, max: int64(max), window: window, log: log}
}

// NewFromURL parses a redis:// URL and returns a Limiter with its own client.
func NewFromURL(url string, max int, window time.Duration, log *zap.Logger) (*Limiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse redis url: %w", err)
	}
	return New(redis.NewClient(opts), max, window, log), nil
}

// Allow counts one request for key. Redis failures fail open and are logged.
func (l *Limiter) Allow(ctx context.Context, scope, key string) Decision {
	if l == nil || l.client == nil || l.max <= 0 || key == "" {
		return Decision{Allowed: true}
	}
	rk := KeyPrefix + scope + ":" + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, rk)
	pipe.ExpireNX(ctx, rk, l.window)
	ttl := pipe.PTTL(ctx, rk)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Warn("ratelimit: redis unavailable, allowing request", zap.String("scope", scope), zap.Error(err))
		return Decision{Allowed: true}
	}

	n := incr.Val()
	if n <= l.max {
		return Decision{Allowed: true, Count: n}
	}
	retry := ttl.Val()
	if retry <= 0 {
		retry = l.window
	}
	l.log.Debug("ratelimit: limit exceeded", zap.String("scope", scope), zap.Int64("count", n), zap.Int64("max", l.max))
	return Decision{Allowed: false, Count: n, RetryAfter: retry}
}

// Ping checks the Redis connection.
func (l *Limiter) Ping(ctx context.Context) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (l *Limiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}

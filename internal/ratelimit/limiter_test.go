package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupLimiter(t *testing.T, max int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, max, window, zaptest.NewLogger(t)), mr
}

func TestLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	l, mr := setupLimiter(t, 3, time.Minute)

	for i := 1; i <= 3; i++ {
		d := l.Allow(ctx, "confirm", "+2250701020304")
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, int64(i), d.Count)
	}
	d := l.Allow(ctx, "confirm", "+2250701020304")
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	other := l.Allow(ctx, "confirm", "+2250505050505")
	assert.True(t, other.Allowed, "keys are independent")
	scoped := l.Allow(ctx, "escalate", "+2250701020304")
	assert.True(t, scoped.Allowed, "scopes are independent")

	mr.FastForward(time.Minute + time.Second)
	d = l.Allow(ctx, "confirm", "+2250701020304")
	assert.True(t, d.Allowed, "window reset")
	assert.Equal(t, int64(1), d.Count)
}

func TestLimiter_WindowNotExtendedByTraffic(t *testing.T) {
	ctx := context.Background()
	l, mr := setupLimiter(t, 100, time.Minute)
	l.Allow(ctx, "verify", "m-1")
	mr.FastForward(40 * time.Second)
	l.Allow(ctx, "verify", "m-1")
	assert.LessOrEqual(t, mr.TTL(KeyPrefix+"verify:m-1"), 20*time.Second)
}

func TestLimiter_FailsOpen(t *testing.T) {
	l, mr := setupLimiter(t, 1, time.Minute)
	mr.Close()
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(context.Background(), "confirm", "k").Allowed)
	}
}

func TestLimiter_DisabledAndNil(t *testing.T) {
	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow(context.Background(), "confirm", "k").Allowed)
	assert.NoError(t, nilLimiter.Ping(context.Background()))
	assert.NoError(t, nilLimiter.Close())

	l, _ := setupLimiter(t, 0, time.Minute)
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(context.Background(), "confirm", "k").Allowed)
	}
}

func TestNewFromURL_Invalid(t *testing.T) {
	_, err := NewFromURL("http://nope", 1, time.Minute, nil)
	assert.Error(t, err)
}

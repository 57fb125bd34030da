package security

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TokenFetcher obtains a fresh third-party access token and its absolute expiry.
type TokenFetcher func(ctx context.Context) (token string, expiresAt time.Time, err error)

// TokenCache holds one third-party access token and refreshes it on demand.
// It is safe for concurrent use; concurrent callers share one refresh.
type TokenCache struct {
	fetch TokenFetcher
	skew  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenCache returns a cache that refreshes skew before the cached token expires.
func NewTokenCache(fetch TokenFetcher, skew time.Duration) *TokenCache {
	if skew < 0 {
		skew = 0
	}
	return &TokenCache{fetch: fetch, skew: skew, now: time.Now}
}

// Token returns the cached token, fetching a new one when none is cached or it is about to expire.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Add(c.skew).Before(c.expiresAt) {
		return c.token, nil
	}
	if c.fetch == nil {
		return "", errors.New("token cache: no fetcher configured")
	}
	tok, exp, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", errors.New("token cache: fetcher returned empty token")
	}
	c.token, c.expiresAt = tok, exp
	return tok, nil
}

// Invalidate drops the cached token so the next Token call refreshes (e.g. after a 401).
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token, c.expiresAt = "", time.Time{}
	c.mu.Unlock()
}

// ExpiresAt returns the expiry of the cached token; zero when empty.
func (c *TokenCache) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}

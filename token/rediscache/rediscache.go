// Package rediscache keeps revoked access token IDs in Redis so every
// server instance sharing the same Redis sees a revocation.
package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-password-auth/token"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "auth:revoked:"

var _ token.RevokedTokenCache = (*RevokedTokenCache)(nil)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type RevokedTokenCache struct {
	rdb    *redis.Client
	prefix string
}

// New connects to redisURL (for example redis://:pass@host:6379/0) and pings it.
// An empty prefix selects "auth:revoked:".
func New(ctx context.Context, redisURL, prefix string) (*RevokedTokenCache, error) {
	const op = "rediscache.New"

	if prefix == "" {
		prefix = defaultPrefix
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return &RevokedTokenCache{rdb: rdb, prefix: prefix}, nil
}

func (c *RevokedTokenCache) key(jti string) string { return c.prefix + jti }

// Add stores jti until exp. Entries that have already expired are skipped,
// the token is rejected by its exp claim anyway.
func (c *RevokedTokenCache) Add(ctx context.Context, jti string, exp time.Time) error {
	ttl := exp.Sub(NowTimeFunc())
	if ttl <= 0 {
		return nil
	}
	if err := c.rdb.Set(ctx, c.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("rediscache.Add: %w", err)
	}
	return nil
}

func (c *RevokedTokenCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("rediscache.IsRevoked: %w", err)
	}
	return n > 0, nil
}

// Cleanup is a no-op, Redis expires the keys itself.
func (c *RevokedTokenCache) Cleanup(context.Context) error { return nil }

func (c *RevokedTokenCache) Close() error { return c.rdb.Close() }

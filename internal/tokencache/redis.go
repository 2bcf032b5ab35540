package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache is a Redis-backed token cache shared across gateway instances.
// Entries are stored as JSON with a Redis TTL matching the token's cache
// lifetime, so Redis evicts what Get would refuse to return anyway.
type RedisCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisCache creates a Redis token cache and verifies connectivity.
func NewRedisCache(addr, pass string, db int, logger *zap.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisCache{rdb: rdb, logger: logger}, nil
}

// NewRedisCacheFromClient wraps an existing client (used by tests).
func NewRedisCacheFromClient(rdb *redis.Client, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{rdb: rdb, logger: logger}
}

// Get returns a cached token if present and not expired. The local ExpiresAt
// check backstops Redis TTL eviction, which is not instantaneous.
func (c *RedisCache) Get(ctx context.Context, key Key) (Token, bool, error) {
	data, err := c.rdb.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, fmt.Errorf("token cache get: %w", err)
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		// Unreadable entry: treat as a miss and drop it.
		c.logger.Warn("tokencache.decode_failed",
			zap.String("key", key.String()),
			zap.Error(err))
		_ = c.rdb.Del(ctx, key.String()).Err()
		return Token{}, false, nil
	}
	if !time.Now().Before(tok.ExpiresAt) {
		return Token{}, false, nil
	}
	return tok, true, nil
}

// Put overwrites the entry for key. The JSON value is written atomically with
// its TTL in a single SET, so concurrent readers see either the old complete
// entry or the new one.
func (c *RedisCache) Put(ctx context.Context, key Key, value string, ttl time.Duration) (Token, error) {
	now := time.Now()
	tok := Token{
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return Token{}, err
	}
	if err := c.rdb.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		return Token{}, fmt.Errorf("token cache put: %w", err)
	}
	return tok, nil
}

// Invalidate removes a single entry immediately.
func (c *RedisCache) Invalidate(ctx context.Context, key Key) error {
	if err := c.rdb.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("token cache invalidate: %w", err)
	}
	return nil
}

// InvalidateTenant removes every entry for a tenant by scanning the tenant's
// key prefix. Tenants never share a prefix, so this cannot touch another
// tenant's tokens.
func (c *RedisCache) InvalidateTenant(ctx context.Context, tenantID string) error {
	pattern := "token:" + tenantID + ":*"
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("token cache invalidate tenant: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("token cache scan: %w", err)
	}
	return nil
}

// HealthCheck pings Redis.
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

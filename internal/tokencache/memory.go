package tokencache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache is a thread-safe in-process token cache. Suitable for a single
// gateway instance; multi-instance deployments share tokens via RedisCache.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]Token
}

// NewMemoryCache creates an empty in-memory token cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]Token)}
}

// Get returns a cached token if present and not expired.
func (c *MemoryCache) Get(_ context.Context, key Key) (Token, bool, error) {
	k := key.String()

	c.mu.RLock()
	tok, ok := c.data[k]
	c.mu.RUnlock()
	if !ok {
		return Token{}, false, nil
	}
	if !time.Now().Before(tok.ExpiresAt) {
		// Expired — remove and miss
		c.deleteIfUnchanged(k, tok)
		return Token{}, false, nil
	}
	return tok, true, nil
}

// deleteIfUnchanged drops the entry for k only while it still holds tok. A
// fresh token written by a racing Put between the expired read and this
// delete survives.
func (c *MemoryCache) deleteIfUnchanged(k string, tok Token) {
	c.mu.Lock()
	if cur, ok := c.data[k]; ok && cur == tok {
		delete(c.data, k)
	}
	c.mu.Unlock()
}

// Put overwrites the entry for key with a fresh token expiring after ttl.
func (c *MemoryCache) Put(_ context.Context, key Key, value string, ttl time.Duration) (Token, error) {
	now := time.Now()
	tok := Token{
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	c.mu.Lock()
	c.data[key.String()] = tok
	c.mu.Unlock()
	return tok, nil
}

// Invalidate removes a single entry.
func (c *MemoryCache) Invalidate(_ context.Context, key Key) error {
	c.mu.Lock()
	delete(c.data, key.String())
	c.mu.Unlock()
	return nil
}

// InvalidateTenant removes every entry belonging to a tenant.
func (c *MemoryCache) InvalidateTenant(_ context.Context, tenantID string) error {
	prefix := "token:" + tenantID + ":"
	c.mu.Lock()
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	c.mu.Unlock()
	return nil
}

// StartCleaner periodically removes expired entries so abandoned scopes do
// not accumulate. Get already treats expired entries as absent.
func (c *MemoryCache) StartCleaner(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, v := range c.data {
				if now.After(v.ExpiresAt) {
					delete(c.data, k)
				}
			}
			c.mu.Unlock()
		case <-stop:
			return
		}
	}
}

package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = time.Minute

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// Cache stores bytes in Redis, or in process memory when no client is given.
type Cache struct {
	rc *redis.Client

	mu    sync.Mutex
	local map[string]cacheEntry
}

func NewCache(rc *redis.Client) *Cache {
	return &Cache{rc: rc, local: map[string]cacheEntry{}}
}

// Get returns the cached bytes for key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		b, err := c.rc.Get(ctx, key).Bytes()
		if err != nil {
			if err != redis.Nil {
				L().Sugar().Debugf("cache get failed key=%s err=%v", key, err)
			}
			return nil, false
		}
		return b, true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.local[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.local, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value for ttl.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if c.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := c.rc.Set(ctx, key, value, ttl).Err(); err != nil {
			L().Sugar().Warnf("cache set failed key=%s err=%v", key, err)
		}
		return
	}
	c.mu.Lock()
	c.local[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Delete drops key.
func (c *Cache) Delete(ctx context.Context, key string) {
	if c.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_ = c.rc.Del(ctx, key).Err()
		return
	}
	c.mu.Lock()
	delete(c.local, key)
	c.mu.Unlock()
}

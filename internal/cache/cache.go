package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProductCache is a read-through cache for catalog responses. A nil
// *ProductCache is valid and disables caching, so callers never branch on
// whether Redis is configured.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and pings it. An empty addr returns a nil cache.
func New(ctx context.Context, addr, password string, ttl time.Duration) (*ProductCache, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &ProductCache{client: client, ttl: ttl}, nil
}

// Get unmarshals a cached value into dest, reporting whether it was present.
func (c *ProductCache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[Cache] Failed to read %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		log.Printf("[Cache] Corrupt entry %s, dropping: %v", key, err)
		c.client.Del(ctx, key)
		return false
	}
	return true
}

// Set stores a value under the configured TTL. Failures are logged, never
// surfaced; the cache is strictly best-effort.
func (c *ProductCache) Set(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("[Cache] Failed to write %s: %v", key, err)
	}
}

// Invalidate removes keys after a catalog write.
func (c *ProductCache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[Cache] Failed to invalidate: %v", err)
	}
}

// InvalidatePrefix drops every key under a prefix, used when any product
// changes and all list pages go stale at once.
func (c *ProductCache) InvalidatePrefix(ctx context.Context, prefix string) {
	if c == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("[Cache] Scan failed for %s: %v", prefix, err)
		return
	}
	c.Invalidate(ctx, keys...)
}

// Close releases the underlying connection.
func (c *ProductCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

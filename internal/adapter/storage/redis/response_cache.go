package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vending-payout-console/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// ResponseCache implements ports.ResponseCache using Redis. The stored entry
// carries its own cached_at and ttl so hit metadata survives the round trip.
type ResponseCache struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

// NewResponseCache creates a new Redis-backed response cache.
func NewResponseCache(client *goredis.Client) *ResponseCache {
	return &ResponseCache{
		client: client,
		prefix: "respcache:",
		now:    time.Now,
	}
}

// Get retrieves a cached entry by cache key.
// Returns nil, nil if the key does not exist.
func (c *ResponseCache) Get(ctx context.Context, cacheKey string) (*domain.CacheEntry, error) {
	val, err := c.client.Get(ctx, c.prefix+cacheKey).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis response cache get: %w", err)
	}

	entry := &domain.CacheEntry{}
	if err := json.Unmarshal(val, entry); err != nil {
		return nil, fmt.Errorf("redis response cache decode: %w", err)
	}
	return entry, nil
}

// Put stores a payload under the cache key with the given TTL. The Redis key
// expires with the entry, so stale payloads clean themselves up.
func (c *ResponseCache) Put(ctx context.Context, cacheKey string, payload json.RawMessage, ttl time.Duration) error {
	entry := domain.CacheEntry{
		CacheKey: cacheKey,
		Payload:  payload,
		CachedAt: c.now().UTC(),
		TTL:      ttl,
	}
	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis response cache encode: %w", err)
	}

	if err := c.client.Set(ctx, c.prefix+cacheKey, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis response cache set: %w", err)
	}
	return nil
}

package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// AdmissionStore implements ports.AdmissionStore using Redis. The side-table
// is keyed per cache key and holds one unix-nano timestamp: the earliest
// instant a fresh remote call is admitted. Its lifetime is independent of
// the cached payload, so the dispatch window keeps holding after the
// payload expires.
type AdmissionStore struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

// NewAdmissionStore creates a new Redis-backed admission store.
func NewAdmissionStore(client *goredis.Client) *AdmissionStore {
	return &AdmissionStore{
		client: client,
		prefix: "admission:",
		now:    time.Now,
	}
}

// NextAllowedAt returns when the next call for the cache key is admitted.
// Returns nil, nil when the window is open.
func (s *AdmissionStore) NextAllowedAt(ctx context.Context, cacheKey string) (*time.Time, error) {
	val, err := s.client.Get(ctx, s.prefix+cacheKey).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis admission get: %w", err)
	}

	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis admission decode: %w", err)
	}

	at := time.Unix(0, nanos)
	if !s.now().Before(at) {
		return nil, nil
	}
	return &at, nil
}

// SetNextAllowed records the earliest admitted instant for the cache key.
// The key expires when the window opens; an expired key and an open window
// are the same thing.
func (s *AdmissionStore) SetNextAllowed(ctx context.Context, cacheKey string, at time.Time) error {
	ttl := at.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	val := strconv.FormatInt(at.UnixNano(), 10)
	if err := s.client.Set(ctx, s.prefix+cacheKey, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis admission set: %w", err)
	}
	return nil
}

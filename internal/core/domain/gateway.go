package domain

import (
	"encoding/json"
	"time"
)

// CacheEntry is one stored read-call result. Entries are overwritten on
// refresh and expire by TTL; there is no explicit eviction.
type CacheEntry struct {
	CacheKey string          `json:"cache_key"`
	Payload  json.RawMessage `json:"payload"`
	CachedAt time.Time       `json:"cached_at"`
	TTL      time.Duration   `json:"ttl"`
}

// Age returns how long ago the entry was stored.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}

// Live reports whether the entry is still within its TTL.
func (e *CacheEntry) Live(now time.Time) bool {
	return e.TTL > 0 && now.Before(e.CachedAt.Add(e.TTL))
}

// CallOptions tweaks a single gateway call.
type CallOptions struct {
	Force bool // bypass a live cache entry (still subject to admission)
}

// CallMeta is the cache/rate-limit metadata attached to every gateway result,
// surfaced to the console as the _cache envelope.
type CallMeta struct {
	Cached          bool       `json:"cached"`
	CacheAgeSeconds int64      `json:"cache_age_seconds"`
	NextAllowedAt   *time.Time `json:"next_allowed_at,omitempty"`
}

// CallResult is the gateway's answer to one call.
type CallResult struct {
	Payload json.RawMessage `json:"result"`
	Meta    CallMeta        `json:"_cache"`
}

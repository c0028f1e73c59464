// Package cache provides the response cache for the gateway: a store
// interface with TTL semantics, an in-memory LRU implementation, a Redis
// implementation, and deterministic cache-key generation.
package cache

import (
	"context"
	"time"
)

// Store is the interface all cache backends implement. A Get for an absent
// or TTL-expired key returns (nil, nil); implementations may lazily evict
// on read. Concurrent reads are allowed; a write racing a read for the same
// key yields either the old or the new value, never a torn one.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) error
	Close() error
}

// Stats holds cache statistics for monitoring.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	HitRate float64 `json:"hit_rate"`
}

package backend

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MetadataCache decorates a Handle with connector-side metadata caching.
// Metadata is the only operation cached: the contract makes metadata
// cacheable by the connector, never by the core, and this decorator is the
// stock way for connectors to honor that.
type MetadataCache struct {
	Handle
	cache *gocache.Cache
	ttl   time.Duration
}

const metadataCacheKey = "metadata"

// WithMetadataCache wraps h so Metadata calls are served from an in-process
// cache for ttl. A ttl of 0 defaults to 5 minutes.
func WithMetadataCache(h Handle, ttl time.Duration) *MetadataCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MetadataCache{
		Handle: h,
		cache:  gocache.New(ttl, 2*ttl),
		ttl:    ttl,
	}
}

// Metadata returns the cached snapshot when fresh, otherwise delegates and
// stores the result. Errors are never cached.
func (m *MetadataCache) Metadata(ctx context.Context) (*Metadata, error) {
	if v, ok := m.cache.Get(metadataCacheKey); ok {
		if md, ok := v.(*Metadata); ok {
			return md, nil
		}
	}

	md, err := m.Handle.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	m.cache.Set(metadataCacheKey, md, m.ttl)
	return md, nil
}

// Invalidate drops the cached snapshot, forcing the next Metadata call to
// hit the connector.
func (m *MetadataCache) Invalidate() {
	m.cache.Delete(metadataCacheKey)
}

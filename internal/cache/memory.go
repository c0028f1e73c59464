package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore is an in-memory Store with TTL expiry and bounded-size LRU
// eviction. Expired entries are logically absent immediately and physically
// removed lazily on read or by the background janitor.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*list.Element
	lru     *list.List // front = most recently used

	maxEntries int
	defaultTTL time.Duration

	janitor     *time.Ticker
	stopJanitor chan struct{}
	closeOnce   sync.Once

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryConfig holds configuration for MemoryStore.
type MemoryConfig struct {
	MaxEntries      int           // maximum number of entries (default 1000)
	DefaultTTL      time.Duration // TTL applied when Set receives 0 (default 10m)
	CleanupInterval time.Duration // janitor interval (default 1m)
}

// DefaultMemoryConfig returns sensible defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxEntries:      1000,
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// NewMemoryStore creates an in-memory store and starts its janitor.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 10 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	s := &MemoryStore{
		entries:     make(map[string]*list.Element),
		lru:         list.New(),
		maxEntries:  cfg.MaxEntries,
		defaultTTL:  cfg.DefaultTTL,
		janitor:     time.NewTicker(cfg.CleanupInterval),
		stopJanitor: make(chan struct{}),
	}
	go s.janitorLoop()
	return s
}

func (s *MemoryStore) janitorLoop() {
	for {
		select {
		case <-s.janitor.C:
			s.evictExpired()
		case <-s.stopJanitor:
			return
		}
	}
}

func (s *MemoryStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, el := range s.entries {
		entry := el.Value.(*memoryEntry)
		if !entry.expiresAt.IsZero() && !entry.expiresAt.After(now) {
			s.lru.Remove(el)
			delete(s.entries, key)
		}
	}
}

// Get returns the value for key, or (nil, nil) when absent or expired.
// Expired entries are evicted on the spot. A hit refreshes LRU recency.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	el, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		s.misses.Add(1)
		return nil, nil
	}

	entry := el.Value.(*memoryEntry)
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(time.Now()) {
		s.lru.Remove(el)
		delete(s.entries, key)
		s.mu.Unlock()
		s.misses.Add(1)
		return nil, nil
	}

	s.lru.MoveToFront(el)
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	s.mu.Unlock()

	s.hits.Add(1)
	return value, nil
}

// Set inserts or replaces the value for key. At capacity the
// least-recently-used entry is evicted first.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	expiresAt := time.Now().Add(ttl)

	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = stored
		entry.expiresAt = expiresAt
		s.lru.MoveToFront(el)
		s.sets.Add(1)
		return nil
	}

	if s.lru.Len() >= s.maxEntries {
		if back := s.lru.Back(); back != nil {
			evicted := back.Value.(*memoryEntry)
			s.lru.Remove(back)
			delete(s.entries, evicted.key)
		}
	}

	s.entries[key] = s.lru.PushFront(&memoryEntry{
		key:       key,
		value:     stored,
		expiresAt: expiresAt,
	})
	s.sets.Add(1)
	return nil
}

// Delete removes key from the store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.lru.Remove(el)
		delete(s.entries, key)
	}
	return nil
}

// Flush removes all entries.
func (s *MemoryStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*list.Element)
	s.lru.Init()
	return nil
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		s.janitor.Stop()
		close(s.stopJanitor)
	})
	return nil
}

// Len returns the number of physically present entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lru.Len()
}

// Stats returns hit/miss counters.
func (s *MemoryStore) Stats() Stats {
	hits := s.hits.Load()
	misses := s.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    s.sets.Load(),
		HitRate: hitRate,
	}
}

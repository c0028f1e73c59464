package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	gwerrors "github.com/llmhub/llmhub/pkg/errors"
	"github.com/llmhub/llmhub/pkg/types"
)

// ClientRateLimitConfig holds configuration for the client-side rate
// limit middleware.
type ClientRateLimitConfig struct {
	// RPM is the allowed request rate per key in requests per minute
	// (default 60).
	RPM int

	// Burst is the burst size per key (default 10).
	Burst int

	// CleanupTTL controls how long an idle key's limiter is retained
	// (default 10m).
	CleanupTTL time.Duration
}

// ClientRateLimit throttles requests per caller before they reach
// admission control, keyed by the request's user field (falling back to
// the selected backend when unset). It complements the per-backend token
// bucket: that protects backends, this spreads a shared deployment fairly
// across callers.
type ClientRateLimit struct {
	Base

	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time

	limit      rate.Limit
	burst      int
	cleanupTTL time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewClientRateLimit creates the middleware and starts its idle-limiter
// cleanup loop.
func NewClientRateLimit(cfg ClientRateLimitConfig) *ClientRateLimit {
	if cfg.RPM <= 0 {
		cfg.RPM = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.CleanupTTL <= 0 {
		cfg.CleanupTTL = 10 * time.Minute
	}

	m := &ClientRateLimit{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		limit:      rate.Limit(float64(cfg.RPM) / 60.0),
		burst:      cfg.Burst,
		cleanupTTL: cfg.CleanupTTL,
		stop:       make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func (m *ClientRateLimit) Name() string { return "client_rate_limit" }

func (m *ClientRateLimit) BeforeDispatch(ctx *Context, req *types.Request) error {
	key := req.User
	if key == "" {
		key = ctx.Backend
	}

	if !m.limiter(key).Allow() {
		retryAfter := time.Duration(float64(time.Second) / float64(m.limit))
		return gwerrors.NewRateLimited(ctx.Backend, retryAfter)
	}
	return nil
}

// Close stops the cleanup loop.
func (m *ClientRateLimit) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *ClientRateLimit) limiter(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.limiters[key]
	if !ok {
		l = rate.NewLimiter(m.limit, m.burst)
		m.limiters[key] = l
	}
	m.lastAccess[key] = time.Now()
	return l
}

func (m *ClientRateLimit) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stop:
			return
		}
	}
}

func (m *ClientRateLimit) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.cleanupTTL)
	for key, last := range m.lastAccess {
		if last.Before(cutoff) {
			delete(m.limiters, key)
			delete(m.lastAccess, key)
		}
	}
}

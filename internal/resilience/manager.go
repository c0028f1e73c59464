package resilience

import (
	"sync"
	"time"
)

// Limits holds the admission-control settings for one backend.
type Limits struct {
	// RefillRate is the token refill rate in requests/second.
	RefillRate float64
	// Capacity is the bucket size.
	Capacity float64
	// Breaker overrides the default circuit breaker config when non-nil.
	Breaker *CircuitBreakerConfig
}

// ManagerConfig contains defaults applied to backends without explicit
// limits.
type ManagerConfig struct {
	CircuitBreaker CircuitBreakerConfig
	DefaultRate    float64
	DefaultBurst   float64
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		DefaultRate:    100,
		DefaultBurst:   50,
	}
}

// Manager partitions rate-limiter and circuit-breaker state per backend id.
// Operations on different backends never contend for the same lock; the
// manager's own mutex guards only the lookup tables.
type Manager struct {
	mu              sync.RWMutex
	circuitBreakers map[string]*CircuitBreaker
	rateLimiters    map[string]*RateLimiter
	limits          map[string]Limits
	cfg             ManagerConfig
	onStateChange   func(name string, from, to CircuitState)
}

// NewManager creates a resilience manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		circuitBreakers: make(map[string]*CircuitBreaker),
		rateLimiters:    make(map[string]*RateLimiter),
		limits:          make(map[string]Limits),
		cfg:             cfg,
	}
}

// OnStateChange sets the callback applied to every breaker the manager
// creates. Must be called before the first request is processed.
func (m *Manager) OnStateChange(fn func(name string, from, to CircuitState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
	for _, cb := range m.circuitBreakers {
		cb.OnStateChange(fn)
	}
}

// SetLimits configures per-backend limits, replacing any live limiter and
// breaker for that backend.
func (m *Manager) SetLimits(backend string, limits Limits) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.limits[backend] = limits
	delete(m.rateLimiters, backend)
	delete(m.circuitBreakers, backend)
}

// Breaker returns (creating if needed) the circuit breaker for backend.
func (m *Manager) Breaker(backend string) *CircuitBreaker {
	m.mu.RLock()
	cb, ok := m.circuitBreakers[backend]
	m.mu.RUnlock()
	if ok {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok = m.circuitBreakers[backend]; ok {
		return cb
	}

	cfg := m.cfg.CircuitBreaker
	if limits, ok := m.limits[backend]; ok && limits.Breaker != nil {
		cfg = *limits.Breaker
	}

	cb = NewCircuitBreaker(backend, cfg)
	if m.onStateChange != nil {
		cb.OnStateChange(m.onStateChange)
	}
	m.circuitBreakers[backend] = cb
	return cb
}

// Limiter returns (creating if needed) the rate limiter for backend.
func (m *Manager) Limiter(backend string) *RateLimiter {
	m.mu.RLock()
	rl, ok := m.rateLimiters[backend]
	m.mu.RUnlock()
	if ok {
		return rl
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if rl, ok = m.rateLimiters[backend]; ok {
		return rl
	}

	rate, burst := m.cfg.DefaultRate, m.cfg.DefaultBurst
	if limits, ok := m.limits[backend]; ok {
		rate, burst = limits.RefillRate, limits.Capacity
	}

	rl = NewRateLimiter(rate, burst)
	m.rateLimiters[backend] = rl
	return rl
}

// Admit runs the breaker gate then the limiter gate for backend. On
// rejection it reports which gate refused and the suggested wait for rate
// limiting.
func (m *Manager) Admit(backend string) (ok bool, circuitOpen bool, retryAfter time.Duration) {
	if !m.Breaker(backend).Allow() {
		return false, true, 0
	}
	allowed, wait := m.Limiter(backend).Check()
	if !allowed {
		// The breaker admitted but the limiter refused; give back any
		// half-open trial slot Allow took.
		m.Breaker(backend).ReleaseTrial()
		return false, false, wait
	}
	return true, false, 0
}

// RecordSuccess records a successful dispatch for backend.
func (m *Manager) RecordSuccess(backend string) {
	m.Breaker(backend).RecordSuccess()
}

// RecordFailure records a failed dispatch for backend.
func (m *Manager) RecordFailure(backend string) {
	m.Breaker(backend).RecordFailure()
}

// ReleaseTrial returns backend's half-open trial slot when a dispatch
// ended with neither a success nor a failure.
func (m *Manager) ReleaseTrial(backend string) {
	m.Breaker(backend).ReleaseTrial()
}

// ConsumeUsage debits extra rate-limit tokens for observed usage.
func (m *Manager) ConsumeUsage(backend string, n float64) {
	m.Limiter(backend).ConsumeUsage(n)
}

// CircuitOpen reports whether the breaker for backend is currently open.
// It never mutates breaker state, so selectors can poll it freely.
func (m *Manager) CircuitOpen(backend string) bool {
	m.mu.RLock()
	cb, ok := m.circuitBreakers[backend]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return cb.State() == StateOpen
}

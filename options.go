package llmhub

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/llmhub/llmhub/internal/cache"
	"github.com/llmhub/llmhub/internal/config"
	"github.com/llmhub/llmhub/internal/resilience"
	"github.com/llmhub/llmhub/internal/telemetry"
	"github.com/llmhub/llmhub/pkg/backend"
	"github.com/llmhub/llmhub/pkg/middleware"
	"github.com/llmhub/llmhub/pkg/selector"
)

// Pricing holds a backend's price table in USD per 1000 tokens.
type Pricing struct {
	InputCostPer1K  float64
	OutputCostPer1K float64
}

// HubConfig holds all configuration for the Hub. Use the With* options to
// populate it.
type HubConfig struct {
	Backends []backend.Handle

	// Selection
	Strategy selector.Strategy
	Priority []string

	// Admission control
	BackendLimits map[string]resilience.Limits
	DefaultRate   float64
	DefaultBurst  float64
	Breaker       resilience.CircuitBreakerConfig

	// Caching
	CacheEnabled bool
	CacheStore   cache.Store
	CacheTTL     time.Duration

	// Pricing for cost-optimized selection and spend telemetry.
	Prices map[string]Pricing

	// Metadata caching for backend handles. Zero disables the decorator.
	MetadataCacheTTL time.Duration

	// Recovery bounds
	MaxRetries   int
	MaxFallbacks int

	// DispatchTimeout bounds each backend call.
	DispatchTimeout time.Duration

	Middlewares []middleware.Middleware
	Sink        telemetry.Sink
	Logger      *slog.Logger

	// LatencyWindow sizes the per-backend p50 sample window.
	LatencyWindow int

	err error
}

func defaultHubConfig() *HubConfig {
	return &HubConfig{
		Strategy:        selector.NewRoundRobin(),
		BackendLimits:   make(map[string]resilience.Limits),
		DefaultRate:     100,
		DefaultBurst:    50,
		Breaker:         resilience.DefaultCircuitBreakerConfig(),
		CacheEnabled:    true,
		CacheTTL:        10 * time.Minute,
		Prices:          make(map[string]Pricing),
		MaxRetries:      3,
		MaxFallbacks:    1,
		DispatchTimeout: 60 * time.Second,
		Logger:          slog.Default(),
	}
}

// Option configures a Hub.
type Option func(*HubConfig)

// WithBackend registers a backend handle.
func WithBackend(h backend.Handle) Option {
	return func(c *HubConfig) {
		c.Backends = append(c.Backends, h)
	}
}

// WithStrategy sets the selection strategy.
func WithStrategy(s selector.Strategy) Option {
	return func(c *HubConfig) {
		c.Strategy = s
	}
}

// WithFailoverPriority orders candidates for the failover strategy. The
// order also pins the candidate sequence for round robin.
func WithFailoverPriority(ids ...string) Option {
	return func(c *HubConfig) {
		c.Priority = ids
	}
}

// WithBackendLimits sets per-backend admission limits.
func WithBackendLimits(name string, limits resilience.Limits) Option {
	return func(c *HubConfig) {
		c.BackendLimits[name] = limits
	}
}

// WithDefaultRate sets the token bucket defaults for backends without
// explicit limits.
func WithDefaultRate(rate, burst float64) Option {
	return func(c *HubConfig) {
		c.DefaultRate = rate
		c.DefaultBurst = burst
	}
}

// WithBreaker sets the default circuit breaker thresholds.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *HubConfig) {
		c.Breaker = cfg
	}
}

// WithCacheStore supplies the response cache store. The Hub owns the store
// and closes it on Close.
func WithCacheStore(s cache.Store) Option {
	return func(c *HubConfig) {
		c.CacheStore = s
	}
}

// WithCacheTTL sets the response cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *HubConfig) {
		c.CacheTTL = ttl
	}
}

// WithoutCache disables the response cache.
func WithoutCache() Option {
	return func(c *HubConfig) {
		c.CacheEnabled = false
	}
}

// WithPricing sets the price table for one backend.
func WithPricing(name string, p Pricing) Option {
	return func(c *HubConfig) {
		c.Prices[name] = p
	}
}

// WithMetadataCaching wraps each registered handle so metadata lookups are
// served from a local cache for ttl.
func WithMetadataCaching(ttl time.Duration) Option {
	return func(c *HubConfig) {
		c.MetadataCacheTTL = ttl
	}
}

// WithMaxRetries sets the hard retry ceiling per request.
func WithMaxRetries(n int) Option {
	return func(c *HubConfig) {
		c.MaxRetries = n
	}
}

// WithMaxFallbacks bounds fallback hops per request.
func WithMaxFallbacks(n int) Option {
	return func(c *HubConfig) {
		c.MaxFallbacks = n
	}
}

// WithDispatchTimeout bounds each backend call.
func WithDispatchTimeout(d time.Duration) Option {
	return func(c *HubConfig) {
		c.DispatchTimeout = d
	}
}

// WithMiddleware appends middlewares to the pipeline in the given order.
func WithMiddleware(ms ...middleware.Middleware) Option {
	return func(c *HubConfig) {
		c.Middlewares = append(c.Middlewares, ms...)
	}
}

// WithTelemetrySink sets the telemetry sink.
func WithTelemetrySink(s telemetry.Sink) Option {
	return func(c *HubConfig) {
		c.Sink = s
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *HubConfig) {
		c.Logger = l
	}
}

// WithLatencyWindow sizes the p50 latency sample window per backend.
func WithLatencyWindow(n int) Option {
	return func(c *HubConfig) {
		c.LatencyWindow = n
	}
}

// FromConfig applies a loaded configuration file: backend limits and
// prices, selection strategy, cache settings, recovery bounds, and logger.
// Backend handles still need to be registered with WithBackend.
func FromConfig(cfg *config.Config) Option {
	return func(c *HubConfig) {
		for _, b := range cfg.Backends {
			// A backend with neither rate nor breaker settings keeps the
			// manager defaults instead of an empty, always-rejecting bucket.
			if b.RefillRate > 0 || b.Burst > 0 || b.Breaker != nil {
				limits := resilience.Limits{
					RefillRate: b.RefillRate,
					Capacity:   b.Burst,
				}
				if b.RefillRate == 0 && b.Burst == 0 {
					limits.RefillRate = c.DefaultRate
					limits.Capacity = c.DefaultBurst
				}
				if b.Breaker != nil {
					limits.Breaker = &resilience.CircuitBreakerConfig{
						FailureThreshold:    b.Breaker.FailureThreshold,
						SuccessThreshold:    b.Breaker.SuccessThreshold,
						OpenDuration:        b.Breaker.OpenDuration,
						HalfOpenMaxRequests: b.Breaker.HalfOpenMaxRequests,
					}
				}
				c.BackendLimits[b.Name] = limits
			}

			if b.InputCostPer1K > 0 || b.OutputCostPer1K > 0 {
				c.Prices[b.Name] = Pricing{
					InputCostPer1K:  b.InputCostPer1K,
					OutputCostPer1K: b.OutputCostPer1K,
				}
			}
		}

		switch cfg.Selection.Strategy {
		case "cost_optimized":
			c.Strategy = selector.NewCostOptimized()
		case "low_latency":
			c.Strategy = selector.NewLowLatency()
		case "failover":
			c.Strategy = selector.NewFailover()
		case "round_robin", "":
			c.Strategy = selector.NewRoundRobin()
		}
		c.Priority = cfg.Selection.Priority

		c.CacheEnabled = cfg.Cache.Enabled
		if cfg.Cache.TTL > 0 {
			c.CacheTTL = cfg.Cache.TTL
		}
		if cfg.Cache.Enabled {
			switch cfg.Cache.Store {
			case "", "memory":
				mc := cache.DefaultMemoryConfig()
				mc.DefaultTTL = c.CacheTTL
				if cfg.Cache.MaxEntries > 0 {
					mc.MaxEntries = cfg.Cache.MaxEntries
				}
				c.CacheStore = cache.NewMemoryStore(mc)
			case "redis":
				store, err := cache.NewRedisStore(context.Background(), cache.RedisConfig{
					Addr: cfg.Cache.RedisAddr,
					DB:   cfg.Cache.RedisDB,
				})
				if err != nil {
					c.err = fmt.Errorf("redis cache: %w", err)
					return
				}
				c.CacheStore = store
			}
		}

		c.MaxRetries = cfg.Retry.MaxRetries
		c.MaxFallbacks = cfg.Retry.MaxFallbacks
		if cfg.Retry.RequestTimeout > 0 {
			c.DispatchTimeout = cfg.Retry.RequestTimeout
		}

		c.Logger = newLogger(cfg.Logging)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

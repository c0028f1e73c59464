// Package config provides gateway configuration with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for
// zero-downtime updates.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete gateway configuration.
type Config struct {
	Backends  []BackendConfig `yaml:"backends"`
	Selection SelectionConfig `yaml:"selection"`
	Cache     CacheConfig     `yaml:"cache"`
	Retry     RetryConfig     `yaml:"retry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BackendConfig defines admission limits and pricing for one backend.
// Connector credentials live with the backend implementations, not here.
type BackendConfig struct {
	Name            string         `yaml:"name"`
	RefillRate      float64        `yaml:"refill_rate"` // tokens per second
	Burst           float64        `yaml:"burst"`
	InputCostPer1K  float64        `yaml:"input_cost_per_1k"`
	OutputCostPer1K float64        `yaml:"output_cost_per_1k"`
	Breaker         *BreakerConfig `yaml:"breaker,omitempty"`
}

// BreakerConfig overrides circuit breaker thresholds for one backend.
type BreakerConfig struct {
	FailureThreshold    int           `yaml:"failure_threshold"`
	SuccessThreshold    int           `yaml:"success_threshold"`
	OpenDuration        time.Duration `yaml:"open_duration"`
	HalfOpenMaxRequests int           `yaml:"half_open_max_requests"`
}

// SelectionConfig controls backend selection.
type SelectionConfig struct {
	// Strategy is one of cost_optimized, low_latency, round_robin,
	// failover.
	Strategy string `yaml:"strategy"`

	// Priority orders candidates for the failover strategy.
	Priority []string `yaml:"priority"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Store      string        `yaml:"store"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	RedisAddr  string        `yaml:"redis_addr"`
	RedisDB    int           `yaml:"redis_db"`
}

// RetryConfig bounds the orchestrator's recovery loops.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	MaxFallbacks   int           `yaml:"max_fallbacks"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Selection: SelectionConfig{
			Strategy: "round_robin",
		},
		Cache: CacheConfig{
			Enabled:    true,
			Store:      "memory",
			TTL:        10 * time.Minute,
			MaxEntries: 1000,
		},
		Retry: RetryConfig{
			MaxRetries:     3,
			MaxFallbacks:   1,
			RequestTimeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

var validStrategies = map[string]bool{
	"cost_optimized": true,
	"low_latency":    true,
	"round_robin":    true,
	"failover":       true,
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backends[%d]: name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("backends[%d]: duplicate name %q", i, b.Name)
		}
		seen[b.Name] = true

		if b.RefillRate < 0 {
			return fmt.Errorf("backend %q: refill_rate must be >= 0", b.Name)
		}
		if b.Burst < 0 {
			return fmt.Errorf("backend %q: burst must be >= 0", b.Name)
		}
	}

	if c.Selection.Strategy != "" && !validStrategies[c.Selection.Strategy] {
		return fmt.Errorf("selection: unknown strategy %q", c.Selection.Strategy)
	}
	for _, name := range c.Selection.Priority {
		if !seen[name] {
			return fmt.Errorf("selection: priority references unknown backend %q", name)
		}
	}

	if c.Cache.Enabled {
		switch c.Cache.Store {
		case "", "memory":
		case "redis":
			if c.Cache.RedisAddr == "" {
				return fmt.Errorf("cache: redis store requires redis_addr")
			}
		default:
			return fmt.Errorf("cache: unknown store %q", c.Cache.Store)
		}
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry: max_retries must be >= 0")
	}
	if c.Retry.MaxFallbacks < 0 {
		return fmt.Errorf("retry: max_fallbacks must be >= 0")
	}

	return nil
}

// LoadFromFile reads, parses, and validates a YAML configuration file.
// Fields missing from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Package resilience provides the admission-control primitives for the
// gateway: per-backend token-bucket rate limiting and three-state circuit
// breaking, coordinated by a keyed manager.
package resilience

import (
	"sync"
	"time"
)

// RateLimiter implements a token bucket. It allows bursting up to capacity
// while maintaining a long-term refill rate, and reports the suggested wait
// when a request is rejected.
type RateLimiter struct {
	mu         sync.Mutex
	refillRate float64 // tokens per second
	capacity   float64 // maximum bucket size
	tokens     float64 // current tokens, always in [0, capacity]
	lastRefill time.Time
}

// NewRateLimiter creates a rate limiter with the given refill rate
// (tokens/second) and capacity. The bucket starts full.
func NewRateLimiter(refillRate float64, capacity float64) *RateLimiter {
	return &RateLimiter{
		refillRate: refillRate,
		capacity:   capacity,
		tokens:     capacity,
		lastRefill: time.Now(),
	}
}

// Check attempts to consume one token. It returns (true, 0) on admission,
// or (false, retryAfter) where retryAfter is the time until one token will
// have refilled. The refill-and-consume is a single critical section per
// limiter; limiters for different backends never share a lock.
func (rl *RateLimiter) Check() (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens >= 1 {
		rl.tokens--
		return true, 0
	}

	if rl.refillRate <= 0 {
		// No refill configured; the bucket will never recover on its own.
		return false, time.Duration(0)
	}

	wait := time.Duration((1 - rl.tokens) / rl.refillRate * float64(time.Second))
	return false, wait
}

// ConsumeUsage debits additional tokens proportional to consumed capacity
// (for example LLM token usage), clamped at zero. It never rejects.
func (rl *RateLimiter) ConsumeUsage(n float64) {
	if n <= 0 {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	rl.tokens -= n
	if rl.tokens < 0 {
		rl.tokens = 0
	}
}

// Tokens returns the current token count after refill.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// Capacity returns the bucket capacity.
func (rl *RateLimiter) Capacity() float64 {
	return rl.capacity
}

// refill adds tokens for the elapsed interval, capped at capacity.
// Callers must hold mu.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.lastRefill = now

	if elapsed <= 0 || rl.refillRate <= 0 {
		return
	}

	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
}

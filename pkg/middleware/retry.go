package middleware

import (
	"math/rand"
	"strconv"
	"time"

	gwerrors "github.com/llmhub/llmhub/pkg/errors"
)

// retryCountKey is the context metadata key tracking how many retries this
// middleware has already requested for the request.
const retryCountKey = "retry.count"

// RetryConfig holds configuration for the retry middleware.
type RetryConfig struct {
	// MaxRetries bounds how many times this middleware requests a retry
	// (default 2). The orchestrator's own ceiling still applies on top.
	MaxRetries int

	// BaseDelay is the first backoff interval (default 100ms). Each retry
	// doubles it, capped at MaxDelay, with up to 25% random jitter.
	BaseDelay time.Duration

	// MaxDelay caps the backoff interval (default 5s).
	MaxDelay time.Duration
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

// RetryMiddleware requests a retry for retryable errors, sleeping an
// exponentially growing, jittered backoff before each one. For rate-limit
// errors it honors the limiter's suggested wait instead when that is
// longer than the computed backoff.
type RetryMiddleware struct {
	Base
	cfg RetryConfig
}

// NewRetry creates a retry middleware.
func NewRetry(cfg RetryConfig) *RetryMiddleware {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	return &RetryMiddleware{cfg: cfg}
}

func (r *RetryMiddleware) Name() string { return "retry" }

func (r *RetryMiddleware) OnError(ctx *Context, err error) (Action, error) {
	if !gwerrors.IsRetryable(err) {
		return Propagate(), nil
	}

	count := 0
	if v, ok := ctx.Get(retryCountKey); ok {
		count, _ = strconv.Atoi(v)
	}
	if count >= r.cfg.MaxRetries {
		return Propagate(), nil
	}
	ctx.Set(retryCountKey, strconv.Itoa(count+1))

	timer := time.NewTimer(r.backoff(count, err))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return Propagate(), nil
	}
	return Retry(), nil
}

func (r *RetryMiddleware) backoff(retry int, err error) time.Duration {
	delay := r.cfg.BaseDelay << uint(retry)
	if delay > r.cfg.MaxDelay || delay <= 0 {
		delay = r.cfg.MaxDelay
	}

	// Up to 25% jitter spreads out synchronized retries.
	delay += time.Duration(rand.Int63n(int64(delay)/4 + 1))

	if ge, ok := gwerrors.AsGateway(err); ok && ge.RetryAfter > delay {
		delay = ge.RetryAfter
	}
	if delay > r.cfg.MaxDelay {
		delay = r.cfg.MaxDelay
	}
	return delay
}

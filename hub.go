package llmhub

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/llmhub/llmhub/internal/cache"
	"github.com/llmhub/llmhub/internal/resilience"
	"github.com/llmhub/llmhub/internal/telemetry"
	"github.com/llmhub/llmhub/pkg/backend"
	gwerrors "github.com/llmhub/llmhub/pkg/errors"
	"github.com/llmhub/llmhub/pkg/middleware"
	"github.com/llmhub/llmhub/pkg/selector"
	"github.com/llmhub/llmhub/pkg/types"
)

// Hub orchestrates request processing across registered backends: backend
// selection, the middleware pipeline, response caching, admission control,
// dispatch, and bounded retry/fallback recovery.
//
// Hub is safe for concurrent use by multiple goroutines.
type Hub struct {
	registry *backend.Registry
	pipeline *middleware.Pipeline
	limits   *resilience.Manager
	store    cache.Store
	tracker  *selector.LatencyTracker
	strategy selector.Strategy
	sink     telemetry.Sink
	logger   *slog.Logger

	priority     []string
	prices       map[string]Pricing
	cacheTTL     time.Duration
	maxRetries   int
	maxFallbacks int
	timeout      time.Duration
	metadataTTL  time.Duration
}

// New creates a Hub from the given options.
func New(opts ...Option) (*Hub, error) {
	cfg := defaultHubConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}

	sink := cfg.Sink
	if sink == nil {
		sink = telemetry.NopSink{}
	}

	h := &Hub{
		registry:     backend.NewRegistry(),
		pipeline:     middleware.NewPipeline(cfg.Logger),
		tracker:      selector.NewLatencyTracker(cfg.LatencyWindow),
		strategy:     cfg.Strategy,
		sink:         sink,
		logger:       cfg.Logger,
		priority:     cfg.Priority,
		prices:       cfg.Prices,
		cacheTTL:     cfg.CacheTTL,
		maxRetries:   cfg.MaxRetries,
		maxFallbacks: cfg.MaxFallbacks,
		timeout:      cfg.DispatchTimeout,
		metadataTTL:  cfg.MetadataCacheTTL,
	}

	h.limits = resilience.NewManager(resilience.ManagerConfig{
		CircuitBreaker: cfg.Breaker,
		DefaultRate:    cfg.DefaultRate,
		DefaultBurst:   cfg.DefaultBurst,
	})
	for name, limits := range cfg.BackendLimits {
		h.limits.SetLimits(name, limits)
	}
	h.limits.OnStateChange(func(name string, from, to resilience.CircuitState) {
		switch to {
		case resilience.StateOpen:
			h.emit(telemetry.Event{Kind: telemetry.EventCircuitOpened, Backend: name})
		case resilience.StateClosed:
			h.emit(telemetry.Event{Kind: telemetry.EventCircuitClosed, Backend: name})
		}
	})

	if cfg.CacheEnabled {
		h.store = cfg.CacheStore
		if h.store == nil {
			mc := cache.DefaultMemoryConfig()
			mc.DefaultTTL = cfg.CacheTTL
			h.store = cache.NewMemoryStore(mc)
		}
	}

	for _, handle := range cfg.Backends {
		h.RegisterBackend(handle)
	}
	for _, m := range cfg.Middlewares {
		if err := h.pipeline.Use(m); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// RegisterBackend adds (or replaces) a backend handle. With metadata
// caching enabled the handle is wrapped in the caching decorator.
func (h *Hub) RegisterBackend(handle backend.Handle) {
	if h.metadataTTL > 0 {
		handle = backend.WithMetadataCache(handle, h.metadataTTL)
	}
	h.registry.Register(handle)
}

// UnregisterBackend removes a backend handle and drops its latency
// samples. In-flight requests against it finish normally.
func (h *Hub) UnregisterBackend(id string) {
	h.registry.Unregister(id)
	h.tracker.Reset(id)
}

// Backends returns the registered backend ids in sorted order.
func (h *Hub) Backends() []string {
	return h.registry.IDs()
}

// Use appends a middleware to the pipeline.
func (h *Hub) Use(m middleware.Middleware) error {
	return h.pipeline.Use(m)
}

// Close releases hub-owned resources.
func (h *Hub) Close() error {
	if h.store != nil {
		return h.store.Close()
	}
	return nil
}

// Process runs one completion request through the full pipeline and
// returns either a normalized response or a single terminal error.
func (h *Hub) Process(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Stream {
		return nil, gwerrors.NewInvalidRequest("streaming requests must use ProcessStream")
	}

	backendID, err := h.selectBackend(req)
	if err != nil {
		h.emit(telemetry.Event{
			Kind:      telemetry.EventRequestFailed,
			Backend:   req.Backend,
			Model:     req.Model,
			ErrorKind: errorKind(err),
			Retryable: gwerrors.IsRetryable(err),
		})
		return nil, err
	}

	mctx := middleware.NewContext(ctx, backendID, req.Model)
	h.emit(telemetry.Event{
		Kind:      telemetry.EventRequestStarted,
		RequestID: mctx.RequestID,
		Backend:   backendID,
		Model:     req.Model,
	})

	retries := 0
	fallbacks := 0

	for {
		resp, action, err := h.processOnBackend(ctx, mctx, req, backendID, &retries)
		if err == nil {
			return resp, nil
		}

		if action.Kind == middleware.ActionFallback {
			fallbacks++
			// One alternate backend per request; anything past that
			// degrades to propagation.
			if fallbacks <= h.maxFallbacks && action.Backend != "" && action.Backend != backendID {
				if _, ok := h.registry.Get(action.Backend); ok {
					h.emit(telemetry.Event{
						Kind:      telemetry.EventBackendSwitched,
						RequestID: mctx.RequestID,
						Model:     req.Model,
						From:      backendID,
						To:        action.Backend,
					})
					backendID = action.Backend
					mctx.Backend = backendID
					mctx.Attempt++
					continue
				}
			}
		}

		h.emit(telemetry.Event{
			Kind:      telemetry.EventRequestFailed,
			RequestID: mctx.RequestID,
			Backend:   backendID,
			Model:     req.Model,
			ErrorKind: errorKind(err),
			Retryable: gwerrors.IsRetryable(err),
		})
		return nil, err
	}
}

// processOnBackend runs the pipeline against one backend: before hooks,
// cache check, then the admission/dispatch loop with retry re-entry. A
// fallback decision is returned to the caller, which owns the hop budget.
func (h *Hub) processOnBackend(ctx context.Context, mctx *middleware.Context, req *types.Request, backendID string, retries *int) (*types.Response, middleware.Action, error) {
	idx, berr := h.pipeline.Before(mctx, req)
	if berr != nil {
		// The aborting middleware is treated as the error's producer:
		// the on_error chain unwinds from its position.
		action, chainErr := h.pipeline.OnError(mctx, berr, idx)
		if chainErr != nil {
			return nil, middleware.Propagate(), chainErr
		}
		if action.Kind == middleware.ActionPropagate {
			return nil, action, berr
		}
		if action.Kind == middleware.ActionFallback {
			return nil, action, berr
		}
		// Retry from a before failure proceeds to admission like any
		// other retry.
	}

	if berr == nil {
		if resp := h.cacheLookup(ctx, backendID, req); resp != nil {
			if err := h.pipeline.AfterSuccess(mctx, resp); err != nil {
				return nil, middleware.Propagate(), err
			}
			h.emitCompleted(mctx, backendID, req, resp)
			return resp, middleware.Propagate(), nil
		}
	}

	for {
		resp, derr := h.admitAndDispatch(ctx, mctx, req, backendID)
		if derr == nil {
			if err := h.pipeline.AfterSuccess(mctx, resp); err != nil {
				return nil, middleware.Propagate(), err
			}
			h.cacheWrite(ctx, backendID, req, resp)
			h.emitCompleted(mctx, backendID, req, resp)
			return resp, middleware.Propagate(), nil
		}

		// Caller abandoned the request: return without consulting the
		// chain, nobody is waiting for a recovery decision.
		if ctx.Err() != nil {
			return nil, middleware.Propagate(), derr
		}

		action, chainErr := h.pipeline.OnError(mctx, derr, h.pipeline.Len()-1)
		if chainErr != nil {
			return nil, middleware.Propagate(), chainErr
		}

		switch action.Kind {
		case middleware.ActionRetry:
			*retries++
			if *retries > h.maxRetries {
				return nil, middleware.Propagate(), derr
			}
			mctx.Attempt++

		case middleware.ActionFallback:
			return nil, action, derr

		default:
			return nil, middleware.Propagate(), derr
		}
	}
}

// admitAndDispatch runs admission control and one backend call.
func (h *Hub) admitAndDispatch(ctx context.Context, mctx *middleware.Context, req *types.Request, backendID string) (*types.Response, error) {
	handle, ok := h.registry.Get(backendID)
	if !ok {
		return nil, gwerrors.NewBackendNotFound(backendID)
	}

	admitted, circuitOpen, retryAfter := h.limits.Admit(backendID)
	if !admitted {
		if circuitOpen {
			return nil, gwerrors.NewCircuitOpen(backendID)
		}
		h.emit(telemetry.Event{
			Kind:       telemetry.EventRateLimited,
			RequestID:  mctx.RequestID,
			Backend:    backendID,
			Model:      req.Model,
			RetryAfter: retryAfter,
		})
		return nil, gwerrors.NewRateLimited(backendID, retryAfter)
	}

	dctx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := handle.Complete(dctx, req)
	latency := time.Since(start)

	if err != nil {
		derr := classifyDispatchError(backendID, err, dctx)
		// A caller-side abort counts as neither breaker outcome, but any
		// held half-open trial slot goes back.
		if ctx.Err() == nil {
			h.limits.RecordFailure(backendID)
		} else {
			h.limits.ReleaseTrial(backendID)
		}
		return nil, derr
	}

	h.limits.RecordSuccess(backendID)
	h.tracker.Observe(backendID, latency)
	if resp.Usage != nil && resp.Usage.TotalTokens > 0 {
		// One bucket token per 1000 LLM tokens of observed usage.
		h.limits.ConsumeUsage(backendID, float64(resp.Usage.TotalTokens)/1000)
	}

	if resp.Backend == "" {
		resp.Backend = backendID
	}
	return resp, nil
}

// selectBackend resolves the target backend: explicit in the request, or
// chosen by the strategy over live stats.
func (h *Hub) selectBackend(req *types.Request) (string, error) {
	if req.Backend != "" {
		if _, ok := h.registry.Get(req.Backend); !ok {
			return "", gwerrors.NewBackendNotFound(req.Backend)
		}
		return req.Backend, nil
	}

	candidates := h.priority
	if len(candidates) == 0 {
		candidates = h.registry.IDs()
	}
	if len(candidates) == 0 {
		return "", gwerrors.NewNoBackendAvailable("no backends registered")
	}

	id, ok := h.strategy.Select(candidates, req, h.stats(candidates))
	if !ok {
		return "", gwerrors.NewNoBackendAvailable("no eligible backend for request")
	}
	if _, registered := h.registry.Get(id); !registered {
		return "", gwerrors.NewBackendNotFound(id)
	}
	return id, nil
}

func (h *Hub) stats(candidates []string) selector.Stats {
	stats := make(selector.Stats, len(candidates))
	for _, id := range candidates {
		p50, _ := h.tracker.P50(id)
		price := h.prices[id]
		stats[id] = selector.BackendStats{
			InputCostPer1K:  price.InputCostPer1K,
			OutputCostPer1K: price.OutputCostPer1K,
			P50Latency:      p50,
			CircuitOpen:     h.limits.CircuitOpen(id),
		}
	}
	return stats
}

func (h *Hub) cacheLookup(ctx context.Context, backendID string, req *types.Request) *types.Response {
	if h.store == nil || req.Stream {
		return nil
	}

	key, err := cache.Key(backendID, req)
	if err != nil {
		return nil
	}

	data, err := h.store.Get(ctx, key)
	if err != nil {
		// Cache failures are absorbed as misses, never surfaced.
		h.logger.Warn("cache get failed, treating as miss", "error", err)
		return nil
	}
	if data == nil {
		return nil
	}

	var resp types.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		h.logger.Warn("cached response corrupt, treating as miss", "error", err)
		return nil
	}
	return &resp
}

func (h *Hub) cacheWrite(ctx context.Context, backendID string, req *types.Request, resp *types.Response) {
	if h.store == nil || req.Stream {
		return
	}

	key, err := cache.Key(backendID, req)
	if err != nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := h.store.Set(ctx, key, data, h.cacheTTL); err != nil {
		h.logger.Warn("cache set failed", "error", err)
	}
}

func (h *Hub) emitCompleted(mctx *middleware.Context, backendID string, req *types.Request, resp *types.Response) {
	e := telemetry.Event{
		Kind:      telemetry.EventRequestCompleted,
		RequestID: mctx.RequestID,
		Backend:   backendID,
		Model:     req.Model,
		Latency:   mctx.Elapsed(),
	}
	if resp.Usage != nil {
		e.InputTokens = resp.Usage.InputTokens
		e.OutputTokens = resp.Usage.OutputTokens
		price := h.prices[backendID]
		e.Cost = float64(resp.Usage.InputTokens)/1000*price.InputCostPer1K +
			float64(resp.Usage.OutputTokens)/1000*price.OutputCostPer1K
	}
	h.emit(e)
}

func (h *Hub) emit(e telemetry.Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	h.sink.Emit(e)
}

func validateRequest(req *types.Request) error {
	if req == nil {
		return gwerrors.NewInvalidRequest("request is nil")
	}
	if req.Model == "" {
		return gwerrors.NewInvalidRequest("model is required")
	}
	if len(req.Messages) == 0 {
		return gwerrors.NewInvalidRequest("messages must not be empty")
	}
	return nil
}

func errorKind(err error) string {
	if ge, ok := gwerrors.AsGateway(err); ok {
		return string(ge.Kind)
	}
	return "unknown"
}

// classifyDispatchError maps a backend call failure onto the error
// taxonomy. Errors already carrying a kind pass through unchanged.
func classifyDispatchError(backendID string, err error, dctx context.Context) error {
	if _, ok := gwerrors.AsGateway(err); ok {
		return err
	}
	if dctx.Err() == context.DeadlineExceeded {
		return gwerrors.NewTimeout(backendID, err)
	}
	return gwerrors.NewTransport(backendID, err)
}

package llmhub

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/llmhub/llmhub/internal/telemetry"
	"github.com/llmhub/llmhub/pkg/backend"
	gwerrors "github.com/llmhub/llmhub/pkg/errors"
	"github.com/llmhub/llmhub/pkg/middleware"
	"github.com/llmhub/llmhub/pkg/types"
)

// ProcessStream runs a streaming completion request. The pipeline's before
// hooks and admission control apply as in Process; responses are never
// cached, and the dispatch timeout bounds the stream's lifetime. The
// stream's terminal outcome drives breaker accounting: a cleanly exhausted
// stream counts as a success, a mid-stream error as a failure, and a
// consumer disconnect as neither.
func (h *Hub) ProcessStream(ctx context.Context, req *types.Request) (backend.Stream, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	backendID, err := h.selectBackend(req)
	if err != nil {
		return nil, err
	}

	mctx := middleware.NewContext(ctx, backendID, req.Model)
	mctx.Streaming = true
	h.emit(telemetry.Event{
		Kind:      telemetry.EventRequestStarted,
		RequestID: mctx.RequestID,
		Backend:   backendID,
		Model:     req.Model,
	})

	retries := 0
	fallbacks := 0

	for {
		stream, action, serr := h.streamOnBackend(ctx, mctx, req, backendID, &retries)
		if serr == nil {
			return stream, nil
		}

		if action.Kind == middleware.ActionFallback {
			fallbacks++
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
			ErrorKind: errorKind(serr),
			Retryable: gwerrors.IsRetryable(serr),
		})
		return nil, serr
	}
}

// streamOnBackend mirrors processOnBackend for the streaming path: before
// hooks once per backend pass, then the admission/dispatch loop with retry
// re-entry. A fallback decision is returned to the caller, which owns the
// hop budget.
func (h *Hub) streamOnBackend(ctx context.Context, mctx *middleware.Context, req *types.Request, backendID string, retries *int) (backend.Stream, middleware.Action, error) {
	idx, berr := h.pipeline.Before(mctx, req)
	if berr != nil {
		action, chainErr := h.pipeline.OnError(mctx, berr, idx)
		if chainErr != nil {
			return nil, middleware.Propagate(), chainErr
		}
		if action.Kind != middleware.ActionRetry {
			return nil, action, berr
		}
		// Retry from a before failure proceeds to admission like any
		// other retry.
	}

	for {
		stream, derr := h.openStream(ctx, mctx, req, backendID)
		if derr == nil {
			return stream, middleware.Propagate(), nil
		}
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

// openStream runs admission control and the backend stream call under the
// dispatch timeout. Breaker accounting for the opened stream is deferred
// to the wrapper; a failed call settles it here.
func (h *Hub) openStream(ctx context.Context, mctx *middleware.Context, req *types.Request, backendID string) (backend.Stream, error) {
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
	cancel := context.CancelFunc(func() {})
	if h.timeout > 0 {
		dctx, cancel = context.WithTimeout(ctx, h.timeout)
	}

	raw, err := handle.Stream(dctx, req)
	if err != nil {
		cancel()
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

	return &trackedStream{
		inner:   raw,
		hub:     h,
		ctx:     ctx,
		dctx:    dctx,
		cancel:  cancel,
		mctx:    mctx,
		backend: backendID,
		model:   req.Model,
		start:   time.Now(),
	}, nil
}

// trackedStream wraps a backend stream to settle breaker accounting and
// telemetry exactly once, based on how the stream terminates.
type trackedStream struct {
	inner   backend.Stream
	hub     *Hub
	ctx     context.Context // caller's context
	dctx    context.Context // dispatch context carrying the deadline
	cancel  context.CancelFunc
	mctx    *middleware.Context
	backend string
	model   string
	start   time.Time

	settled bool
	usage   types.Usage
}

func (s *trackedStream) Recv() (*types.StreamChunk, error) {
	chunk, err := s.inner.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.settle(nil)
			return nil, io.EOF
		}
		derr := classifyDispatchError(s.backend, err, s.dctx)
		s.settle(derr)
		return nil, derr
	}

	if chunk.Usage != nil {
		s.usage = *chunk.Usage
	}
	return chunk, nil
}

func (s *trackedStream) Close() error {
	// Closing before exhaustion is a consumer disconnect: neither a
	// breaker success nor a failure, but any held half-open trial slot
	// goes back.
	if !s.settled {
		s.settled = true
		s.hub.limits.ReleaseTrial(s.backend)
	}
	s.cancel()
	return s.inner.Close()
}

func (s *trackedStream) settle(err error) {
	if s.settled {
		return
	}
	s.settled = true
	s.cancel()

	latency := time.Since(s.start)

	if err == nil {
		s.hub.limits.RecordSuccess(s.backend)
		s.hub.tracker.Observe(s.backend, latency)
		if s.usage.TotalTokens > 0 {
			s.hub.limits.ConsumeUsage(s.backend, float64(s.usage.TotalTokens)/1000)
		}

		price := s.hub.prices[s.backend]
		s.hub.emit(telemetry.Event{
			Kind:         telemetry.EventRequestCompleted,
			RequestID:    s.mctx.RequestID,
			Backend:      s.backend,
			Model:        s.model,
			Latency:      latency,
			InputTokens:  s.usage.InputTokens,
			OutputTokens: s.usage.OutputTokens,
			Cost: float64(s.usage.InputTokens)/1000*price.InputCostPer1K +
				float64(s.usage.OutputTokens)/1000*price.OutputCostPer1K,
		})
		return
	}

	if s.ctx.Err() == nil {
		s.hub.limits.RecordFailure(s.backend)
	} else {
		s.hub.limits.ReleaseTrial(s.backend)
	}
	s.hub.emit(telemetry.Event{
		Kind:      telemetry.EventRequestFailed,
		RequestID: s.mctx.RequestID,
		Backend:   s.backend,
		Model:     s.model,
		ErrorKind: errorKind(err),
		Retryable: gwerrors.IsRetryable(err),
	})
}

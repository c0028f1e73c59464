package middleware

import (
	"errors"
	"log/slog"
	"sync"

	gwerrors "github.com/llmhub/llmhub/pkg/errors"
	"github.com/llmhub/llmhub/pkg/types"
)

var (
	// ErrNilMiddleware is returned when registering a nil middleware.
	ErrNilMiddleware = errors.New("middleware: nil middleware")

	// ErrDuplicateMiddleware is returned when a name is already registered.
	ErrDuplicateMiddleware = errors.New("middleware: duplicate middleware name")
)

// Pipeline holds registered middlewares and runs their hooks in the
// contractual order: BeforeDispatch first-to-last, AfterSuccess and
// OnError last-to-first.
type Pipeline struct {
	mu     sync.RWMutex
	chain  []Middleware
	logger *slog.Logger
}

// NewPipeline creates an empty pipeline.
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger}
}

// Use appends a middleware to the chain. Names must be unique.
func (p *Pipeline) Use(m Middleware) error {
	if m == nil {
		return ErrNilMiddleware
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, existing := range p.chain {
		if existing.Name() == m.Name() {
			return ErrDuplicateMiddleware
		}
	}

	p.chain = append(p.chain, m)
	p.logger.Debug("middleware registered",
		"name", m.Name(),
		"position", len(p.chain)-1,
	)
	return nil
}

// Len returns the number of registered middlewares.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.chain)
}

func (p *Pipeline) snapshot() []Middleware {
	p.mu.RLock()
	defer p.mu.RUnlock()
	chain := make([]Middleware, len(p.chain))
	copy(chain, p.chain)
	return chain
}

// Before runs BeforeDispatch hooks in registration order. On the first
// failure it stops and returns the index of the aborting middleware along
// with the error wrapped as a middleware error; the caller feeds that
// index into OnError so the chain unwinds as if the aborting middleware
// had produced the error itself. Hooks may return an error that already
// carries a gateway kind (a rate-limit rejection, say); those pass
// through unwrapped. With no failure it returns (len-1, nil).
func (p *Pipeline) Before(ctx *Context, req *types.Request) (int, error) {
	chain := p.snapshot()

	for i, m := range chain {
		if err := m.BeforeDispatch(ctx, req); err != nil {
			p.logger.Debug("before_dispatch aborted",
				"middleware", m.Name(),
				"request_id", ctx.RequestID,
				"error", err,
			)
			if _, ok := gwerrors.AsGateway(err); !ok {
				err = gwerrors.NewMiddleware(m.Name(), err)
			}
			return i, err
		}
	}
	return len(chain) - 1, nil
}

// AfterSuccess runs AfterSuccess hooks in reverse registration order. A
// hook failure aborts the remaining hooks and surfaces as a middleware
// error.
func (p *Pipeline) AfterSuccess(ctx *Context, resp *types.Response) error {
	chain := p.snapshot()

	for i := len(chain) - 1; i >= 0; i-- {
		if err := chain[i].AfterSuccess(ctx, resp); err != nil {
			return gwerrors.NewMiddleware(chain[i].Name(), err)
		}
	}
	return nil
}

// OnError runs OnError hooks in reverse registration order starting at
// index from (inclusive). The first hook returning a non-Propagate action
// wins and short-circuits the rest of the chain. A hook that itself fails
// aborts the chain; the returned error replaces the original. With no
// decisive hook the result is Propagate with a nil error, leaving the
// original error in force.
func (p *Pipeline) OnError(ctx *Context, err error, from int) (Action, error) {
	chain := p.snapshot()

	if from >= len(chain) {
		from = len(chain) - 1
	}

	for i := from; i >= 0; i-- {
		action, hookErr := chain[i].OnError(ctx, err)
		if hookErr != nil {
			return Propagate(), gwerrors.NewMiddleware(chain[i].Name(), hookErr)
		}
		if action.Kind != ActionPropagate {
			p.logger.Debug("on_error decision",
				"middleware", chain[i].Name(),
				"request_id", ctx.RequestID,
				"action", action.Kind.String(),
			)
			return action, nil
		}
	}
	return Propagate(), nil
}

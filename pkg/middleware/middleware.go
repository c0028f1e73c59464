// Package middleware provides the request interception pipeline for the
// gateway. Middlewares observe and steer a request through three lifecycle
// hooks and may answer an error with a retry or fallback decision.
package middleware

import (
	"github.com/llmhub/llmhub/pkg/types"
)

// ActionKind enumerates the decisions an OnError hook may return.
type ActionKind int

const (
	// ActionPropagate lets the error continue down the chain and, if no
	// other hook objects, out to the caller.
	ActionPropagate ActionKind = iota

	// ActionRetry asks the orchestrator to retry the same backend.
	ActionRetry

	// ActionFallback asks the orchestrator to redispatch on another backend.
	ActionFallback
)

func (k ActionKind) String() string {
	switch k {
	case ActionPropagate:
		return "propagate"
	case ActionRetry:
		return "retry"
	case ActionFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Action is an OnError decision. Fallback carries the target backend id.
type Action struct {
	Kind    ActionKind
	Backend string
}

// Propagate returns the pass-through decision.
func Propagate() Action { return Action{Kind: ActionPropagate} }

// Retry returns the retry-same-backend decision.
func Retry() Action { return Action{Kind: ActionRetry} }

// Fallback returns the switch-backend decision.
func Fallback(backend string) Action {
	return Action{Kind: ActionFallback, Backend: backend}
}

// Middleware is the hook set every pipeline entry implements.
//
// BeforeDispatch hooks run in registration order; a returned error aborts
// dispatch and enters the OnError chain as if this middleware had produced
// the error. AfterSuccess and OnError hooks run in reverse registration
// order. OnError returns the middleware's decision; the first non-Propagate
// decision in the chain wins.
type Middleware interface {
	Name() string
	BeforeDispatch(ctx *Context, req *types.Request) error
	AfterSuccess(ctx *Context, resp *types.Response) error
	OnError(ctx *Context, err error) (Action, error)
}

// Base is a no-op Middleware for embedding, so implementations only
// override the hooks they care about.
type Base struct{}

func (Base) BeforeDispatch(ctx *Context, req *types.Request) error { return nil }

func (Base) AfterSuccess(ctx *Context, resp *types.Response) error { return nil }

func (Base) OnError(ctx *Context, err error) (Action, error) { return Propagate(), nil }

package middleware

import (
	gwerrors "github.com/llmhub/llmhub/pkg/errors"
)

// FallbackMiddleware maps backend error codes and error kinds to an
// alternate backend. The orchestrator bounds fallback to one hop per
// request regardless of what this middleware asks for.
type FallbackMiddleware struct {
	Base

	// codeTargets maps a BackendError code to a fallback backend id.
	codeTargets map[string]string

	// kindTargets maps an error kind to a fallback backend id, consulted
	// when no code mapping matched.
	kindTargets map[gwerrors.Kind]string
}

// NewFallback creates a fallback middleware with no mappings.
func NewFallback() *FallbackMiddleware {
	return &FallbackMiddleware{
		codeTargets: make(map[string]string),
		kindTargets: make(map[gwerrors.Kind]string),
	}
}

// OnCode routes errors carrying the given backend error code to target.
func (f *FallbackMiddleware) OnCode(code, target string) *FallbackMiddleware {
	f.codeTargets[code] = target
	return f
}

// OnKind routes errors of the given kind to target.
func (f *FallbackMiddleware) OnKind(kind gwerrors.Kind, target string) *FallbackMiddleware {
	f.kindTargets[kind] = target
	return f
}

func (f *FallbackMiddleware) Name() string { return "fallback" }

func (f *FallbackMiddleware) OnError(ctx *Context, err error) (Action, error) {
	ge, ok := gwerrors.AsGateway(err)
	if !ok {
		return Propagate(), nil
	}

	if ge.Code != "" {
		if target, ok := f.codeTargets[ge.Code]; ok && target != ctx.Backend {
			return Fallback(target), nil
		}
	}
	if target, ok := f.kindTargets[ge.Kind]; ok && target != ctx.Backend {
		return Fallback(target), nil
	}
	return Propagate(), nil
}

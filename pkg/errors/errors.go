// Package errors defines the unified error taxonomy for gateway operations.
// All backend- and pipeline-originated failures are mapped to these kinds
// before they reach the caller.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Kind classifies a gateway error.
type Kind string

const (
	// KindBackendNotFound means no handle is registered for the requested id.
	KindBackendNotFound Kind = "backend_not_found"
	// KindNoBackendAvailable means the selector found no eligible candidate.
	KindNoBackendAvailable Kind = "no_backend_available"
	// KindCircuitOpen means the circuit breaker fast-failed the request.
	KindCircuitOpen Kind = "circuit_open"
	// KindRateLimited means admission control rejected the request.
	KindRateLimited Kind = "rate_limited"
	// KindTimeout means the dispatch deadline was exceeded.
	KindTimeout Kind = "timeout"
	// KindTransport means the backend connector reported a network failure.
	KindTransport Kind = "transport_error"
	// KindBackend means the backend reported an application error.
	KindBackend Kind = "backend_error"
	// KindInvalidRequest means the request failed local validation.
	KindInvalidRequest Kind = "invalid_request"
	// KindCache means the cache store failed; never fatal to a request.
	KindCache Kind = "cache_error"
	// KindMiddleware means a pipeline hook itself failed.
	KindMiddleware Kind = "middleware_error"
)

// GatewayError is the single caller-visible error value. It carries the
// taxonomy kind, whether the failure is retryable, and, for rate limiting,
// the suggested wait.
type GatewayError struct {
	Kind       Kind          `json:"kind"`
	Message    string        `json:"message"`
	Backend    string        `json:"backend,omitempty"`
	Code       string        `json:"code,omitempty"`
	Retryable  bool          `json:"-"`
	RetryAfter time.Duration `json:"-"`

	// Cause is the wrapped underlying error, if any.
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("[%s] %s (backend=%s)", e.Kind, e.Message, e.Backend)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *GatewayError) Unwrap() error { return e.Cause }

// Is matches two gateway errors by kind.
func (e *GatewayError) Is(target error) bool {
	var ge *GatewayError
	if stderrors.As(target, &ge) {
		return e.Kind == ge.Kind
	}
	return false
}

// IsKind reports whether err is a GatewayError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ge *GatewayError
	return stderrors.As(err, &ge) && ge.Kind == kind
}

// IsRetryable reports whether err is a retryable gateway error.
// Non-gateway errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var ge *GatewayError
	return stderrors.As(err, &ge) && ge.Retryable
}

// AsGateway extracts the GatewayError from err's chain, reporting whether
// one was found.
func AsGateway(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if stderrors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// NewBackendNotFound creates a backend-not-found error.
func NewBackendNotFound(id string) *GatewayError {
	return &GatewayError{
		Kind:    KindBackendNotFound,
		Message: fmt.Sprintf("no backend registered for id %q", id),
		Backend: id,
	}
}

// NewNoBackendAvailable creates a no-backend-available error.
func NewNoBackendAvailable(reason string) *GatewayError {
	return &GatewayError{
		Kind:    KindNoBackendAvailable,
		Message: reason,
	}
}

// NewCircuitOpen creates a circuit-open error.
func NewCircuitOpen(backend string) *GatewayError {
	return &GatewayError{
		Kind:    KindCircuitOpen,
		Message: "circuit breaker is open",
		Backend: backend,
	}
}

// NewRateLimited creates a rate-limited error with the suggested wait.
func NewRateLimited(backend string, retryAfter time.Duration) *GatewayError {
	return &GatewayError{
		Kind:       KindRateLimited,
		Message:    "rate limit exceeded",
		Backend:    backend,
		Retryable:  true,
		RetryAfter: retryAfter,
	}
}

// NewTimeout creates a dispatch-timeout error.
func NewTimeout(backend string, cause error) *GatewayError {
	return &GatewayError{
		Kind:      KindTimeout,
		Message:   "dispatch deadline exceeded",
		Backend:   backend,
		Retryable: true,
		Cause:     cause,
	}
}

// NewTransport creates a transport error.
func NewTransport(backend string, cause error) *GatewayError {
	msg := "transport failure"
	if cause != nil {
		msg = cause.Error()
	}
	return &GatewayError{
		Kind:      KindTransport,
		Message:   msg,
		Backend:   backend,
		Retryable: true,
		Cause:     cause,
	}
}

// retryableBackendCodes is the allow-list of backend application codes that
// are safe to retry (server-side 5xx equivalents).
var retryableBackendCodes = map[string]struct{}{
	"internal":            {},
	"overloaded":          {},
	"service_unavailable": {},
	"bad_gateway":         {},
}

// NewBackend creates a backend application error. Retryability follows the
// known allow-list of codes.
func NewBackend(backend, code, message string) *GatewayError {
	_, retryable := retryableBackendCodes[code]
	return &GatewayError{
		Kind:      KindBackend,
		Message:   message,
		Backend:   backend,
		Code:      code,
		Retryable: retryable,
	}
}

// NewInvalidRequest creates a local-validation error.
func NewInvalidRequest(message string) *GatewayError {
	return &GatewayError{
		Kind:    KindInvalidRequest,
		Message: message,
	}
}

// NewCache creates a cache error. The orchestrator absorbs these and treats
// them as cache misses; they are never surfaced to the caller.
func NewCache(cause error) *GatewayError {
	msg := "cache failure"
	if cause != nil {
		msg = cause.Error()
	}
	return &GatewayError{
		Kind:    KindCache,
		Message: msg,
		Cause:   cause,
	}
}

// NewMiddleware creates a hook-failure error attributed to the named
// middleware.
func NewMiddleware(name string, cause error) *GatewayError {
	msg := "middleware failure"
	if cause != nil {
		msg = cause.Error()
	}
	return &GatewayError{
		Kind:    KindMiddleware,
		Message: fmt.Sprintf("%s: %s", name, msg),
		Cause:   cause,
	}
}

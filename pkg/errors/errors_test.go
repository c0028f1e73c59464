package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayError_Error(t *testing.T) {
	err := NewBackend("openai", "auth", "invalid api key")
	assert.Contains(t, err.Error(), "backend_error")
	assert.Contains(t, err.Error(), "openai")
	assert.Contains(t, err.Error(), "invalid api key")

	plain := NewInvalidRequest("model is required")
	assert.Contains(t, plain.Error(), "invalid_request")
	assert.NotContains(t, plain.Error(), "backend=")
}

func TestKindMatching(t *testing.T) {
	err := NewCircuitOpen("x")

	assert.True(t, IsKind(err, KindCircuitOpen))
	assert.False(t, IsKind(err, KindTimeout))
	assert.False(t, IsKind(stderrors.New("plain"), KindCircuitOpen))

	wrapped := fmt.Errorf("while dispatching: %w", err)
	assert.True(t, IsKind(wrapped, KindCircuitOpen), "kind must survive wrapping")
}

func TestRetryability(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{NewBackendNotFound("x"), false},
		{NewNoBackendAvailable("none"), false},
		{NewCircuitOpen("x"), false},
		{NewRateLimited("x", time.Second), true},
		{NewTimeout("x", nil), true},
		{NewTransport("x", stderrors.New("reset")), true},
		{NewInvalidRequest("bad"), false},
		{NewBackend("x", "internal", "oops"), true},
		{NewBackend("x", "overloaded", "busy"), true},
		{NewBackend("x", "service_unavailable", "down"), true},
		{NewBackend("x", "bad_gateway", "proxy"), true},
		{NewBackend("x", "auth", "denied"), false},
		{NewBackend("x", "quota_exceeded", "no more"), false},
		{stderrors.New("plain"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.retryable, IsRetryable(tt.err), "error: %v", tt.err)
	}
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	err := NewRateLimited("x", 250*time.Millisecond)

	ge, ok := AsGateway(err)
	require.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, ge.RetryAfter)
	assert.Equal(t, "x", ge.Backend)
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("socket closed")
	err := NewTransport("x", cause)

	assert.True(t, stderrors.Is(err, cause))

	middle := NewMiddleware("logging", cause)
	assert.True(t, stderrors.Is(middle, cause))
	assert.Contains(t, middle.Message, "logging")
}

func TestAsGateway(t *testing.T) {
	_, ok := AsGateway(stderrors.New("plain"))
	assert.False(t, ok)

	_, ok = AsGateway(nil)
	assert.False(t, ok)

	ge, ok := AsGateway(fmt.Errorf("wrap: %w", NewTimeout("x", nil)))
	require.True(t, ok)
	assert.Equal(t, KindTimeout, ge.Kind)
}

func TestIs_MatchesByKind(t *testing.T) {
	a := NewCircuitOpen("a")
	b := NewCircuitOpen("b")
	assert.True(t, stderrors.Is(a, b), "same kind should match regardless of backend")

	c := NewTimeout("a", nil)
	assert.False(t, stderrors.Is(a, c))
}

// Package telemetry defines the structured events the gateway core emits
// and the sinks that consume them. The core fixes the event vocabulary;
// sinks decide storage and display.
package telemetry

import (
	"time"
)

// EventKind identifies one of the fixed event types.
type EventKind string

const (
	EventRequestStarted   EventKind = "request_started"
	EventRequestCompleted EventKind = "request_completed"
	EventRequestFailed    EventKind = "request_failed"
	EventBackendSwitched  EventKind = "backend_switched"
	EventRateLimited      EventKind = "rate_limited"
	EventCircuitOpened    EventKind = "circuit_opened"
	EventCircuitClosed    EventKind = "circuit_closed"
)

// Event is a single structured telemetry event. Only the fields relevant
// to the kind are populated.
type Event struct {
	Kind      EventKind `json:"kind"`
	Time      time.Time `json:"time"`
	RequestID string    `json:"request_id,omitempty"`
	Backend   string    `json:"backend,omitempty"`
	Model     string    `json:"model,omitempty"`

	// request_completed
	Latency      time.Duration `json:"latency,omitempty"`
	InputTokens  int           `json:"input_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty"`
	Cost         float64       `json:"cost,omitempty"`

	// request_failed
	ErrorKind string `json:"error_kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`

	// backend_switched
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// rate_limited
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Sink consumes telemetry events. Implementations must be safe for
// concurrent use and must not block request processing for long.
type Sink interface {
	Emit(e Event)
}

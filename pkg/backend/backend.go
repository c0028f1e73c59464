// Package backend defines the capability contract implemented by each
// concrete backend connector, and the registry the orchestrator resolves
// backend ids against.
package backend

import (
	"context"
	"time"

	"github.com/llmhub/llmhub/pkg/types"
)

// Handle is the capability object registered for one backend id. Concrete
// connectors (wire protocol, field mapping, auth) live outside the core;
// the orchestrator only consumes this interface.
//
// Implementations must be safe for concurrent use: one Handle is shared by
// all in-flight requests routed to its backend.
type Handle interface {
	// ID returns the stable, lowercase, unique backend identifier.
	ID() string

	// Complete performs a non-streaming completion. The context carries the
	// dispatch deadline; implementations must honor cancellation.
	Complete(ctx context.Context, req *types.Request) (*types.Response, error)

	// Stream performs a streaming completion. The returned Stream is a lazy,
	// finite, non-restartable sequence of chunks.
	Stream(ctx context.Context, req *types.Request) (Stream, error)

	// Metadata returns model, limit, and pricing information. Connectors may
	// cache this themselves; the core does not.
	Metadata(ctx context.Context) (*Metadata, error)

	// Health reports the backend's current health.
	Health(ctx context.Context) (Health, error)
}

// Stream iterates over response chunks. Recv returns io.EOF after the
// terminal chunk has been delivered.
type Stream interface {
	Recv() (*types.StreamChunk, error)
	Close() error
}

// Health is a coarse backend health classification.
type Health int

const (
	Healthy Health = iota
	Degraded
	Unhealthy
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Metadata describes a backend's models, limits, and pricing.
type Metadata struct {
	Models []string `json:"models"`

	// MaxInputTokens is the largest accepted context, 0 if unknown.
	MaxInputTokens int `json:"max_input_tokens,omitempty"`

	// InputCostPer1K / OutputCostPer1K are USD prices per 1000 tokens.
	InputCostPer1K  float64 `json:"input_cost_per_1k,omitempty"`
	OutputCostPer1K float64 `json:"output_cost_per_1k,omitempty"`

	// RetrievedAt stamps when the connector produced this snapshot.
	RetrievedAt time.Time `json:"retrieved_at,omitempty"`
}

// Package selector provides backend selection strategies for the gateway.
// Strategies are pure functions over the candidate set and externally
// supplied statistics; they hold no mutable state beyond what their own
// contract requires (the round-robin cursor).
package selector

import (
	"time"

	"github.com/llmhub/llmhub/pkg/types"
)

// BackendStats holds the live statistics a strategy may consult for one
// backend. The orchestrator assembles a fresh Stats snapshot per selection.
type BackendStats struct {
	// InputCostPer1K and OutputCostPer1K are prices in USD per 1000 tokens.
	InputCostPer1K  float64
	OutputCostPer1K float64

	// P50Latency is the tracked median request latency. Zero means the
	// backend has not been measured yet.
	P50Latency time.Duration

	// CircuitOpen reports whether the backend's circuit breaker is open.
	CircuitOpen bool
}

// Stats maps backend id to its live statistics. Backends absent from the
// map are treated as having zero-valued stats.
type Stats map[string]BackendStats

// Strategy selects one backend from a candidate list. It returns
// ("", false) when the candidate set is empty or every candidate is
// excluded; the orchestrator converts that into a no-backend-available
// error.
type Strategy interface {
	Name() string
	Select(candidates []string, req *types.Request, stats Stats) (string, bool)
}

// defaultOutputTokens is assumed for cost estimation when a request does
// not cap its output.
const defaultOutputTokens = 256

// estimateInputTokens approximates the prompt token count from message
// content length. Four characters per token is the usual rough ratio for
// English text and close enough for relative cost comparison.
func estimateInputTokens(req *types.Request) int {
	if req == nil {
		return 0
	}
	chars := 0
	for _, m := range req.Messages {
		chars += len(m.Role) + len(m.Content)
	}
	tokens := chars / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// estimateOutputTokens returns the expected completion size for cost
// estimation.
func estimateOutputTokens(req *types.Request) int {
	if req != nil && req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultOutputTokens
}

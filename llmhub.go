// Package llmhub provides a unified dispatch gateway for interchangeable
// LLM backends. A single Hub fronts any number of backend connectors and
// handles selection, caching, admission control, and recovery uniformly.
//
// Basic usage:
//
//	hub, err := llmhub.New(
//	    llmhub.WithBackend(openaiHandle),
//	    llmhub.WithBackend(anthropicHandle),
//	    llmhub.WithStrategy(selector.NewCostOptimized()),
//	    llmhub.WithPricing("openai", llmhub.Pricing{InputCostPer1K: 2.5, OutputCostPer1K: 10}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer hub.Close()
//
//	req, err := llmhub.NewRequest().
//	    Model("gpt-4o").
//	    User("Hello!").
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := hub.Process(ctx, req)
package llmhub

import (
	"github.com/llmhub/llmhub/pkg/middleware"
	"github.com/llmhub/llmhub/pkg/types"
)

// Version is the current version of the module.
const Version = "1.0.0"

// Re-export core request/response types for convenience, so callers can
// use llmhub.Request instead of types.Request.
type (
	// Request is a completion request.
	Request = types.Request

	// Response is a completion response.
	Response = types.Response

	// Message is a single conversation message.
	Message = types.Message

	// StreamChunk is one chunk of a streaming response.
	StreamChunk = types.StreamChunk

	// Usage reports token consumption for a response.
	Usage = types.Usage

	// Middleware is a pipeline hook set.
	Middleware = middleware.Middleware

	// MiddlewareContext is the per-request pipeline context.
	MiddlewareContext = middleware.Context
)

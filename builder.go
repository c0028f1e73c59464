package llmhub

import (
	gwerrors "github.com/llmhub/llmhub/pkg/errors"
	"github.com/llmhub/llmhub/pkg/types"
)

// RequestBuilder assembles a Request incrementally. Build validates that
// required fields were set and returns a typed error otherwise, so a
// half-built request can never reach the Hub.
type RequestBuilder struct {
	req types.Request
}

// NewRequest starts a request builder.
func NewRequest() *RequestBuilder {
	return &RequestBuilder{}
}

// Backend pins the request to a specific backend, bypassing selection.
func (b *RequestBuilder) Backend(id string) *RequestBuilder {
	b.req.Backend = id
	return b
}

// Model sets the model name. Required.
func (b *RequestBuilder) Model(model string) *RequestBuilder {
	b.req.Model = model
	return b
}

// System appends a system message.
func (b *RequestBuilder) System(content string) *RequestBuilder {
	b.req.Messages = append(b.req.Messages, types.Message{Role: "system", Content: content})
	return b
}

// User appends a user message. At least one message is required.
func (b *RequestBuilder) User(content string) *RequestBuilder {
	b.req.Messages = append(b.req.Messages, types.Message{Role: "user", Content: content})
	return b
}

// Assistant appends an assistant message.
func (b *RequestBuilder) Assistant(content string) *RequestBuilder {
	b.req.Messages = append(b.req.Messages, types.Message{Role: "assistant", Content: content})
	return b
}

// Message appends an arbitrary message.
func (b *RequestBuilder) Message(m types.Message) *RequestBuilder {
	b.req.Messages = append(b.req.Messages, m)
	return b
}

// Temperature sets the sampling temperature.
func (b *RequestBuilder) Temperature(t float64) *RequestBuilder {
	b.req.Temperature = &t
	return b
}

// TopP sets nucleus sampling.
func (b *RequestBuilder) TopP(p float64) *RequestBuilder {
	b.req.TopP = &p
	return b
}

// MaxTokens caps the completion length.
func (b *RequestBuilder) MaxTokens(n int) *RequestBuilder {
	b.req.MaxTokens = n
	return b
}

// Stop sets the stop sequences.
func (b *RequestBuilder) Stop(sequences ...string) *RequestBuilder {
	b.req.Stop = sequences
	return b
}

// Stream marks the request as streaming.
func (b *RequestBuilder) Stream() *RequestBuilder {
	b.req.Stream = true
	return b
}

// AsUser tags the request with an end-user identifier.
func (b *RequestBuilder) AsUser(user string) *RequestBuilder {
	b.req.User = user
	return b
}

// Build validates and returns the request. The builder can be reused; the
// returned request is an independent copy.
func (b *RequestBuilder) Build() (*types.Request, error) {
	if b.req.Model == "" {
		return nil, gwerrors.NewInvalidRequest("model must be set before build")
	}
	if len(b.req.Messages) == 0 {
		return nil, gwerrors.NewInvalidRequest("at least one message must be set before build")
	}
	if b.req.Temperature != nil && (*b.req.Temperature < 0 || *b.req.Temperature > 2) {
		return nil, gwerrors.NewInvalidRequest("temperature must be in [0, 2]")
	}
	if b.req.TopP != nil && (*b.req.TopP < 0 || *b.req.TopP > 1) {
		return nil, gwerrors.NewInvalidRequest("top_p must be in [0, 1]")
	}
	if b.req.MaxTokens < 0 {
		return nil, gwerrors.NewInvalidRequest("max_tokens must be >= 0")
	}
	return b.req.Clone(), nil
}

// Package types defines the in-process request/response contract shared by
// callers, the orchestration engine, and backend connectors.
package types

import "github.com/goccy/go-json"

// Request is the normalized completion request dispatched to a backend.
// The orchestrator treats the payload as opaque; only the routing metadata
// (Backend, Model) and the cache-relevant sampling fields are inspected.
//
// A Request is immutable once dispatched; middleware may mutate the
// in-flight copy before dispatch.
type Request struct {
	// Backend pins the request to an explicit backend id. When empty the
	// orchestrator picks one via the configured selection strategy.
	Backend string `json:"backend,omitempty"`

	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
	Tools       []Tool    `json:"tools,omitempty"`
	User        string    `json:"user,omitempty"`

	// Extra holds backend-specific parameters passed through unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

var requestKnownFields = map[string]struct{}{
	"backend":     {},
	"model":       {},
	"messages":    {},
	"stream":      {},
	"max_tokens":  {},
	"temperature": {},
	"top_p":       {},
	"stop":        {},
	"tools":       {},
	"user":        {},
}

// MarshalJSON merges Extra fields without overriding explicitly set fields.
func (r Request) MarshalJSON() ([]byte, error) {
	type alias Request

	base, err := json.Marshal(alias(r))
	if err != nil || len(r.Extra) == 0 {
		return base, err
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(base, &payload); err != nil {
		return nil, err
	}

	for key, value := range r.Extra {
		if _, exists := payload[key]; !exists {
			payload[key] = value
		}
	}

	return json.Marshal(payload)
}

// UnmarshalJSON captures unknown fields into Extra for passthrough.
func (r *Request) UnmarshalJSON(data []byte) error {
	type alias Request

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	var parsed alias
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}

	*r = Request(parsed)
	for key := range requestKnownFields {
		delete(payload, key)
	}

	if len(payload) == 0 {
		r.Extra = nil
	} else {
		r.Extra = payload
	}

	return nil
}

// Clone returns a copy safe for per-attempt mutation: the message slice and
// extension map are copied so middleware edits never leak into the caller's
// value.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Messages != nil {
		cp.Messages = make([]Message, len(r.Messages))
		copy(cp.Messages, r.Messages)
	}
	if r.Stop != nil {
		cp.Stop = make([]string, len(r.Stop))
		copy(cp.Stop, r.Stop)
	}
	if r.Tools != nil {
		cp.Tools = make([]Tool, len(r.Tools))
		copy(cp.Tools, r.Tools)
	}
	if r.Extra != nil {
		cp.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}

// Message represents a single message in the conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Tool represents a function the model can call.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a callable function.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolCall represents a function call made by the model.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction contains the function name and arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

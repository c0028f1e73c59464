package types

// Response is the normalized completion response returned to callers.
// Exactly one Response is produced per successful dispatch; the
// orchestrator may substitute a cached copy.
type Response struct {
	ID       string            `json:"id"`
	Backend  string            `json:"backend"`
	Model    string            `json:"model"`
	Created  int64             `json:"created"`
	Choices  []Choice          `json:"choices"`
	Usage    *Usage            `json:"usage,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Choice represents a single completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage contains token usage counters for the request.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// StreamChunk is one incremental delta in a streaming response. A stream is
// a finite, non-restartable, ordered sequence terminated by a chunk carrying
// a finish reason or by a propagated error.
type StreamChunk struct {
	ID      string         `json:"id"`
	Backend string         `json:"backend"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
	Usage   *Usage         `json:"usage,omitempty"`
}

// StreamChoice represents a choice in a streaming response.
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// StreamDelta carries the incremental content of a stream chunk.
type StreamDelta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Done reports whether the chunk terminates its stream.
func (c *StreamChunk) Done() bool {
	for _, choice := range c.Choices {
		if choice.FinishReason != "" {
			return true
		}
	}
	return false
}

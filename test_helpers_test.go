package llmhub

import (
	"context"
	"io"
	"sync"

	"github.com/llmhub/llmhub/internal/telemetry"
	"github.com/llmhub/llmhub/pkg/backend"
	"github.com/llmhub/llmhub/pkg/types"
)

// mockBackend is a scriptable backend handle for hub tests.
type mockBackend struct {
	id string

	mu       sync.Mutex
	calls    int
	complete func(ctx context.Context, req *types.Request) (*types.Response, error)
	stream   func(ctx context.Context, req *types.Request) (backend.Stream, error)
}

func newMockBackend(id string) *mockBackend {
	return &mockBackend{id: id}
}

func (m *mockBackend) ID() string { return m.id }

func (m *mockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockBackend) Complete(ctx context.Context, req *types.Request) (*types.Response, error) {
	m.mu.Lock()
	m.calls++
	fn := m.complete
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &types.Response{
		ID:      "resp-" + m.id,
		Backend: m.id,
		Model:   req.Model,
		Choices: []types.Choice{{
			Message:      types.Message{Role: "assistant", Content: "ok from " + m.id},
			FinishReason: "stop",
		}},
		Usage: &types.Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
	}, nil
}

func (m *mockBackend) Stream(ctx context.Context, req *types.Request) (backend.Stream, error) {
	m.mu.Lock()
	m.calls++
	fn := m.stream
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return newChunkStream(
		types.StreamChunk{
			Backend: m.id,
			Model:   req.Model,
			Choices: []types.StreamChoice{{Delta: types.StreamDelta{Role: "assistant", Content: "hel"}}},
		},
		types.StreamChunk{
			Backend: m.id,
			Model:   req.Model,
			Choices: []types.StreamChoice{{Delta: types.StreamDelta{Content: "lo"}, FinishReason: "stop"}},
			Usage:   &types.Usage{InputTokens: 5, OutputTokens: 2, TotalTokens: 7},
		},
	), nil
}

func (m *mockBackend) Metadata(ctx context.Context) (*backend.Metadata, error) {
	return &backend.Metadata{Models: []string{"test-model"}}, nil
}

func (m *mockBackend) Health(ctx context.Context) (backend.Health, error) {
	return backend.Healthy, nil
}

// chunkStream replays a fixed chunk sequence, then an optional error or
// io.EOF.
type chunkStream struct {
	mu     sync.Mutex
	chunks []types.StreamChunk
	err    error
	pos    int
	closed bool
}

func newChunkStream(chunks ...types.StreamChunk) *chunkStream {
	return &chunkStream{chunks: chunks}
}

func newFailingStream(after []types.StreamChunk, err error) *chunkStream {
	return &chunkStream{chunks: after, err: err}
}

func (s *chunkStream) Recv() (*types.StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos < len(s.chunks) {
		chunk := s.chunks[s.pos]
		s.pos++
		return &chunk, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func (s *chunkStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// captureSink records telemetry events under a lock.
type captureSink struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (c *captureSink) Emit(e telemetry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureSink) byKind(kind telemetry.EventKind) []telemetry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []telemetry.Event
	for _, e := range c.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func simpleRequest(model string) *types.Request {
	return &types.Request{
		Model: model,
		Messages: []types.Message{
			{Role: "user", Content: "hello"},
		},
	}
}

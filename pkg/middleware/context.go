package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context carries per-request state through the pipeline. It is owned
// exclusively by one in-flight request and is never shared, so access
// needs no locking. Metadata written by an earlier hook is visible to
// every later hook in the same request.
type Context struct {
	// RequestID uniquely identifies this request across retries and
	// fallback hops.
	RequestID string

	// Backend is the currently selected backend id. The orchestrator
	// updates it on a fallback hop.
	Backend string

	// Model is the requested model name.
	Model string

	// Attempt counts dispatch attempts for this request, starting at 1.
	Attempt int

	// Streaming indicates a streaming request.
	Streaming bool

	// StartTime is when processing began.
	StartTime time.Time

	reqCtx context.Context
	meta   map[string]string
	keys   []string
}

// NewContext creates a fresh pipeline context with a generated request id.
// ctx is the caller's request context; hooks that block select on Done.
func NewContext(ctx context.Context, backend, model string) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		RequestID: uuid.NewString(),
		Backend:   backend,
		Model:     model,
		Attempt:   1,
		StartTime: time.Now(),
		reqCtx:    ctx,
	}
}

// Done returns the caller's cancellation channel.
func (c *Context) Done() <-chan struct{} {
	return c.reqCtx.Done()
}

// Set stores a metadata value. Insertion order is preserved for Range.
func (c *Context) Set(key, value string) {
	if c.meta == nil {
		c.meta = make(map[string]string)
	}
	if _, exists := c.meta[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.meta[key] = value
}

// Get returns a metadata value.
func (c *Context) Get(key string) (string, bool) {
	v, ok := c.meta[key]
	return v, ok
}

// Range calls fn for each metadata entry in insertion order, stopping if
// fn returns false.
func (c *Context) Range(fn func(key, value string) bool) {
	for _, k := range c.keys {
		if !fn(k, c.meta[k]) {
			return
		}
	}
}

// Elapsed returns the time since processing began.
func (c *Context) Elapsed() time.Duration {
	return time.Since(c.StartTime)
}

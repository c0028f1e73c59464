package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/llmhub/llmhub/pkg/errors"
	"github.com/llmhub/llmhub/pkg/types"
)

// recorder appends hook invocations to a shared trace.
type recorder struct {
	Base
	name      string
	trace     *[]string
	beforeErr error
	afterErr  error
	action    Action
	actionErr error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) BeforeDispatch(ctx *Context, req *types.Request) error {
	*r.trace = append(*r.trace, "before:"+r.name)
	return r.beforeErr
}

func (r *recorder) AfterSuccess(ctx *Context, resp *types.Response) error {
	*r.trace = append(*r.trace, "after:"+r.name)
	return r.afterErr
}

func (r *recorder) OnError(ctx *Context, err error) (Action, error) {
	*r.trace = append(*r.trace, "error:"+r.name)
	return r.action, r.actionErr
}

func newRecorderChain(t *testing.T, trace *[]string, names ...string) (*Pipeline, []*recorder) {
	t.Helper()

	p := NewPipeline(nil)
	recs := make([]*recorder, 0, len(names))
	for _, name := range names {
		r := &recorder{name: name, trace: trace, action: Propagate()}
		require.NoError(t, p.Use(r))
		recs = append(recs, r)
	}
	return p, recs
}

func TestPipeline_Use(t *testing.T) {
	p := NewPipeline(nil)

	assert.ErrorIs(t, p.Use(nil), ErrNilMiddleware)

	var trace []string
	require.NoError(t, p.Use(&recorder{name: "a", trace: &trace}))
	assert.ErrorIs(t, p.Use(&recorder{name: "a", trace: &trace}), ErrDuplicateMiddleware)
	assert.Equal(t, 1, p.Len())
}

func TestPipeline_HookOrdering(t *testing.T) {
	t.Run("before runs in registration order", func(t *testing.T) {
		var trace []string
		p, _ := newRecorderChain(t, &trace, "A", "B", "C")

		idx, err := p.Before(NewContext(context.Background(), "x", "m"), &types.Request{})
		require.NoError(t, err)
		assert.Equal(t, 2, idx)
		assert.Equal(t, []string{"before:A", "before:B", "before:C"}, trace)
	})

	t.Run("after_success runs in reverse order", func(t *testing.T) {
		var trace []string
		p, _ := newRecorderChain(t, &trace, "A", "B", "C")

		require.NoError(t, p.AfterSuccess(NewContext(context.Background(), "x", "m"), &types.Response{}))
		assert.Equal(t, []string{"after:C", "after:B", "after:A"}, trace)
	})

	t.Run("on_error runs in reverse order", func(t *testing.T) {
		var trace []string
		p, _ := newRecorderChain(t, &trace, "A", "B", "C")

		action, err := p.OnError(NewContext(context.Background(), "x", "m"), errors.New("boom"), p.Len()-1)
		require.NoError(t, err)
		assert.Equal(t, ActionPropagate, action.Kind)
		assert.Equal(t, []string{"error:C", "error:B", "error:A"}, trace)
	})

	t.Run("first non-propagate decision wins", func(t *testing.T) {
		var trace []string
		p, recs := newRecorderChain(t, &trace, "A", "B", "C")
		recs[1].action = Retry() // B decides

		action, err := p.OnError(NewContext(context.Background(), "x", "m"), errors.New("boom"), p.Len()-1)
		require.NoError(t, err)
		assert.Equal(t, ActionRetry, action.Kind)
		assert.Equal(t, []string{"error:C", "error:B"}, trace, "A must not run after B decided")
	})
}

func TestPipeline_BeforeFailure(t *testing.T) {
	var trace []string
	p, recs := newRecorderChain(t, &trace, "A", "B", "C")
	beforeErr := errors.New("rejected")
	recs[1].beforeErr = beforeErr

	ctx := NewContext(context.Background(), "x", "m")
	idx, err := p.Before(ctx, &types.Request{})
	require.ErrorIs(t, err, beforeErr)
	assert.Equal(t, 1, idx)
	assert.Equal(t, []string{"before:A", "before:B"}, trace, "C's before hook must not run")

	// The error unwinds as if B produced it: only B and A see on_error.
	trace = trace[:0]
	_, err = p.OnError(ctx, beforeErr, idx)
	require.NoError(t, err)
	assert.Equal(t, []string{"error:B", "error:A"}, trace)
}

func TestPipeline_AfterSuccessFailure(t *testing.T) {
	var trace []string
	p, recs := newRecorderChain(t, &trace, "A", "B", "C")
	recs[1].afterErr = errors.New("observer blew up")

	err := p.AfterSuccess(NewContext(context.Background(), "x", "m"), &types.Response{})
	require.Error(t, err)
	assert.True(t, gwerrors.IsKind(err, gwerrors.KindMiddleware))
	assert.Equal(t, []string{"after:C", "after:B"}, trace, "A must not run after B failed")
}

func TestPipeline_OnErrorHookFailure(t *testing.T) {
	var trace []string
	p, recs := newRecorderChain(t, &trace, "A", "B")
	recs[1].actionErr = errors.New("hook broke")

	action, err := p.OnError(NewContext(context.Background(), "x", "m"), errors.New("boom"), p.Len()-1)
	require.Error(t, err)
	assert.True(t, gwerrors.IsKind(err, gwerrors.KindMiddleware))
	assert.Equal(t, ActionPropagate, action.Kind)
	assert.Equal(t, []string{"error:B"}, trace, "chain aborts on hook failure")
}

func TestContext_Metadata(t *testing.T) {
	ctx := NewContext(context.Background(), "backend", "model")
	assert.NotEmpty(t, ctx.RequestID)
	assert.Equal(t, 1, ctx.Attempt)

	ctx.Set("first", "1")
	ctx.Set("second", "2")
	ctx.Set("first", "updated")

	v, ok := ctx.Get("first")
	require.True(t, ok)
	assert.Equal(t, "updated", v)

	_, ok = ctx.Get("absent")
	assert.False(t, ok)

	var keys []string
	ctx.Range(func(k, v string) bool {
		keys = append(keys, k)
		return true
	})
	assert.Equal(t, []string{"first", "second"}, keys, "insertion order preserved")
}

func TestContext_MetadataVisibleAcrossHooks(t *testing.T) {
	p := NewPipeline(nil)

	writer := &funcMiddleware{
		name: "writer",
		before: func(ctx *Context, req *types.Request) error {
			ctx.Set("trace", "set-by-writer")
			return nil
		},
	}
	var seen string
	reader := &funcMiddleware{
		name: "reader",
		before: func(ctx *Context, req *types.Request) error {
			seen, _ = ctx.Get("trace")
			return nil
		},
	}
	require.NoError(t, p.Use(writer))
	require.NoError(t, p.Use(reader))

	_, err := p.Before(NewContext(context.Background(), "x", "m"), &types.Request{})
	require.NoError(t, err)
	assert.Equal(t, "set-by-writer", seen)
}

// funcMiddleware adapts closures for one-off test middlewares.
type funcMiddleware struct {
	Base
	name   string
	before func(ctx *Context, req *types.Request) error
}

func (f *funcMiddleware) Name() string { return f.name }

func (f *funcMiddleware) BeforeDispatch(ctx *Context, req *types.Request) error {
	if f.before == nil {
		return nil
	}
	return f.before(ctx, req)
}

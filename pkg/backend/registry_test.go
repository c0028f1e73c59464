package backend

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmhub/llmhub/pkg/types"
)

// stubHandle is a minimal Handle for registry tests.
type stubHandle struct {
	id string

	mu            sync.Mutex
	metadataCalls int
	metadata      *Metadata
	metadataErr   error
}

func (s *stubHandle) ID() string { return s.id }

func (s *stubHandle) Complete(ctx context.Context, req *types.Request) (*types.Response, error) {
	return &types.Response{Backend: s.id}, nil
}

func (s *stubHandle) Stream(ctx context.Context, req *types.Request) (Stream, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubHandle) Metadata(ctx context.Context) (*Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadataCalls++
	if s.metadataErr != nil {
		return nil, s.metadataErr
	}
	if s.metadata != nil {
		return s.metadata, nil
	}
	return &Metadata{Models: []string{"stub-model"}, RetrievedAt: time.Now()}, nil
}

func (s *stubHandle) Health(ctx context.Context) (Health, error) {
	return Healthy, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	t.Run("register and get", func(t *testing.T) {
		h := &stubHandle{id: "openai"}
		r.Register(h)

		got, ok := r.Get("openai")
		require.True(t, ok)
		assert.Equal(t, "openai", got.ID())
	})

	t.Run("missing id", func(t *testing.T) {
		_, ok := r.Get("absent")
		assert.False(t, ok)
	})

	t.Run("re-register replaces", func(t *testing.T) {
		first := &stubHandle{id: "dup"}
		second := &stubHandle{id: "dup"}
		r.Register(first)
		r.Register(second)

		got, ok := r.Get("dup")
		require.True(t, ok)
		assert.Same(t, second, got)
	})

	t.Run("unregister", func(t *testing.T) {
		r.Register(&stubHandle{id: "gone"})
		r.Unregister("gone")
		_, ok := r.Get("gone")
		assert.False(t, ok)
	})

	t.Run("ids sorted", func(t *testing.T) {
		r2 := NewRegistry()
		for _, id := range []string{"c", "a", "b"} {
			r2.Register(&stubHandle{id: id})
		}
		assert.Equal(t, []string{"a", "b", "c"}, r2.IDs())
		assert.Equal(t, 3, r2.Len())
	})

	t.Run("nil handle ignored", func(t *testing.T) {
		r2 := NewRegistry()
		r2.Register(nil)
		assert.Equal(t, 0, r2.Len())
	})
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("backend-%d", i)
			r.Register(&stubHandle{id: id})
			_, _ = r.Get(id)
			_ = r.IDs()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, r.Len())
}

func TestMetadataCache(t *testing.T) {
	ctx := context.Background()

	t.Run("caches successful lookups", func(t *testing.T) {
		h := &stubHandle{id: "x"}
		cached := WithMetadataCache(h, time.Minute)

		first, err := cached.Metadata(ctx)
		require.NoError(t, err)
		second, err := cached.Metadata(ctx)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, h.metadataCalls)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		h := &stubHandle{id: "x", metadataErr: fmt.Errorf("upstream down")}
		cached := WithMetadataCache(h, time.Minute)

		_, err := cached.Metadata(ctx)
		require.Error(t, err)

		h.metadataErr = nil
		md, err := cached.Metadata(ctx)
		require.NoError(t, err)
		assert.NotNil(t, md)
		assert.Equal(t, 2, h.metadataCalls)
	})

	t.Run("invalidate forces refresh", func(t *testing.T) {
		h := &stubHandle{id: "x"}
		cached := WithMetadataCache(h, time.Minute)

		_, err := cached.Metadata(ctx)
		require.NoError(t, err)
		cached.Invalidate()
		_, err = cached.Metadata(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, h.metadataCalls)
	})

	t.Run("other operations pass through", func(t *testing.T) {
		h := &stubHandle{id: "x"}
		cached := WithMetadataCache(h, time.Minute)

		resp, err := cached.Complete(ctx, &types.Request{Model: "m"})
		require.NoError(t, err)
		assert.Equal(t, "x", resp.Backend)
		assert.Equal(t, "x", cached.ID())
	})
}

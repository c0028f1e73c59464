package llmhub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/llmhub/llmhub/pkg/errors"
)

func TestRequestBuilder(t *testing.T) {
	t.Run("full request", func(t *testing.T) {
		req, err := NewRequest().
			Backend("openai").
			Model("gpt-4o").
			System("You are terse.").
			User("Hello!").
			Temperature(0.7).
			TopP(0.9).
			MaxTokens(256).
			Stop("\n\n").
			AsUser("tenant-1").
			Build()
		require.NoError(t, err)

		assert.Equal(t, "openai", req.Backend)
		assert.Equal(t, "gpt-4o", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, 0.7, *req.Temperature)
		assert.Equal(t, 256, req.MaxTokens)
		assert.Equal(t, "tenant-1", req.User)
		assert.False(t, req.Stream)
	})

	t.Run("model required", func(t *testing.T) {
		_, err := NewRequest().User("hi").Build()
		require.Error(t, err)
		assert.True(t, gwerrors.IsKind(err, gwerrors.KindInvalidRequest))
	})

	t.Run("messages required", func(t *testing.T) {
		_, err := NewRequest().Model("gpt-4o").Build()
		require.Error(t, err)
		assert.True(t, gwerrors.IsKind(err, gwerrors.KindInvalidRequest))
	})

	t.Run("rejects out of range sampling params", func(t *testing.T) {
		_, err := NewRequest().Model("m").User("hi").Temperature(3).Build()
		assert.True(t, gwerrors.IsKind(err, gwerrors.KindInvalidRequest))

		_, err = NewRequest().Model("m").User("hi").TopP(1.5).Build()
		assert.True(t, gwerrors.IsKind(err, gwerrors.KindInvalidRequest))
	})

	t.Run("built request is an independent copy", func(t *testing.T) {
		b := NewRequest().Model("m").User("hi")

		first, err := b.Build()
		require.NoError(t, err)

		b.Assistant("and more")
		second, err := b.Build()
		require.NoError(t, err)

		assert.Len(t, first.Messages, 1, "earlier build must not grow")
		assert.Len(t, second.Messages, 2)
	})
}

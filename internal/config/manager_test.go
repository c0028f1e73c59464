package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Get(t *testing.T) {
	path := writeConfig(t, `
backends:
  - name: openai
`)

	m, err := NewManager(path, nil)
	require.NoError(t, err)
	defer m.Close()

	cfg := m.Get()
	require.Len(t, cfg.Backends, 1)
	assert.Equal(t, "openai", cfg.Backends[0].Name)
}

func TestManager_RejectsInvalidInitialConfig(t *testing.T) {
	path := writeConfig(t, `
selection:
  strategy: bogus
`)

	_, err := NewManager(path, nil)
	assert.Error(t, err)
}

func TestManager_HotReload(t *testing.T) {
	path := writeConfig(t, `
backends:
  - name: openai
`)

	m, err := NewManager(path, nil)
	require.NoError(t, err)
	defer m.Close()

	reloaded := make(chan *Config, 1)
	m.OnChange(func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte(`
backends:
  - name: openai
  - name: anthropic
`), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Len(t, cfg.Backends, 2)
		assert.Len(t, m.Get().Backends, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestManager_KeepsConfigOnBadReload(t *testing.T) {
	path := writeConfig(t, `
backends:
  - name: openai
`)

	m, err := NewManager(path, nil)
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte("selection: {strategy: bogus}\n"), 0o644))

	// Give the debounced reload a chance to run, then confirm the old
	// snapshot survived.
	time.Sleep(time.Second)
	assert.Len(t, m.Get().Backends, 1)
}

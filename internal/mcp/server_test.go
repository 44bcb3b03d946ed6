package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/scadad/internal/browse"
	"github.com/fyrsmithlabs/scadad/internal/channel"
)

func newTestBrowseService(t *testing.T) *browse.Service {
	t.Helper()
	svc, err := browse.NewService(channel.NewMemory(), browse.DefaultLimits(), zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "scadad", cfg.Name)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.NotNil(t, cfg.Logger)
}

func TestNewServer(t *testing.T) {
	t.Run("requires browse service", func(t *testing.T) {
		_, err := NewServer(DefaultConfig(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browse service is required")
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		s, err := NewServer(nil, newTestBrowseService(t))
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.NotNil(t, s.metrics)
	})

	t.Run("registers tools without error", func(t *testing.T) {
		s, err := NewServer(&Config{Name: "scadad-test", Version: "0.0.1", Logger: zap.NewNop()}, newTestBrowseService(t))
		require.NoError(t, err)
		require.NotNil(t, s.mcp)
	})
}

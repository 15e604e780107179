package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"dir":      "/var/lib/app",
		"database": "app.db",
		"params":   map[string]string{"busy_timeout": "250"},
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/var/lib/app", "app.db"), cfg.Path())
	assert.Equal(t, 250, cfg.BusyTimeoutMS)
	assert.Equal(t, "file:"+filepath.Join("/var/lib/app", "app.db")+"?_busy_timeout=250", cfg.DSN())
}

func TestFromMap_Errors(t *testing.T) {
	_, err := FromMap(map[string]any{"dir": "/tmp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is required")

	_, err = FromMap(map[string]any{"database": "a.db", "params": map[string]any{"busy_timeout": "soon"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid busy_timeout "soon"`)
}

func TestConfig_Memory(t *testing.T) {
	cfg, err := FromMap(map[string]any{"dir": "ignored", "database": MemoryDatabase})
	require.NoError(t, err)

	assert.Equal(t, MemoryDatabase, cfg.Path())
	assert.Equal(t, "file::memory:?_busy_timeout=5000", cfg.DSN())
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 30, cfg.Database.TimeoutSeconds)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500, cfg.Retry.BackoffMS)
	assert.Equal(t, "data/services.yaml", cfg.Catalog.DefinitionsPath)
	assert.Equal(t, "file", cfg.Snapshot.Backend)
	assert.False(t, cfg.Remote.Enabled)
	assert.Equal(t, 10, cfg.Remote.TimeoutSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("REMOTE_ENABLED", "true")
	t.Setenv("REMOTE_BASE_URL", "https://example.com")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.True(t, cfg.Remote.Enabled)
	assert.Equal(t, "https://example.com", cfg.Remote.BaseURL)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SNAPSHOT_PATH=out/services.json\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("SNAPSHOT_PATH") })

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "out/services.json", cfg.Snapshot.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"Driver", map[string]string{"DATABASE_DRIVER": "postgres"}},
		{"Backend", map[string]string{"SNAPSHOT_BACKEND": "ftp"}},
		{"Remote Without URL", map[string]string{"REMOTE_ENABLED": "true"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(t.TempDir())
			assert.Error(t, err)
		})
	}
}

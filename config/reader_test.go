package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestReadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := ReadConfigFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Buffer.Threshold)
	assert.Equal(t, 10*time.Second, cfg.IdleInterval())
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestReadConfigOverlaysFile(t *testing.T) {
	path := writeConfig(t, `
port = 9100

[buffer]
threshold = 20
idle_interval_ms = 250

[retry]
max_attempts = 5
backoff_ms = 10
`)

	cfg, err := ReadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 20, cfg.Buffer.Threshold)
	assert.Equal(t, 250*time.Millisecond, cfg.IdleInterval())
	assert.Equal(t, 10*time.Millisecond, cfg.RetryBackoff())
	// untouched keys keep their defaults
	assert.Equal(t, 4, cfg.Buffer.FlushConcurrency)
}

func TestReadConfigRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
[buffer]
threshold = 0
`)

	_, err := ReadConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Threshold")
}

func TestReadConfigMysqlNeedsAddress(t *testing.T) {
	path := writeConfig(t, `
[database]
driver = "mysql"
db = "storesync"
`)

	_, err := ReadConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Addr")
}

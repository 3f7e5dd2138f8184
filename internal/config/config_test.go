package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHasSaneZeroValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 60*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "exponential", cfg.Retry.Strategy)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 0.85, cfg.Dedup.SimilarityThreshold)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.True(t, cfg.Storage.Versioning)
}

func TestParseOverridesOnlyNamedFields(t *testing.T) {
	cfg, err := Parse([]byte(`
target:
  url: https://example.com/p/1
rate_limit:
  requests_per_minute: 30
`))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/p/1", cfg.Target.URL)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	// untouched fields keep Default()'s values
	assert.Equal(t, "exponential", cfg.Retry.Strategy)
	assert.Equal(t, 0.85, cfg.Dedup.SimilarityThreshold)
}

func TestLoadFileReadsYAMLFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: sqlite\n  dsn: test.db\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "test.db", cfg.Storage.DSN)
}

func TestLoadFileMissingReturnsError(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

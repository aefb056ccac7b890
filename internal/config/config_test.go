package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codecompass.yaml")
	yaml := `
server:
  name: compass-test
repositories:
  roots:
    - /tmp/repo
  max_file_bytes: 1048576
search:
  timeout_seconds: 5
embedding:
  provider: ollama
  model: nomic-embed-text
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "compass-test", cfg.Server.Name)
	assert.Equal(t, []string{"/tmp/repo"}, cfg.Repositories.Roots)
	assert.Equal(t, int64(1<<20), cfg.Repositories.MaxFileBytes)
	assert.Equal(t, 5, cfg.Search.TimeoutSeconds)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	// Untouched keys keep their defaults.
	assert.Equal(t, 60, cfg.Search.CacheTTLSeconds)
	assert.Equal(t, 512, cfg.Chunking.WindowBytes)
}

func TestLoadRequiresRoots(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codecompass.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  name: x\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "repository root")
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codecompass.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repositories:\n  roots: [/tmp/repo]\n"), 0o644))

	t.Setenv("CODECOMPASS_EMBEDDING_PROVIDER", "openai")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

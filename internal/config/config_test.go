package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Model.Provider)
	assert.Equal(t, 60*time.Second, cfg.Model.Timeout)
	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, 2800, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 3, cfg.Pipeline.MaxChunks)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extractor.yaml")
	content := `
model:
  provider: gemini
  model_name: gemini-2.0-flash
  timeout: 90s
pipeline:
  max_attempts: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Model.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model.ModelName)
	assert.Equal(t, 90*time.Second, cfg.Model.Timeout)
	assert.Equal(t, 5, cfg.Pipeline.MaxAttempts)
	// Untouched values keep their defaults.
	assert.Equal(t, 2800, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 180*time.Second, cfg.Model.NarrativeTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("EXTRACTOR_MODEL_BASE_URL", "http://model-host:11434")
	t.Setenv("EXTRACTOR_BQ_PROJECT", "my-project")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://model-host:11434", cfg.Model.BaseURL)
	assert.Equal(t, "my-project", cfg.BigQuery.ProjectID)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("EXTRACTOR_MODEL_PROVIDER", "gpt-banana")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model provider")
}

func TestLoadRejectsBadPipelineValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extractor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  max_attempts: -1\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

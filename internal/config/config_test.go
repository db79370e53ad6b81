package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, EmbedderHashing, cfg.Embedder.Type)
	assert.Equal(t, GeneratorGenAI, cfg.Generator.Type)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Generator.GenAI.APIKeyEnv)
	assert.Equal(t, StoreSQLite, cfg.Store.Type)
	assert.NotEmpty(t, cfg.Store.Root)
	assert.Equal(t, RetrievalConfig{ResultCap: 20, Oversample: 3, FallbackLatest: 5}, cfg.Retrieval)
	assert.Equal(t, 2000, cfg.Ingest.IntervalMS)
	assert.Equal(t, 60, cfg.Generator.RateLimitWaitSecs)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_AppliesSectionDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runrag.yaml")
	data := `
embedder:
  type: openai
generator:
  type: ollama
  ollama:
    model: mistral
store:
  type: qdrant
  qdrant:
    url: http://localhost:6333
retrieval:
  result_cap: 10
log:
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, "mistral", cfg.Generator.Ollama.Model)
	assert.Equal(t, "http://localhost:11434", cfg.Generator.Ollama.Endpoint)
	assert.Equal(t, "runs_", cfg.Store.Qdrant.CollectionPrefix)
	assert.Equal(t, 10, cfg.Retrieval.ResultCap)
	assert.Equal(t, 3, cfg.Retrieval.Oversample)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_RejectsUnknownBackends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder:\n  type: word2vec\nstore:\n  type: qdrant\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown embedder type "word2vec"`)
	assert.Contains(t, err.Error(), "store.qdrant.url is required")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Store.Type = StoreMemory
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "runrag", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, EmbedderHashing, cfg.Embedder.Type)
}

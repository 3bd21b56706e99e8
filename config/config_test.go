package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2048, cfg.Processing.ChunkSize)
	assert.Equal(t, 100, cfg.Processing.ChunkOverlap)
	assert.Equal(t, 20, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.1, cfg.Retrieval.ScoreThreshold, 1e-9)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "askpdf.yaml")
	content := `
processing:
  chunk_size: 1024
  chunk_overlap: 80
vector_store:
  type: qdrant
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("ASKPDF_OLLAMA_MODEL", "mistral")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Processing.ChunkSize)
	assert.Equal(t, 80, cfg.Processing.ChunkOverlap)
	assert.Equal(t, "qdrant", cfg.VectorStore.Type)
	assert.Equal(t, "mistral", cfg.Ollama.DefaultModel)
	// untouched values keep their defaults
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.TextModel)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Processing.ChunkOverlap = cfg.Processing.ChunkSize
	cfg.VectorStore.Type = "chroma"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
	assert.Contains(t, err.Error(), "chroma")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Chat.MaxTurns = 12
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Chat.MaxTurns)
}

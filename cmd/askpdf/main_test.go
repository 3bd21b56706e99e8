package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askpdf/server/config"
)

func TestNewLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := config.Default()
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"
	logger := newLogger(cfg)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	cfg.Log.Level = "warn"
	logger = newLogger(cfg)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestNewApp_DefaultBackends(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest","size":10},{"name":"llama3.1:latest","size":20}]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Ollama.BaseURL = ts.URL
	cfg.OCR.Enabled = false
	cfg.Paths.DocumentsDir = filepath.Join(dir, "pdf")
	cfg.Paths.IndexDir = filepath.Join(dir, "db")

	a, err := newApp(context.Background(), cfg, slog.Default(), true)
	require.NoError(t, err)
	require.NotNil(t, a.rag)
	require.NotNil(t, a.processor)

	n, err := a.index.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, a.Close())

	// The index file is released on close and can be reopened.
	a, err = newApp(context.Background(), cfg, slog.Default(), false)
	require.NoError(t, err)
	assert.Nil(t, a.rag)
	require.NoError(t, a.Close())
}

package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askpdf/server/internal/llm"
)

func TestComplete_StreamedChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.1", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
		assert.Equal(t, "hi", req.Messages[1].Content)

		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Hel"},"done":false}
{"message":{"role":"assistant","content":"lo"},"done":true}
`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "llama3.1", time.Second)
	out, err := c.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleHuman, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", out)
}

func TestComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "m", time.Second).Complete(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama API error: 500")
}

func tagsServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetDefaultModel(t *testing.T) {
	srv := tagsServer(t, `{"models":[
		{"name":"nomic-embed-text:latest","size":300},
		{"name":"mistral:7b","size":4000},
		{"name":"llama3.1:latest","size":5000}
	]}`)
	ms := NewModelSelector(NewClient(srv.URL, "", time.Second))
	ctx := context.Background()

	got, err := ms.GetDefaultModel(ctx, "llama3.1")
	require.NoError(t, err)
	assert.Equal(t, "llama3.1:latest", got)

	got, err = ms.GetDefaultModel(ctx, "mistral:7b")
	require.NoError(t, err)
	assert.Equal(t, "mistral:7b", got)

	got, err = ms.GetDefaultModel(ctx, "phi3")
	require.NoError(t, err)
	assert.Equal(t, "llama3.1:latest", got, "missing model falls back to selection")
}

func TestSelectBestModel_LargestFallbackAndEmpty(t *testing.T) {
	srv := tagsServer(t, `{"models":[{"name":"tiny","size":1},{"name":"gemma","size":9}]}`)
	got, err := NewModelSelector(NewClient(srv.URL, "", time.Second)).SelectBestModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gemma", got)

	empty := tagsServer(t, `{"models":[]}`)
	_, err = NewModelSelector(NewClient(empty.URL, "", time.Second)).SelectBestModel(context.Background())
	assert.Error(t, err)
}

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
)

// preferredModels are chat models tried in order when the configured model is
// not installed.
var preferredModels = []string{"llama3.1", "llama3.2", "qwen2.5", "mistral", "llama3", "llama2"}

// ModelInfo is one entry of /api/tags.
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

func (m ModelInfo) embedding() bool {
	return strings.Contains(strings.ToLower(m.Name), "embed")
}

// ModelSelector resolves which installed model answers questions.
type ModelSelector struct {
	client *Client
}

// NewModelSelector creates a new model selector
func NewModelSelector(client *Client) *ModelSelector {
	return &ModelSelector{client: client}
}

// ListModels returns the models installed on the server.
func (ms *ModelSelector) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ms.client.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := ms.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tags struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return tags.Models, nil
}

// SelectBestModel picks an installed chat model.
func (ms *ModelSelector) SelectBestModel(ctx context.Context) (string, error) {
	models, err := ms.ListModels(ctx)
	if err != nil {
		return "", err
	}
	return pickModel(models)
}

// GetDefaultModel returns the installed name of want, or a selected model when
// want is empty or missing. A tagless name matches its ":latest" variant.
func (ms *ModelSelector) GetDefaultModel(ctx context.Context, want string) (string, error) {
	models, err := ms.ListModels(ctx)
	if err != nil {
		return "", err
	}
	if want != "" {
		for _, m := range models {
			if sameModel(m.Name, want) {
				return m.Name, nil
			}
		}
	}
	return pickModel(models)
}

// pickModel prefers the known chat families and otherwise takes the largest
// installed model.
func pickModel(models []ModelInfo) (string, error) {
	if len(models) == 0 {
		return "", errors.New("no models available")
	}
	for _, family := range preferredModels {
		for _, m := range models {
			if !m.embedding() && strings.Contains(strings.ToLower(m.Name), family) {
				return m.Name, nil
			}
		}
	}
	largest := slices.MaxFunc(models, func(a, b ModelInfo) int {
		switch {
		case a.Size < b.Size:
			return -1
		case a.Size > b.Size:
			return 1
		}
		return 0
	})
	return largest.Name, nil
}

func sameModel(installed, want string) bool {
	if installed == want {
		return true
	}
	return !strings.Contains(want, ":") && installed == want+":latest"
}

// Package vectorstore persists chunk embeddings and answers similarity queries.
//
// Index is the long-lived handle opened once at startup. It owns the embedding
// collaborator and serializes writes against its Backend with a read-write lock:
// searches and listings share the lock, inserts and deletes take it exclusively.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/askpdf/server/internal/apperr"
)

// Chunk is a contiguous span of extracted document text.
type Chunk struct {
	Source     string
	ChunkIndex int
	Content    string
}

// Record is a chunk with its id and embedding, as handed to a Backend.
type Record struct {
	ID        string
	Chunk     Chunk
	Embedding []float32
}

// Match is a search hit. Score is the cosine similarity to the query.
type Match struct {
	ID    string
	Chunk Chunk
	Score float64
}

// Entry is the metadata returned by a full enumeration.
type Entry struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder embeds many texts in one call. Index uses it when the
// Embedder also implements it.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Backend is a storage engine for index records. Implementations need not be
// safe for concurrent writers; Index serializes them.
type Backend interface {
	Insert(ctx context.Context, records []Record) error
	// Search returns at most k records scoring >= threshold, best first.
	Search(ctx context.Context, vector []float32, k int, threshold float64) ([]Match, error)
	Delete(ctx context.Context, ids []string) error
	// DeleteSource removes every record whose source matches, ignoring case and
	// surrounding whitespace, and reports how many were removed.
	DeleteSource(ctx context.Context, source string) (int, error)
	List(ctx context.Context) ([]Entry, error)
	Count(ctx context.Context) (int, error)
	// Clear removes every record and leaves the backend open.
	Clear(ctx context.Context) error
	Close() error
}

// Index is the vector index used by ingestion and retrieval.
type Index struct {
	mu       sync.RWMutex
	backend  Backend
	embedder Embedder
	logger   *slog.Logger
}

// New wraps backend with embedding and locking.
func New(backend Backend, embedder Embedder, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		backend:  backend,
		embedder: embedder,
		logger:   logger.With("component", "vectorstore"),
	}
}

// Upsert embeds and stores chunks, returning the generated ids in input order.
func (ix *Index) Upsert(ctx context.Context, chunks []Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	// Embed before taking the write lock so searches are not blocked on the model.
	vecs, err := ix.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	records := make([]Record, len(chunks))
	for i, c := range chunks {
		records[i] = Record{ID: uuid.New().String(), Chunk: c, Embedding: vecs[i]}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.backend.Insert(ctx, records); err != nil {
		return nil, apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to insert chunks: %w", err))
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	ix.logger.Debug("chunks indexed", "count", len(ids), "source", chunks[0].Source)
	return ids, nil
}

const embedBatchSize = 64

func (ix *Index) embedChunks(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	vecs := make([][]float32, 0, len(chunks))
	if be, ok := ix.embedder.(BatchEmbedder); ok {
		for start := 0; start < len(chunks); start += embedBatchSize {
			end := min(start+embedBatchSize, len(chunks))
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Content)
			}
			batch, err := be.EmbedBatch(ctx, texts)
			if err != nil {
				return nil, apperr.Wrap(apperr.ErrUpstream, fmt.Errorf("failed to embed chunks of %s: %w", chunks[start].Source, err))
			}
			if len(batch) != len(texts) {
				return nil, apperr.New(apperr.ErrUpstream, "embedding model returned %d vectors for %d chunks", len(batch), len(texts))
			}
			vecs = append(vecs, batch...)
		}
		return vecs, nil
	}

	for i, c := range chunks {
		vec, err := ix.embedder.Embed(ctx, c.Content)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrUpstream, fmt.Errorf("failed to embed chunk %d of %s: %w", i, c.Source, err))
		}
		vecs = append(vecs, vec)
	}
	return vecs, nil
}

// Search embeds query and returns up to k matches scoring at least threshold.
// An empty index or no qualifying match yields an empty slice.
func (ix *Index) Search(ctx context.Context, query string, k int, threshold float64) ([]Match, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return []Match{}, nil
	}
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstream, fmt.Errorf("failed to generate query embedding: %w", err))
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	matches, err := ix.backend.Search(ctx, vec, k, threshold)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to search chunks: %w", err))
	}
	if matches == nil {
		matches = []Match{}
	}
	return matches, nil
}

// Delete removes entries by id. Unknown and blank ids are ignored.
func (ix *Index) Delete(ctx context.Context, ids []string) error {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.backend.Delete(ctx, clean); err != nil {
		return apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to delete chunks: %w", err))
	}
	return nil
}

// DeleteSource removes every chunk of the named document.
func (ix *Index) DeleteSource(ctx context.Context, source string) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	n, err := ix.backend.DeleteSource(ctx, source)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to delete chunks of %s: %w", source, err))
	}
	ix.logger.Info("chunks deleted", "source", source, "count", n)
	return n, nil
}

// List enumerates every entry.
func (ix *Index) List(ctx context.Context) ([]Entry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	entries, err := ix.backend.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to list chunks: %w", err))
	}
	return entries, nil
}

// Count returns the number of entries.
func (ix *Index) Count(ctx context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n, err := ix.backend.Count(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to count chunks: %w", err))
	}
	return n, nil
}

// Clear removes every entry. The index stays usable.
func (ix *Index) Clear(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.backend.Clear(ctx); err != nil {
		return apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to clear index: %w", err))
	}
	ix.logger.Info("index cleared")
	return nil
}

// Close releases the backend.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.backend.Close()
}

// sourceKey normalizes a source name for delete-by-file comparisons.
func sourceKey(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}

package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/askpdf/server/internal/apperr"
	"github.com/askpdf/server/internal/llm"
	"github.com/askpdf/server/internal/vectorstore"
)

// CondenseInstruction asks the model to turn a conversation into a search query.
const CondenseInstruction = "Given the above conversation, generate a search query to lookup in order to get information relevant to the conversation"

// Searcher runs similarity search over the index.
type Searcher interface {
	Search(ctx context.Context, query string, k int, threshold float64) ([]vectorstore.Match, error)
}

// Retriever finds chunks for a question asked within a conversation.
type Retriever struct {
	index     Searcher
	llm       llm.Completer
	topK      int
	threshold float64
	logger    *slog.Logger
}

// NewRetriever creates a new RAG retriever
func NewRetriever(index Searcher, completer llm.Completer, topK int, threshold float64, logger *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		index:     index,
		llm:       completer,
		topK:      topK,
		threshold: threshold,
		logger:    logger.With("component", "retriever"),
	}
}

// Condense rewrites query into a standalone search query using history. With
// no history the query is returned unchanged and the model is not called.
func (r *Retriever) Condense(ctx context.Context, history []llm.Message, query string) (string, error) {
	if len(history) == 0 {
		return query, nil
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, history...)
	messages = append(messages,
		llm.Message{Role: llm.RoleHuman, Content: query},
		llm.Message{Role: llm.RoleHuman, Content: CondenseInstruction},
	)

	out, err := r.llm.Complete(ctx, messages)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrUpstream, fmt.Errorf("failed to condense query: %w", err))
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return query, nil
	}
	r.logger.Debug("query condensed", "query", query, "search", out)
	return out, nil
}

// Retrieve condenses the query and searches the index with the configured k
// and score threshold.
func (r *Retriever) Retrieve(ctx context.Context, history []llm.Message, query string) ([]vectorstore.Match, error) {
	search, err := r.Condense(ctx, history, query)
	if err != nil {
		return nil, err
	}
	matches, err := r.index.Search(ctx, search, r.topK, r.threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve chunks: %w", err)
	}
	return matches, nil
}

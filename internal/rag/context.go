package rag

import (
	"strings"
	"unicode/utf8"

	"github.com/askpdf/server/internal/vectorstore"
)

const truncatedMarker = "\n\n[Context truncated...]"

// Source is a retrieved chunk as reported to clients.
type Source struct {
	Source      string `json:"source"`
	PageContent string `json:"page_content"`
}

// ContextBuilder joins retrieved chunks into the context handed to the model.
type ContextBuilder struct {
	maxChars int
}

// NewContextBuilder creates a new context builder. maxChars <= 0 disables
// truncation.
func NewContextBuilder(maxChars int) *ContextBuilder {
	return &ContextBuilder{maxChars: maxChars}
}

// BuildContext joins chunk texts with blank lines, in retrieval order.
func (cb *ContextBuilder) BuildContext(matches []vectorstore.Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, m.Chunk.Content)
	}
	context := strings.Join(parts, "\n\n")

	if cb.maxChars > 0 && utf8.RuneCountInString(context) > cb.maxChars {
		runes := []rune(context)
		context = string(runes[:cb.maxChars]) + truncatedMarker
	}
	return context
}

// Sources converts matches into client-facing sources.
func Sources(matches []vectorstore.Match) []Source {
	out := make([]Source, 0, len(matches))
	for _, m := range matches {
		src := m.Chunk.Source
		if src == "" {
			src = "Unknown"
		}
		out = append(out, Source{Source: src, PageContent: m.Chunk.Content})
	}
	return out
}

// SourceNames returns the source of every match, repeats included.
func SourceNames(matches []vectorstore.Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Chunk.Source)
	}
	return out
}

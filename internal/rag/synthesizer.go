package rag

import (
	"context"
	"fmt"

	"github.com/askpdf/server/internal/apperr"
	"github.com/askpdf/server/internal/llm"
	"github.com/askpdf/server/internal/vectorstore"
)

// Synthesizer writes the answer from retrieved chunks in a persona's style.
type Synthesizer struct {
	llm     llm.Completer
	context *ContextBuilder
}

// NewSynthesizer creates a new answer synthesizer
func NewSynthesizer(completer llm.Completer, builder *ContextBuilder) *Synthesizer {
	if builder == nil {
		builder = NewContextBuilder(0)
	}
	return &Synthesizer{llm: completer, context: builder}
}

// Synthesize asks the model to answer query from matches. The model is called
// even when matches is empty.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, matches []vectorstore.Match, persona Persona) (string, error) {
	prompt := persona.Format(query, s.context.BuildContext(matches))
	answer, err := s.llm.Complete(ctx, []llm.Message{{Role: llm.RoleHuman, Content: prompt}})
	if err != nil {
		return "", apperr.Wrap(apperr.ErrUpstream, fmt.Errorf("failed to generate answer: %w", err))
	}
	return answer, nil
}

package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/askpdf/server/internal/apperr"
	"github.com/askpdf/server/internal/llm"
	"github.com/askpdf/server/internal/session"
	"github.com/askpdf/server/internal/usage"
)

const (
	// EmptyIndexAnswer is returned instead of calling the model when nothing
	// has been indexed.
	EmptyIndexAnswer = "No documents available to process your query."
	// EmptyIndexDisclaimer accompanies EmptyIndexAnswer.
	EmptyIndexDisclaimer = "No documents available to process your query. Upload some PDFs to enable document search."
	// UngroundedDisclaimer marks an answer produced without any retrieved chunk.
	UngroundedDisclaimer = "This answer is not based on any available PDF documents."
)

// Index is the read side of the vector index the answering path needs.
type Index interface {
	Searcher
	Count(ctx context.Context) (int, error)
}

// Answer is the result of a document question.
type Answer struct {
	Answer     string                `json:"answer"`
	Sources    []Source              `json:"sources"`
	PDFUsage   map[string]usage.Stat `json:"pdf_usage"`
	QueryUsage map[string]usage.Stat `json:"query_usage"`
	Disclaimer *string               `json:"disclaimer"`
}

// Service answers questions against the indexed documents.
type Service struct {
	index       Index
	llm         llm.Completer
	retriever   *Retriever
	synthesizer *Synthesizer
	sessions    session.Store
	usage       *usage.Tracker
	logger      *slog.Logger
}

// NewService wires the answering pipeline.
func NewService(index Index, completer llm.Completer, retriever *Retriever, synthesizer *Synthesizer,
	sessions session.Store, tracker *usage.Tracker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		index:       index,
		llm:         completer,
		retriever:   retriever,
		synthesizer: synthesizer,
		sessions:    sessions,
		usage:       tracker,
		logger:      logger.With("component", "rag"),
	}
}

// Ask answers query for a session in the style of the named persona. The
// session's history steers retrieval and the exchange is appended to it.
func (s *Service) Ask(ctx context.Context, sessionID, query, personaName string) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.New(apperr.ErrValidation, "No 'query' found in JSON request")
	}
	persona, err := ParsePersona(personaName)
	if err != nil {
		return nil, err
	}

	tally := s.usage.Begin()

	n, err := s.index.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		disclaimer := EmptyIndexDisclaimer
		return &Answer{
			Answer:     EmptyIndexAnswer,
			Sources:    []Source{},
			PDFUsage:   map[string]usage.Stat{},
			QueryUsage: map[string]usage.Stat{},
			Disclaimer: &disclaimer,
		}, nil
	}

	history, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStore, err)
	}

	matches, err := s.retriever.Retrieve(ctx, history, query)
	if err != nil {
		return nil, err
	}

	text, err := s.synthesizer.Synthesize(ctx, query, matches, persona)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Append(ctx, sessionID,
		llm.Message{Role: llm.RoleHuman, Content: query},
		llm.Message{Role: llm.RoleAssistant, Content: text},
	); err != nil {
		return nil, apperr.Wrap(apperr.ErrStore, err)
	}

	s.usage.Record(tally, SourceNames(matches))
	snapshot := tally.Snapshot()

	answer := &Answer{
		Answer:     text,
		Sources:    Sources(matches),
		PDFUsage:   snapshot,
		QueryUsage: tally.Snapshot(),
	}
	if len(matches) == 0 {
		disclaimer := UngroundedDisclaimer
		answer.Disclaimer = &disclaimer
	}

	s.logger.Info("question answered",
		"session", session.NormalizeID(sessionID), "persona", persona.Name(), "chunks", len(matches))
	return answer, nil
}

// Direct sends query to the model without retrieval or history.
func (s *Service) Direct(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", apperr.New(apperr.ErrValidation, "No 'query' found in JSON request")
	}
	out, err := s.llm.Complete(ctx, []llm.Message{{Role: llm.RoleHuman, Content: query}})
	if err != nil {
		return "", apperr.Wrap(apperr.ErrUpstream, fmt.Errorf("failed to generate answer: %w", err))
	}
	return out, nil
}

// ClearHistory forgets a session's conversation.
func (s *Service) ClearHistory(ctx context.Context, sessionID string) error {
	if err := s.sessions.Clear(ctx, sessionID); err != nil {
		return apperr.Wrap(apperr.ErrStore, err)
	}
	return nil
}

// Usage returns lifetime usage per source.
func (s *Service) Usage() map[string]usage.Stat {
	return s.usage.Snapshot()
}

package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askpdf/server/internal/apperr"
	"github.com/askpdf/server/internal/llm"
	"github.com/askpdf/server/internal/testutil"
	"github.com/askpdf/server/internal/vectorstore"
)

type stubSearcher struct {
	matches []vectorstore.Match
	count   int
	err     error

	queries    []string
	ks         []int
	thresholds []float64
}

func (s *stubSearcher) Search(_ context.Context, query string, k int, threshold float64) ([]vectorstore.Match, error) {
	s.queries = append(s.queries, query)
	s.ks = append(s.ks, k)
	s.thresholds = append(s.thresholds, threshold)
	if s.err != nil {
		return nil, s.err
	}
	return s.matches, nil
}

func (s *stubSearcher) Count(context.Context) (int, error) {
	return s.count, nil
}

func TestCondense_NoHistorySkipsModel(t *testing.T) {
	model := &testutil.ScriptedLLM{}
	r := NewRetriever(&stubSearcher{}, model, 20, 0.1, nil)

	got, err := r.Condense(context.Background(), nil, "What is the revenue?")
	require.NoError(t, err)
	assert.Equal(t, "What is the revenue?", got)
	assert.Empty(t, model.Calls())
}

func TestCondense_WithHistory(t *testing.T) {
	model := &testutil.ScriptedLLM{Replies: []string{"  Q3 revenue of Acme  "}}
	r := NewRetriever(&stubSearcher{}, model, 20, 0.1, nil)
	history := []llm.Message{
		{Role: llm.RoleHuman, Content: "Tell me about Acme"},
		{Role: llm.RoleAssistant, Content: "Acme makes anvils."},
	}

	got, err := r.Condense(context.Background(), history, "What was its Q3 revenue?")
	require.NoError(t, err)
	assert.Equal(t, "Q3 revenue of Acme", got)

	calls := model.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 4)
	assert.Equal(t, history, calls[0][:2])
	assert.Equal(t, llm.Message{Role: llm.RoleHuman, Content: "What was its Q3 revenue?"}, calls[0][2])
	assert.Equal(t, llm.Message{Role: llm.RoleHuman, Content: CondenseInstruction}, calls[0][3])
}

func TestCondense_BlankOutputFallsBack(t *testing.T) {
	model := &testutil.ScriptedLLM{Replies: []string{"   "}}
	r := NewRetriever(&stubSearcher{}, model, 20, 0.1, nil)

	got, err := r.Condense(context.Background(), []llm.Message{{Role: llm.RoleHuman, Content: "hi"}}, "query")
	require.NoError(t, err)
	assert.Equal(t, "query", got)
}

func TestCondense_ModelFailure(t *testing.T) {
	model := &testutil.ScriptedLLM{Err: errors.New("connection refused")}
	r := NewRetriever(&stubSearcher{}, model, 20, 0.1, nil)

	_, err := r.Condense(context.Background(), []llm.Message{{Role: llm.RoleHuman, Content: "hi"}}, "query")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUpstream))
}

func TestRetrieve_UsesCondensedQueryAndSettings(t *testing.T) {
	searcher := &stubSearcher{matches: []vectorstore.Match{match("a.pdf", "text")}}
	model := &testutil.ScriptedLLM{Replies: []string{"standalone"}}
	r := NewRetriever(searcher, model, 7, 0.3, nil)

	matches, err := r.Retrieve(context.Background(), []llm.Message{{Role: llm.RoleHuman, Content: "earlier"}}, "follow up")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, []string{"standalone"}, searcher.queries)
	assert.Equal(t, []int{7}, searcher.ks)
	assert.Equal(t, []float64{0.3}, searcher.thresholds)
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	searcher := &stubSearcher{}
	r := NewRetriever(searcher, &testutil.ScriptedLLM{}, 0, 0.1, nil)

	_, err := r.Retrieve(context.Background(), nil, "q")
	require.NoError(t, err)
	assert.Equal(t, []int{20}, searcher.ks)
}

func TestRetrieve_SearchFailure(t *testing.T) {
	searcher := &stubSearcher{err: apperr.Wrap(apperr.ErrStore, errors.New("disk gone"))}
	r := NewRetriever(searcher, &testutil.ScriptedLLM{}, 20, 0.1, nil)

	_, err := r.Retrieve(context.Background(), nil, "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrStore))
}

// Package testutil provides deterministic collaborators for tests.
package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/askpdf/server/internal/llm"
)

// HashEmbedder embeds text as a bag of hashed lowercase words. Texts sharing
// words score higher, which is enough to drive retrieval in tests.
type HashEmbedder struct {
	Dim int
	// Err, when set, is returned by every call.
	Err error

	mu    sync.Mutex
	calls int
}

func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	dim := e.Dim
	if dim <= 0 {
		dim = 64
	}
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(dim)]++
	}
	return vec, nil
}

// Calls returns how many times Embed was invoked.
func (e *HashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// ErrScriptExhausted is returned by ScriptedLLM when no replies remain.
var ErrScriptExhausted = errors.New("scripted llm: no replies left")

// ScriptedLLM replays canned replies in order and records every prompt.
// With Echo set and no replies left it answers with the last message content.
type ScriptedLLM struct {
	Replies []string
	Err     error
	Echo    bool

	mu    sync.Mutex
	calls [][]llm.Message
}

func (s *ScriptedLLM) Complete(_ context.Context, messages []llm.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]llm.Message(nil), messages...))
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Replies) == 0 {
		if s.Echo && len(messages) > 0 {
			return messages[len(messages)-1].Content, nil
		}
		return "", ErrScriptExhausted
	}
	reply := s.Replies[0]
	s.Replies = s.Replies[1:]
	return reply, nil
}

// Calls returns the recorded conversations, one per Complete call.
func (s *ScriptedLLM) Calls() [][]llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]llm.Message(nil), s.calls...)
}

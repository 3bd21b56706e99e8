package session

import (
	"context"
	"sync"

	"github.com/askpdf/server/internal/llm"
)

// MemoryStore keeps history in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	maxTurns int
	sessions map[string][]llm.Message
}

// NewMemoryStore creates a store keeping at most maxTurns turns per session;
// zero keeps everything.
func NewMemoryStore(maxTurns int) *MemoryStore {
	return &MemoryStore{maxTurns: maxTurns, sessions: map[string][]llm.Message{}}
}

func (s *MemoryStore) History(_ context.Context, id string) ([]llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.sessions[NormalizeID(id)]
	out := make([]llm.Message, len(h))
	copy(out, h)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, id string, turns ...llm.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id = NormalizeID(id)
	h := append(s.sessions[id], turns...)
	if s.maxTurns > 0 && len(h) > s.maxTurns {
		h = append([]llm.Message(nil), h[len(h)-s.maxTurns:]...)
	}
	s.sessions[id] = h
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, NormalizeID(id))
	return nil
}

// Package session keeps per-session chat history.
package session

import (
	"context"
	"strings"

	"github.com/askpdf/server/internal/llm"
)

// DefaultID is used when a request names no session.
const DefaultID = "default"

// Store holds the ordered turns of every session.
type Store interface {
	// History returns the turns of a session, oldest first. Unknown sessions
	// have an empty history.
	History(ctx context.Context, id string) ([]llm.Message, error)
	// Append adds turns to the end of a session, dropping the oldest turns
	// beyond the store's limit.
	Append(ctx context.Context, id string, turns ...llm.Message) error
	Clear(ctx context.Context, id string) error
}

// NormalizeID maps a blank id to DefaultID.
func NormalizeID(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return DefaultID
	}
	return id
}

package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Chunk is a row of the chunks table.
type Chunk struct {
	ID         uuid.UUID
	Source     string
	ChunkIndex int
	Content    string
	Embedding  *pgvector.Vector
	CreatedAt  time.Time
}

// ScoredChunk is a similarity search hit. Score is cosine similarity.
type ScoredChunk struct {
	Chunk
	Score float64
}

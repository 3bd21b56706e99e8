package vectorstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/askpdf/server/internal/db"
)

// Postgres stores records in a pgvector column and scores them in the database.
type Postgres struct {
	db *db.DB
}

var _ Backend = (*Postgres)(nil)

// NewPostgres wraps an open database. The schema must already be migrated.
func NewPostgres(database *db.DB) *Postgres {
	return &Postgres{db: database}
}

func (p *Postgres) Insert(ctx context.Context, records []Record) error {
	rows := make([]*db.Chunk, 0, len(records))
	for _, r := range records {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return err
		}
		vec := pgvector.NewVector(r.Embedding)
		rows = append(rows, &db.Chunk{
			ID:         id,
			Source:     r.Chunk.Source,
			ChunkIndex: r.Chunk.ChunkIndex,
			Content:    r.Chunk.Content,
			Embedding:  &vec,
		})
	}
	return p.db.InsertChunksBatch(ctx, rows)
}

func (p *Postgres) Search(ctx context.Context, vector []float32, k int, threshold float64) ([]Match, error) {
	vec := pgvector.NewVector(vector)
	rows, err := p.db.SearchSimilarChunks(ctx, &vec, k, threshold)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, Match{
			ID:    r.ID.String(),
			Chunk: Chunk{Source: r.Source, ChunkIndex: r.ChunkIndex, Content: r.Content},
			Score: r.Score,
		})
	}
	return matches, nil
}

func (p *Postgres) Delete(ctx context.Context, ids []string) error {
	parsed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		u, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		parsed = append(parsed, u)
	}
	return p.db.DeleteChunks(ctx, parsed)
}

func (p *Postgres) DeleteSource(ctx context.Context, source string) (int, error) {
	n, err := p.db.DeleteChunksBySource(ctx, source)
	return int(n), err
}

func (p *Postgres) List(ctx context.Context) ([]Entry, error) {
	rows, err := p.db.ListChunks(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{ID: r.ID.String(), Source: r.Source, ChunkIndex: r.ChunkIndex})
	}
	return entries, nil
}

func (p *Postgres) Count(ctx context.Context) (int, error) {
	return p.db.CountChunks(ctx)
}

func (p *Postgres) Clear(ctx context.Context) error {
	return p.db.TruncateChunks(ctx)
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}

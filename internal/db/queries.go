package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// InsertChunksBatch inserts multiple chunks in one batch
func (db *DB) InsertChunksBatch(ctx context.Context, chunks []*Chunk) error {
	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		batch.Queue(
			`INSERT INTO chunks (id, source, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE
			 SET source = EXCLUDED.source, chunk_index = EXCLUDED.chunk_index,
			     content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
			chunk.ID, chunk.Source, chunk.ChunkIndex, chunk.Content, chunk.Embedding,
		)
	}
	br := db.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(chunks); i++ {
		_, err := br.Exec()
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}
	return nil
}

// SearchSimilarChunks returns up to limit chunks whose cosine similarity to
// embedding is at least minScore, best first.
func (db *DB) SearchSimilarChunks(ctx context.Context, embedding *pgvector.Vector, limit int, minScore float64) ([]*ScoredChunk, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, source, chunk_index, content, created_at, 1 - (embedding <=> $1) AS score
		 FROM chunks
		 WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $3
		 ORDER BY embedding <=> $1, source, chunk_index
		 LIMIT $2`,
		embedding, limit, minScore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*ScoredChunk
	for rows.Next() {
		var c ScoredChunk
		if err := rows.Scan(
			&c.ID, &c.Source, &c.ChunkIndex,
			&c.Content, &c.CreatedAt, &c.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// DeleteChunks deletes chunks by id. Missing ids are ignored.
func (db *DB) DeleteChunks(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.pool.Exec(ctx, `DELETE FROM chunks WHERE id = ANY($1)`, ids)
	return err
}

// DeleteChunksBySource deletes every chunk of a source, comparing trimmed
// lowercase names, and returns the number removed.
func (db *DB) DeleteChunksBySource(ctx context.Context, source string) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM chunks WHERE lower(trim(source)) = lower(trim($1))`, source)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListChunks retrieves chunk metadata ordered by source and position.
// Content and embedding are not loaded.
func (db *DB) ListChunks(ctx context.Context) ([]*Chunk, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, source, chunk_index, created_at
		 FROM chunks ORDER BY source, chunk_index`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.Source, &c.ChunkIndex, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// CountChunks returns the number of stored chunks
func (db *DB) CountChunks(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// TruncateChunks removes every chunk
func (db *DB) TruncateChunks(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `TRUNCATE chunks`)
	return err
}

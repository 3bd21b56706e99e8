package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/askpdf/server/internal/apperr"
	"github.com/askpdf/server/internal/vectorstore"
)

// Index is the part of the vector index ingestion writes to.
type Index interface {
	Upsert(ctx context.Context, chunks []vectorstore.Chunk) ([]string, error)
	DeleteSource(ctx context.Context, source string) (int, error)
	Clear(ctx context.Context) error
}

// TextExtractor pulls page text out of a stored file.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (Extraction, error)
}

// IngestResult describes a successfully indexed upload. DocLen counts the
// non-blank pages extracted (OCR output is one page), not split pieces.
type IngestResult struct {
	Document   Document
	DocLen     int
	ChunkLen   int
	Structured bool
	ChunkIDs   []string
}

// Processor runs the ingestion pipeline: store, extract, chunk, index.
type Processor struct {
	store     *Store
	extractor TextExtractor
	splitter  *Splitter
	index     Index
	logger    *slog.Logger
}

// NewProcessor creates a new document processor
func NewProcessor(store *Store, extractor TextExtractor, splitter *Splitter, index Index, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:     store,
		extractor: extractor,
		splitter:  splitter,
		index:     index,
		logger:    logger.With("component", "ingest"),
	}
}

// Ingest saves an upload and indexes its text. When any stage after the save
// fails, the file and any chunks already written are removed so the same
// upload can be retried.
func (p *Processor) Ingest(ctx context.Context, name string, r io.Reader) (IngestResult, error) {
	doc, err := p.store.Save(ctx, name, r)
	if err != nil {
		return IngestResult{}, err
	}

	res, err := p.process(ctx, doc)
	if err != nil {
		p.rollback(doc.Name)
		return IngestResult{}, err
	}
	p.logger.Info("document ingested",
		"name", doc.Name, "pages", res.DocLen, "chunks", res.ChunkLen, "structured", res.Structured)
	return res, nil
}

// IngestFile ingests a file from the local filesystem under its base name.
func (p *Processor) IngestFile(ctx context.Context, path string) (IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return IngestResult{}, apperr.Wrap(apperr.ErrValidation, fmt.Errorf("failed to open %s: %w", path, err))
	}
	defer f.Close()
	return p.Ingest(ctx, filepath.Base(path), f)
}

func (p *Processor) process(ctx context.Context, doc Document) (IngestResult, error) {
	path, err := p.store.Path(doc.Name)
	if err != nil {
		return IngestResult{}, err
	}

	ext, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to extract text: %w", err)
	}

	chunks := p.splitter.Split(doc.Name, ext.Pages)
	if len(chunks) == 0 {
		return IngestResult{}, apperr.New(apperr.ErrUpstream, "no text chunks produced for %s", doc.Name)
	}

	ids, err := p.index.Upsert(ctx, chunks)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to index chunks: %w", err)
	}

	return IngestResult{
		Document:   doc,
		DocLen:     len(ext.Pages),
		ChunkLen:   len(chunks),
		Structured: ext.Structured,
		ChunkIDs:   ids,
	}, nil
}

func (p *Processor) rollback(name string) {
	// the request context may already be cancelled
	ctx := context.Background()
	if _, err := p.index.DeleteSource(ctx, name); err != nil {
		p.logger.Error("rollback: failed to delete chunks", "name", name, "error", err)
	}
	if err := p.store.Delete(name); err != nil {
		p.logger.Error("rollback: failed to delete file", "name", name, "error", err)
	}
}

// Remove deletes a document's chunks and its file. The name is matched
// ignoring case and surrounding whitespace, the same way chunks are matched,
// so the file and its chunks always go together. It fails with a not-found
// error only when neither existed.
func (p *Processor) Remove(ctx context.Context, name string) (int, error) {
	stored, err := p.store.Resolve(name)
	switch {
	case err == nil:
		name = stored
	case errors.Is(err, apperr.ErrNotFound):
		stored = ""
	default:
		return 0, err
	}

	removed, err := p.index.DeleteSource(ctx, name)
	if err != nil {
		return 0, err
	}
	if stored == "" {
		if removed == 0 {
			return 0, apperr.New(apperr.ErrNotFound, "No documents found for the provided file name")
		}
		p.logger.Warn("removed chunks of a missing file", "name", name, "chunks", removed)
		return removed, nil
	}

	if err := p.store.Delete(stored); err != nil {
		return removed, err
	}
	p.logger.Info("document removed", "name", stored, "chunks", removed)
	return removed, nil
}

// Reset empties the index and the document directory.
func (p *Processor) Reset(ctx context.Context) error {
	if err := p.index.Clear(ctx); err != nil {
		return err
	}
	return p.store.Clear()
}

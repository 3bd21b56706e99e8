package documents

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askpdf/server/internal/apperr"
	"github.com/askpdf/server/internal/testutil"
	"github.com/askpdf/server/internal/vectorstore"
)

type stubExtractor struct {
	ext Extraction
	err error
}

func (s *stubExtractor) Extract(context.Context, string) (Extraction, error) {
	return s.ext, s.err
}

type processorFixture struct {
	proc     *Processor
	store    *Store
	index    *vectorstore.Index
	embedder *testutil.HashEmbedder
	extract  *stubExtractor
}

func setupProcessor(t *testing.T) *processorFixture {
	t.Helper()
	dir := t.TempDir()

	store, err := NewStore(filepath.Join(dir, "pdf"), nil)
	require.NoError(t, err)
	backend, err := vectorstore.NewSQLite(filepath.Join(dir, "db"))
	require.NoError(t, err)
	emb := &testutil.HashEmbedder{}
	index := vectorstore.New(backend, emb, nil)
	t.Cleanup(func() { _ = index.Close() })

	splitter, err := NewSplitter(40, 5)
	require.NoError(t, err)
	extract := &stubExtractor{ext: Extraction{
		Structured: true,
		Pages: []PageText{
			{Index: 0, Text: "Go channels connect goroutines. Select waits on many channels."},
			{Index: 1, Text: "Mutexes guard shared state."},
		},
	}}

	return &processorFixture{
		proc:     NewProcessor(store, extract, splitter, index, nil),
		store:    store,
		index:    index,
		embedder: emb,
		extract:  extract,
	}
}

func TestIngest_IndexesChunks(t *testing.T) {
	f := setupProcessor(t)
	ctx := context.Background()

	res, err := f.proc.Ingest(ctx, "go.pdf", strings.NewReader("%PDF fake"))
	require.NoError(t, err)
	assert.Equal(t, "go.pdf", res.Document.Name)
	assert.Equal(t, 2, res.DocLen)
	assert.True(t, res.Structured)
	assert.Greater(t, res.ChunkLen, 1)
	assert.Len(t, res.ChunkIDs, res.ChunkLen)

	n, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.ChunkLen, n)

	matches, err := f.index.Search(ctx, "mutexes shared state", 20, 0.1)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "go.pdf", matches[0].Chunk.Source)
}

func TestIngest_DuplicateRejectedBeforeIndexing(t *testing.T) {
	f := setupProcessor(t)
	ctx := context.Background()

	_, err := f.proc.Ingest(ctx, "go.pdf", strings.NewReader("%PDF fake"))
	require.NoError(t, err)
	calls := f.embedder.Calls()

	_, err = f.proc.Ingest(ctx, "again.pdf", strings.NewReader("%PDF fake"))
	assert.ErrorIs(t, err, apperr.ErrDuplicate)
	assert.Equal(t, calls, f.embedder.Calls())
}

func TestIngest_RollbackOnExtractFailure(t *testing.T) {
	f := setupProcessor(t)
	ctx := context.Background()
	f.extract.err = apperr.Wrap(apperr.ErrUpstream, errors.New("ocr down"))

	_, err := f.proc.Ingest(ctx, "scan.pdf", strings.NewReader("%PDF scan"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	assert.False(t, f.store.Exists("scan.pdf"))

	f.extract.err = nil
	_, err = f.proc.Ingest(ctx, "scan.pdf", strings.NewReader("%PDF scan"))
	assert.NoError(t, err, "upload can be retried after a failed ingestion")
}

func TestIngest_RollbackOnEmbedFailure(t *testing.T) {
	f := setupProcessor(t)
	ctx := context.Background()
	f.embedder.Err = errors.New("model offline")

	_, err := f.proc.Ingest(ctx, "go.pdf", strings.NewReader("%PDF fake"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	assert.False(t, f.store.Exists("go.pdf"))

	n, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRemove_DeletesChunksAndFile(t *testing.T) {
	f := setupProcessor(t)
	ctx := context.Background()

	_, err := f.proc.Ingest(ctx, "go.pdf", strings.NewReader("%PDF go"))
	require.NoError(t, err)
	f.extract.ext.Pages = []PageText{{Text: "Rust ownership and borrowing."}}
	_, err = f.proc.Ingest(ctx, "rust.pdf", strings.NewReader("%PDF rust"))
	require.NoError(t, err)

	removed, err := f.proc.Remove(ctx, " GO.pdf ")
	require.NoError(t, err)
	assert.Greater(t, removed, 0)

	matches, err := f.index.Search(ctx, "go channels goroutines mutexes", 20, 0)
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, "go.pdf", m.Chunk.Source)
	}
	assert.False(t, f.store.Exists("go.pdf"))

	_, err = f.proc.Remove(ctx, "rust.pdf")
	require.NoError(t, err)
	assert.False(t, f.store.Exists("rust.pdf"))
}

func TestIngest_NameDifferingOnlyInCaseIsDuplicate(t *testing.T) {
	f := setupProcessor(t)
	ctx := context.Background()

	_, err := f.proc.Ingest(ctx, "report.pdf", strings.NewReader("%PDF one"))
	require.NoError(t, err)
	before, err := f.index.Count(ctx)
	require.NoError(t, err)

	f.extract.ext.Pages = []PageText{{Text: "Completely different report body."}}
	_, err = f.proc.Ingest(ctx, "REPORT.pdf", strings.NewReader("%PDF two"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrDuplicate)
	assert.Equal(t, "File already exists.", err.Error())

	after, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	names, err := f.store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"report.pdf"}, names)
}

func TestRemove_OnlyTouchesMatchingDocument(t *testing.T) {
	f := setupProcessor(t)
	ctx := context.Background()

	_, err := f.proc.Ingest(ctx, "report.pdf", strings.NewReader("%PDF one"))
	require.NoError(t, err)
	f.extract.ext.Pages = []PageText{{Text: "Rust ownership and borrowing."}}
	_, err = f.proc.Ingest(ctx, "report-2.pdf", strings.NewReader("%PDF two"))
	require.NoError(t, err)

	removed, err := f.proc.Remove(ctx, "REPORT.PDF")
	require.NoError(t, err)
	assert.Greater(t, removed, 0)
	assert.False(t, f.store.Exists("report.pdf"))
	assert.True(t, f.store.Exists("report-2.pdf"))

	entries, err := f.index.List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, "report-2.pdf", e.Source)
	}
}

func TestRemove_NotFound(t *testing.T) {
	f := setupProcessor(t)
	_, err := f.proc.Remove(context.Background(), "missing.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "No documents found for the provided file name", err.Error())
}

func TestReset_LeavesUsableEmptyState(t *testing.T) {
	f := setupProcessor(t)
	ctx := context.Background()

	_, err := f.proc.Ingest(ctx, "go.pdf", strings.NewReader("%PDF go"))
	require.NoError(t, err)
	require.NoError(t, f.proc.Reset(ctx))

	names, err := f.store.List()
	require.NoError(t, err)
	assert.Empty(t, names)
	matches, err := f.index.Search(ctx, "channels", 20, 0.1)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = f.proc.Ingest(ctx, "go.pdf", strings.NewReader("%PDF go"))
	assert.NoError(t, err)
}

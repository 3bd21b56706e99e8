package documents

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askpdf/server/internal/apperr"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "pdf"), nil)
	require.NoError(t, err)
	return s
}

func TestStore_SaveAndList(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	doc, err := s.Save(ctx, "b.pdf", strings.NewReader("second"))
	require.NoError(t, err)
	assert.Equal(t, "b.pdf", doc.Name)
	assert.Equal(t, int64(6), doc.Size)
	assert.Len(t, doc.Hash, 64)

	_, err = s.Save(ctx, "a.pdf", strings.NewReader("first"))
	require.NoError(t, err)

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, names)

	got, err := s.Get("b.pdf")
	require.NoError(t, err)
	assert.Equal(t, doc.Hash, got.Hash)
}

func TestStore_RejectsDuplicateName(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "a.pdf", strings.NewReader("one"))
	require.NoError(t, err)

	_, err = s.Save(ctx, "a.pdf", strings.NewReader("two"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrDuplicate)
	assert.Equal(t, "File already exists.", err.Error())
}

func TestStore_RejectsDuplicateContent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "a.pdf", strings.NewReader("same bytes"))
	require.NoError(t, err)

	_, err = s.Save(ctx, "copy.pdf", strings.NewReader("same bytes"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrDuplicate)
	assert.Equal(t, "File with identical content already exists.", err.Error())

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf"}, names, "rejected upload must leave no file behind")

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be removed")
}

func TestStore_ConcurrentIdenticalUploads(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Save(ctx, "doc"+string(rune('a'+i))+".pdf", strings.NewReader("identical"))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, apperr.ErrDuplicate)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"", "  ", "../x.pdf", "dir/x.pdf", `dir\x.pdf`, ".hidden.pdf", "notes.txt"} {
		err := ValidateName(name)
		assert.ErrorIs(t, err, apperr.ErrValidation, name)
	}
	assert.NoError(t, ValidateName("Report 2024.PDF"))
	assert.NoError(t, ValidateName("book.epub"))
}

func TestStore_DeleteAndPath(t *testing.T) {
	s := setupStore(t)
	_, err := s.Save(context.Background(), "a.pdf", strings.NewReader("x"))
	require.NoError(t, err)

	path, err := s.Path("a.pdf")
	require.NoError(t, err)
	assert.FileExists(t, path)

	require.NoError(t, s.Delete("a.pdf"))
	assert.ErrorIs(t, s.Delete("a.pdf"), apperr.ErrNotFound)
	_, err = s.Path("../etc/passwd")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStore_Clear(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	_, err := s.Save(ctx, "a.pdf", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, s.Clear())
	names, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = s.Save(ctx, "a.pdf", strings.NewReader("x"))
	assert.NoError(t, err)
}

func TestHashFileMatchesSave(t *testing.T) {
	s := setupStore(t)
	body := strings.Repeat("block", 3000) // spans several 4 KiB blocks
	doc, err := s.Save(context.Background(), "big.pdf", strings.NewReader(body))
	require.NoError(t, err)

	sum, err := hashFile(filepath.Join(s.Dir(), "big.pdf"))
	require.NoError(t, err)
	assert.Equal(t, doc.Hash, sum)
}

func TestStore_NamesCompareIgnoringCase(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "Report.pdf", strings.NewReader("one"))
	require.NoError(t, err)

	_, err = s.Save(ctx, "REPORT.pdf", strings.NewReader("two"))
	assert.ErrorIs(t, err, apperr.ErrDuplicate)

	stored, err := s.Resolve(" report.PDF ")
	require.NoError(t, err)
	assert.Equal(t, "Report.pdf", stored)

	_, err = s.Resolve("other.pdf")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, s.Delete("report.pdf"))
	assert.False(t, s.Exists("Report.pdf"))
}

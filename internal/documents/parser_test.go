package documents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askpdf/server/internal/apperr"
)

type fakePages struct {
	pages  []string
	closed bool
}

func (f *fakePages) NumPage() int { return len(f.pages) }

func (f *fakePages) Text(i int) (string, error) { return f.pages[i], nil }

func (f *fakePages) Close() error {
	f.closed = true
	return nil
}

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Recognize(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

func extractorWith(doc pageReader, openErr error, ocr OCR) *Extractor {
	e := NewExtractor(ocr, nil)
	e.open = func(string) (pageReader, error) {
		if openErr != nil {
			return nil, openErr
		}
		return doc, nil
	}
	return e
}

func TestExtract_StructuredSkipsBlankPages(t *testing.T) {
	doc := &fakePages{pages: []string{"  First\r\npage\n", "   \n", "Second page"}}
	ocr := &fakeOCR{}
	ext, err := extractorWith(doc, nil, ocr).Extract(context.Background(), "x.pdf")
	require.NoError(t, err)

	assert.True(t, ext.Structured)
	require.Len(t, ext.Pages, 2)
	assert.Equal(t, PageText{Index: 0, Text: "First page"}, ext.Pages[0])
	assert.Equal(t, PageText{Index: 2, Text: "Second page"}, ext.Pages[1])
	assert.True(t, doc.closed)
	assert.Zero(t, ocr.calls)
}

func TestExtract_FallsBackToOCRWhenNoText(t *testing.T) {
	doc := &fakePages{pages: []string{"", " "}}
	ocr := &fakeOCR{text: "scanned\ntext"}
	ext, err := extractorWith(doc, nil, ocr).Extract(context.Background(), "scan.pdf")
	require.NoError(t, err)

	assert.False(t, ext.Structured)
	require.Len(t, ext.Pages, 1)
	assert.Equal(t, "scanned text", ext.Pages[0].Text)
	assert.Equal(t, 1, ocr.calls)
}

func TestExtract_FallsBackToOCRWhenOpenFails(t *testing.T) {
	ocr := &fakeOCR{text: "recovered"}
	ext, err := extractorWith(nil, errors.New("corrupt"), ocr).Extract(context.Background(), "bad.pdf")
	require.NoError(t, err)
	assert.False(t, ext.Structured)
	assert.Equal(t, "recovered", ext.Text())
}

func TestExtract_BothFailIsUpstreamError(t *testing.T) {
	ocr := &fakeOCR{err: errors.New("tesseract missing")}
	_, err := extractorWith(nil, errors.New("corrupt"), ocr).Extract(context.Background(), "bad.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUpstream)

	_, err = extractorWith(&fakePages{}, nil, &fakeOCR{text: "  "}).Extract(context.Background(), "empty.pdf")
	assert.ErrorIs(t, err, apperr.ErrUpstream)

	_, err = extractorWith(&fakePages{}, nil, nil).Extract(context.Background(), "empty.pdf")
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b c", Normalize("\n a\nb\r\nc \n"))
	assert.Equal(t, "", Normalize(" \r\n "))
}

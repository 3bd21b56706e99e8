package documents

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct{ pages int }

func (f *fakeRenderer) NumPage() int { return f.pages }

func (f *fakeRenderer) ImagePNG(int, float64) ([]byte, error) { return []byte("png"), nil }

func (f *fakeRenderer) Close() error { return nil }

// fakeTesseract writes a script that prints the image file name it was given.
func fakeTesseract(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a unix shell")
	}
	path := filepath.Join(t.TempDir(), "tesseract")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestTesseractOCR_RecognizesEveryPage(t *testing.T) {
	bin := fakeTesseract(t, `echo "text of $(basename "$1")"`)
	ocr := NewTesseractOCR(bin, "eng", 100)
	ocr.open = func(string) (pageRenderer, error) { return &fakeRenderer{pages: 2}, nil }

	text, err := ocr.Recognize(context.Background(), "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, "text of page_0000.png\ntext of page_0001.png", text)
}

func TestTesseractOCR_CommandFailure(t *testing.T) {
	bin := fakeTesseract(t, `echo "bad language" >&2; exit 1`)
	ocr := NewTesseractOCR(bin, "xx", 100)
	ocr.open = func(string) (pageRenderer, error) { return &fakeRenderer{pages: 1}, nil }

	_, err := ocr.Recognize(context.Background(), "scan.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad language")
}

func TestNewTesseractOCR_Defaults(t *testing.T) {
	ocr := NewTesseractOCR("", "", 0)
	assert.Equal(t, "tesseract", ocr.binary)
	assert.Equal(t, "eng", ocr.language)
	assert.Equal(t, 200.0, ocr.dpi)
}

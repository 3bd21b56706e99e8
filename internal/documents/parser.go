package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/askpdf/server/internal/apperr"
)

// PageText is the normalized text of one page.
type PageText struct {
	Index int
	Text  string
}

// Extraction is the text pulled out of a document. Structured is false when the
// text came from OCR instead of the document's own text layer.
type Extraction struct {
	Pages      []PageText
	Structured bool
}

// Text joins every page.
func (e Extraction) Text() string {
	parts := make([]string, len(e.Pages))
	for i, p := range e.Pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, " ")
}

// OCR recognizes text in a document that has no usable text layer.
type OCR interface {
	Recognize(ctx context.Context, path string) (string, error)
}

// pageReader is the subset of *fitz.Document the extractor needs.
type pageReader interface {
	NumPage() int
	Text(pageNumber int) (string, error)
	Close() error
}

func openFitz(path string) (pageReader, error) {
	return fitz.New(path)
}

// Extractor pulls page text out of PDF and EPUB files with MuPDF and falls back
// to OCR when the file has no text layer or cannot be opened.
type Extractor struct {
	open   func(path string) (pageReader, error)
	ocr    OCR
	logger *slog.Logger
}

// NewExtractor creates a new extractor. ocr may be nil to disable the fallback.
func NewExtractor(ocr OCR, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{open: openFitz, ocr: ocr, logger: logger.With("component", "extractor")}
}

// Extract returns the non-blank pages of the document at path.
func (e *Extractor) Extract(ctx context.Context, path string) (Extraction, error) {
	pages, err := e.structured(path)
	if err == nil && len(pages) > 0 {
		return Extraction{Pages: pages, Structured: true}, nil
	}
	if err != nil {
		e.logger.Warn("structured extraction failed", "path", path, "error", err)
	} else {
		e.logger.Info("no text layer, falling back to OCR", "path", path)
	}

	if e.ocr == nil {
		return Extraction{}, apperr.Wrap(apperr.ErrUpstream, errors.Join(
			fmt.Errorf("no text could be extracted from %s", path), err))
	}
	text, ocrErr := e.ocr.Recognize(ctx, path)
	if ocrErr != nil {
		return Extraction{}, apperr.Wrap(apperr.ErrUpstream, fmt.Errorf("failed to run OCR: %w", ocrErr))
	}
	text = Normalize(text)
	if text == "" {
		return Extraction{}, apperr.Wrap(apperr.ErrUpstream, fmt.Errorf("OCR produced no text for %s", path))
	}
	return Extraction{Pages: []PageText{{Index: 0, Text: text}}}, nil
}

func (e *Extractor) structured(path string) ([]PageText, error) {
	doc, err := e.open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	var pages []PageText
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		if text = Normalize(text); text != "" {
			pages = append(pages, PageText{Index: i, Text: text})
		}
	}
	return pages, nil
}

// Normalize trims text, turns line feeds into spaces and drops carriage returns.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.ReplaceAll(text, "\r", "")
}

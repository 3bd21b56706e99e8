package documents

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// pageRenderer is the subset of *fitz.Document used to rasterize pages.
type pageRenderer interface {
	NumPage() int
	ImagePNG(pageNumber int, dpi float64) ([]byte, error)
	Close() error
}

// TesseractOCR renders each page with MuPDF and runs the tesseract CLI on it.
type TesseractOCR struct {
	binary   string
	language string
	dpi      float64
	open     func(path string) (pageRenderer, error)
}

// NewTesseractOCR creates a new tesseract runner
func NewTesseractOCR(binary, language string, dpi float64) *TesseractOCR {
	if binary == "" {
		binary = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	if dpi <= 0 {
		dpi = 200
	}
	return &TesseractOCR{
		binary:   binary,
		language: language,
		dpi:      dpi,
		open: func(path string) (pageRenderer, error) {
			return fitz.New(path)
		},
	}
}

// Recognize returns the recognized text of every page, separated by newlines.
func (t *TesseractOCR) Recognize(ctx context.Context, path string) (string, error) {
	doc, err := t.open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open document for OCR: %w", err)
	}
	defer doc.Close()

	workDir, err := os.MkdirTemp("", "askpdf-ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create OCR work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	var parts []string
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		png, err := doc.ImagePNG(i, t.dpi)
		if err != nil {
			return "", fmt.Errorf("failed to render page %d: %w", i, err)
		}
		imgPath := filepath.Join(workDir, fmt.Sprintf("page_%04d.png", i))
		if err := os.WriteFile(imgPath, png, 0644); err != nil {
			return "", fmt.Errorf("failed to write page image: %w", err)
		}
		text, err := t.run(ctx, imgPath)
		if err != nil {
			return "", fmt.Errorf("failed to recognize page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (t *TesseractOCR) run(ctx context.Context, imgPath string) (string, error) {
	cmd := exec.CommandContext(ctx, t.binary, imgPath, "stdout", "-l", t.language)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", t.binary, err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}

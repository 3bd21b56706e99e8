package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/askpdf/server/internal/apperr"
)

const hashBlockSize = 4096

// SupportedExtensions lists the file types the store accepts.
var SupportedExtensions = []string{".pdf", ".epub"}

// Document is an uploaded file.
type Document struct {
	Name       string    `json:"name"`
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Store keeps uploaded documents in a flat directory and rejects duplicates by
// name and by content hash.
type Store struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewStore creates the directory if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger.With("component", "documents")}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// ValidateName rejects names that are empty, escape the directory, or have an
// unsupported extension.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return apperr.New(apperr.ErrValidation, "No selected file")
	case strings.ContainsAny(name, `/\`), strings.Contains(name, ".."), strings.HasPrefix(name, "."):
		return apperr.New(apperr.ErrValidation, "invalid file name %q", name)
	case !supported(name):
		return apperr.New(apperr.ErrValidation, "unsupported file type %q", filepath.Ext(name))
	}
	return nil
}

func supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Save streams r into the store under name. Saves are serialized so two
// identical uploads cannot both pass the duplicate check.
func (s *Store) Save(ctx context.Context, name string, r io.Reader) (Document, error) {
	if err := ValidateName(name); err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := filepath.Join(s.dir, name)
	if _, err := os.Stat(target); err == nil {
		return Document{}, apperr.New(apperr.ErrDuplicate, "File already exists.")
	}
	if _, found, err := s.lookup(name); err != nil {
		return Document{}, err
	} else if found {
		return Document{}, apperr.New(apperr.ErrDuplicate, "File already exists.")
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return Document{}, apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	h := sha256.New()
	size, err := copyBlocks(io.MultiWriter(tmp, h), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Document{}, apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to save file: %w", err))
	}
	sum := hex.EncodeToString(h.Sum(nil))

	existing, err := s.list()
	if err != nil {
		return Document{}, err
	}
	for _, other := range existing {
		otherSum, err := hashFile(filepath.Join(s.dir, other))
		if err != nil {
			return Document{}, apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to check existing files: %w", err))
		}
		if otherSum == sum {
			return Document{}, apperr.New(apperr.ErrDuplicate, "File with identical content already exists.")
		}
	}

	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return Document{}, apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to save file: %w", err))
	}
	committed = true

	s.logger.Info("document saved", "name", name, "size", size)
	return Document{Name: name, Hash: sum, Size: size, UploadedAt: time.Now()}, nil
}

// Delete removes the stored document matching name, ignoring case and
// surrounding whitespace.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, found, err := s.lookup(name)
	if err != nil {
		return err
	}
	if !found {
		return apperr.New(apperr.ErrNotFound, "document %q not found", name)
	}
	if err := os.Remove(filepath.Join(s.dir, stored)); err != nil {
		return apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to delete file: %w", err))
	}
	return nil
}

// Resolve returns the stored name matching name, ignoring case and surrounding
// whitespace. Stored names never collide under that comparison.
func (s *Store) Resolve(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, found, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	if !found {
		return "", apperr.New(apperr.ErrNotFound, "document %q not found", name)
	}
	return stored, nil
}

func (s *Store) lookup(name string) (string, bool, error) {
	key := nameKey(name)
	if key == "" {
		return "", false, nil
	}
	names, err := s.list()
	if err != nil {
		return "", false, err
	}
	for _, n := range names {
		if nameKey(n) == key {
			return n, true, nil
		}
	}
	return "", false, nil
}

// nameKey is the comparison key for document names. It matches the key the
// vector index deletes by.
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// List returns stored document names sorted alphabetically.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

func (s *Store) list() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to read documents directory: %w", err))
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !supported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Get returns metadata for a stored document.
func (s *Store) Get(name string) (Document, error) {
	path, err := s.Path(name)
	if err != nil {
		return Document{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, apperr.Wrap(apperr.ErrStore, err)
	}
	sum, err := hashFile(path)
	if err != nil {
		return Document{}, apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to hash file: %w", err))
	}
	return Document{Name: name, Hash: sum, Size: info.Size(), UploadedAt: info.ModTime()}, nil
}

// Path resolves a stored document to its file path. Unknown or unsafe names
// yield a not-found error.
func (s *Store) Path(name string) (string, error) {
	if ValidateName(name) != nil {
		return "", apperr.New(apperr.ErrNotFound, "document %q not found", name)
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperr.New(apperr.ErrNotFound, "document %q not found", name)
		}
		return "", apperr.Wrap(apperr.ErrStore, err)
	}
	return path, nil
}

// Exists reports whether name is stored.
func (s *Store) Exists(name string) bool {
	_, err := s.Path(name)
	return err == nil
}

// Clear removes every stored file and recreates an empty directory.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(s.dir); err != nil {
		return apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to remove documents directory: %w", err))
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return apperr.Wrap(apperr.ErrStore, fmt.Errorf("failed to create documents directory: %w", err))
	}
	s.logger.Info("documents cleared")
	return nil
}

// copyBlocks copies r to w in fixed 4 KiB blocks.
func copyBlocks(w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, hashBlockSize)
	return io.CopyBuffer(w, r, buf)
}

// hashFile computes the SHA-256 hex digest of a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := copyBlocks(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

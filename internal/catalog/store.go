package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/vyrodovalexey/catalog-api/internal/model"
)

// Store defines the persistence operations for one domain document.
type Store interface {
	// Load reads the whole catalog.
	Load(ctx context.Context) (model.Catalog, error)

	// Save replaces the whole catalog.
	Save(ctx context.Context, catalog model.Catalog) error
}

// FileStore keeps a catalog in a single indented JSON file.
// Save is atomic: readers see either the old or the new document.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the document path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and decodes the document.
func (s *FileStore) Load(ctx context.Context) (model.Catalog, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load catalog: %w", ctx.Err())
	default:
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", s.path, ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("load %s: %w: %w", s.path, ErrIO, err)
	}

	var catalog model.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", s.path, ErrParse, err)
	}
	if catalog == nil {
		// A literal null is not a catalog.
		return nil, fmt.Errorf("decode %s: %w: document is not an array", s.path, ErrParse)
	}

	return catalog, nil
}

// Save encodes the catalog and atomically replaces the document.
func (s *FileStore) Save(ctx context.Context, catalog model.Catalog) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("save catalog: %w", ctx.Err())
	default:
	}

	data, err := encodeCatalog(catalog)
	if err != nil {
		return fmt.Errorf("encode %s: %w: %w", s.path, ErrIO, err)
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("save %s: %w: %w", s.path, ErrIO, err)
	}

	return nil
}

func encodeCatalog(catalog model.Catalog) ([]byte, error) {
	if catalog == nil {
		catalog = model.Catalog{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(catalog); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data to a temp file next to path and renames it
// over path. The temp file is removed on any failure.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}

	perm := fs.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		perm = info.Mode().Perm()
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

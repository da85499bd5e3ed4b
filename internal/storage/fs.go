package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/axanet/internal/apperr"
	"github.com/starford/axanet/internal/ident"
	"github.com/starford/axanet/internal/models"
)

const (
	recordExt  = ".json"
	tempPrefix = ".axanet-tmp-"
)

// ErrList marks a failure to scan the clients directory itself, as opposed
// to a single unreadable record.
var ErrList = errors.New("storage: list records")

// FS implements Store backed by a directory of <id>.json files.
type FS struct {
	root string // absolute path to the clients directory
}

// NewFS creates a new FS store rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute clients directory.
func (f *FS) Root() string { return f.root }

// FileName returns the record file name for id, relative to Root.
func FileName(id string) string { return id + recordExt }

// IDFromFileName returns the identifier stored in name, or false when name
// is not a record file.
func IDFromFileName(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
		return "", false
	}
	id := strings.TrimSuffix(name, recordExt)
	if !ident.Valid(id) {
		return "", false
	}
	return id, true
}

// recordPath maps an identifier to its file, rejecting anything that is not
// a normalized identifier (which also rules out directory traversal).
func (f *FS) recordPath(id string) (string, error) {
	if !ident.Valid(id) {
		return "", fmt.Errorf("storage: %w: invalid identifier %q", apperr.ErrValidation, id)
	}
	return filepath.Join(f.root, FileName(id)), nil
}

// Write encodes c and writes it atomically.
func (f *FS) Write(c *models.Client) error {
	abs, err := f.recordPath(c.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w: %w", c.ID, apperr.ErrStorage, err)
	}
	if err := WriteFileAtomic(abs, append(data, '\n')); err != nil {
		return fmt.Errorf("storage: write %s: %w: %w", c.ID, apperr.ErrStorage, err)
	}
	return nil
}

// Read loads and decodes the record for id.
func (f *FS) Read(id string) (*models.Client, error) {
	abs, err := f.recordPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w: %w", id, apperr.ErrStorage, err)
	}
	var c models.Client
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w: %w", id, apperr.ErrStorage, err)
	}
	if c.ID == "" {
		c.ID = id
	}
	if c.ID != id {
		return nil, fmt.Errorf("storage: decode %s: %w: file holds identifier %q", id, apperr.ErrStorage, c.ID)
	}
	// Payloads come back indented; keep them compact like freshly appended ones.
	for i, e := range c.History {
		if len(e.Payload) == 0 {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, e.Payload); err != nil {
			return nil, fmt.Errorf("storage: decode %s: %w: %w", id, apperr.ErrStorage, err)
		}
		c.History[i].Payload = buf.Bytes()
	}
	return &c, nil
}

// Delete removes the record file for id.
func (f *FS) Delete(id string) error {
	abs, err := f.recordPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: delete %s: %w", id, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w: %w", id, apperr.ErrStorage, err)
	}
	return nil
}

// Exists reports whether a record file is present for id.
func (f *FS) Exists(id string) (bool, error) {
	abs, err := f.recordPath(id)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(abs)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("storage: stat %s: %w: %w", id, apperr.ErrStorage, err)
	}
}

// All yields every record in file-name order.
func (f *FS) All() iter.Seq2[*models.Client, error] {
	return func(yield func(*models.Client, error) bool) {
		entries, err := os.ReadDir(f.root)
		if err != nil {
			yield(nil, fmt.Errorf("%w: %w: %w", ErrList, apperr.ErrStorage, err))
			return
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			id, ok := IDFromFileName(e.Name())
			if !ok {
				continue
			}
			if !yield(f.Read(id)) {
				return
			}
		}
	}
}

// WriteFileAtomic writes content to path: tmp file → fsync → rename.
// Readers see either the old file or the new one, never a partial write.
func WriteFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	success = true
	return nil
}

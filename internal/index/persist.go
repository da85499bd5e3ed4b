package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/starford/axanet/internal/apperr"
	"github.com/starford/axanet/internal/checksum"
	"github.com/starford/axanet/internal/ident"
	"github.com/starford/axanet/internal/storage"
)

// formatVersion is bumped whenever the on-disk layout changes; files with any
// other version are rebuilt.
const formatVersion = 1

// errMissing marks an index file that does not exist yet.
var errMissing = errors.New("index: file missing")

type fileFormat struct {
	Version  int              `json:"version"`
	Checksum string           `json:"checksum"`
	Entries  map[string]Entry `json:"entries"`
}

// Persist atomically writes the full index to disk.
func (ix *Index) Persist() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.ensureReady(); err != nil {
		return err
	}
	return ix.persistLocked()
}

func (ix *Index) persistLocked() error {
	sum, err := checksum.JSON(ix.entries)
	if err != nil {
		return fmt.Errorf("index: checksum: %w: %w", apperr.ErrStorage, err)
	}
	data, err := json.MarshalIndent(fileFormat{
		Version:  formatVersion,
		Checksum: sum,
		Entries:  ix.entries,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("index: encode: %w: %w", apperr.ErrStorage, err)
	}
	if err := storage.WriteFileAtomic(ix.path, append(data, '\n')); err != nil {
		return fmt.Errorf("index: persist %s: %w: %w", ix.path, apperr.ErrStorage, err)
	}
	ix.dirty = false
	return nil
}

// readFile loads and validates the persisted index. Shape or checksum
// problems are reported as apperr.ErrIndexCorrupt.
func readFile(path string) (map[string]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errMissing
		}
		return nil, fmt.Errorf("index: read %s: %w: %w", path, apperr.ErrStorage, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var f fileFormat
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("index: %w: decode: %w", apperr.ErrIndexCorrupt, err)
	}
	if f.Version != formatVersion {
		return nil, fmt.Errorf("index: %w: unsupported version %d", apperr.ErrIndexCorrupt, f.Version)
	}
	if f.Entries == nil {
		return nil, fmt.Errorf("index: %w: no entries object", apperr.ErrIndexCorrupt)
	}
	sum, err := checksum.JSON(f.Entries)
	if err != nil || sum != f.Checksum {
		return nil, fmt.Errorf("index: %w: checksum mismatch", apperr.ErrIndexCorrupt)
	}
	for id, e := range f.Entries {
		if !ident.Valid(id) || e.File != storage.FileName(id) {
			return nil, fmt.Errorf("index: %w: bad entry %q", apperr.ErrIndexCorrupt, id)
		}
	}
	return f.Entries, nil
}

func isRecoverable(err error) bool {
	return errors.Is(err, errMissing) || errors.Is(err, apperr.ErrIndexCorrupt)
}

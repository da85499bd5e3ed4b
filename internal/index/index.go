// Package index maintains the derived identifier → summary lookup table for
// the record store. The store is authoritative; everything here can be
// regenerated by Rebuild.
package index

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/starford/axanet/internal/apperr"
	"github.com/starford/axanet/internal/ident"
	"github.com/starford/axanet/internal/models"
	"github.com/starford/axanet/internal/storage"
)

// State is the index lifecycle state.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateCorrupt
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateCorrupt:
		return "corrupt"
	case StateRebuilding:
		return "rebuilding"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Entry is the cached summary of one record.
type Entry struct {
	File      string    `json:"file"`
	Name      string    `json:"name"`
	Service   string    `json:"service"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EntryFor derives the index entry of c.
func EntryFor(c *models.Client) Entry {
	return Entry{
		File:      storage.FileName(c.ID),
		Name:      c.Name,
		Service:   c.Service,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Summary returns the entry as a models.Summary for id.
func (e Entry) Summary(id string) models.Summary {
	return models.Summary{
		ID:        id,
		Name:      e.Name,
		Service:   e.Service,
		Notes:     e.Notes,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func (e Entry) equal(o Entry) bool {
	return e.File == o.File && e.Name == o.Name && e.Service == o.Service && e.Notes == o.Notes &&
		e.CreatedAt.Equal(o.CreatedAt) && e.UpdatedAt.Equal(o.UpdatedAt)
}

// Index is the in-memory lookup table plus its persisted copy at path.
//
// Every public method first drives the state machine to StateReady: the
// persisted file is loaded on first use, and a missing or corrupt file is
// replaced by a rebuild from the store.
type Index struct {
	path   string
	store  storage.Store
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	entries map[string]Entry
	dirty   bool
}

// New creates an unloaded index persisted at path and backed by store.
func New(path string, store storage.Store, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		path:   path,
		store:  store,
		logger: logger,
		state:  StateUnloaded,
	}
}

// Path returns the location of the persisted index.
func (ix *Index) Path() string { return ix.path }

// State returns the current lifecycle state.
func (ix *Index) State() State {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.state
}

// Load brings the index to StateReady, rebuilding it if needed.
func (ix *Index) Load() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.ensureReady()
}

// Lookup returns the entry for id.
func (ix *Index) Lookup(id string) (Entry, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.ensureReady(); err != nil {
		return Entry{}, err
	}
	e, ok := ix.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("index: lookup %s: %w", id, apperr.ErrNotFound)
	}
	return e, nil
}

// Upsert inserts or replaces the entry for id in memory and marks the index
// dirty. Call Persist to make the change durable.
func (ix *Index) Upsert(id string, e Entry) error {
	if !ident.Valid(id) {
		return fmt.Errorf("index: upsert: %w: invalid identifier %q", apperr.ErrValidation, id)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.ensureReady(); err != nil {
		return err
	}
	ix.entries[id] = e
	ix.dirty = true
	return nil
}

// Remove deletes the entry for id. Removing an absent entry is a no-op.
func (ix *Index) Remove(id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.ensureReady(); err != nil {
		return err
	}
	if _, ok := ix.entries[id]; ok {
		delete(ix.entries, id)
		ix.dirty = true
	}
	return nil
}

// Len returns the number of entries.
func (ix *Index) Len() (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.ensureReady(); err != nil {
		return 0, err
	}
	return len(ix.entries), nil
}

// Dirty reports whether there are in-memory changes not yet persisted.
func (ix *Index) Dirty() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.dirty
}

// Snapshot returns a copy of all entries keyed by identifier.
func (ix *Index) Snapshot() (map[string]Entry, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.ensureReady(); err != nil {
		return nil, err
	}
	out := make(map[string]Entry, len(ix.entries))
	for id, e := range ix.entries {
		out[id] = e
	}
	return out, nil
}

// Entries returns every summary ordered by case-folded name, then identifier.
func (ix *Index) Entries() ([]models.Summary, error) {
	return ix.Search("")
}

// Search returns the summaries whose name, service or notes contain query,
// compared case-insensitively. Results are ordered like Entries. An empty
// query matches everything.
func (ix *Index) Search(query string) ([]models.Summary, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.ensureReady(); err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	out := make([]models.Summary, 0, len(ix.entries))
	for id, e := range ix.entries {
		if q == "" || matches(e, q) {
			out = append(out, e.Summary(id))
		}
	}
	SortSummaries(out)
	return out, nil
}

func matches(e Entry, q string) bool {
	return strings.Contains(strings.ToLower(e.Name), q) ||
		strings.Contains(strings.ToLower(e.Service), q) ||
		strings.Contains(strings.ToLower(e.Notes), q)
}

// SortSummaries orders s by case-folded name, then identifier.
func SortSummaries(s []models.Summary) {
	slices.SortFunc(s, func(a, b models.Summary) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			strings.Compare(a.ID, b.ID),
		)
	})
}

// ensureReady drives the state machine to StateReady. Caller holds mu.
func (ix *Index) ensureReady() error {
	switch ix.state {
	case StateReady:
		return nil
	case StateLoading, StateRebuilding:
		// Only reachable if a previous transition panicked halfway.
		return fmt.Errorf("index: %w: stuck in state %s", apperr.ErrIndexCorrupt, ix.state)
	}

	if ix.state == StateUnloaded {
		ix.state = StateLoading
		entries, err := readFile(ix.path)
		if err == nil {
			ix.entries = entries
			ix.dirty = false
			ix.state = StateReady
			ix.logger.Debug("index: loaded", slog.String("path", ix.path), slog.Int("entries", len(entries)))
			return nil
		}
		if !isRecoverable(err) {
			ix.state = StateUnloaded
			return err
		}
		ix.state = StateCorrupt
		ix.logger.Warn("index: unusable, rebuilding from store",
			slog.String("path", ix.path),
			slog.String("error", err.Error()))
	}

	// StateCorrupt.
	stats, err := ix.rebuildLocked()
	if err != nil {
		return err
	}
	ix.logger.Info("index: rebuilt",
		slog.Int("records", stats.Records),
		slog.Int("skipped", stats.Skipped),
		slog.Duration("duration", stats.Duration))
	if err := ix.persistLocked(); err != nil {
		// The in-memory copy is correct; the next mutation persists again.
		ix.logger.Warn("index: persist after rebuild failed", slog.String("error", err.Error()))
	}
	return nil
}

package index

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/axanet/internal/models"
	"github.com/starford/axanet/internal/storage"
)

// RebuildStats reports the outcome of a full rebuild.
type RebuildStats struct {
	Records  int           `json:"records"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// ReconcileStats reports the entries a reconcile pass changed.
type ReconcileStats struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// Changed reports whether the reconcile touched anything.
func (s ReconcileStats) Changed() bool {
	return s.Added+s.Updated+s.Removed > 0
}

// Rebuild discards the current content, re-derives every entry from the
// store and persists the result.
func (ix *Index) Rebuild() (RebuildStats, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	stats, err := ix.rebuildLocked()
	if err != nil {
		return stats, err
	}
	return stats, ix.persistLocked()
}

// rebuildLocked scans the store into a fresh entry map. Records that cannot
// be read are logged and left out; only a failure to list the store aborts.
// Caller holds mu.
func (ix *Index) rebuildLocked() (RebuildStats, error) {
	start := time.Now()
	prev := ix.state
	ix.state = StateRebuilding

	var stats RebuildStats
	entries := make(map[string]Entry)
	for c, err := range ix.store.All() {
		if err != nil {
			if errors.Is(err, storage.ErrList) {
				ix.state = prev
				return stats, fmt.Errorf("index: rebuild: %w", err)
			}
			stats.Skipped++
			ix.logger.Warn("index: rebuild: skipping record", slog.String("error", err.Error()))
			continue
		}
		entries[c.ID] = EntryFor(c)
		stats.Records++
	}

	ix.entries = entries
	ix.dirty = true
	ix.state = StateReady
	stats.Duration = time.Since(start)
	return stats, nil
}

// Reconcile brings the index in line with the store without discarding it:
// entries without a record are removed, and records whose entry is missing
// or different are upserted. cb, if non-nil, is called for every change.
func (ix *Index) Reconcile(cb EventCallback) (ReconcileStats, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var stats ReconcileStats
	if err := ix.ensureReady(); err != nil {
		return stats, err
	}

	disk := make(map[string]Entry, len(ix.entries))
	for c, err := range ix.store.All() {
		if err != nil {
			if errors.Is(err, storage.ErrList) {
				return stats, fmt.Errorf("index: reconcile: %w", err)
			}
			ix.logger.Warn("index: reconcile: skipping record", slog.String("error", err.Error()))
			continue
		}
		disk[c.ID] = EntryFor(c)
	}

	type change struct {
		kind models.Action
		id   string
	}
	var changes []change

	for id := range ix.entries {
		if _, ok := disk[id]; !ok {
			delete(ix.entries, id)
			stats.Removed++
			changes = append(changes, change{models.ActionDeleted, id})
		}
	}
	for id, e := range disk {
		old, ok := ix.entries[id]
		switch {
		case !ok:
			stats.Added++
			changes = append(changes, change{models.ActionCreated, id})
		case !old.equal(e):
			stats.Updated++
			changes = append(changes, change{models.ActionUpdated, id})
		default:
			continue
		}
		ix.entries[id] = e
	}

	if !stats.Changed() {
		return stats, nil
	}
	ix.dirty = true
	if err := ix.persistLocked(); err != nil {
		return stats, err
	}
	if cb != nil {
		for _, c := range changes {
			cb(c.kind, c.id)
		}
	}
	return stats, nil
}

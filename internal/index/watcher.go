package index

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/axanet/internal/apperr"
	"github.com/starford/axanet/internal/models"
	"github.com/starford/axanet/internal/storage"
)

// reconcileDelay debounces reconcile passes after renames.
const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
// kind is one of models.ActionCreated, ActionUpdated or ActionDeleted.
type EventCallback func(kind models.Action, id string)

// Watch starts an fsnotify watcher on the clients directory and keeps ix in
// step with record files edited outside the manager (hand edits, git pull)
// until ctx is cancelled. It calls cb (if non-nil) after each index change.
//
// Rename events trigger a debounced reconcile pass, because fsnotify reports
// only the old name.
func Watch(ctx context.Context, ix *Index, store storage.Store, dir string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	if err := ix.Load(); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("dir", dir))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			stats, err := ix.Reconcile(cb)
			if err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
				continue
			}
			if stats.Changed() {
				logger.Debug("watcher: reconciled",
					slog.Int("added", stats.Added),
					slog.Int("updated", stats.Updated),
					slog.Int("removed", stats.Removed))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			id, isRecord := storage.IDFromFileName(filepath.Base(ev.Name))
			if !isRecord {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind, err := upsertFromStore(ix, store, id)
				if err != nil {
					// Editors often write in several steps; a later event
					// or the next reconcile picks up the final content.
					logger.Warn("watcher: index failed", slog.String("id", id), slog.String("error", err.Error()))
					continue
				}
				if kind == "" {
					continue
				}
				logger.Debug("watcher: indexed", slog.String("id", id), slog.String("op", string(kind)))
				if cb != nil {
					cb(kind, id)
				}

			case ev.Op&fsnotify.Remove != 0:
				if err := removeAndPersist(ix, id); err != nil {
					logger.Warn("watcher: delete failed", slog.String("id", id), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("id", id))
				if cb != nil {
					cb(models.ActionDeleted, id)
				}

			case ev.Op&fsnotify.Rename != 0:
				if err := removeAndPersist(ix, id); err != nil {
					logger.Warn("watcher: rename delete failed", slog.String("id", id), slog.String("error", err.Error()))
				} else if cb != nil {
					cb(models.ActionDeleted, id)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// upsertFromStore re-reads one record and refreshes its entry. It returns
// the kind of change, or "" when the entry was already current.
func upsertFromStore(ix *Index, store storage.Store, id string) (models.Action, error) {
	c, err := store.Read(id)
	if err != nil {
		return "", err
	}
	next := EntryFor(c)

	kind := models.ActionUpdated
	prev, err := ix.Lookup(id)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		kind = models.ActionCreated
	case err != nil:
		return "", err
	case prev.equal(next):
		return "", nil
	}

	if err := ix.Upsert(id, next); err != nil {
		return "", err
	}
	return kind, ix.Persist()
}

func removeAndPersist(ix *Index, id string) error {
	if err := ix.Remove(id); err != nil {
		return err
	}
	if !ix.Dirty() {
		return nil
	}
	return ix.Persist()
}

// Package testutil provides shared test helpers for setting up data
// directories, indexes, catalogs and managers.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/axanet/internal/catalog"
	"github.com/starford/axanet/internal/index"
	"github.com/starford/axanet/internal/manager"
	"github.com/starford/axanet/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestStore creates a temporary data directory with a clients/ store.
// The index belongs next to it at IndexPath(store).
func TestStore(t *testing.T) *storage.FS {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "clients")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// IndexPath returns the index file location for store.
func IndexPath(store *storage.FS) string {
	return filepath.Join(filepath.Dir(store.Root()), "index.json")
}

// TestIndex creates an unloaded index for store.
func TestIndex(t *testing.T, store *storage.FS) *index.Index {
	t.Helper()
	return index.New(IndexPath(store), store, Logger())
}

// TestCatalog creates a temporary SQLite catalog that is automatically cleaned up.
func TestCatalog(t *testing.T) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "axanet-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Clock returns a time source that starts at start and advances by one
// second per call.
func Clock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

// TestManager creates a manager over a fresh store and index.
func TestManager(t *testing.T, opts ...manager.Option) (*manager.Manager, *storage.FS, *index.Index) {
	t.Helper()
	store := TestStore(t)
	ix := TestIndex(t, store)
	opts = append([]manager.Option{
		manager.WithLogger(Logger()),
		manager.WithClock(Clock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))),
	}, opts...)
	return manager.New(store, ix, opts...), store, ix
}

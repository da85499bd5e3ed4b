package index

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/axanet/internal/apperr"
	"github.com/starford/axanet/internal/models"
	"github.com/starford/axanet/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv returns a store rooted in a temp clients dir and an index file
// path next to it.
func testEnv(t *testing.T) (*storage.FS, string) {
	t.Helper()
	dataDir := t.TempDir()
	clients := filepath.Join(dataDir, "clients")
	if err := os.MkdirAll(clients, 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(clients)
	if err != nil {
		t.Fatal(err)
	}
	return store, filepath.Join(dataDir, "index.json")
}

func putClient(t *testing.T, store storage.Store, id, name, service string) *models.Client {
	t.Helper()
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := &models.Client{ID: id, Name: name, Service: service, CreatedAt: ts, UpdatedAt: ts}
	if err := store.Write(c); err != nil {
		t.Fatalf("Write %s: %v", id, err)
	}
	return c
}

func TestLoadMissingFileRebuilds(t *testing.T) {
	store, path := testEnv(t)
	putClient(t, store, "a", "A", "Web Dev")

	ix := New(path, store, quietLogger())
	if ix.State() != StateUnloaded {
		t.Fatalf("initial state = %s", ix.State())
	}
	e, err := ix.Lookup("a")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if e.Name != "A" || e.File != "a.json" {
		t.Errorf("entry = %+v", e)
	}
	if ix.State() != StateReady {
		t.Errorf("state = %s, want ready", ix.State())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("rebuilt index not persisted: %v", err)
	}
}

func TestPersistAndReload(t *testing.T) {
	store, path := testEnv(t)
	c := putClient(t, store, "a", "A", "Web Dev")

	ix := New(path, store, quietLogger())
	if err := ix.Upsert("a", EntryFor(c)); err != nil {
		t.Fatal(err)
	}
	if !ix.Dirty() {
		t.Error("upsert should mark dirty")
	}
	if err := ix.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if ix.Dirty() {
		t.Error("persist should clear dirty")
	}

	reloaded := New(path, store, quietLogger())
	n, err := reloaded.Len()
	if err != nil || n != 1 {
		t.Fatalf("Len = %d, %v", n, err)
	}
}

func TestLookupNotFound(t *testing.T) {
	store, path := testEnv(t)
	ix := New(path, store, quietLogger())
	if _, err := ix.Lookup("ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	store, path := testEnv(t)
	c := putClient(t, store, "a", "A", "x")
	ix := New(path, store, quietLogger())
	_ = ix.Upsert("a", EntryFor(c))
	if err := ix.Remove("a"); err != nil {
		t.Fatal(err)
	}
	if err := ix.Remove("a"); err != nil {
		t.Errorf("second remove: %v", err)
	}
	if _, err := ix.Lookup("a"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("lookup after remove err = %v", err)
	}
}

func TestUpsertRejectsInvalidIdentifier(t *testing.T) {
	store, path := testEnv(t)
	ix := New(path, store, quietLogger())
	if err := ix.Upsert("../x", Entry{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestCorruptFileTriggersRebuild(t *testing.T) {
	cases := map[string]string{
		"malformed":      "{not json",
		"legacy shape":   `{"Maria Garcia": "maria_garcia.json"}`,
		"wrong version":  `{"version": 99, "checksum": "", "entries": {}}`,
		"no entries":     `{"version": 1, "checksum": ""}`,
		"bad checksum":   `{"version": 1, "checksum": "deadbeef", "entries": {}}`,
		"truncated file": `{"version": 1, "checksum": "`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			store, path := testEnv(t)
			putClient(t, store, "a", "A", "Web Dev")
			putClient(t, store, "b", "B", "Cloud Migration")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}

			ix := New(path, store, quietLogger())
			if _, err := ix.Lookup("a"); err != nil {
				t.Fatalf("Lookup after corruption: %v", err)
			}
			got, err := ix.Entries()
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
				t.Errorf("entries = %+v", got)
			}
			if _, err := readFile(path); err != nil {
				t.Errorf("repaired index does not validate: %v", err)
			}
		})
	}
}

func TestTamperedEntryFailsChecksum(t *testing.T) {
	store, path := testEnv(t)
	putClient(t, store, "a", "A", "Web Dev")
	ix := New(path, store, quietLogger())
	if err := ix.Load(); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	tampered := bytes.Replace(data, []byte("Web Dev"), []byte("Web Design"), 1)
	if bytes.Equal(tampered, data) {
		t.Fatal("precondition: service not found in index file")
	}
	_ = os.WriteFile(path, tampered, 0o644)
	if _, err := readFile(path); !errors.Is(err, apperr.ErrIndexCorrupt) {
		t.Errorf("readFile err = %v, want ErrIndexCorrupt", err)
	}
}

func TestRebuildIdempotent(t *testing.T) {
	store, path := testEnv(t)
	putClient(t, store, "a", "A", "Web Dev")
	putClient(t, store, "b", "B", "SEO")

	ix := New(path, store, quietLogger())
	before, err := ix.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Rebuild(); err != nil {
		t.Fatal(err)
	}
	after, _ := ix.Snapshot()
	if len(before) != len(after) {
		t.Fatalf("len before=%d after=%d", len(before), len(after))
	}
	for id, e := range before {
		if !e.equal(after[id]) {
			t.Errorf("entry %s changed: %+v -> %+v", id, e, after[id])
		}
	}
}

func TestRebuildSkipsUnreadableRecords(t *testing.T) {
	store, path := testEnv(t)
	putClient(t, store, "a", "A", "Web Dev")
	_ = os.WriteFile(filepath.Join(store.Root(), "broken.json"), []byte("nope"), 0o644)

	ix := New(path, store, quietLogger())
	stats, err := ix.Rebuild()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Records != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSearchCaseInsensitiveAndOrdered(t *testing.T) {
	store, path := testEnv(t)
	putClient(t, store, "zeta", "zeta", "SEO + Web Dev")
	putClient(t, store, "alpha", "Alpha", "Web Dev")
	putClient(t, store, "mid", "Mid", "Cloud Migration")

	ix := New(path, store, quietLogger())
	got, err := ix.Search("web")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "alpha" || got[1].ID != "zeta" {
		t.Errorf("search = %+v", got)
	}
	none, _ := ix.Search("nothing-matches")
	if len(none) != 0 {
		t.Errorf("expected no hits, got %+v", none)
	}
}

func TestReconcile(t *testing.T) {
	store, path := testEnv(t)
	putClient(t, store, "a", "A", "Web Dev")
	putClient(t, store, "b", "B", "SEO")
	ix := New(path, store, quietLogger())
	if err := ix.Load(); err != nil {
		t.Fatal(err)
	}

	_ = store.Delete("a")
	putClient(t, store, "b", "B", "SEO + Web")
	putClient(t, store, "c", "C", "Cloud")

	var events []string
	stats, err := ix.Reconcile(func(kind models.Action, id string) {
		events = append(events, string(kind)+":"+id)
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Added != 1 || stats.Updated != 1 || stats.Removed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(events) != 3 {
		t.Errorf("events = %v", events)
	}
	again, _ := ix.Reconcile(nil)
	if again.Changed() {
		t.Errorf("second reconcile changed %+v", again)
	}
}

func TestStateString(t *testing.T) {
	if StateRebuilding.String() != "rebuilding" || State(42).String() != "state(42)" {
		t.Error("unexpected State.String output")
	}
}

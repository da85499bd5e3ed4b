package internal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/axanet/internal/apperr"
	"github.com/starford/axanet/internal/manager"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Data.Path = t.TempDir()
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	app, err := Open(context.Background(), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

func TestOpenRequiresConfig(t *testing.T) {
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("Open without config should fail")
	}
}

func TestOpenCreatesLayout(t *testing.T) {
	cfg := testConfig(t)
	app := openApp(t, WithConfig(cfg))

	if _, err := os.Stat(cfg.Data.ClientsDir()); err != nil {
		t.Fatalf("clients dir: %v", err)
	}

	ctx := context.Background()
	if _, err := app.Manager.Create(ctx, manager.CreateInput{Name: "Ana", Service: "Web Dev"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Data.ClientsDir(), "ana.json")); err != nil {
		t.Errorf("record file: %v", err)
	}
	if _, err := os.Stat(cfg.Data.IndexPath()); err != nil {
		t.Errorf("index file: %v", err)
	}
}

func TestOpenSQLiteBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.Backend = SearchBackendSQLite
	app := openApp(t, WithConfig(cfg))

	ctx := context.Background()
	for _, in := range []manager.CreateInput{
		{Name: "Ana", Service: "Web Dev"},
		{Name: "Bruno", Service: "Cloud Migration"},
	} {
		if _, err := app.Manager.Create(ctx, in); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	got, err := app.Manager.Search(ctx, "cloud")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "bruno" {
		t.Errorf("Search = %+v", got)
	}
	if _, err := os.Stat(cfg.Search.DSN(cfg.Data)); err != nil {
		t.Errorf("catalog file: %v", err)
	}
}

func TestOpenGitHookCommits(t *testing.T) {
	cfg := testConfig(t)
	cfg.Git.Enabled = true

	var calls []string
	runner := func(_ context.Context, dir string, args ...string) ([]byte, error) {
		calls = append(calls, strings.Join(args, " "))
		return nil, nil
	}
	app := openApp(t, WithConfig(cfg), WithGitRunner(runner))

	if _, err := app.Manager.Create(context.Background(), manager.CreateInput{Name: "Maria Garcia", Service: "Web"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	want := []string{
		"rev-parse --is-inside-work-tree",
		"add --all -- .",
		"commit -m [NEW_CLIENT] name=Maria Garcia",
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %q, want %q", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestOpenGitHookFailureDoesNotFailMutation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Git.Enabled = true

	runner := func(_ context.Context, _ string, args ...string) ([]byte, error) {
		if args[0] == "commit" {
			return []byte("nothing to commit"), errors.New("exit status 1")
		}
		return nil, nil
	}
	var logs bytes.Buffer
	app := openApp(t, WithConfig(cfg), WithGitRunner(runner),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	if _, err := app.Manager.Create(context.Background(), manager.CreateInput{Name: "Ana", Service: "Web"}); err != nil {
		t.Fatalf("Create should succeed despite hook failure: %v", err)
	}
	if !strings.Contains(logs.String(), "event hook failed") {
		t.Errorf("expected hook failure to be logged, got %q", logs.String())
	}
}

func TestOpenGitOutsideRepository(t *testing.T) {
	cfg := testConfig(t)
	cfg.Git.Enabled = true

	runner := func(context.Context, string, ...string) ([]byte, error) {
		return []byte("fatal: not a git repository"), errors.New("exit status 128")
	}
	_, err := Open(context.Background(), WithConfig(cfg), WithLogger(quietLogger()), WithGitRunner(runner))
	if err == nil {
		t.Fatal("Open should fail outside a git repository")
	}
}

func TestOpenUnwritableDataDir(t *testing.T) {
	cfg := NewDefaultConfig()
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Data.Path = file

	_, err := Open(context.Background(), WithConfig(cfg), WithLogger(quietLogger()))
	if !errors.Is(err, apperr.ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	app := openApp(t, WithConfig(testConfig(t)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Watch(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop")
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(ApplicationConfig{LogFormat: LogFormatJSON}, &buf).Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("json logger wrote %q", buf.String())
	}

	buf.Reset()
	NewLogger(ApplicationConfig{LogFormat: LogFormatText}, &buf).Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("text logger wrote %q", buf.String())
	}
}

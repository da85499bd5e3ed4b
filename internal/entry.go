// Package internal provides the application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/axanet/internal/apperr"
	"github.com/starford/axanet/internal/catalog"
	"github.com/starford/axanet/internal/events"
	"github.com/starford/axanet/internal/index"
	"github.com/starford/axanet/internal/manager"
	"github.com/starford/axanet/internal/models"
	"github.com/starford/axanet/internal/storage"
	"github.com/starford/axanet/internal/vcs"
)

// App holds the components wired for one invocation.
type App struct {
	Config   *Config
	Logger   *slog.Logger
	Store    *storage.FS
	Index    *index.Index
	Notifier *events.Notifier
	Manager  *manager.Manager

	catalog *catalog.DB
}

// NewLogger builds the logger described by cfg, writing to w.
func NewLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Open wires store, index, search backend, git hook and manager.
// The caller must Close the returned App.
func Open(ctx context.Context, opts ...Option) (*App, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(cfg.App, os.Stderr)
	}

	logger.Debug("Configuration loaded",
		slog.String("data_path", cfg.Data.Path),
		slog.String("search_backend", cfg.Search.Backend),
		slog.Bool("git", cfg.Git.Enabled),
		slog.Bool("push", cfg.Git.Push),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure the clients directory exists.
	if err := os.MkdirAll(cfg.Data.ClientsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w: %w", apperr.ErrStorage, err)
	}

	store, err := storage.NewFS(cfg.Data.ClientsDir())
	if err != nil {
		return nil, fmt.Errorf("init storage: %w: %w", apperr.ErrStorage, err)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Index:    index.New(cfg.Data.IndexPath(), store, logger),
		Notifier: events.NewNotifier(),
	}

	mopts := []manager.Option{
		manager.WithLogger(logger),
		manager.WithNotifier(a.Notifier),
	}

	if cfg.Search.Backend == SearchBackendSQLite {
		db, err := catalog.Open(cfg.Search.DSN(cfg.Data))
		if err != nil {
			return nil, fmt.Errorf("init catalog: %w: %w", apperr.ErrStorage, err)
		}
		a.catalog = db
		mopts = append(mopts, manager.WithSearcher(manager.NewCatalogSearcher(db, a.Index, logger)))
	}

	if cfg.Git.Enabled {
		committer := &vcs.Committer{
			Dir:    cfg.Data.Path,
			Paths:  []string{"."},
			Push:   cfg.Git.Push,
			Remote: cfg.Git.Remote,
			Branch: cfg.Git.Branch,
			Run:    app.gitRunner,
		}
		if err := committer.Check(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("git hook: %w", err)
		}
		a.Notifier.Subscribe("git", committer.Handler(ctx))
	}

	a.Manager = manager.New(store, a.Index, mopts...)
	return a, nil
}

// Close releases the catalog connection, if any.
func (a *App) Close() error {
	if a.catalog == nil {
		return nil
	}
	return a.catalog.Close()
}

// Watch keeps the index in sync with out-of-band edits to the clients
// directory until ctx is cancelled or SIGINT/SIGTERM arrives.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return index.Watch(gCtx, a.Index, a.Store, a.Store.Root(), a.Logger, func(kind models.Action, id string) {
			a.Logger.Info("index changed on disk",
				slog.String("kind", string(kind)),
				slog.String("id", id))
		})
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			a.Logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		a.Logger.Error("watcher error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

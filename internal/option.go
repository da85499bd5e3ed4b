package internal

import (
	"log/slog"

	"github.com/starford/axanet/internal/vcs"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logger    *slog.Logger
	gitRunner vcs.Runner
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger sets the logger instead of building one from the config.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithGitRunner replaces the git binary used by the commit hook.
func WithGitRunner(r vcs.Runner) Option {
	return func(a *application) {
		a.gitRunner = r
	}
}

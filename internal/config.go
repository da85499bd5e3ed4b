package internal

import (
	"errors"
	"log/slog"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Search backends.
const (
	SearchBackendIndex  = "index"
	SearchBackendSQLite = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Data   DataConfig        `yaml:"data"`
	Search SearchConfig      `yaml:"search"`
	Git    GitConfig         `yaml:"git"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Data.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	return c.Git.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatText, LogFormatJSON)),
	)
}

// DataConfig holds the location of the data directory. Records live in
// <path>/clients and the index in <path>/index.json.
type DataConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ClientsDir returns the record directory.
func (c *DataConfig) ClientsDir() string {
	return filepath.Join(c.Path, "clients")
}

// IndexPath returns the persisted index file.
func (c *DataConfig) IndexPath() string {
	return filepath.Join(c.Path, "index.json")
}

// SearchConfig selects the search backend.
//
// Backend is one of:
//   - "index" (default): linear scan of the in-memory index.
//   - "sqlite": SQLite catalog at SQLitePath, synced from the index before
//     each query. An empty SQLitePath means <data>/catalog.db.
type SearchConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = SearchBackendIndex
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(SearchBackendIndex, SearchBackendSQLite)),
	)
}

// DSN returns the catalog path, resolved against data when unset.
func (c *SearchConfig) DSN(data DataConfig) string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(data.Path, "catalog.db")
}

// GitConfig controls the commit hook.
type GitConfig struct {
	Enabled bool   `yaml:"enabled"`
	Push    bool   `yaml:"push"`
	Remote  string `yaml:"remote"`
	Branch  string `yaml:"branch"`
}

// Validate validates the git configuration.
func (c *GitConfig) Validate() error {
	if c.Push && !c.Enabled {
		return errors.New("git: push requires git commits to be enabled")
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Remote, validation.Required),
		validation.Field(&c.Branch, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelWarn,
			LogFormat: LogFormatText,
		},
		Data: DataConfig{
			Path: "./data",
		},
		Search: SearchConfig{
			Backend: SearchBackendIndex,
		},
		Git: GitConfig{
			Remote: "origin",
			Branch: "main",
		},
	}
}

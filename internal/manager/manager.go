// Package manager composes the record store, the index and the history log
// into the client operations. Every mutation follows the same order: record
// (with its new history entry) is written first, then the index entry is
// updated and the index persisted, then events are published. If a later step
// fails the store already holds the change and the index can be rebuilt.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/axanet/internal/apperr"
	"github.com/starford/axanet/internal/events"
	"github.com/starford/axanet/internal/history"
	"github.com/starford/axanet/internal/ident"
	"github.com/starford/axanet/internal/index"
	"github.com/starford/axanet/internal/models"
	"github.com/starford/axanet/internal/storage"
)

const (
	maxServiceLen = 200
	maxNotesLen   = 10000
)

// Searcher answers free-text queries over client summaries.
type Searcher interface {
	Search(query string) ([]models.Summary, error)
}

// Manager is the facade over store, index and history.
type Manager struct {
	store    storage.Store
	index    *index.Index
	searcher Searcher
	notifier *events.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithSearcher replaces the default in-memory index search.
func WithSearcher(s Searcher) Option {
	return func(m *Manager) { m.searcher = s }
}

// WithNotifier sets where mutation events are published.
func WithNotifier(n *events.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager over store and ix.
func New(store storage.Store, ix *index.Index, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		index:  ix,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.searcher == nil {
		m.searcher = ix
	}
	return m
}

// CreateInput holds the fields of a new client.
type CreateInput struct {
	Name    string
	Service string
	Notes   string
}

// Validate checks field presence and lengths.
func (in *CreateInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, ident.MaxNameLen)),
		validation.Field(&in.Service, validation.Required, validation.RuneLength(1, maxServiceLen)),
		validation.Field(&in.Notes, validation.RuneLength(0, maxNotesLen)),
	)
}

// UpdateInput holds the fields to change; nil means unchanged.
type UpdateInput struct {
	Service *string
	Notes   *string
}

// Validate checks that something is being changed and that lengths fit.
func (in *UpdateInput) Validate() error {
	if in.Service == nil && in.Notes == nil {
		return errors.New("nothing to update: provide service or notes")
	}
	if in.Service != nil {
		if err := validation.Validate(*in.Service, validation.Required, validation.RuneLength(1, maxServiceLen)); err != nil {
			return fmt.Errorf("service: %w", err)
		}
	}
	if in.Notes != nil {
		if err := validation.Validate(*in.Notes, validation.RuneLength(0, maxNotesLen)); err != nil {
			return fmt.Errorf("notes: %w", err)
		}
	}
	return nil
}

// UpdateResult is the outcome of Update. Changes is empty when the provided
// values matched the stored ones and nothing was written.
type UpdateResult struct {
	Client  *models.Client          `json:"client"`
	Changes map[string]models.Change `json:"changes"`
}

// Create stores a new client. It fails with apperr.ErrConflict when the
// derived identifier is already taken.
func (m *Manager) Create(_ context.Context, in CreateInput) (*models.Client, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Service = strings.TrimSpace(in.Service)
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("manager: create: %w: %w", apperr.ErrValidation, err)
	}
	id, err := ident.Normalize(in.Name)
	if err != nil {
		return nil, fmt.Errorf("manager: create: %w", err)
	}

	_, err = m.lookup(id)
	switch {
	case err == nil:
		return nil, fmt.Errorf("manager: create %s: %w: client already exists", id, apperr.ErrConflict)
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, fmt.Errorf("manager: create %s: %w", id, err)
	}

	now := m.now()
	c := &models.Client{
		ID:        id,
		Name:      in.Name,
		Service:   in.Service,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	snap := models.Snapshot{Name: c.Name, Service: c.Service, Notes: c.Notes}
	if _, err := history.Append(c, models.ActionCreated, snap, now); err != nil {
		return nil, fmt.Errorf("manager: create %s: %w", id, err)
	}
	if err := m.commit(c); err != nil {
		return nil, fmt.Errorf("manager: create %s: %w", id, err)
	}

	m.logger.Info("client created", slog.String("id", id))
	m.publish(models.ActionCreated, c, now)
	return c, nil
}

// Update applies the provided fields. Unspecified fields are unchanged.
func (m *Manager) Update(_ context.Context, name string, in UpdateInput) (*UpdateResult, error) {
	if in.Service != nil {
		in.Service = ptr(strings.TrimSpace(*in.Service))
	}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("manager: update: %w: %w", apperr.ErrValidation, err)
	}
	c, err := m.load(name)
	if err != nil {
		return nil, fmt.Errorf("manager: update: %w", err)
	}

	before := models.Snapshot{Name: c.Name, Service: c.Service, Notes: c.Notes}
	after := before
	if in.Service != nil {
		after.Service = *in.Service
	}
	if in.Notes != nil {
		after.Notes = *in.Notes
	}
	changes := history.Diff(before, after)
	if len(changes) == 0 {
		return &UpdateResult{Client: c, Changes: changes}, nil
	}

	now := m.now()
	c.Service, c.Notes = after.Service, after.Notes
	c.UpdatedAt = now
	if _, err := history.Append(c, models.ActionUpdated, changes, now); err != nil {
		return nil, fmt.Errorf("manager: update %s: %w", c.ID, err)
	}
	if err := m.commit(c); err != nil {
		return nil, fmt.Errorf("manager: update %s: %w", c.ID, err)
	}

	m.logger.Info("client updated", slog.String("id", c.ID), slog.Int("fields", len(changes)))
	m.publish(models.ActionUpdated, c, now)
	return &UpdateResult{Client: c, Changes: changes}, nil
}

// Consult returns the full record and logs the consultation in its history.
// Business fields, UpdatedAt and the index are left untouched.
func (m *Manager) Consult(_ context.Context, name string) (*models.Client, error) {
	c, err := m.load(name)
	if err != nil {
		return nil, fmt.Errorf("manager: consult: %w", err)
	}
	now := m.now()
	if _, err := history.Append(c, models.ActionConsulted, nil, now); err != nil {
		return nil, fmt.Errorf("manager: consult %s: %w", c.ID, err)
	}
	if err := m.store.Write(c); err != nil {
		return nil, fmt.Errorf("manager: consult %s: %w", c.ID, err)
	}
	m.logger.Debug("client consulted", slog.String("id", c.ID))
	m.publish(models.ActionConsulted, c, now)
	return c, nil
}

// Delete removes the record and its index entry and returns the last summary.
func (m *Manager) Delete(_ context.Context, name string) (models.Summary, error) {
	c, err := m.load(name)
	if err != nil {
		return models.Summary{}, fmt.Errorf("manager: delete: %w", err)
	}
	if err := m.store.Delete(c.ID); err != nil {
		return models.Summary{}, fmt.Errorf("manager: delete %s: %w", c.ID, err)
	}
	if err := m.removeEntry(c.ID); err != nil {
		return models.Summary{}, fmt.Errorf("manager: delete %s: %w", c.ID, err)
	}
	m.logger.Info("client deleted", slog.String("id", c.ID))
	m.publish(models.ActionDeleted, c, m.now())
	return c.Summary(), nil
}

// List returns every summary ordered by name.
func (m *Manager) List(_ context.Context) ([]models.Summary, error) {
	out, err := m.index.Entries()
	if err != nil {
		return nil, fmt.Errorf("manager: list: %w", err)
	}
	return out, nil
}

// Search returns the summaries whose name, service or notes contain query,
// case-insensitively, ordered by name.
func (m *Manager) Search(_ context.Context, query string) ([]models.Summary, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("manager: search: %w: empty query", apperr.ErrValidation)
	}
	out, err := m.searcher.Search(query)
	if err != nil {
		return nil, fmt.Errorf("manager: search: %w", err)
	}
	return out, nil
}

// Rebuild regenerates the index from the store.
func (m *Manager) Rebuild(_ context.Context) (index.RebuildStats, error) {
	stats, err := m.index.Rebuild()
	if err != nil {
		return stats, fmt.Errorf("manager: rebuild: %w", err)
	}
	m.logger.Info("index rebuilt", slog.Int("records", stats.Records), slog.Int("skipped", stats.Skipped))
	return stats, nil
}

// load resolves name and reads its record.
func (m *Manager) load(name string) (*models.Client, error) {
	id, err := ident.Normalize(strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if _, err := m.lookup(id); err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	c, err := m.store.Read(id)
	if errors.Is(err, apperr.ErrNotFound) {
		// The index outlived the record; drop the stale entry.
		m.logger.Warn("index entry without record, removing", slog.String("id", id))
		if rmErr := m.removeEntry(id); rmErr != nil {
			m.logger.Warn("stale entry removal failed", slog.String("id", id), slog.String("error", rmErr.Error()))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	return c, nil
}

// lookup consults the index and, on a miss, checks the store: a record the
// index does not know about is indexed before returning.
func (m *Manager) lookup(id string) (index.Entry, error) {
	e, err := m.index.Lookup(id)
	if !errors.Is(err, apperr.ErrNotFound) {
		return e, err
	}
	ok, exErr := m.store.Exists(id)
	if exErr != nil || !ok {
		return e, err
	}

	c, rdErr := m.store.Read(id)
	if rdErr != nil {
		return e, rdErr
	}
	m.logger.Warn("record missing from index, re-indexing", slog.String("id", id))
	e = index.EntryFor(c)
	if err := m.index.Upsert(id, e); err != nil {
		return e, err
	}
	return e, m.index.Persist()
}

// commit writes c, then refreshes and persists its index entry.
func (m *Manager) commit(c *models.Client) error {
	if err := m.store.Write(c); err != nil {
		return err
	}
	if err := m.index.Upsert(c.ID, index.EntryFor(c)); err != nil {
		return err
	}
	return m.index.Persist()
}

func (m *Manager) removeEntry(id string) error {
	if err := m.index.Remove(id); err != nil {
		return err
	}
	return m.index.Persist()
}

func ptr(s string) *string { return &s }

func (m *Manager) publish(kind models.Action, c *models.Client, at time.Time) {
	for sub, err := range m.notifier.Publish(events.New(kind, c.ID, c.Name, at)) {
		m.logger.Warn("event hook failed",
			slog.String("hook", sub),
			slog.String("kind", string(kind)),
			slog.String("id", c.ID),
			slog.String("error", err.Error()))
	}
}

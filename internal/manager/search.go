package manager

import (
	"fmt"
	"log/slog"

	"github.com/starford/axanet/internal/catalog"
	"github.com/starford/axanet/internal/index"
	"github.com/starford/axanet/internal/models"
)

// CatalogSearcher answers queries from the SQLite catalog. Before each query
// the catalog is synced against the index, so it never lags behind.
type CatalogSearcher struct {
	db     *catalog.DB
	index  *index.Index
	logger *slog.Logger
}

// NewCatalogSearcher creates a searcher over db mirroring ix.
func NewCatalogSearcher(db *catalog.DB, ix *index.Index, logger *slog.Logger) *CatalogSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogSearcher{db: db, index: ix, logger: logger}
}

// Search syncs the catalog and runs the query.
func (s *CatalogSearcher) Search(query string) ([]models.Summary, error) {
	entries, err := s.index.Entries()
	if err != nil {
		return nil, err
	}
	stats, err := catalog.Sync(s.db, entries, s.logger)
	if err != nil {
		return nil, fmt.Errorf("catalog sync: %w", err)
	}
	if stats.Upserted > 0 || stats.Deleted > 0 {
		s.logger.Debug("catalog: synced",
			slog.Int("upserted", stats.Upserted),
			slog.Int("deleted", stats.Deleted))
	}
	out, err := s.db.Search(query)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Summary{}
	}
	return out, nil
}

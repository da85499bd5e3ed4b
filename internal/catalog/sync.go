package catalog

import (
	"log/slog"

	"github.com/starford/axanet/internal/checksum"
	"github.com/starford/axanet/internal/models"
)

// SyncStats reports what a Sync changed.
type SyncStats struct {
	Upserted int
	Deleted  int
}

// Sync brings the catalog up to date with summaries:
//   - new/changed summaries are upserted
//   - rows whose id is no longer present are deleted
func Sync(db *DB, summaries []models.Summary, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats

	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	current := make(map[string]struct{}, len(summaries))
	for _, s := range summaries {
		current[s.ID] = struct{}{}

		cs, err := checksum.JSON(s)
		if err != nil {
			return stats, err
		}
		if checksums[s.ID] == cs {
			continue
		}
		if err := db.Upsert(Row{Summary: s, Checksum: cs}); err != nil {
			return stats, err
		}
		stats.Upserted++
		logger.Debug("catalog: synced", slog.String("id", s.ID))
	}

	// Remove stale rows.
	for id := range checksums {
		if _, ok := current[id]; ok {
			continue
		}
		if err := db.Delete(id); err != nil {
			return stats, err
		}
		stats.Deleted++
		logger.Debug("catalog: removed stale", slog.String("id", id))
	}

	return stats, nil
}

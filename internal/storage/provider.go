// Package storage persists client records, one JSON file per client.
package storage

import (
	"iter"

	"github.com/starford/axanet/internal/models"
)

// Store is the record store. It is the source of truth: the index is derived
// from it and can always be rebuilt by scanning All.
type Store interface {
	// Write serializes the full record, replacing any previous version.
	Write(c *models.Client) error
	// Read returns the record for id, or an apperr.ErrNotFound error.
	Read(id string) (*models.Client, error)
	// Delete removes the record for id, or returns apperr.ErrNotFound.
	Delete(id string) error
	// Exists reports whether a record file exists for id.
	Exists(id string) (bool, error)
	// All scans every record. Each call rescans the directory. A record that
	// cannot be read is yielded as (nil, err) and the scan continues.
	All() iter.Seq2[*models.Client, error]
}

// Verify *FS satisfies Store at compile time.
var _ Store = (*FS)(nil)

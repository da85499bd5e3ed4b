package catalog

import (
	"fmt"
	"strings"

	"github.com/starford/axanet/internal/models"
)

// Row is one catalog row.
type Row struct {
	Summary  models.Summary
	Checksum string
}

// Upsert inserts or replaces a row.
func (db *DB) Upsert(r Row) error {
	s := r.Summary
	_, err := db.conn.Exec(`
		INSERT INTO clients (id, name, service, notes, name_fold, service_fold, notes_fold, checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name         = excluded.name,
			service      = excluded.service,
			notes        = excluded.notes,
			name_fold    = excluded.name_fold,
			service_fold = excluded.service_fold,
			notes_fold   = excluded.notes_fold,
			checksum     = excluded.checksum,
			created_at   = excluded.created_at,
			updated_at   = excluded.updated_at
	`, s.ID, s.Name, s.Service, s.Notes,
		strings.ToLower(s.Name), strings.ToLower(s.Service), strings.ToLower(s.Notes),
		r.Checksum, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert %s: %w", s.ID, err)
	}
	return nil
}

// Delete removes the row for id. Deleting a missing row is not an error.
func (db *DB) Delete(id string) error {
	if _, err := db.conn.Exec(`DELETE FROM clients WHERE id = ?`, id); err != nil {
		return fmt.Errorf("catalog: delete %s: %w", id, err)
	}
	return nil
}

// AllChecksums returns id → checksum for every row.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM clients`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// Search returns the rows whose name, service or notes contain query,
// compared case-insensitively, ordered by folded name then id.
func (db *DB) Search(query string) ([]models.Summary, error) {
	q := strings.ToLower(query)
	rows, err := db.conn.Query(`
		SELECT id, name, service, notes, created_at, updated_at
		FROM clients
		WHERE instr(name_fold, ?) > 0 OR instr(service_fold, ?) > 0 OR instr(notes_fold, ?) > 0
		ORDER BY name_fold, id
	`, q, q, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: search: %w", err)
	}
	defer rows.Close()

	var out []models.Summary
	for rows.Next() {
		var s models.Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Service, &s.Notes, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

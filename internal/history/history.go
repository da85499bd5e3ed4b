// Package history maintains the append-only action log embedded in each
// client record.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/axanet/internal/models"
)

// Append adds one entry to c's history. The entry's timestamp is now, pushed
// forward by a nanosecond when it would not be strictly after the previous
// entry. Existing entries are never touched.
func Append(c *models.Client, kind models.Action, payload any, now time.Time) (models.HistoryEntry, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return models.HistoryEntry{}, fmt.Errorf("history: encode %s payload: %w", kind, err)
		}
		raw = data
	}

	ts := now
	if n := len(c.History); n > 0 {
		if last := c.History[n-1].Timestamp; !ts.After(last) {
			ts = last.Add(time.Nanosecond)
		}
	}

	e := models.HistoryEntry{
		Seq:       len(c.History) + 1,
		Kind:      kind,
		Timestamp: ts,
		Payload:   raw,
	}
	c.History = append(c.History, e)
	return e, nil
}

// Diff returns the changed fields between two snapshots, keyed by field name.
// An empty map means nothing changed.
func Diff(before, after models.Snapshot) map[string]models.Change {
	out := make(map[string]models.Change)
	if before.Name != after.Name {
		out["name"] = models.Change{From: before.Name, To: after.Name}
	}
	if before.Service != after.Service {
		out["service"] = models.Change{From: before.Service, To: after.Service}
	}
	if before.Notes != after.Notes {
		out["notes"] = models.Change{From: before.Notes, To: after.Notes}
	}
	return out
}

// Summary is the digest of one record's history.
type Summary struct {
	Counts      map[models.Action]int `json:"counts"`
	Recent      []models.HistoryEntry `json:"recent"`
	Total       int                   `json:"total"`
	LastTouched time.Time             `json:"lastTouched"`
}

// Summarize counts entries per kind and returns the last n entries, oldest
// first. n <= 0 returns no recent entries.
func Summarize(c *models.Client, n int) Summary {
	s := Summary{
		Counts:      make(map[models.Action]int, len(models.Actions)),
		Total:       len(c.History),
		LastTouched: c.LastTouched(),
	}
	for _, e := range c.History {
		s.Counts[e.Kind]++
	}
	if n > 0 {
		start := max(len(c.History)-n, 0)
		s.Recent = append([]models.HistoryEntry(nil), c.History[start:]...)
	}
	return s
}

// Verify checks the append-only invariants: sequence numbers are 1..n in
// order and timestamps strictly increase.
func Verify(c *models.Client) error {
	for i, e := range c.History {
		if e.Seq != i+1 {
			return fmt.Errorf("history: entry %d has seq %d", i, e.Seq)
		}
		if i > 0 && !e.Timestamp.After(c.History[i-1].Timestamp) {
			return fmt.Errorf("history: entry %d is not after entry %d", e.Seq, i)
		}
	}
	return nil
}

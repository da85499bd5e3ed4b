package manager

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/starford/axanet/internal/history"
	"github.com/starford/axanet/internal/models"
	"github.com/starford/axanet/internal/storage"
)

// Touch is a summary with the time and kind of its newest history entry.
type Touch struct {
	models.Summary
	LastTouched time.Time     `json:"lastTouched"`
	LastAction  models.Action `json:"lastAction,omitempty"`
}

// Stats aggregates the whole store.
type Stats struct {
	Total       int                   `json:"total"`
	Actions     map[models.Action]int `json:"actions"`
	MostRecent  *Touch                `json:"mostRecent,omitempty"`
	LeastRecent *Touch                `json:"leastRecent,omitempty"`
	Recent      []Touch               `json:"recent"`
	Skipped     int                   `json:"skipped,omitempty"`
}

// Stats scans every record. Total is the index size; per-action counts and
// recency come from the records themselves. Unreadable records are counted
// in Skipped. recent limits Recent; recent <= 0 leaves it empty.
func (m *Manager) Stats(_ context.Context, recent int) (*Stats, error) {
	total, err := m.index.Len()
	if err != nil {
		return nil, fmt.Errorf("manager: stats: %w", err)
	}

	st := &Stats{
		Total:   total,
		Actions: make(map[models.Action]int, len(models.Actions)),
		Recent:  []Touch{},
	}
	for _, a := range models.Actions {
		st.Actions[a] = 0
	}

	var touches []Touch
	for c, err := range m.store.All() {
		if err != nil {
			if errors.Is(err, storage.ErrList) {
				return nil, fmt.Errorf("manager: stats: %w", err)
			}
			st.Skipped++
			m.logger.Warn("stats: skipping record", slog.String("error", err.Error()))
			continue
		}
		sum := history.Summarize(c, 1)
		for kind, n := range sum.Counts {
			st.Actions[kind] += n
		}
		t := Touch{Summary: c.Summary(), LastTouched: sum.LastTouched}
		if len(sum.Recent) > 0 {
			t.LastAction = sum.Recent[0].Kind
		}
		touches = append(touches, t)
	}
	if len(touches) == 0 {
		return st, nil
	}

	// Newest first; ties broken by identifier so output is stable.
	slices.SortFunc(touches, func(a, b Touch) int {
		return cmp.Or(b.LastTouched.Compare(a.LastTouched), cmp.Compare(a.ID, b.ID))
	})
	most, least := touches[0], touches[len(touches)-1]
	st.MostRecent, st.LeastRecent = &most, &least
	if recent > 0 {
		st.Recent = touches[:min(recent, len(touches))]
	}
	return st, nil
}

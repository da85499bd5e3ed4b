package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/starford/axanet/internal/history"
	"github.com/starford/axanet/internal/index"
	"github.com/starford/axanet/internal/manager"
	"github.com/starford/axanet/internal/models"
)

const timeLayout = "2006-01-02 15:04"

// output renders command results as human-readable text or JSON.
type output struct {
	w    io.Writer
	json bool
}

// StatusResponse is the JSON shape of plain messages.
type StatusResponse struct {
	Status string `json:"status"`
}

// ConsultResponse is the JSON shape of the consult command.
type ConsultResponse struct {
	Client  *models.Client  `json:"client"`
	Summary history.Summary `json:"summary"`
}

// RebuildResponse is the JSON shape of the rebuild command.
type RebuildResponse struct {
	Records    int   `json:"records"`
	Skipped    int   `json:"skipped"`
	DurationMS int64 `json:"durationMs"`
}

// writeJSON writes v as indented JSON.
func (o *output) writeJSON(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *output) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}

// when formats t as a timestamp plus a relative age.
func when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format(timeLayout), humanize.Time(t))
}

func (o *output) message(msg string) error {
	if o.json {
		return o.writeJSON(StatusResponse{Status: msg})
	}
	o.printf("%s\n", msg)
	return nil
}

func (o *output) created(c *models.Client) error {
	if o.json {
		return o.writeJSON(c)
	}
	o.printf("Client created: %s (%s)\n", c.Name, c.ID)
	return nil
}

func (o *output) updated(res *manager.UpdateResult) error {
	if o.json {
		return o.writeJSON(res)
	}
	if len(res.Changes) == 0 {
		o.printf("No changes for %s.\n", res.Client.Name)
		return nil
	}
	o.printf("Client updated: %s (%s)\n", res.Client.Name, res.Client.ID)
	fields := make([]string, 0, len(res.Changes))
	for f := range res.Changes {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	for _, f := range fields {
		ch := res.Changes[f]
		o.printf("  %s: %q -> %q\n", f, ch.From, ch.To)
	}
	return nil
}

func (o *output) consulted(c *models.Client, n int) error {
	sum := history.Summarize(c, n)
	if o.json {
		return o.writeJSON(ConsultResponse{Client: c, Summary: sum})
	}

	o.printf("%s (%s)\n", c.Name, c.ID)
	o.printf("  Service:  %s\n", c.Service)
	if c.Notes != "" {
		o.printf("  Notes:    %s\n", c.Notes)
	}
	o.printf("  Created:  %s\n", when(c.CreatedAt))
	o.printf("  Updated:  %s\n", when(c.UpdatedAt))

	counts := make([]string, 0, len(models.Actions))
	for _, a := range models.Actions {
		if k := sum.Counts[a]; k > 0 {
			counts = append(counts, fmt.Sprintf("%s %d", a, k))
		}
	}
	o.printf("History: %d entries (%s)\n", sum.Total, strings.Join(counts, ", "))
	for _, e := range sum.Recent {
		o.printf("  #%-4d %-10s %s\n", e.Seq, e.Kind, when(e.Timestamp))
	}
	return nil
}

func (o *output) summaries(list []models.Summary, empty string) error {
	if o.json {
		return o.writeJSON(list)
	}
	if len(list) == 0 {
		o.printf("%s\n", empty)
		return nil
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSERVICE\tUPDATED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Service, humanize.Time(s.UpdatedAt))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	noun := "clients"
	if len(list) == 1 {
		noun = "client"
	}
	o.printf("%s %s\n", humanize.Comma(int64(len(list))), noun)
	return nil
}

func (o *output) deleted(s models.Summary) error {
	if o.json {
		return o.writeJSON(s)
	}
	o.printf("Client deleted: %s (%s)\n", s.Name, s.ID)
	return nil
}

func (o *output) stats(st *manager.Stats) error {
	if o.json {
		return o.writeJSON(st)
	}
	o.printf("Clients: %s\n", humanize.Comma(int64(st.Total)))
	parts := make([]string, 0, len(models.Actions))
	for _, a := range models.Actions {
		parts = append(parts, fmt.Sprintf("%s %s", a, humanize.Comma(int64(st.Actions[a]))))
	}
	o.printf("Actions: %s\n", strings.Join(parts, ", "))
	if st.MostRecent != nil {
		o.printf("Most recent:  %s (%s) %s\n", st.MostRecent.Name, st.MostRecent.LastAction, when(st.MostRecent.LastTouched))
	}
	if st.LeastRecent != nil {
		o.printf("Least recent: %s (%s) %s\n", st.LeastRecent.Name, st.LeastRecent.LastAction, when(st.LeastRecent.LastTouched))
	}
	if len(st.Recent) > 0 {
		o.printf("Recently touched:\n")
		for _, t := range st.Recent {
			o.printf("  %-24s %-10s %s\n", t.Name, t.LastAction, humanize.Time(t.LastTouched))
		}
	}
	if st.Skipped > 0 {
		o.printf("Skipped %d unreadable records.\n", st.Skipped)
	}
	return nil
}

func (o *output) rebuilt(stats index.RebuildStats) error {
	if o.json {
		return o.writeJSON(RebuildResponse{
			Records:    stats.Records,
			Skipped:    stats.Skipped,
			DurationMS: stats.Duration.Milliseconds(),
		})
	}
	o.printf("Index rebuilt: %s records, %d skipped (%s)\n",
		humanize.Comma(int64(stats.Records)), stats.Skipped, stats.Duration.Round(time.Millisecond))
	return nil
}

// Package models defines the domain types for axanet.
package models

import (
	"encoding/json"
	"time"
)

// Action is the kind of a history entry.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionConsulted Action = "consulted"
	ActionDeleted   Action = "deleted"
)

// Actions lists every action kind in display order.
var Actions = []Action{ActionCreated, ActionUpdated, ActionConsulted, ActionDeleted}

// Client is one persisted client record. It is the source of truth; the
// index only caches its summary fields.
type Client struct {
	ID        string         `json:"identifier"`
	Name      string         `json:"name"`
	Service   string         `json:"service"`
	Notes     string         `json:"notes"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	History   []HistoryEntry `json:"history"`
}

// HistoryEntry is one immutable action in a record's history.
type HistoryEntry struct {
	Seq       int             `json:"seq"`
	Kind      Action          `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Snapshot is the payload of a "created" entry.
type Snapshot struct {
	Name    string `json:"name"`
	Service string `json:"service"`
	Notes   string `json:"notes"`
}

// Change is one field transition inside an "updated" payload.
type Change struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Summary is the denormalized view of a record kept in the index.
type Summary struct {
	ID        string    `json:"identifier"`
	Name      string    `json:"name"`
	Service   string    `json:"service"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary returns the index view of c.
func (c *Client) Summary() Summary {
	return Summary{
		ID:        c.ID,
		Name:      c.Name,
		Service:   c.Service,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// LastTouched returns the timestamp of the newest history entry, falling
// back to UpdatedAt for records without history.
func (c *Client) LastTouched() time.Time {
	if n := len(c.History); n > 0 {
		return c.History[n-1].Timestamp
	}
	return c.UpdatedAt
}

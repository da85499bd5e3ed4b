// Package events delivers post-mutation notifications from the manager to
// hooks such as the git committer. Delivery is synchronous, in subscription
// order, on the caller's goroutine.
package events

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/axanet/internal/models"
)

// Event describes one successful mutation.
type Event struct {
	ID       string        `json:"id"`
	Kind     models.Action `json:"kind"`
	ClientID string        `json:"clientId"`
	Name     string        `json:"name"`
	At       time.Time     `json:"at"`
}

// New returns an Event with a fresh time-ordered ID.
func New(kind models.Action, clientID, name string, at time.Time) Event {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Event{ID: id.String(), Kind: kind, ClientID: clientID, Name: name, At: at}
}

// Handler receives events. A returned error is reported by Publish but does
// not stop delivery to the remaining handlers.
type Handler func(Event) error

type subscription struct {
	id      string
	handler Handler
}

// Notifier fans events out to subscribers.
type Notifier struct {
	mu   sync.RWMutex
	subs []subscription
}

// NewNotifier creates a notifier with no subscribers.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers handler under id, replacing any handler with that id.
func (n *Notifier) Subscribe(id string, handler Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = slices.DeleteFunc(n.subs, func(s subscription) bool { return s.id == id })
	n.subs = append(n.subs, subscription{id: id, handler: handler})
}

// Unsubscribe removes the handler registered under id.
func (n *Notifier) Unsubscribe(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = slices.DeleteFunc(n.subs, func(s subscription) bool { return s.id == id })
}

// Len returns the number of subscribers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// Publish delivers ev to every subscriber and returns the handler errors
// keyed by subscriber id. A nil Notifier drops events.
func (n *Notifier) Publish(ev Event) map[string]error {
	if n == nil {
		return nil
	}
	n.mu.RLock()
	subs := slices.Clone(n.subs)
	n.mu.RUnlock()

	var errs map[string]error
	for _, s := range subs {
		if err := s.handler(ev); err != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[s.id] = err
		}
	}
	return errs
}

// Package reconcile owns the set of alerts currently in effect for one region
// and turns each new snapshot into enter, update and exit transitions.
package reconcile

import (
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/inmet-alerts/internal/domain"
	"github.com/google/uuid"
)

// Engine holds the active alert set for a single region. It is safe for
// concurrent use: Reconcile calls are serialized and Snapshot never observes a
// half-applied reconciliation.
type Engine struct {
	region string
	newID  func() string

	mu     sync.RWMutex
	active map[string]domain.AlertRecord
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator replaces the UUID generator used for event IDs.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// New creates an Engine with an empty active set.
func New(region string, opts ...Option) *Engine {
	e := &Engine{
		region: region,
		newID:  func() string { return uuid.NewString() },
		active: make(map[string]domain.AlertRecord),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Region returns the region code the engine was created for.
func (e *Engine) Region() string { return e.region }

// Reconcile applies snapshot, the full resolved alert list of one successful
// poll, to the active set and returns the resulting transitions.
//
// Snapshot keys must be unique (see domain.Resolve); a later duplicate
// replaces an earlier one. Semantics:
//   - active alerts missing from the snapshot exit: ExitExpired when their end
//     date is at or before now, ExitWithdrawn otherwise;
//   - snapshot alerts not yet active enter;
//   - alerts in both are updated only when the record changed by value.
//
// An alert present in the snapshot never exits, even if its end date has
// passed. Events are ordered exits, enters, updates, each sorted by key, so an
// exit for a key always precedes any enter for it.
func (e *Engine) Reconcile(snapshot []domain.AlertRecord, now time.Time) []domain.TransitionEvent {
	incoming := make(map[string]domain.AlertRecord, len(snapshot))
	for _, r := range snapshot {
		incoming[r.IdentityKey] = r
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var exits, enters, updates []domain.TransitionEvent

	for _, key := range sortedKeys(e.active) {
		if _, ok := incoming[key]; ok {
			continue
		}
		old := e.active[key]
		reason := domain.ExitWithdrawn
		if old.EndedBy(now) {
			reason = domain.ExitExpired
		}
		exits = append(exits, e.event(domain.Exited, key, &old, nil, reason, now))
		delete(e.active, key)
	}

	for _, key := range sortedKeys(incoming) {
		next := incoming[key].Clone()
		old, ok := e.active[key]
		switch {
		case !ok:
			enters = append(enters, e.event(domain.Entered, key, nil, &next, "", now))
		case !old.Equal(next):
			updates = append(updates, e.event(domain.Updated, key, &old, &next, "", now))
		default:
			continue
		}
		e.active[key] = next
	}

	events := make([]domain.TransitionEvent, 0, len(exits)+len(enters)+len(updates))
	events = append(events, exits...)
	events = append(events, enters...)
	return append(events, updates...)
}

// Snapshot returns a copy of the active set sorted by identity key.
func (e *Engine) Snapshot() []domain.AlertRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]domain.AlertRecord, 0, len(e.active))
	for _, key := range sortedKeys(e.active) {
		out = append(out, e.active[key].Clone())
	}
	return out
}

// Get returns a copy of the active record for key.
func (e *Engine) Get(key string) (domain.AlertRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.active[key]
	if !ok {
		return domain.AlertRecord{}, false
	}
	return r.Clone(), true
}

// Len returns the number of active alerts.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.active)
}

// event builds a transition. Records are cloned so consumers cannot reach the
// engine's own copies.
func (e *Engine) event(kind domain.TransitionKind, key string, old, next *domain.AlertRecord, reason domain.ExitReason, now time.Time) domain.TransitionEvent {
	ev := domain.TransitionEvent{
		ID:     e.newID(),
		Kind:   kind,
		Key:    key,
		Region: e.region,
		Reason: reason,
		At:     now,
	}
	if old != nil {
		c := old.Clone()
		ev.Old = &c
	}
	if next != nil {
		c := next.Clone()
		ev.New = &c
	}
	return ev
}

func sortedKeys(m map[string]domain.AlertRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Package commands tracks outstanding remote commands and relays their
// asynchronous results back to the party that requested them.
package commands

import (
	"encoding/json"
	"sync"
	"time"

	"ocpihub/internal/models"
)

// Table is the process-wide command correlation registry. All state
// transitions happen under its lock; SetResult is compare-and-swap on
// "result absent", which is what guarantees at-most-one forwarding attempt
// per command.
type Table struct {
	mu    sync.Mutex
	recs  map[string]*models.Command
	clock func() time.Time
}

func NewTable() *Table { return NewTableWithClock(time.Now) }

func NewTableWithClock(clock func() time.Time) *Table {
	return &Table{recs: make(map[string]*models.Command), clock: clock}
}

// Register records a freshly issued command. Upstream is non-nil only when
// the command was relayed from a further upstream party and its result must
// be forwarded back. Re-registering an id keeps the original record.
func (t *Table) Register(id string, kind models.CommandKind, payload json.RawMessage, upstream *models.UpstreamRef) models.Command {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.recs[id]; ok {
		return *rec
	}
	rec := &models.Command{
		ID:       id,
		Kind:     kind,
		State:    models.CommandIssued,
		Payload:  payload,
		Created:  t.clock().UTC(),
		Upstream: upstream,
	}
	t.recs[id] = rec
	return *rec
}

func (t *Table) TryGet(id string) (models.Command, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.recs[id]
	if !ok {
		return models.Command{}, false
	}
	return *rec, true
}

// SetResult stores a command result. Returns the record, whether this call
// was the first to deliver a result, and whether the id is known at all.
// Duplicate deliveries are accepted (idempotent re-delivery) but first stays
// false so the caller never forwards twice.
func (t *Table) SetResult(id string, result json.RawMessage) (models.Command, bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.recs[id]
	if !ok {
		return models.Command{}, false, false
	}
	if rec.Result != nil {
		return *rec, false, true
	}
	now := t.clock().UTC()
	rec.Result = result
	rec.ResultAt = &now
	rec.State = models.CommandResultReceived
	return *rec, true, true
}

// MarkForwarded transitions a command to its terminal forwarded state.
func (t *Table) MarkForwarded(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.recs[id]; ok {
		rec.State = models.CommandForwarded
	}
}

// Sweep drops records created before the cutoff. Records that never saw a
// result are expired rather than silently forgotten; returns how many were
// removed and how many of those expired.
func (t *Table) Sweep(cutoff time.Time) (removed, expired int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, rec := range t.recs {
		if !rec.Created.Before(cutoff) {
			continue
		}
		if rec.Result == nil {
			rec.State = models.CommandExpired
			expired++
		}
		delete(t.recs, id)
		removed++
	}
	return removed, expired
}

// Len reports the number of tracked commands.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.recs)
}

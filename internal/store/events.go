package store

import (
	"ocpihub/internal/models"
)

// Action describes what an accepted mutation did.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionRemoved Action = "removed"
)

// Event is delivered to every subscriber after an accepted mutation has
// become visible. Resource is nil for removals.
type Event struct {
	Action   Action
	Key      models.SyncKey
	Meta     Meta
	Resource models.Syncable
}

// Observer receives store events. Observers must not block: they run on the
// writer's goroutine, after the shard lock has been released.
type Observer func(Event)

// Subscribe registers an observer. Must be called during wiring, before the
// store is shared between goroutines.
func (s *Store) Subscribe(fn Observer) {
	s.subs = append(s.subs, fn)
}

func (s *Store) publish(ev Event) {
	for _, fn := range s.subs {
		fn(ev)
	}
}

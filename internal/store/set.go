package store

import (
	"encoding/json"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ocpihub/internal/etag"
	"ocpihub/internal/models"
)

// Meta is the server-assigned version metadata of a stored resource,
// surfaced to callers as Last-Modified/ETag response headers.
type Meta struct {
	LastUpdated time.Time
	ETag        string
}

// WriteResult reports an accepted mutation.
type WriteResult struct {
	Resource models.Syncable
	Meta     Meta
	Created  bool
}

// Item is one listed resource with its metadata.
type Item struct {
	Resource models.Syncable
	Meta     Meta
	seq      uint64
}

const setShards = 16

type entry struct {
	res  models.Syncable
	meta Meta
	seq  uint64
}

type shard struct {
	mu    sync.RWMutex
	items map[models.SyncKey]*entry
}

// set holds one resource kind. Keys hash to shards so writers to different
// keys rarely contend; all read-modify-write paths run inside one shard
// critical section, so a reader never observes a partially applied write.
type set struct {
	shards [setShards]shard
	seq    atomic.Uint64
	clock  func() time.Time
	notify func(Event)
}

func newSet(clock func() time.Time, notify func(Event)) *set {
	s := &set{clock: clock, notify: notify}
	for i := range s.shards {
		s.shards[i].items = make(map[models.SyncKey]*entry)
	}
	return s
}

func (s *set) shardFor(k models.SyncKey) *shard {
	h := fnv.New32a()
	h.Write([]byte(k.Party.CountryCode))
	h.Write([]byte{0})
	h.Write([]byte(k.Party.PartyID))
	h.Write([]byte{0})
	h.Write([]byte(k.ID))
	return &s.shards[h.Sum32()%setShards]
}

func (s *set) get(k models.SyncKey) (models.Syncable, Meta, bool) {
	sh := s.shardFor(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.items[k]
	if !ok {
		return nil, Meta{}, false
	}
	return e.res, e.meta, true
}

// put replaces the stored value subject to the versioning policy.
func (s *set) put(res models.Syncable, allowDowngrade bool) (WriteResult, error) {
	return s.commit(res.SyncKey(), func(models.Syncable) (models.Syncable, error) {
		return res, nil
	}, allowDowngrade)
}

// create stores a resource that must not exist yet (CDR semantics).
func (s *set) create(res models.Syncable) (WriteResult, error) {
	k := res.SyncKey()
	return s.commit(k, func(cur models.Syncable) (models.Syncable, error) {
		if cur != nil {
			return nil, structural("%s %s already exists", k.Kind, k.ID)
		}
		return res, nil
	}, false)
}

// mutate runs fn on the current value and commits its result, all inside
// one shard critical section; the resource must exist.
func (s *set) mutate(k models.SyncKey, fn func(cur models.Syncable) (models.Syncable, error), allowDowngrade bool) (WriteResult, error) {
	return s.commit(k, func(cur models.Syncable) (models.Syncable, error) {
		if cur == nil {
			return nil, ErrNotFound
		}
		return fn(cur)
	}, allowDowngrade)
}

func (s *set) commit(k models.SyncKey, fn func(cur models.Syncable) (models.Syncable, error), allowDowngrade bool) (WriteResult, error) {
	sh := s.shardFor(k)
	sh.mu.Lock()

	var cur models.Syncable
	prev := sh.items[k]
	if prev != nil {
		cur = prev.res
	}
	next, err := fn(cur)
	if err != nil {
		sh.mu.Unlock()
		return WriteResult{}, err
	}
	if next.SyncKey() != k {
		sh.mu.Unlock()
		return WriteResult{}, structural("%s %s: write must not change the resource key", k.Kind, k.ID)
	}
	if next.Version().IsZero() {
		next = next.Stamp(s.clock().UTC())
	}
	if !ShouldAccept(cur, next, allowDowngrade) {
		sh.mu.Unlock()
		return WriteResult{}, &ConflictError{Key: k, Current: cur}
	}

	body, err := json.Marshal(next)
	if err != nil {
		sh.mu.Unlock()
		return WriteResult{}, err
	}
	e := &entry{
		res:  next,
		meta: Meta{LastUpdated: next.Version(), ETag: etag.Fingerprint(body)},
	}
	if prev != nil {
		e.seq = prev.seq
	} else {
		e.seq = s.seq.Add(1)
	}
	sh.items[k] = e
	created := prev == nil
	sh.mu.Unlock()

	res := WriteResult{Resource: next, Meta: e.meta, Created: created}
	if s.notify != nil {
		action := ActionUpdated
		if created {
			action = ActionCreated
		}
		s.notify(Event{Action: action, Key: k, Meta: e.meta, Resource: next})
	}
	return res, nil
}

// remove deletes unconditionally; removing an absent key is a no-op.
func (s *set) remove(k models.SyncKey) {
	sh := s.shardFor(k)
	sh.mu.Lock()
	_, existed := sh.items[k]
	delete(sh.items, k)
	sh.mu.Unlock()
	if existed && s.notify != nil {
		s.notify(Event{Action: ActionRemoved, Key: k})
	}
}

// removeOwned deletes every resource owned by the party.
func (s *set) removeOwned(owner models.PartyRef) {
	var removed []models.SyncKey
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k := range sh.items {
			if k.Party == owner {
				delete(sh.items, k)
				removed = append(removed, k)
			}
		}
		sh.mu.Unlock()
	}
	if s.notify != nil {
		for _, k := range removed {
			s.notify(Event{Action: ActionRemoved, Key: k})
		}
	}
}

// list returns all resources in insertion order, optionally narrowed to one
// owning party.
func (s *set) list(owner *models.PartyRef) []Item {
	var out []Item
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for k, e := range sh.items {
			if owner != nil && k.Party != *owner {
				continue
			}
			out = append(out, Item{Resource: e.res, Meta: e.meta, seq: e.seq})
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

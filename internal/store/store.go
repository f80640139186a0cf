// Package store holds the authoritative copy of every synchronized
// resource. Writes pass the versioning policy before they replace the
// stored value; accepted writes recompute the version metadata and are
// immediately visible to every reader.
package store

import (
	"encoding/json"
	"time"

	"ocpihub/internal/models"
	"ocpihub/internal/patch"
)

type Store struct {
	clock func() time.Time
	subs  []Observer

	locations  *set
	evses      *set
	connectors *set
	tariffs    *set
	sessions   *set
	cdrs       *set
	tokens     *set
}

func New() *Store { return NewWithClock(time.Now) }

// NewWithClock injects the write-timestamp source; tests pin it.
func NewWithClock(clock func() time.Time) *Store {
	s := &Store{clock: clock}
	for _, p := range []**set{&s.locations, &s.evses, &s.connectors, &s.tariffs, &s.sessions, &s.cdrs, &s.tokens} {
		*p = newSet(clock, s.publish)
	}
	return s
}

func locationKey(p models.PartyRef, id string) models.SyncKey {
	return models.SyncKey{Party: p, Kind: models.KindLocation, ID: id}
}

func evseKey(p models.PartyRef, locationID, uid string) models.SyncKey {
	return models.SyncKey{Party: p, Kind: models.KindEVSE, ID: locationID + "/" + uid}
}

func connectorKey(p models.PartyRef, locationID, evseUID, id string) models.SyncKey {
	return models.SyncKey{Party: p, Kind: models.KindConnector, ID: locationID + "/" + evseUID + "/" + id}
}

// --- Locations ---

func (s *Store) GetLocation(p models.PartyRef, id string) (models.Location, Meta, error) {
	res, meta, ok := s.locations.get(locationKey(p, id))
	if !ok {
		return models.Location{}, Meta{}, ErrNotFound
	}
	return res.(models.Location), meta, nil
}

func (s *Store) AddOrUpdateLocation(l models.Location, allowDowngrade bool) (WriteResult, error) {
	return s.locations.put(l, allowDowngrade)
}

func (s *Store) TryPatchLocation(p models.PartyRef, id string, doc json.RawMessage, allowDowngrade bool) (WriteResult, error) {
	return s.locations.mutate(locationKey(p, id), func(cur models.Syncable) (models.Syncable, error) {
		return mergePatched(cur.(models.Location), doc, s.clock, nil)
	}, allowDowngrade)
}

func (s *Store) ListLocations(owner *models.PartyRef) []Item { return s.locations.list(owner) }

func (s *Store) RemoveLocation(p models.PartyRef, id string) { s.locations.remove(locationKey(p, id)) }

func (s *Store) RemoveAllLocations(owner models.PartyRef) { s.locations.removeOwned(owner) }

// --- EVSEs ---

func (s *Store) GetEVSE(p models.PartyRef, locationID, uid string) (models.EVSE, Meta, error) {
	res, meta, ok := s.evses.get(evseKey(p, locationID, uid))
	if !ok {
		return models.EVSE{}, Meta{}, ErrNotFound
	}
	return res.(models.EVSE), meta, nil
}

// AddOrUpdateEVSE requires the owning location to exist already; a missing
// parent is a structural rejection, not a versioning one.
func (s *Store) AddOrUpdateEVSE(e models.EVSE, allowDowngrade bool) (WriteResult, error) {
	if _, _, ok := s.locations.get(locationKey(models.PartyRef{CountryCode: e.CountryCode, PartyID: e.PartyID}, e.LocationID)); !ok {
		return WriteResult{}, structural("location %s does not exist for evse %s", e.LocationID, e.UID)
	}
	return s.evses.put(e, allowDowngrade)
}

func (s *Store) TryPatchEVSE(p models.PartyRef, locationID, uid string, doc json.RawMessage, allowDowngrade bool) (WriteResult, error) {
	return s.evses.mutate(evseKey(p, locationID, uid), func(cur models.Syncable) (models.Syncable, error) {
		return mergePatched(cur.(models.EVSE), doc, s.clock, func(out *models.EVSE) {
			out.CountryCode = p.CountryCode
			out.PartyID = p.PartyID
			out.LocationID = locationID
		})
	}, allowDowngrade)
}

func (s *Store) ListEVSEs(owner *models.PartyRef) []Item { return s.evses.list(owner) }

// --- Connectors ---

func (s *Store) GetConnector(p models.PartyRef, locationID, evseUID, id string) (models.Connector, Meta, error) {
	res, meta, ok := s.connectors.get(connectorKey(p, locationID, evseUID, id))
	if !ok {
		return models.Connector{}, Meta{}, ErrNotFound
	}
	return res.(models.Connector), meta, nil
}

func (s *Store) AddOrUpdateConnector(c models.Connector, allowDowngrade bool) (WriteResult, error) {
	p := models.PartyRef{CountryCode: c.CountryCode, PartyID: c.PartyID}
	if _, _, ok := s.evses.get(evseKey(p, c.LocationID, c.EvseUID)); !ok {
		return WriteResult{}, structural("evse %s does not exist for connector %s", c.EvseUID, c.ID)
	}
	return s.connectors.put(c, allowDowngrade)
}

func (s *Store) TryPatchConnector(p models.PartyRef, locationID, evseUID, id string, doc json.RawMessage, allowDowngrade bool) (WriteResult, error) {
	return s.connectors.mutate(connectorKey(p, locationID, evseUID, id), func(cur models.Syncable) (models.Syncable, error) {
		return mergePatched(cur.(models.Connector), doc, s.clock, func(out *models.Connector) {
			out.CountryCode = p.CountryCode
			out.PartyID = p.PartyID
			out.LocationID = locationID
			out.EvseUID = evseUID
		})
	}, allowDowngrade)
}

// --- Tariffs ---

func (s *Store) GetTariff(p models.PartyRef, id string) (models.Tariff, Meta, error) {
	res, meta, ok := s.tariffs.get(models.SyncKey{Party: p, Kind: models.KindTariff, ID: id})
	if !ok {
		return models.Tariff{}, Meta{}, ErrNotFound
	}
	return res.(models.Tariff), meta, nil
}

func (s *Store) AddOrUpdateTariff(t models.Tariff, allowDowngrade bool) (WriteResult, error) {
	return s.tariffs.put(t, allowDowngrade)
}

func (s *Store) TryPatchTariff(p models.PartyRef, id string, doc json.RawMessage, allowDowngrade bool) (WriteResult, error) {
	return s.tariffs.mutate(models.SyncKey{Party: p, Kind: models.KindTariff, ID: id}, func(cur models.Syncable) (models.Syncable, error) {
		return mergePatched(cur.(models.Tariff), doc, s.clock, nil)
	}, allowDowngrade)
}

func (s *Store) ListTariffs(owner *models.PartyRef) []Item { return s.tariffs.list(owner) }

func (s *Store) RemoveTariff(p models.PartyRef, id string) {
	s.tariffs.remove(models.SyncKey{Party: p, Kind: models.KindTariff, ID: id})
}

func (s *Store) RemoveAllTariffs(owner models.PartyRef) { s.tariffs.removeOwned(owner) }

// --- Sessions ---

func (s *Store) GetSession(p models.PartyRef, id string) (models.Session, Meta, error) {
	res, meta, ok := s.sessions.get(models.SyncKey{Party: p, Kind: models.KindSession, ID: id})
	if !ok {
		return models.Session{}, Meta{}, ErrNotFound
	}
	return res.(models.Session), meta, nil
}

func (s *Store) AddOrUpdateSession(sess models.Session, allowDowngrade bool) (WriteResult, error) {
	return s.sessions.put(sess, allowDowngrade)
}

func (s *Store) TryPatchSession(p models.PartyRef, id string, doc json.RawMessage, allowDowngrade bool) (WriteResult, error) {
	return s.sessions.mutate(models.SyncKey{Party: p, Kind: models.KindSession, ID: id}, func(cur models.Syncable) (models.Syncable, error) {
		return mergePatched(cur.(models.Session), doc, s.clock, nil)
	}, allowDowngrade)
}

func (s *Store) ListSessions(owner *models.PartyRef) []Item { return s.sessions.list(owner) }

func (s *Store) RemoveSession(p models.PartyRef, id string) {
	s.sessions.remove(models.SyncKey{Party: p, Kind: models.KindSession, ID: id})
}

func (s *Store) RemoveAllSessions(owner models.PartyRef) { s.sessions.removeOwned(owner) }

// --- CDRs ---

// AddCDR is create-only: pushing the same billing record twice is a
// structural rejection.
func (s *Store) AddCDR(c models.CDR) (WriteResult, error) {
	return s.cdrs.create(c)
}

func (s *Store) GetCDR(p models.PartyRef, id string) (models.CDR, Meta, error) {
	res, meta, ok := s.cdrs.get(models.SyncKey{Party: p, Kind: models.KindCDR, ID: id})
	if !ok {
		return models.CDR{}, Meta{}, ErrNotFound
	}
	return res.(models.CDR), meta, nil
}

func (s *Store) ListCDRs(owner *models.PartyRef) []Item { return s.cdrs.list(owner) }

func (s *Store) RemoveCDR(p models.PartyRef, id string) {
	s.cdrs.remove(models.SyncKey{Party: p, Kind: models.KindCDR, ID: id})
}

func (s *Store) RemoveAllCDRs(owner models.PartyRef) { s.cdrs.removeOwned(owner) }

// --- Tokens ---

func (s *Store) TryGetToken(p models.PartyRef, uid string) (models.Token, Meta, error) {
	res, meta, ok := s.tokens.get(models.SyncKey{Party: p, Kind: models.KindToken, ID: uid})
	if !ok {
		return models.Token{}, Meta{}, ErrNotFound
	}
	return res.(models.Token), meta, nil
}

func (s *Store) AddOrUpdateToken(t models.Token, allowDowngrade bool) (WriteResult, error) {
	return s.tokens.put(t, allowDowngrade)
}

func (s *Store) TryPatchToken(p models.PartyRef, uid string, doc json.RawMessage, allowDowngrade bool) (WriteResult, error) {
	return s.tokens.mutate(models.SyncKey{Party: p, Kind: models.KindToken, ID: uid}, func(cur models.Syncable) (models.Syncable, error) {
		return mergePatched(cur.(models.Token), doc, s.clock, nil)
	}, allowDowngrade)
}

func (s *Store) ListTokens(owner *models.PartyRef) []Item { return s.tokens.list(owner) }

// mergePatched applies a merge-patch document to the current value and
// revalidates it: the result must unmarshal cleanly and must keep the
// resource key. When the patch does not carry last_updated the result is
// stamped with the current time so accepted patches always advance the
// version, same as full writes.
func mergePatched[T models.Syncable](cur T, doc json.RawMessage, clock func() time.Time, restore func(*T)) (models.Syncable, error) {
	body, err := json.Marshal(cur)
	if err != nil {
		return nil, err
	}
	merged, err := patch.Merge(body, doc)
	if err != nil {
		return nil, structural("%s", err.Error())
	}
	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		k := cur.SyncKey()
		return nil, structural("%s %s: patch produces an invalid resource: %v", k.Kind, k.ID, err)
	}
	if restore != nil {
		restore(&out)
	}
	if out.SyncKey() != cur.SyncKey() {
		k := cur.SyncKey()
		return nil, structural("%s %s: patch must not change identifiers", k.Kind, k.ID)
	}
	var next models.Syncable = out
	if !patch.Has(doc, "last_updated") {
		next = next.Stamp(clock().UTC())
	}
	return next, nil
}

// Page applies an already-parsed date-range/offset/limit filter to a listed
// collection.
func Page(items []Item, f models.PageFilter) []Item {
	filtered := items
	if f.From != nil || f.To != nil {
		filtered = nil
		for _, it := range items {
			if f.From != nil && it.Meta.LastUpdated.Before(*f.From) {
				continue
			}
			if f.To != nil && !it.Meta.LastUpdated.Before(*f.To) {
				continue
			}
			filtered = append(filtered, it)
		}
	}
	if f.Offset > 0 {
		if f.Offset >= len(filtered) {
			return nil
		}
		filtered = filtered[f.Offset:]
	}
	if f.Limit > 0 && len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}
	return filtered
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ocpihub/internal/models"
	"ocpihub/internal/store"
)

func urlParty(r *http.Request) models.PartyRef {
	return models.PartyRef{
		CountryCode: chi.URLParam(r, "countryCode"),
		PartyID:     chi.URLParam(r, "partyID"),
	}
}

func writeList(w http.ResponseWriter, items []store.Item, f models.PageFilter) {
	w.Header().Set("X-Total-Count", strconv.Itoa(len(items)))
	paged := store.Page(items, f)
	data := make([]any, 0, len(paged))
	for _, it := range paged {
		data = append(data, it.Resource)
	}
	writeSuccess(w, data)
}

func (s *Server) ListLocations(w http.ResponseWriter, r *http.Request) {
	writeList(w, s.Store.ListLocations(ownerFilter(r)), parsePageFilter(r))
}

func (s *Server) GetLocation(w http.ResponseWriter, r *http.Request) {
	loc, meta, err := s.Store.GetLocation(urlParty(r), chi.URLParam(r, "locationID"))
	if err != nil {
		s.writeStoreError(w, models.KindLocation, err)
		return
	}
	setVersionHeaders(w, meta)
	writeSuccess(w, loc)
}

func (s *Server) PutLocation(w http.ResponseWriter, r *http.Request) {
	p := urlParty(r)
	id := chi.URLParam(r, "locationID")

	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "invalid json body", nil)
		return
	}
	if loc.CountryCode == "" {
		loc.CountryCode = p.CountryCode
	}
	if loc.PartyID == "" {
		loc.PartyID = p.PartyID
	}
	if loc.ID == "" {
		loc.ID = id
	}
	if loc.CountryCode != p.CountryCode || loc.PartyID != p.PartyID || loc.ID != id {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "body identifiers do not match url", nil)
		return
	}

	res, err := s.Store.AddOrUpdateLocation(loc, s.allowDowngrade(r))
	if err != nil {
		s.writeStoreError(w, models.KindLocation, err)
		return
	}
	writeWrite(w, res)
}

func (s *Server) PatchLocation(w http.ResponseWriter, r *http.Request) {
	doc, err := readAll(r, 1<<20)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "bad body", nil)
		return
	}
	res, err := s.Store.TryPatchLocation(urlParty(r), chi.URLParam(r, "locationID"), doc, s.allowDowngrade(r))
	if err != nil {
		s.writeStoreError(w, models.KindLocation, err)
		return
	}
	writeWrite(w, res)
}

func (s *Server) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	s.Store.RemoveLocation(urlParty(r), chi.URLParam(r, "locationID"))
	writeSuccess(w, nil)
}

func (s *Server) GetEVSE(w http.ResponseWriter, r *http.Request) {
	e, meta, err := s.Store.GetEVSE(urlParty(r), chi.URLParam(r, "locationID"), chi.URLParam(r, "evseUID"))
	if err != nil {
		s.writeStoreError(w, models.KindEVSE, err)
		return
	}
	setVersionHeaders(w, meta)
	writeSuccess(w, e)
}

func (s *Server) PutEVSE(w http.ResponseWriter, r *http.Request) {
	p := urlParty(r)
	locationID := chi.URLParam(r, "locationID")
	uid := chi.URLParam(r, "evseUID")

	var e models.EVSE
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "invalid json body", nil)
		return
	}
	if e.UID == "" {
		e.UID = uid
	}
	if e.UID != uid {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "body identifiers do not match url", nil)
		return
	}
	e.CountryCode = p.CountryCode
	e.PartyID = p.PartyID
	e.LocationID = locationID

	res, err := s.Store.AddOrUpdateEVSE(e, s.allowDowngrade(r))
	if err != nil {
		s.writeStoreError(w, models.KindEVSE, err)
		return
	}
	writeWrite(w, res)
}

func (s *Server) PatchEVSE(w http.ResponseWriter, r *http.Request) {
	doc, err := readAll(r, 1<<20)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "bad body", nil)
		return
	}
	res, err := s.Store.TryPatchEVSE(urlParty(r), chi.URLParam(r, "locationID"), chi.URLParam(r, "evseUID"), doc, s.allowDowngrade(r))
	if err != nil {
		s.writeStoreError(w, models.KindEVSE, err)
		return
	}
	writeWrite(w, res)
}

func (s *Server) GetConnector(w http.ResponseWriter, r *http.Request) {
	c, meta, err := s.Store.GetConnector(urlParty(r), chi.URLParam(r, "locationID"), chi.URLParam(r, "evseUID"), chi.URLParam(r, "connectorID"))
	if err != nil {
		s.writeStoreError(w, models.KindConnector, err)
		return
	}
	setVersionHeaders(w, meta)
	writeSuccess(w, c)
}

func (s *Server) PutConnector(w http.ResponseWriter, r *http.Request) {
	p := urlParty(r)
	locationID := chi.URLParam(r, "locationID")
	evseUID := chi.URLParam(r, "evseUID")
	id := chi.URLParam(r, "connectorID")

	var c models.Connector
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "invalid json body", nil)
		return
	}
	if c.ID == "" {
		c.ID = id
	}
	if c.ID != id {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "body identifiers do not match url", nil)
		return
	}
	c.CountryCode = p.CountryCode
	c.PartyID = p.PartyID
	c.LocationID = locationID
	c.EvseUID = evseUID

	res, err := s.Store.AddOrUpdateConnector(c, s.allowDowngrade(r))
	if err != nil {
		s.writeStoreError(w, models.KindConnector, err)
		return
	}
	writeWrite(w, res)
}

func (s *Server) PatchConnector(w http.ResponseWriter, r *http.Request) {
	doc, err := readAll(r, 1<<20)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "bad body", nil)
		return
	}
	res, err := s.Store.TryPatchConnector(urlParty(r), chi.URLParam(r, "locationID"), chi.URLParam(r, "evseUID"), chi.URLParam(r, "connectorID"), doc, s.allowDowngrade(r))
	if err != nil {
		s.writeStoreError(w, models.KindConnector, err)
		return
	}
	writeWrite(w, res)
}

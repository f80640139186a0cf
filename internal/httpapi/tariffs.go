package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ocpihub/internal/models"
)

func (s *Server) ListTariffs(w http.ResponseWriter, r *http.Request) {
	writeList(w, s.Store.ListTariffs(ownerFilter(r)), parsePageFilter(r))
}

func (s *Server) GetTariff(w http.ResponseWriter, r *http.Request) {
	t, meta, err := s.Store.GetTariff(urlParty(r), chi.URLParam(r, "tariffID"))
	if err != nil {
		s.writeStoreError(w, models.KindTariff, err)
		return
	}
	setVersionHeaders(w, meta)
	writeSuccess(w, t)
}

func (s *Server) PutTariff(w http.ResponseWriter, r *http.Request) {
	p := urlParty(r)
	id := chi.URLParam(r, "tariffID")

	var t models.Tariff
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "invalid json body", nil)
		return
	}
	if t.CountryCode == "" {
		t.CountryCode = p.CountryCode
	}
	if t.PartyID == "" {
		t.PartyID = p.PartyID
	}
	if t.ID == "" {
		t.ID = id
	}
	if t.CountryCode != p.CountryCode || t.PartyID != p.PartyID || t.ID != id {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "body identifiers do not match url", nil)
		return
	}

	res, err := s.Store.AddOrUpdateTariff(t, s.allowDowngrade(r))
	if err != nil {
		s.writeStoreError(w, models.KindTariff, err)
		return
	}
	writeWrite(w, res)
}

func (s *Server) PatchTariff(w http.ResponseWriter, r *http.Request) {
	doc, err := readAll(r, 1<<20)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "bad body", nil)
		return
	}
	res, err := s.Store.TryPatchTariff(urlParty(r), chi.URLParam(r, "tariffID"), doc, s.allowDowngrade(r))
	if err != nil {
		s.writeStoreError(w, models.KindTariff, err)
		return
	}
	writeWrite(w, res)
}

func (s *Server) DeleteTariff(w http.ResponseWriter, r *http.Request) {
	s.Store.RemoveTariff(urlParty(r), chi.URLParam(r, "tariffID"))
	writeSuccess(w, nil)
}

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ocpihub/internal/models"
)

func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeList(w, s.Store.ListSessions(ownerFilter(r)), parsePageFilter(r))
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, meta, err := s.Store.GetSession(urlParty(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeStoreError(w, models.KindSession, err)
		return
	}
	setVersionHeaders(w, meta)
	writeSuccess(w, sess)
}

func (s *Server) PutSession(w http.ResponseWriter, r *http.Request) {
	p := urlParty(r)
	id := chi.URLParam(r, "sessionID")

	var sess models.Session
	if err := json.NewDecoder(r.Body).Decode(&sess); err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "invalid json body", nil)
		return
	}
	if sess.CountryCode == "" {
		sess.CountryCode = p.CountryCode
	}
	if sess.PartyID == "" {
		sess.PartyID = p.PartyID
	}
	if sess.ID == "" {
		sess.ID = id
	}
	if sess.CountryCode != p.CountryCode || sess.PartyID != p.PartyID || sess.ID != id {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "body identifiers do not match url", nil)
		return
	}

	res, err := s.Store.AddOrUpdateSession(sess, s.allowDowngrade(r))
	if err != nil {
		s.writeStoreError(w, models.KindSession, err)
		return
	}
	writeWrite(w, res)
}

func (s *Server) PatchSession(w http.ResponseWriter, r *http.Request) {
	doc, err := readAll(r, 1<<20)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "bad body", nil)
		return
	}
	res, err := s.Store.TryPatchSession(urlParty(r), chi.URLParam(r, "sessionID"), doc, s.allowDowngrade(r))
	if err != nil {
		s.writeStoreError(w, models.KindSession, err)
		return
	}
	writeWrite(w, res)
}

func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	s.Store.RemoveSession(urlParty(r), chi.URLParam(r, "sessionID"))
	writeSuccess(w, nil)
}

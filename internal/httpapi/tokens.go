package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ocpihub/internal/authz"
	"ocpihub/internal/models"
)

func (s *Server) GetToken(w http.ResponseWriter, r *http.Request) {
	t, meta, err := s.Store.TryGetToken(urlParty(r), chi.URLParam(r, "tokenUID"))
	if err != nil {
		s.writeStoreError(w, models.KindToken, err)
		return
	}
	setVersionHeaders(w, meta)
	writeSuccess(w, t)
}

func (s *Server) PutToken(w http.ResponseWriter, r *http.Request) {
	p := urlParty(r)
	uid := chi.URLParam(r, "tokenUID")

	var t models.Token
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
	if t.UID == "" {
		t.UID = uid
	}
	if t.CountryCode != p.CountryCode || t.PartyID != p.PartyID || t.UID != uid {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "body identifiers do not match url", nil)
		return
	}

	res, err := s.Store.AddOrUpdateToken(t, s.allowDowngrade(r))
	if err != nil {
		s.writeStoreError(w, models.KindToken, err)
		return
	}
	writeWrite(w, res)
}

func (s *Server) PatchToken(w http.ResponseWriter, r *http.Request) {
	doc, err := readAll(r, 1<<20)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "bad body", nil)
		return
	}
	res, err := s.Store.TryPatchToken(urlParty(r), chi.URLParam(r, "tokenUID"), doc, s.allowDowngrade(r))
	if err != nil {
		s.writeStoreError(w, models.KindToken, err)
		return
	}
	writeWrite(w, res)
}

// AuthorizeToken evaluates a token presented at a charging location. The
// requesting and target parties come from the routing headers; the optional
// body narrows the request to a location and a subset of its EVSEs. A
// denial is still a 200: authorization failure is a normal decision.
func (s *Server) AuthorizeToken(w http.ResponseWriter, r *http.Request) {
	from := models.PartyRef{
		CountryCode: r.Header.Get("OCPI-from-country-code"),
		PartyID:     r.Header.Get("OCPI-from-party-id"),
	}
	to := models.PartyRef{
		CountryCode: r.Header.Get("OCPI-to-country-code"),
		PartyID:     r.Header.Get("OCPI-to-party-id"),
	}
	if to.CountryCode == "" || to.PartyID == "" {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "missing OCPI routing headers", nil)
		return
	}

	var loc *models.LocationReference
	body, err := readAll(r, 1<<20)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "bad body", nil)
		return
	}
	if len(body) > 0 {
		var ref models.LocationReference
		if err := json.Unmarshal(body, &ref); err != nil {
			writeEnvelope(w, http.StatusBadRequest, statusInvalid, "invalid location reference", nil)
			return
		}
		if ref.LocationID != "" {
			loc = &ref
		}
	}

	info := s.Resolver.Authorize(authz.Request{
		TokenUID: chi.URLParam(r, "tokenUID"),
		From:     from,
		To:       to,
		Location: loc,
		AuthRef:  r.Header.Get("X-Authorization-Reference"),
	})
	writeSuccess(w, info)
}

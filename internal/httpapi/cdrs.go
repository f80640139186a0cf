package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ocpihub/internal/models"
)

func (s *Server) ListCDRs(w http.ResponseWriter, r *http.Request) {
	writeList(w, s.Store.ListCDRs(ownerFilter(r)), parsePageFilter(r))
}

func (s *Server) GetCDR(w http.ResponseWriter, r *http.Request) {
	c, meta, err := s.Store.GetCDR(urlParty(r), chi.URLParam(r, "cdrID"))
	if err != nil {
		s.writeStoreError(w, models.KindCDR, err)
		return
	}
	setVersionHeaders(w, meta)
	writeSuccess(w, c)
}

// PostCDR accepts a new billing record. CDRs are create-only: re-pushing an
// existing id is rejected.
func (s *Server) PostCDR(w http.ResponseWriter, r *http.Request) {
	var c models.CDR
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "invalid json body", nil)
		return
	}
	if c.CountryCode == "" || c.PartyID == "" || c.ID == "" {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "missing country_code/party_id/id", nil)
		return
	}

	res, err := s.Store.AddCDR(c)
	if err != nil {
		s.writeStoreError(w, models.KindCDR, err)
		return
	}
	w.Header().Set("Location", "/ocpi/receiver/2.2/cdrs/"+c.CountryCode+"/"+c.PartyID+"/"+c.ID)
	writeWrite(w, res)
}

func (s *Server) DeleteCDR(w http.ResponseWriter, r *http.Request) {
	s.Store.RemoveCDR(urlParty(r), chi.URLParam(r, "cdrID"))
	writeSuccess(w, nil)
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ocpihub/internal/models"
	"ocpihub/internal/store"
)

// Protocol-level status codes carried in the response envelope.
const (
	statusSuccess = 1000
	statusInvalid = 2001
	statusUnknown = 2003
)

type envelope struct {
	Data          any       `json:"data,omitempty"`
	StatusCode    int       `json:"status_code"`
	StatusMessage string    `json:"status_message,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func writeEnvelope(w http.ResponseWriter, httpStatus, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(envelope{
		Data:          data,
		StatusCode:    code,
		StatusMessage: msg,
		Timestamp:     time.Now().UTC(),
	})
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, statusSuccess, "", data)
}

// writeWrite reports an accepted write: version metadata as headers, 201 on
// creation.
func writeWrite(w http.ResponseWriter, res store.WriteResult) {
	setVersionHeaders(w, res.Meta)
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeEnvelope(w, status, statusSuccess, "", res.Resource)
}

func setVersionHeaders(w http.ResponseWriter, meta store.Meta) {
	w.Header().Set("Last-Modified", meta.LastUpdated.UTC().Format(http.TimeFormat))
	w.Header().Set("ETag", `"`+meta.ETag+`"`)
}

// writeStoreError maps the store's rejection taxonomy onto HTTP + protocol
// codes. Conflicts carry the untouched stored value so the caller can
// reconcile.
func (s *Server) writeStoreError(w http.ResponseWriter, kind models.Kind, err error) {
	var conflict *store.ConflictError
	var structErr *store.StructuralError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeEnvelope(w, http.StatusNotFound, statusUnknown, "unknown "+string(kind), nil)
	case errors.As(err, &conflict):
		s.Coll.WriteRejected(string(kind), "conflict")
		writeEnvelope(w, http.StatusConflict, statusInvalid, conflict.Error(), conflict.Current)
	case errors.As(err, &structErr):
		s.Coll.WriteRejected(string(kind), "structural")
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, structErr.Reason, nil)
	default:
		writeEnvelope(w, http.StatusInternalServerError, statusInvalid, err.Error(), nil)
	}
}

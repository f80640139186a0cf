package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ocpihub/internal/commands"
	"ocpihub/internal/models"
)

type issueCommandReq struct {
	CommandID   string `json:"command_id,omitempty"`
	ResponseURL string `json:"response_url,omitempty"`
}

// PostCommand registers a remote command for correlation. When the caller
// supplies a response_url the eventual result will be relayed there,
// matched by the request/correlation ids presented on this call.
func (s *Server) PostCommand(w http.ResponseWriter, r *http.Request) {
	kind, ok := models.ParseCommandKind(chi.URLParam(r, "command"))
	if !ok {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "unknown command type", nil)
		return
	}

	payload, err := readAll(r, 1<<20)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "bad body", nil)
		return
	}
	var req issueCommandReq
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			writeEnvelope(w, http.StatusBadRequest, statusInvalid, "invalid json body", nil)
			return
		}
	}

	var upstream *models.UpstreamRef
	if req.ResponseURL != "" {
		upstream = &models.UpstreamRef{
			ResponseURL:   req.ResponseURL,
			RequestID:     r.Header.Get("X-Request-ID"),
			CorrelationID: r.Header.Get("X-Correlation-ID"),
		}
	}

	rec := s.Dispatcher.Issue(kind, req.CommandID, payload, upstream)
	writeSuccess(w, map[string]any{
		"result":     "ACCEPTED",
		"command_id": rec.ID,
	})
}

// PostCommandResult accepts the asynchronous result callback for an issued
// command. Duplicates are acknowledged without re-forwarding; an unknown id
// is rejected with no side effects.
func (s *Server) PostCommandResult(w http.ResponseWriter, r *http.Request) {
	kind, ok := models.ParseCommandKind(chi.URLParam(r, "command"))
	if !ok {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "unknown command type", nil)
		return
	}
	uid := chi.URLParam(r, "uid")

	result, err := readAll(r, 1<<20)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, statusInvalid, "bad body", nil)
		return
	}

	switch s.Dispatcher.AcceptResult(uid, result) {
	case commands.UnknownCommand:
		writeEnvelope(w, http.StatusNotFound, statusUnknown, "unknown command", nil)
	default:
		if s.Journal != nil {
			s.Journal.CommandResult(uid, kind, result)
		}
		writeSuccess(w, map[string]any{"result": "ACCEPTED"})
	}
}

func (s *Server) GetCommand(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.Table.TryGet(chi.URLParam(r, "uid"))
	if !ok {
		writeEnvelope(w, http.StatusNotFound, statusUnknown, "unknown command", nil)
		return
	}
	writeSuccess(w, map[string]any{
		"command_id": rec.ID,
		"command":    rec.Kind,
		"state":      rec.State,
		"created":    rec.Created,
		"result":     rec.Result,
		"result_at":  rec.ResultAt,
	})
}

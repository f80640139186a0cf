package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocpihub/internal/authz"
	"ocpihub/internal/commands"
	"ocpihub/internal/config"
	"ocpihub/internal/models"
	"ocpihub/internal/store"
	"ocpihub/internal/upstream"
)

const receiverBase = "/ocpi/receiver/2.2"

type testEnvelope struct {
	Data          json.RawMessage `json:"data"`
	StatusCode    int             `json:"status_code"`
	StatusMessage string          `json:"status_message"`
	Timestamp     time.Time       `json:"timestamp"`
}

type hub struct {
	srv    *Server
	router http.Handler
	disp   *commands.Dispatcher
}

func newTestHub(t *testing.T, cfg config.Config) *hub {
	t.Helper()
	log := zerolog.Nop()
	st := store.New()
	table := commands.NewTable()
	fwd := upstream.New(cfg.UpstreamToken, 2*time.Second)
	disp := commands.NewDispatcher(table, fwd, log, nil, 2*time.Second)
	resolver := authz.NewResolver(st, log, nil)
	srv := NewServer(cfg, log, st, table, disp, resolver, nil, nil, nil)
	t.Cleanup(srv.Close)
	return &hub{srv: srv, router: srv.Routes(), disp: disp}
}

func (h *hub) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var env testEnvelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func demoLocation(id string, updated time.Time) models.Location {
	return models.Location{
		CountryCode: "NL",
		PartyID:     "EXA",
		ID:          id,
		Publish:     true,
		Address:     "Stationsplein 1",
		City:        "Utrecht",
		Country:     "NLD",
		LastUpdated: updated,
	}
}

func TestPutThenGetLocation(t *testing.T) {
	h := newTestHub(t, config.Config{})
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := receiverBase + "/locations/NL/EXA/LOC1"

	w, env := h.do(t, http.MethodPut, path, demoLocation("LOC1", ts), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1000, env.StatusCode)
	putETag := w.Header().Get("ETag")
	assert.NotEmpty(t, putETag)
	assert.Equal(t, ts.Format(http.TimeFormat), w.Header().Get("Last-Modified"))

	w, env = h.do(t, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1000, env.StatusCode)
	assert.Equal(t, putETag, w.Header().Get("ETag"))

	var got models.Location
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "LOC1", got.ID)
	assert.Equal(t, "Utrecht", got.City)
	assert.True(t, got.LastUpdated.Equal(ts))
}

func TestPutSecondTimeReturns200(t *testing.T) {
	h := newTestHub(t, config.Config{})
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := receiverBase + "/locations/NL/EXA/LOC1"

	w, _ := h.do(t, http.MethodPut, path, demoLocation("LOC1", ts), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = h.do(t, http.MethodPut, path, demoLocation("LOC1", ts.Add(time.Minute)), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStalePutConflictCarriesCurrent(t *testing.T) {
	h := newTestHub(t, config.Config{})
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := receiverBase + "/locations/NL/EXA/LOC1"

	w, _ := h.do(t, http.MethodPut, path, demoLocation("LOC1", ts), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	stale := demoLocation("LOC1", ts.Add(-time.Hour))
	stale.City = "Zwolle"
	w, env := h.do(t, http.MethodPut, path, stale, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 2001, env.StatusCode)
	assert.Contains(t, env.StatusMessage, "earlier update already applied")

	var current models.Location
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, "Utrecht", current.City, "conflict body carries the stored value")
}

func TestDowngradeQueryFlagOverridesConfig(t *testing.T) {
	h := newTestHub(t, config.Config{AllowDowngrade: false})
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := receiverBase + "/locations/NL/EXA/LOC1"

	w, _ := h.do(t, http.MethodPut, path, demoLocation("LOC1", ts), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = h.do(t, http.MethodPut, path+"?allow_downgrade=true", demoLocation("LOC1", ts.Add(-time.Hour)), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetMissingLocation(t *testing.T) {
	h := newTestHub(t, config.Config{})
	w, env := h.do(t, http.MethodGet, receiverBase+"/locations/NL/EXA/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 2003, env.StatusCode)
}

func TestPutBodyIdentifierMismatch(t *testing.T) {
	h := newTestHub(t, config.Config{})
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w, env := h.do(t, http.MethodPut, receiverBase+"/locations/NL/EXA/LOC1", demoLocation("LOC2", ts), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 2001, env.StatusCode)
	assert.Contains(t, env.StatusMessage, "do not match url")
}

func TestEVSELifecycleAndPatch(t *testing.T) {
	h := newTestHub(t, config.Config{})
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	locPath := receiverBase + "/locations/NL/EXA/LOC1"

	// EVSE push before its location exists is a structural rejection.
	floor := "2"
	evse := models.EVSE{UID: "EVSE-1", Status: "AVAILABLE", FloorLevel: &floor, LastUpdated: ts}
	w, env := h.do(t, http.MethodPut, locPath+"/EVSE-1", evse, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.StatusMessage, "does not exist")

	w, _ = h.do(t, http.MethodPut, locPath, demoLocation("LOC1", ts), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = h.do(t, http.MethodPut, locPath+"/EVSE-1", evse, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = h.do(t, http.MethodPatch, locPath+"/EVSE-1", map[string]any{
		"status":       "CHARGING",
		"last_updated": ts.Add(time.Minute),
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.EVSE
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "CHARGING", got.Status)
	require.NotNil(t, got.FloorLevel)
	assert.Equal(t, "2", *got.FloorLevel, "patch leaves unnamed fields alone")
}

func TestConnectorNestedRoutes(t *testing.T) {
	h := newTestHub(t, config.Config{})
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	locPath := receiverBase + "/locations/NL/EXA/LOC1"

	w, _ := h.do(t, http.MethodPut, locPath, demoLocation("LOC1", ts), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = h.do(t, http.MethodPut, locPath+"/EVSE-1", models.EVSE{UID: "EVSE-1", Status: "AVAILABLE", LastUpdated: ts}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	conn := models.Connector{
		ID:          "1",
		Standard:    "IEC_62196_T2",
		Format:      "SOCKET",
		PowerType:   "AC_3_PHASE",
		MaxVoltage:  230,
		MaxAmperage: 32,
		LastUpdated: ts,
	}
	w, _ = h.do(t, http.MethodPut, locPath+"/EVSE-1/1", conn, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := h.do(t, http.MethodGet, locPath+"/EVSE-1/1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Connector
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "IEC_62196_T2", got.Standard)
}

func TestListLocationsPagination(t *testing.T) {
	h := newTestHub(t, config.Config{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"LOC1", "LOC2", "LOC3"} {
		w, _ := h.do(t, http.MethodPut, receiverBase+"/locations/NL/EXA/"+id, demoLocation(id, base), nil)
		require.Equal(t, http.StatusCreated, w.Code)
		base = base.Add(time.Minute)
	}

	w, env := h.do(t, http.MethodGet, receiverBase+"/locations?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))
	var page []models.Location
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page, 2)
	assert.Equal(t, "LOC1", page[0].ID)

	w, env = h.do(t, http.MethodGet, receiverBase+"/locations?offset=2", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page, 1)
	assert.Equal(t, "LOC3", page[0].ID)
}

func TestDeleteLocationIdempotent(t *testing.T) {
	h := newTestHub(t, config.Config{})
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := receiverBase + "/locations/NL/EXA/LOC1"

	w, _ := h.do(t, http.MethodPut, path, demoLocation("LOC1", ts), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = h.do(t, http.MethodDelete, path, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = h.do(t, http.MethodGet, path, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = h.do(t, http.MethodDelete, path, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerTokenGuardsReceiverTree(t *testing.T) {
	h := newTestHub(t, config.Config{APIToken: "secret"})

	w, env := h.do(t, http.MethodGet, receiverBase+"/locations", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 2001, env.StatusCode)

	w, _ = h.do(t, http.MethodGet, receiverBase+"/locations", nil, map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = h.do(t, http.MethodGet, receiverBase+"/locations", nil, map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Health stays open.
	w, _ = h.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPostCDRCreateOnly(t *testing.T) {
	h := newTestHub(t, config.Config{})
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cdr := models.CDR{
		CountryCode: "NL",
		PartyID:     "EXA",
		ID:          "CDR1",
		StartDate:   ts.Add(-time.Hour),
		EndDate:     ts,
		CdrToken:    models.CdrToken{UID: "TOK1", Type: "RFID", ContractID: "NL-EXA-C1"},
		AuthMethod:  "AUTH_REQUEST",
		Currency:    "EUR",
		TotalCost:   models.Price{ExclVat: 4.2},
		TotalEnergy: 13.5,
		LastUpdated: ts,
	}

	w, _ := h.do(t, http.MethodPost, receiverBase+"/cdrs", cdr, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, receiverBase+"/cdrs/NL/EXA/CDR1", w.Header().Get("Location"))

	w, env := h.do(t, http.MethodPost, receiverBase+"/cdrs", cdr, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.StatusMessage, "already exists")

	w, _ = h.do(t, http.MethodGet, receiverBase+"/cdrs/NL/EXA/CDR1", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCommandFlowForwardsResultOnce(t *testing.T) {
	var calls atomic.Int32
	var gotRequestID atomic.Value
	emsp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotRequestID.Store(r.Header.Get("X-Request-ID"))
		w.WriteHeader(http.StatusOK)
	}))
	defer emsp.Close()

	h := newTestHub(t, config.Config{})

	w, env := h.do(t, http.MethodPost, receiverBase+"/commands/RESERVE_NOW", map[string]any{
		"command_id":   "cmd-1",
		"response_url": emsp.URL + "/resp",
	}, map[string]string{"X-Request-ID": "req-42"})
	require.Equal(t, http.StatusOK, w.Code)
	var issued map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &issued))
	assert.Equal(t, "ACCEPTED", issued["result"])
	assert.Equal(t, "cmd-1", issued["command_id"])

	result := map[string]string{"result": "ACCEPTED"}
	for i := 0; i < 3; i++ {
		w, _ = h.do(t, http.MethodPost, receiverBase+"/commands/RESERVE_NOW/cmd-1", result, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	h.disp.Drain()

	assert.Equal(t, int32(1), calls.Load(), "duplicate callbacks must not re-forward")
	assert.Equal(t, "req-42", gotRequestID.Load())

	w, env = h.do(t, http.MethodGet, receiverBase+"/commands/RESERVE_NOW/cmd-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.JSONEq(t, `"FORWARDED"`, string(state["state"]))
}

func TestCommandResultUnknownID(t *testing.T) {
	h := newTestHub(t, config.Config{})
	w, env := h.do(t, http.MethodPost, receiverBase+"/commands/RESERVE_NOW/ghost", map[string]string{"result": "ACCEPTED"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 2003, env.StatusCode)
}

func TestCommandUnknownKind(t *testing.T) {
	h := newTestHub(t, config.Config{})
	w, _ := h.do(t, http.MethodPost, receiverBase+"/commands/SELF_DESTRUCT", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommandWithoutIDGetsGenerated(t *testing.T) {
	h := newTestHub(t, config.Config{})
	w, env := h.do(t, http.MethodPost, receiverBase+"/commands/START_SESSION", map[string]any{}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var issued map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &issued))
	assert.NotEmpty(t, issued["command_id"])
}

func TestAuthorizeEndpoint(t *testing.T) {
	h := newTestHub(t, config.Config{})
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	w, _ := h.do(t, http.MethodPut, receiverBase+"/tokens/NL/MSP/TOK1", models.Token{
		Type:        "RFID",
		ContractID:  "NL-MSP-C1",
		Issuer:      "Example eMSP",
		Valid:       true,
		Whitelist:   "ALLOWED",
		LastUpdated: ts,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	routing := map[string]string{
		"OCPI-from-country-code": "NL",
		"OCPI-from-party-id":     "CPO",
		"OCPI-to-country-code":   "NL",
		"OCPI-to-party-id":       "MSP",
	}
	w, env := h.do(t, http.MethodPost, receiverBase+"/tokens/TOK1/authorize", nil, routing)
	require.Equal(t, http.StatusOK, w.Code)
	var info models.AuthorizationInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, models.AllowedAccepted, info.Allowed)
	assert.NotEmpty(t, info.AuthRef)

	// Unknown token is still a 200: a denial, not an error.
	w, env = h.do(t, http.MethodPost, receiverBase+"/tokens/ghost/authorize", nil, routing)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, models.AllowedNotAllowed, info.Allowed)

	// Missing routing headers are a caller error.
	w, _ = h.do(t, http.MethodPost, receiverBase+"/tokens/TOK1/authorize", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimiterRejectsBurstOverflow(t *testing.T) {
	h := newTestHub(t, config.Config{RateLimit: 1, RateBurst: 2})

	var tooMany int
	for i := 0; i < 5; i++ {
		w, _ := h.do(t, http.MethodGet, receiverBase+"/locations", nil, map[string]string{"Authorization": "Bearer same-caller"})
		if w.Code == http.StatusTooManyRequests {
			tooMany++
		}
	}
	assert.GreaterOrEqual(t, tooMany, 1)
}

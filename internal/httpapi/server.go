package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ocpihub/internal/authz"
	"ocpihub/internal/commands"
	"ocpihub/internal/config"
	"ocpihub/internal/journal"
	"ocpihub/internal/metrics"
	"ocpihub/internal/store"
)

type Server struct {
	Cfg        config.Config
	Log        zerolog.Logger
	Store      *store.Store
	Table      *commands.Table
	Dispatcher *commands.Dispatcher
	Resolver   *authz.Resolver
	Journal    *journal.Recorder
	Coll       *metrics.Collector
	Gatherer   prometheus.Gatherer

	limiter *RateLimiter
}

func NewServer(cfg config.Config, log zerolog.Logger, st *store.Store, table *commands.Table, disp *commands.Dispatcher, resolver *authz.Resolver, rec *journal.Recorder, coll *metrics.Collector, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		Cfg:        cfg,
		Log:        log,
		Store:      st,
		Table:      table,
		Dispatcher: disp,
		Resolver:   resolver,
		Journal:    rec,
		Coll:       coll,
		Gatherer:   gatherer,
	}
	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	return s
}

// Close stops background helpers owned by the server.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger(s.Log))
	r.Use(Instrument(s.Coll))

	r.Route("/ocpi/receiver/2.2", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return RequireBearer(s.Cfg.APIToken, next) })
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}

		r.Get("/locations", s.ListLocations)
		r.Route("/locations/{countryCode}/{partyID}/{locationID}", func(r chi.Router) {
			r.Get("/", s.GetLocation)
			r.Put("/", s.PutLocation)
			r.Patch("/", s.PatchLocation)
			r.Delete("/", s.DeleteLocation)
			r.Get("/{evseUID}", s.GetEVSE)
			r.Put("/{evseUID}", s.PutEVSE)
			r.Patch("/{evseUID}", s.PatchEVSE)
			r.Get("/{evseUID}/{connectorID}", s.GetConnector)
			r.Put("/{evseUID}/{connectorID}", s.PutConnector)
			r.Patch("/{evseUID}/{connectorID}", s.PatchConnector)
		})

		r.Get("/tariffs", s.ListTariffs)
		r.Route("/tariffs/{countryCode}/{partyID}/{tariffID}", func(r chi.Router) {
			r.Get("/", s.GetTariff)
			r.Put("/", s.PutTariff)
			r.Patch("/", s.PatchTariff)
			r.Delete("/", s.DeleteTariff)
		})

		r.Get("/sessions", s.ListSessions)
		r.Route("/sessions/{countryCode}/{partyID}/{sessionID}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Put("/", s.PutSession)
			r.Patch("/", s.PatchSession)
			r.Delete("/", s.DeleteSession)
		})

		r.Get("/cdrs", s.ListCDRs)
		r.Post("/cdrs", s.PostCDR)
		r.Get("/cdrs/{countryCode}/{partyID}/{cdrID}", s.GetCDR)
		r.Delete("/cdrs/{countryCode}/{partyID}/{cdrID}", s.DeleteCDR)

		r.Route("/tokens", func(r chi.Router) {
			r.Get("/{countryCode}/{partyID}/{tokenUID}", s.GetToken)
			r.Put("/{countryCode}/{partyID}/{tokenUID}", s.PutToken)
			r.Patch("/{countryCode}/{partyID}/{tokenUID}", s.PatchToken)
			r.Post("/{tokenUID}/authorize", s.AuthorizeToken)
		})

		r.Route("/commands", func(r chi.Router) {
			r.Post("/{command}", s.PostCommand)
			r.Post("/{command}/{uid}", s.PostCommandResult)
			r.Get("/{command}/{uid}", s.GetCommand)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	if s.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// allowDowngrade resolves the downgrade flag: the per-request query
// parameter wins over the configured default.
func (s *Server) allowDowngrade(r *http.Request) bool {
	switch r.URL.Query().Get("allow_downgrade") {
	case "true", "1":
		return true
	case "false", "0":
		return false
	}
	return s.Cfg.AllowDowngrade
}

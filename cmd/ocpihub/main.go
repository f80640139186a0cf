package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ocpihub/internal/authz"
	"ocpihub/internal/commands"
	"ocpihub/internal/config"
	"ocpihub/internal/httpapi"
	"ocpihub/internal/journal"
	"ocpihub/internal/logger"
	"ocpihub/internal/metrics"
	"ocpihub/internal/store"
	"ocpihub/internal/upstream"
)

func main() {
	log := logger.New("ocpihub")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	reg := prometheus.NewRegistry()
	coll := metrics.NewCollector(reg)

	st := store.New()
	st.Subscribe(func(ev store.Event) {
		if ev.Action != store.ActionRemoved {
			coll.WriteAccepted(string(ev.Key.Kind))
		}
	})

	var rec *journal.Recorder
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		d, err := journal.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			cancel()
			log.Fatal().Err(err).Msg("journal connect")
		}
		defer d.Close()

		rec = journal.NewRecorder(d.Pool, log)
		if err := rec.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatal().Err(err).Msg("journal schema")
		}
		cancel()
		st.Subscribe(rec.StoreObserver())
		defer rec.Close()
	}

	table := commands.NewTable()
	fwd := upstream.New(cfg.UpstreamToken, cfg.ForwardTimeout)
	disp := commands.NewDispatcher(table, fwd, log, coll, cfg.ForwardTimeout)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	disp.StartSweeper(sweepCtx, cfg.SweepInterval, cfg.CommandTTL)

	resolver := authz.NewResolver(st, log, coll)

	srv := httpapi.NewServer(cfg, log, st, table, disp, resolver, rec, coll, reg)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("ocpihub listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	disp.Drain()
	log.Info().Msg("ocpihub shutdown complete")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"snowdiff_service/internal/api"
	"snowdiff_service/internal/config"
	"snowdiff_service/internal/core"
	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/domain/repository"
	"snowdiff_service/internal/infrastructure/evalclient"
	"snowdiff_service/internal/infrastructure/localeval"
	"snowdiff_service/internal/log"
	"snowdiff_service/internal/metrics"
)

func main() {
	cfg := config.FromEnv()
	if err := log.Init(cfg.Debug); err != nil {
		log.Fatalf("failed to initialise logger: %v", err)
	}
	defer log.Sync()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Backend: the remote evaluation service, or the in-process evaluator for local runs
	var (
		backend  core.Backend
		previews api.PreviewSource
	)
	if cfg.EvalServiceURL != "" {
		backend = evalclient.NewHTTPClient(cfg.EvalServiceURL,
			evalclient.WithToken(cfg.EvalAPIToken),
			evalclient.WithHTTPClient(&http.Client{Timeout: cfg.EvalTimeout}),
			evalclient.WithMetrics(m),
		)
		log.Infow("using remote evaluation service", "url", cfg.EvalServiceURL)
	} else {
		archive := localeval.NewArchive(localeval.Grid{
			Origin:    orb.Point{-180, 90},
			PixelSize: 0.5,
			Width:     720,
			Height:    360,
		})
		archive.RegisterSensors(model.SupportedCollections()...)
		eval := localeval.New(archive)
		backend, previews = eval, eval
		log.Warnw("EVAL_SERVICE_URL not set, evaluating against an empty local archive")
	}

	// Analysis ledger
	var (
		recorder repository.AnalysisRecorder
		records  api.RecordStore
	)
	if cfg.SaveAnalyses {
		db, err := repository.NewPostgresDB(cfg.PostgresURL)
		if err != nil {
			log.Fatalf("failed to open analysis ledger: %v", err)
		}
		defer db.Close()

		pg := repository.NewPostgresAnalysisRecorder(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("failed to prepare analysis ledger: %v", err)
		}
		recorder, records = pg, pg
	}

	var regions repository.RegionSource
	if cfg.OverpassURL != "" {
		regions = repository.NewOverpassRegionSource(cfg.OverpassURL, cfg.OverpassTimeout)
	}

	service := core.NewService(backend, recorder, cfg.SaveAnalyses, m)
	handler := api.NewHandler(service, regions, records, previews)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	handler.Register(r)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("starting server on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("shutdown signal received, draining requests...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("graceful shutdown failed: %v", err)
	}
	log.Info("shutdown complete")
}

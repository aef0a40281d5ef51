package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/david/contract-map/internal/api"
	"github.com/david/contract-map/internal/config"
	"github.com/david/contract-map/internal/db"
	"github.com/david/contract-map/internal/geo"
	"github.com/david/contract-map/internal/ingest"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()
	log := logrus.WithField("component", "server")

	if err := cfg.Validate(); err != nil {
		// The read endpoints still work; refresh reports the configuration error.
		log.WithError(err).Warn("configuration incomplete")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	store := db.NewStore(pool)
	pipeline := ingest.NewPipeline(cfg,
		ingest.NewSAMClient(cfg.SAM),
		store, store, store,
		geo.NewCache(store),
		geo.NewNominatimClient(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, cfg.Geocoder.Timeout),
	)

	srv := api.NewServer(cfg, store, pipeline)
	go srv.RunSchedule(ctx, cfg.Refresh.Schedule)

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := srv.Start(cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown failed")
	}
}

package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/TajoLin/website-speed-test/internal/config"
	"github.com/TajoLin/website-speed-test/internal/geoip"
	"github.com/TajoLin/website-speed-test/internal/httpapi"
	"github.com/TajoLin/website-speed-test/internal/logging"
	"github.com/TajoLin/website-speed-test/internal/metrics"
	"github.com/TajoLin/website-speed-test/internal/probe"
	"github.com/TajoLin/website-speed-test/internal/repo"
	"github.com/TajoLin/website-speed-test/internal/repo/memory"
	"github.com/TajoLin/website-speed-test/internal/repo/postgres"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}

	var store repo.MeasurementStore
	var cleanup func() error
	if cfg.DatabaseURL != "" {
		ctx := context.Background()
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal(err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal(err)
		}
		store = pg
		cleanup = func() error {
			pg.Close()
			return logger.Sync()
		}
	} else {
		store = memory.New()
		cleanup = logger.Sync
	}
	defer func() {
		if err := cleanup(); err != nil {
			log.Println("cleanup:", err)
		}
	}()

	prober := &probe.Prober{Deadline: cfg.ProbeDeadline}
	runner := probe.NewRunner(logger, prober, cfg.ProbeConcurrency)
	locator := geoip.NewClient(cfg.GeoIPBaseURL)

	api := httpapi.NewServer(logger, prober, runner, locator, store, metrics.New())
	api.AllowedOrigins = cfg.AllowedOrigins

	logger.Info("api_listen",
		zap.String("addr", cfg.Addr),
		zap.Duration("probe_deadline", cfg.ProbeDeadline),
		zap.Bool("postgres", cfg.DatabaseURL != ""),
	)
	if err := http.ListenAndServe(cfg.Addr, api.Router()); err != nil {
		log.Fatal(err)
	}
}

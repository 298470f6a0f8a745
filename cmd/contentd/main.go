// Command contentd runs the content core as a long-lived process: it opens
// the storage medium, optionally consumes remote view events and performance
// samples from Kafka into the event log, and serves Prometheus metrics and
// health probes.
//
// Usage:
//
//	go run ./cmd/contentd [-config configs/contentd.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/geoaziz/contentcore/pkg/config"
	"github.com/geoaziz/contentcore/pkg/health"
	"github.com/geoaziz/contentcore/pkg/kafka"
	"github.com/geoaziz/contentcore/pkg/logger"
	"github.com/geoaziz/contentcore/pkg/metrics"

	"github.com/geoaziz/contentcore/internal/eventlog"
	"github.com/geoaziz/contentcore/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting contentd", "storage_backend", cfg.Storage.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	medium, err := storage.Open(cfg)
	if err != nil {
		slog.Error("failed to open storage medium", "error", err)
		os.Exit(1)
	}
	defer medium.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	log := eventlog.NewLog(medium, m)

	checker := health.NewChecker()
	checker.Register("storage", func(ctx context.Context) health.ComponentHealth {
		if err := medium.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, checker)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Kafka.Enabled {
		viewConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ViewEvents, eventlog.ViewHandler(log))
		perfConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.PerformanceSamples, eventlog.PerformanceHandler(log))
		g.Go(func() error { return viewConsumer.Start(gctx) })
		g.Go(func() error { return perfConsumer.Start(gctx) })
		slog.Info("event ingest started",
			"view_topic", cfg.Kafka.Topics.ViewEvents,
			"performance_topic", cfg.Kafka.Topics.PerformanceSamples,
		)
	}

	<-ctx.Done()
	slog.Info("shutdown signal received")
	if err := g.Wait(); err != nil {
		slog.Error("ingest error", "error", err)
	}
	slog.Info("contentd stopped")
}

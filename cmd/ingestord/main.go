package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/oogsj/coastwatch/internal/adapter/kafka"
	"github.com/oogsj/coastwatch/internal/api"
	"github.com/oogsj/coastwatch/internal/config"
	"github.com/oogsj/coastwatch/internal/ingest"
	"github.com/oogsj/coastwatch/internal/observability"
	"github.com/oogsj/coastwatch/internal/scheduler"
	"github.com/oogsj/coastwatch/internal/source"
	"github.com/oogsj/coastwatch/internal/store"
	"github.com/oogsj/coastwatch/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Event feed is feature-flagged via KAFKA_BROKERS.
	var publisher ingest.Publisher
	var writer *kafka.Writer
	if cfg.EventsEnabled() {
		writer = kafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = writer
		logger.Info("event feed enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("event feed disabled")
	}

	client := source.NewClient(cfg.RequestTimeout, cfg.RequestRPS)
	runner := ingest.New(db, db, db, publisher, logger, metrics)

	sched, err := scheduler.New(
		tasks.Build(cfg, client, runner, clock, logger),
		scheduler.Config{
			Workers:       cfg.Workers,
			RetryAttempts: cfg.RetryAttempts,
			RetryBackoff:  cfg.RetryBackoff,
		},
		db, clock, logger, metrics,
	)
	if err != nil {
		logger.Error("scheduler setup failed", "error", err)
		os.Exit(1)
	}

	srv := api.New(cfg.HTTPAddr, cfg.ShutdownTimeout, sched, db, logger)

	go func() {
		if err := srv.Run(ctx); err != nil {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
	}

	logger.Info("shutting down")
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	logger.Info("shutdown complete")
}

// Command runtask executes one named ingest task and exits, for manual
// backfills and cron-style operation without the daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/oogsj/coastwatch/internal/config"
	"github.com/oogsj/coastwatch/internal/ingest"
	"github.com/oogsj/coastwatch/internal/observability"
	"github.com/oogsj/coastwatch/internal/source"
	"github.com/oogsj/coastwatch/internal/store"
	"github.com/oogsj/coastwatch/internal/tasks"
)

func main() {
	name := flag.String("task", "", "task name to run")
	list := flag.Bool("list", false, "list task names and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetricsForTesting() // one-shot run, no scrape endpoint
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	client := source.NewClient(cfg.RequestTimeout, cfg.RequestRPS)
	runner := ingest.New(db, db, db, nil, logger, metrics)
	registry := tasks.Build(cfg, client, runner, clock, logger)

	if *list {
		names := make([]string, 0, len(registry))
		for _, t := range registry {
			names = append(names, t.Name)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	for _, t := range registry {
		if t.Name != *name {
			continue
		}
		if err := t.Run(ctx); err != nil {
			logger.Error("task failed", "task", *name, "error", err)
			os.Exit(1)
		}
		logger.Info("task complete", "task", *name)
		return
	}

	logger.Error("unknown task", "task", *name)
	os.Exit(1)
}

// Command migrate applies the embedded schema migrations and exits. It is
// run once before the daemon starts, typically as an init container.
package main

import (
	"log/slog"
	"os"

	"github.com/oogsj/coastwatch/internal/config"
	"github.com/oogsj/coastwatch/internal/observability"
	"github.com/oogsj/coastwatch/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tempsense/internal/config"
	"tempsense/internal/logging"
	"tempsense/internal/pipeline"
)

const appName = "pipeline"

// Default version is "dev" if not set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)

	slog.Info("starting",
		"version", version,
		"env", cfg.AppEnv,
		"log_level", cfg.LogLevel.String(),
		"csv_path", cfg.CSVPath,
		"batch_size", cfg.BatchSize,
		"postgres", cfg.Postgres.DSN(true),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := pipeline.Run(ctx, cfg, logger)
	if !res.OK() {
		slog.Error("pipeline failed", "step", res.FailedStep.String(), "err", res.Err)
		stop()
		os.Exit(1)
	}
}

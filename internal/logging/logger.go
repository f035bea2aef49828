package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"tempsense/internal/config"
)

// Fixed message markers. Operators grep for these.
const (
	PrefixOK       = "[ok]"
	PrefixFail     = "[fail]"
	PrefixProgress = "[progress]"
)

func New(cfg config.Config, version string, appName string) *slog.Logger {
	return newWithWriter(os.Stdout, cfg, version, appName)
}

func newWithWriter(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}

// Discard returns a logger that drops everything. Handy as a default in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func OK(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), slog.LevelInfo, PrefixOK+" "+msg, args...)
}

func Fail(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), slog.LevelError, PrefixFail+" "+msg, args...)
}

func Progress(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), slog.LevelInfo, PrefixProgress+" "+msg, args...)
}

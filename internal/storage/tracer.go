package storage

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/tracelog"
)

// slogTracer adapts pgx trace events to slog. Statement events arrive at
// tracelog's info level; they are demoted to debug so LOG_SQL output stays
// out of normal runs.
func slogTracer(logger *slog.Logger) tracelog.Logger {
	return tracelog.LoggerFunc(func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		attrs := make([]any, 0, 2*len(data)+2)
		attrs = append(attrs, "component", "pgx")
		for k, v := range data {
			attrs = append(attrs, k, v)
		}
		logger.Log(ctx, slogLevel(level), "sql: "+msg, attrs...)
	})
}

func slogLevel(level tracelog.LogLevel) slog.Level {
	switch level {
	case tracelog.LogLevelError:
		return slog.LevelError
	case tracelog.LogLevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

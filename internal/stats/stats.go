// Package stats logs a short report about what the store holds after a load.
// Nothing here fails the pipeline.
package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"tempsense/internal/logging"
	"tempsense/internal/readings"
)

// Querier is satisfied by *storage.Store.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	totalSQL   = `SELECT COUNT(*) FROM ` + readings.Table
	devicesSQL = `SELECT COUNT(DISTINCT room_id) FROM ` + readings.Table
	periodSQL  = `SELECT MIN(noted_date), MAX(noted_date), ROUND(AVG(temperature), 2)::float8 FROM ` + readings.Table
)

type Stats struct {
	Total    int64
	Devices  int64
	Earliest pgtype.Timestamp
	Latest   pgtype.Timestamp
	AvgTemp  pgtype.Float8
}

type Reporter struct {
	q      Querier
	logger *slog.Logger
}

func NewReporter(q Querier, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{q: q, logger: logger}
}

// Report runs the three queries and logs each result. ok is false if any
// query failed; the failure is logged and the remaining queries still run.
func (r *Reporter) Report(ctx context.Context) (Stats, bool) {
	var s Stats
	ok := true

	if err := r.q.QueryRow(ctx, totalSQL).Scan(&s.Total); err != nil {
		logging.Fail(r.logger, "stats: total readings", "error", err)
		ok = false
	} else {
		r.logger.Info("stats: total readings", "count", s.Total)
	}

	if err := r.q.QueryRow(ctx, periodSQL).Scan(&s.Earliest, &s.Latest, &s.AvgTemp); err != nil {
		logging.Fail(r.logger, "stats: period", "error", err)
		ok = false
	} else {
		r.logger.Info("stats: period", "from", formatTime(s.Earliest), "to", formatTime(s.Latest))
		if s.AvgTemp.Valid {
			r.logger.Info("stats: avg temp", "celsius", s.AvgTemp.Float64)
		} else {
			r.logger.Info("stats: avg temp", "celsius", "n/a")
		}
	}

	if err := r.q.QueryRow(ctx, devicesSQL).Scan(&s.Devices); err != nil {
		logging.Fail(r.logger, "stats: devices", "error", err)
		ok = false
	} else {
		r.logger.Info("stats: devices", "count", s.Devices)
	}

	return s, ok
}

func formatTime(ts pgtype.Timestamp) string {
	if !ts.Valid {
		return "n/a"
	}
	return ts.Time.Format(time.DateTime)
}

package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"tempsense/internal/dashboard/types"
)

//go:embed sql/device-summary.sql
var deviceSummarySQL string

//go:embed sql/hourly-readings.sql
var hourlyReadingsSQL string

//go:embed sql/daily-range.sql
var dailyRangeSQL string

//go:embed sql/location-summary.sql
var locationSummarySQL string

//go:embed sql/top-temperatures.sql
var topTemperaturesSQL string

//go:embed sql/monthly-trend.sql
var monthlyTrendSQL string

//go:embed sql/overview.sql
var overviewSQL string

//go:embed sql/temperature-bands.sql
var temperatureBandsSQL string

// BandLabels names the temperature bands in order. Band n (1-based) in the
// query result is BandLabels[n-1].
var BandLabels = []string{
	"Very cold (<20°C)",
	"Cold (20-25°C)",
	"Normal (25-30°C)",
	"Hot (30-35°C)",
	"Very hot (>35°C)",
}

type DashboardRepository interface {
	DeviceSummary(ctx context.Context) ([]types.DeviceSummary, error)
	HourlyReadings(ctx context.Context) ([]types.HourlyReading, error)
	DailyRange(ctx context.Context) ([]types.DailyRange, error)
	LocationSummary(ctx context.Context) ([]types.LocationSummary, error)
	TopTemperatures(ctx context.Context) ([]types.TopTemperature, error)
	MonthlyTrend(ctx context.Context) ([]types.MonthlyTrend, error)
	Overview(ctx context.Context) (types.Overview, error)
	TemperatureBands(ctx context.Context) ([]types.TemperatureBand, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) DashboardRepository {
	return &repositoryImpl{db: db}
}

// query runs q and calls scan once per row.
func (r *repositoryImpl) query(ctx context.Context, name, q string, scan func(*sql.Rows) error) error {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close rows", "query", name, "error", err)
		}
	}()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan %s: %w", name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", name, err)
	}
	return nil
}

func (r *repositoryImpl) DeviceSummary(ctx context.Context) ([]types.DeviceSummary, error) {
	out := []types.DeviceSummary{}
	err := r.query(ctx, "device summary", deviceSummarySQL, func(rows *sql.Rows) error {
		var d types.DeviceSummary
		if err := rows.Scan(&d.DeviceID, &d.AvgTemp, &d.TotalReadings, &d.MinTemp, &d.MaxTemp); err != nil {
			return err
		}
		out = append(out, d)
		return nil
	})
	return out, err
}

func (r *repositoryImpl) HourlyReadings(ctx context.Context) ([]types.HourlyReading, error) {
	out := []types.HourlyReading{}
	err := r.query(ctx, "hourly readings", hourlyReadingsSQL, func(rows *sql.Rows) error {
		var h types.HourlyReading
		if err := rows.Scan(&h.Hour, &h.ReadingCount, &h.AvgTemp); err != nil {
			return err
		}
		out = append(out, h)
		return nil
	})
	return out, err
}

func (r *repositoryImpl) DailyRange(ctx context.Context) ([]types.DailyRange, error) {
	out := []types.DailyRange{}
	err := r.query(ctx, "daily range", dailyRangeSQL, func(rows *sql.Rows) error {
		var d types.DailyRange
		var day flexTime
		if err := rows.Scan(&day, &d.MaxTemp, &d.MinTemp, &d.AvgTemp, &d.TotalReadings); err != nil {
			return err
		}
		d.Day = day.Time
		out = append(out, d)
		return nil
	})
	return out, err
}

func (r *repositoryImpl) LocationSummary(ctx context.Context) ([]types.LocationSummary, error) {
	out := []types.LocationSummary{}
	err := r.query(ctx, "location summary", locationSummarySQL, func(rows *sql.Rows) error {
		var l types.LocationSummary
		var stddev sql.NullFloat64
		if err := rows.Scan(&l.LocationType, &l.TotalReadings, &l.AvgTemp, &l.MinTemp, &l.MaxTemp, &stddev); err != nil {
			return err
		}
		l.StddevTemp = floatPtr(stddev)
		out = append(out, l)
		return nil
	})
	return out, err
}

func (r *repositoryImpl) TopTemperatures(ctx context.Context) ([]types.TopTemperature, error) {
	out := []types.TopTemperature{}
	err := r.query(ctx, "top temperatures", topTemperaturesSQL, func(rows *sql.Rows) error {
		var t types.TopTemperature
		var noted flexTime
		if err := rows.Scan(&t.ID, &t.RoomID, &noted, &t.Temperature, &t.LocationType); err != nil {
			return err
		}
		t.NotedDate = noted.Time
		out = append(out, t)
		return nil
	})
	return out, err
}

func (r *repositoryImpl) MonthlyTrend(ctx context.Context) ([]types.MonthlyTrend, error) {
	out := []types.MonthlyTrend{}
	err := r.query(ctx, "monthly trend", monthlyTrendSQL, func(rows *sql.Rows) error {
		var m types.MonthlyTrend
		if err := rows.Scan(&m.Year, &m.Month, &m.TotalReadings, &m.AvgTemp, &m.MinTemp, &m.MaxTemp); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

func (r *repositoryImpl) Overview(ctx context.Context) (types.Overview, error) {
	var o types.Overview
	var earliest, latest flexTime
	var avg, lo, hi sql.NullFloat64
	err := r.db.QueryRowContext(ctx, overviewSQL).Scan(&o.TotalReadings, &o.TotalDevices, &earliest, &latest, &avg, &lo, &hi)
	if err != nil {
		return types.Overview{}, fmt.Errorf("query overview: %w", err)
	}
	o.EarliestDate = earliest.ptr()
	o.LatestDate = latest.ptr()
	o.AvgTemp = floatPtr(avg)
	o.MinTemp = floatPtr(lo)
	o.MaxTemp = floatPtr(hi)
	return o, nil
}

// TemperatureBands always returns every band in order, with zero counts for
// bands that have no readings.
func (r *repositoryImpl) TemperatureBands(ctx context.Context) ([]types.TemperatureBand, error) {
	out := make([]types.TemperatureBand, len(BandLabels))
	for i, label := range BandLabels {
		out[i].Label = label
	}
	err := r.query(ctx, "temperature bands", temperatureBandsSQL, func(rows *sql.Rows) error {
		var band int
		var n int64
		if err := rows.Scan(&band, &n); err != nil {
			return err
		}
		if band < 1 || band > len(out) {
			return fmt.Errorf("unexpected band %d", band)
		}
		out[band-1].Count = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// flexTime scans a timestamp whether the driver hands it over as time.Time
// (lib/pq, typed sqlite columns) or as text (sqlite aggregates).
type flexTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

func (t *flexTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = flexTime{}
		return nil
	case time.Time:
		*t = flexTime{Time: v, Valid: true}
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *flexTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			*t = flexTime{Time: ts, Valid: true}
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q", s)
}

func (t flexTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	ts := t.Time
	return &ts
}

// Package aggregates defines the derived views the dashboard reads. Each view
// is CREATE OR REPLACE, so a rebuild always matches the current definitions.
package aggregates

import (
	"context"
	"fmt"
	"log/slog"

	"tempsense/internal/logging"
)

type Execer interface {
	ExecDDL(ctx context.Context, stmt string) error
}

// View names, in build order.
const (
	DeviceSummary   = "device_temperature_summary"
	HourlyReadings  = "hourly_readings"
	DailyRange      = "daily_temperature_range"
	LocationSummary = "location_temperature_summary"
	TopTemperatures = "top_temperatures"
	MonthlyTrend    = "monthly_temperature_trend"
)

// TopLimit is the row count of the TopTemperatures view.
const TopLimit = 10

type View struct {
	Name   string
	Select string
}

// SQL returns the replace-if-exists statement for v.
func (v View) SQL() string {
	return "CREATE OR REPLACE VIEW " + v.Name + " AS\n" + v.Select
}

var definitions = []View{
	{
		Name: DeviceSummary,
		Select: `SELECT
	room_id AS device_id,
	ROUND(AVG(temperature), 2) AS avg_temp,
	COUNT(*) AS total_readings,
	ROUND(MIN(temperature), 2) AS min_temp,
	ROUND(MAX(temperature), 2) AS max_temp
FROM temperature_readings
GROUP BY room_id
ORDER BY avg_temp DESC`,
	},
	{
		Name: HourlyReadings,
		Select: `SELECT
	EXTRACT(HOUR FROM noted_date)::int AS hour,
	COUNT(*) AS reading_count,
	ROUND(AVG(temperature), 2) AS avg_temp
FROM temperature_readings
GROUP BY EXTRACT(HOUR FROM noted_date)
ORDER BY hour`,
	},
	{
		Name: DailyRange,
		Select: `SELECT
	DATE(noted_date) AS day,
	ROUND(MAX(temperature), 2) AS max_temp,
	ROUND(MIN(temperature), 2) AS min_temp,
	ROUND(AVG(temperature), 2) AS avg_temp,
	COUNT(*) AS total_readings
FROM temperature_readings
GROUP BY DATE(noted_date)
ORDER BY day`,
	},
	{
		Name: LocationSummary,
		Select: `SELECT
	location_type,
	COUNT(*) AS total_readings,
	ROUND(AVG(temperature), 2) AS avg_temp,
	ROUND(MIN(temperature), 2) AS min_temp,
	ROUND(MAX(temperature), 2) AS max_temp,
	ROUND(STDDEV(temperature), 2) AS stddev_temp
FROM temperature_readings
GROUP BY location_type
ORDER BY avg_temp DESC`,
	},
	{
		Name: TopTemperatures,
		Select: fmt.Sprintf(`SELECT
	id,
	room_id,
	noted_date,
	temperature,
	location_type
FROM temperature_readings
ORDER BY temperature DESC
LIMIT %d`, TopLimit),
	},
	{
		Name: MonthlyTrend,
		Select: `SELECT
	EXTRACT(YEAR FROM noted_date)::int AS year,
	EXTRACT(MONTH FROM noted_date)::int AS month,
	COUNT(*) AS total_readings,
	ROUND(AVG(temperature), 2) AS avg_temp,
	ROUND(MIN(temperature), 2) AS min_temp,
	ROUND(MAX(temperature), 2) AS max_temp
FROM temperature_readings
GROUP BY EXTRACT(YEAR FROM noted_date), EXTRACT(MONTH FROM noted_date)
ORDER BY year, month`,
	},
}

func Definitions() []View {
	out := make([]View, len(definitions))
	copy(out, definitions)
	return out
}

func Names() []string {
	names := make([]string, len(definitions))
	for i, v := range definitions {
		names[i] = v.Name
	}
	return names
}

// IsView reports whether name is one of the defined views.
func IsView(name string) bool {
	for _, v := range definitions {
		if v.Name == name {
			return true
		}
	}
	return false
}

// Build (re)creates every view in order and stops at the first failure.
func Build(ctx context.Context, exec Execer, logger *slog.Logger) error {
	for _, v := range definitions {
		if err := exec.ExecDDL(ctx, v.SQL()); err != nil {
			return fmt.Errorf("aggregates: create view %s: %w", v.Name, err)
		}
		logging.OK(logger, "view ready", "view", v.Name)
	}
	logging.OK(logger, "all views ready", "count", len(definitions))
	return nil
}

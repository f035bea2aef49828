// Package schema creates the readings table and its secondary indexes.
// All statements are IF NOT EXISTS and safe to run on every pipeline start.
package schema

import (
	"context"
	"fmt"
	"log/slog"

	"tempsense/internal/logging"
	"tempsense/internal/readings"
)

// Execer runs a single DDL statement in its own transaction.
type Execer interface {
	ExecDDL(ctx context.Context, stmt string) error
}

const createTableSQL = `CREATE TABLE IF NOT EXISTS ` + readings.Table + ` (
	id            VARCHAR(255) PRIMARY KEY,
	room_id       VARCHAR(255) NOT NULL,
	noted_date    TIMESTAMP    NOT NULL,
	temperature   DECIMAL(5,2) NOT NULL,
	location_type VARCHAR(10)  NOT NULL,
	created_at    TIMESTAMP    DEFAULT CURRENT_TIMESTAMP
)`

type index struct {
	Name   string
	Column string
}

var indexes = []index{
	{Name: "idx_readings_room_id", Column: "room_id"},
	{Name: "idx_readings_noted_date", Column: "noted_date"},
	{Name: "idx_readings_temperature", Column: "temperature"},
	{Name: "idx_readings_location_type", Column: "location_type"},
}

// Statements returns the DDL in execution order: the table, then the indexes.
func Statements() []string {
	stmts := []string{createTableSQL}
	for _, ix := range indexes {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", ix.Name, readings.Table, ix.Column))
	}
	return stmts
}

// Ensure creates the table and indexes if they are missing. The first failing
// statement aborts and is returned.
func Ensure(ctx context.Context, exec Execer, logger *slog.Logger) error {
	if err := exec.ExecDDL(ctx, createTableSQL); err != nil {
		return fmt.Errorf("schema: create table %s: %w", readings.Table, err)
	}
	logging.OK(logger, "table ready", "table", readings.Table)

	for i, stmt := range Statements()[1:] {
		if err := exec.ExecDDL(ctx, stmt); err != nil {
			return fmt.Errorf("schema: create index %s: %w", indexes[i].Name, err)
		}
	}
	logging.OK(logger, "indexes ready", "count", len(indexes))
	return nil
}

// Package quarantine keeps the rows the loader did not store in a local
// SQLite file, one table, tagged with the run that produced them.
package quarantine

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"tempsense/internal/loader"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS rejected_rows (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT    NOT NULL,
	source      TEXT    NOT NULL,
	line        INTEGER NOT NULL,
	batch       INTEGER NOT NULL,
	reason      TEXT    NOT NULL,
	detail      TEXT    NOT NULL DEFAULT '',
	record      TEXT    NOT NULL,
	rejected_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_rejected_rows_run_id ON rejected_rows (run_id);
`

const insertSQL = `INSERT INTO rejected_rows (run_id, source, line, batch, reason, detail, record)
VALUES (?, ?, ?, ?, ?, ?, ?)`

type Store struct {
	db  *sql.DB
	run string
}

// Open creates (or reuses) the dead-letter file at path. Rows written through
// the returned Store are tagged with runID.
func Open(path, runID string) (*Store, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("quarantine: open: %w", err)
	}
	// One writer; the loader calls Reject sequentially anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("quarantine: ping %s: %w", path, err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("quarantine: create table: %w", err)
	}
	return &Store{db: db, run: runID}, nil
}

func buildDSN(path string) (string, error) {
	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	if path == ":memory:" {
		return "file::memory:?" + strings.Join(params[:1], "&"), nil
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("quarantine: mkdir %s: %w", dir, err)
		}
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Reject writes rs in one transaction.
func (s *Store) Reject(ctx context.Context, rs []loader.Rejection) error {
	if len(rs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("quarantine: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("quarantine: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rs {
		rec, err := encodeRecord(r.Record)
		if err != nil {
			return fmt.Errorf("quarantine: encode line %d: %w", r.Line, err)
		}
		if _, err := stmt.ExecContext(ctx, s.run, r.Source, r.Line, r.Batch, string(r.Reason), r.Detail, rec); err != nil {
			return fmt.Errorf("quarantine: insert line %d: %w", r.Line, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("quarantine: commit: %w", err)
	}
	return nil
}

// Count returns how many rows this run has quarantined.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rejected_rows WHERE run_id = ?`, s.run).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("quarantine: count: %w", err)
	}
	return n, nil
}

func (s *Store) CountByReason(ctx context.Context) (map[loader.Reason]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reason, COUNT(*) FROM rejected_rows WHERE run_id = ? GROUP BY reason`, s.run)
	if err != nil {
		return nil, fmt.Errorf("quarantine: count by reason: %w", err)
	}
	defer rows.Close()

	out := make(map[loader.Reason]int64)
	for rows.Next() {
		var reason string
		var n int64
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("quarantine: scan: %w", err)
		}
		out[loader.Reason(reason)] = n
	}
	return out, rows.Err()
}

// encodeRecord stores the raw fields as one CSV line so they can be replayed.
func encodeRecord(fields []string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

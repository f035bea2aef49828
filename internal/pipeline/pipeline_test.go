package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"tempsense/internal/aggregates"
	"tempsense/internal/config"
	"tempsense/internal/loader"
	"tempsense/internal/logging"
	"tempsense/internal/quarantine"
	"tempsense/internal/readings"
	"tempsense/internal/schema"
)

type zeroRow struct{ err error }

func (r zeroRow) Scan(...any) error { return r.err }

type fakeStore struct {
	ddl       []string
	failDDL   string
	inserted  []readings.Reading
	insertErr error
	queryErr  error
	closed    bool
}

func (f *fakeStore) ExecDDL(_ context.Context, stmt string) error {
	f.ddl = append(f.ddl, stmt)
	if f.failDDL != "" && strings.Contains(stmt, f.failDDL) {
		return errors.New("permission denied")
	}
	return nil
}

func (f *fakeStore) AppendReadings(_ context.Context, rs []readings.Reading) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, rs...)
	return int64(len(rs)), nil
}

func (f *fakeStore) QueryRow(context.Context, string, ...any) pgx.Row {
	return zeroRow{err: f.queryErr}
}

func (f *fakeStore) Close() { f.closed = true }

func connectTo(s *fakeStore) Connector {
	return func(context.Context, config.Config, *slog.Logger) (Store, error) { return s, nil }
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "IOT-temp.csv")
	body := "id,room_id/id,noted_date,temp,out/in\n" +
		"id1,room1,29-07-2018 09:29,29,In\n" +
		"id2,room2,29-07-2018 09:30,,Out\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return config.Config{CSVPath: path, BatchSize: 10000}
}

func TestRun_happyPath(t *testing.T) {
	store := &fakeStore{}

	res := New(testConfig(t), logging.Discard(), WithConnector(connectTo(store))).Run(context.Background())
	if !res.OK() {
		t.Fatalf("Run() = %+v, want Done", res)
	}
	if res.Err != nil {
		t.Errorf("Err = %v", res.Err)
	}
	if res.Load.Inserted != 1 || len(store.inserted) != 1 || store.inserted[0].ID != "id1" {
		t.Errorf("load = %+v, stored %+v", res.Load, store.inserted)
	}
	want := len(schema.Statements()) + len(aggregates.Definitions())
	if len(store.ddl) != want {
		t.Errorf("ran %d DDL statements, want %d", len(store.ddl), want)
	}
	if !store.closed {
		t.Error("store not closed")
	}
}

func TestRun_failures(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeStore
		cfg   func(config.Config) config.Config
		step  State
	}{
		{name: "schema", store: &fakeStore{failDDL: "CREATE TABLE"}, step: CreateSchema},
		{name: "views", store: &fakeStore{failDDL: "CREATE OR REPLACE VIEW"}, step: CreateViews},
		{
			name:  "missing csv",
			store: &fakeStore{},
			cfg:   func(c config.Config) config.Config { c.CSVPath += ".missing"; return c },
			step:  LoadCSV,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.cfg != nil {
				cfg = tt.cfg(cfg)
			}
			res := New(cfg, logging.Discard(), WithConnector(connectTo(tt.store))).Run(context.Background())
			if res.OK() || res.State != Failed {
				t.Fatalf("State = %v, want failed", res.State)
			}
			if res.FailedStep != tt.step {
				t.Errorf("FailedStep = %v, want %v", res.FailedStep, tt.step)
			}
			if res.Err == nil {
				t.Error("Err = nil")
			}
			if !tt.store.closed {
				t.Error("store not closed after failure")
			}
		})
	}
}

func TestRun_connectFailureStopsEverything(t *testing.T) {
	called := false
	connect := func(context.Context, config.Config, *slog.Logger) (Store, error) {
		called = true
		return nil, errors.New("connection refused")
	}

	res := New(testConfig(t), logging.Discard(), WithConnector(connect)).Run(context.Background())
	if !called {
		t.Fatal("connector not called")
	}
	if res.FailedStep != Connect || !strings.Contains(res.Err.Error(), "connection refused") {
		t.Errorf("Result = %+v", res)
	}
}

func TestRun_batchFailuresDoNotFailRun(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("duplicate key")}

	res := New(testConfig(t), logging.Discard(), WithConnector(connectTo(store))).Run(context.Background())
	if !res.OK() {
		t.Fatalf("Run() = %+v, want Done", res)
	}
	if res.Load.FailedBatches != 1 || res.Load.Inserted != 0 {
		t.Errorf("load = %+v", res.Load)
	}
}

func TestRun_statsFailureDoesNotFailRun(t *testing.T) {
	store := &fakeStore{queryErr: errors.New("timeout")}

	res := New(testConfig(t), logging.Discard(), WithConnector(connectTo(store))).Run(context.Background())
	if !res.OK() {
		t.Fatalf("Run() = %+v, want Done", res)
	}
	if res.StatsOK {
		t.Error("StatsOK = true, want false")
	}
}

func TestRun_quarantine(t *testing.T) {
	cfg := testConfig(t)
	cfg.QuarantinePath = filepath.Join(t.TempDir(), "rejected.db")
	clock := func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	res := New(cfg, logging.Discard(), WithConnector(connectTo(&fakeStore{})), WithClock(clock)).Run(context.Background())
	if !res.OK() {
		t.Fatalf("Run() = %+v", res)
	}
	if res.Load.Dropped[loader.ReasonNullField] != 1 {
		t.Errorf("Dropped = %v", res.Load.Dropped)
	}

	q, err := quarantine.Open(cfg.QuarantinePath, "20240102T030405Z")
	if err != nil {
		t.Fatalf("open quarantine: %v", err)
	}
	defer q.Close()
	n, err := q.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("quarantined %d rows, want 1", n)
	}
}

func TestStateString(t *testing.T) {
	want := []string{"connect", "create_schema", "load_csv", "create_views", "report_stats", "done", "failed"}
	for i, w := range want {
		if got := State(i).String(); got != w {
			t.Errorf("State(%d) = %q, want %q", i, got, w)
		}
	}
}

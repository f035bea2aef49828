//go:build e2e

package e2e

import (
	"context"
	"testing"

	"tempsense/internal/dashboard/repository"
	"tempsense/internal/db"
	"tempsense/internal/logging"
	"tempsense/internal/pipeline"
)

const sampleCSV = `id,room_id/id,noted_date,temp,out/in
__export__.temp_log_196134_bd201015,Room Admin,08-12-2018 09:30,29,In
__export__.temp_log_196131_7bca51bc,Room Admin,08-12-2018 09:30,29,In
__export__.temp_log_196127_522915e3,Room Admin,08-12-2018 09:29,41,Out
__export__.temp_log_196128_be0919cf,Room Admin,08-12-2018 09:29,41,Out
__export__.temp_log_196126_d30b72fb,Room Admin,08-12-2018 09:29,31,In
__export__.temp_log_196125_b0fa0b41,Room B,08-12-2018 09:29,,Out
__export__.temp_log_196121_01544d45,Room B,2018/12/08 09:28,29,In
__export__.temp_log_196124_a0f1e6e9,Room B,08-12-2018 09:28,30,In
`

func TestPipeline_loadsAndBuildsViews(t *testing.T) {
	cfg := startPostgres(t)
	cfg.CSVPath = writeCSV(t, sampleCSV)
	ctx := context.Background()

	res := pipeline.Run(ctx, cfg, logging.Discard())
	if !res.OK() {
		t.Fatalf("first run failed at %v: %v", res.FailedStep, res.Err)
	}
	if res.Load.Inserted != 6 || res.Load.DroppedTotal() != 2 {
		t.Errorf("load = %+v, want 6 inserted, 2 dropped", res.Load)
	}
	if !res.StatsOK || res.Stats.Total != 6 || res.Stats.Devices != 2 {
		t.Errorf("stats = %+v (ok=%v)", res.Stats, res.StatsOK)
	}

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer db.Close(conn)
	repo := repository.NewRepository(conn)

	devices, err := repo.DeviceSummary(ctx)
	if err != nil {
		t.Fatalf("DeviceSummary: %v", err)
	}
	if len(devices) != 2 {
		t.Errorf("device summary rows = %d, want one per device (2)", len(devices))
	}

	top, err := repo.TopTemperatures(ctx)
	if err != nil {
		t.Fatalf("TopTemperatures: %v", err)
	}
	if len(top) != 6 || top[0].Temperature != 41 {
		t.Errorf("top = %+v", top)
	}

	overview, err := repo.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if overview.TotalReadings != 6 || overview.AvgTemp == nil || *overview.AvgTemp != 33.5 {
		t.Errorf("overview = %+v", overview)
	}

	// Same file again: every id already exists, so every batch fails on the
	// primary key and nothing changes.
	again := pipeline.Run(ctx, cfg, logging.Discard())
	if !again.OK() {
		t.Fatalf("second run failed at %v: %v", again.FailedStep, again.Err)
	}
	if again.Load.Inserted != 0 || again.Load.Batches != 4 || again.Load.FailedBatches != 4 {
		t.Errorf("second load = %+v, want all 4 batches to fail", again.Load)
	}
	if again.Stats.Total != 6 {
		t.Errorf("row count after second run = %d, want 6", again.Stats.Total)
	}
}

func TestPipeline_referenceExample(t *testing.T) {
	cfg := startPostgres(t)
	cfg.CSVPath = writeCSV(t, "id,room_id/id,noted_date,temp,out/in\n"+
		"id1,room1,29-07-2018 09:29,29,In\n"+
		"id2,room2,29-07-2018 09:30,,Out\n")
	ctx := context.Background()

	res := pipeline.Run(ctx, cfg, logging.Discard())
	if !res.OK() {
		t.Fatalf("run failed at %v: %v", res.FailedStep, res.Err)
	}

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer db.Close(conn)

	locations, err := repository.NewRepository(conn).LocationSummary(ctx)
	if err != nil {
		t.Fatalf("LocationSummary: %v", err)
	}
	if len(locations) != 1 {
		t.Fatalf("locations = %+v, want only In", locations)
	}
	if locations[0].LocationType != "In" || locations[0].AvgTemp != 29 {
		t.Errorf("location row = %+v", locations[0])
	}
}

func TestPipeline_connectFailure(t *testing.T) {
	cfg := startPostgres(t)
	cfg.Postgres.Password = "wrong"
	cfg.CSVPath = writeCSV(t, sampleCSV)

	res := pipeline.Run(context.Background(), cfg, logging.Discard())
	if res.OK() || res.FailedStep != pipeline.Connect {
		t.Errorf("result = %+v, want failure at connect", res)
	}
}

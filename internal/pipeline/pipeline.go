// Package pipeline runs the load end to end: connect, ensure the schema,
// load the CSV, rebuild the views, report. Steps run in order and the first
// failure stops the run; the report step never fails it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tempsense/internal/aggregates"
	"tempsense/internal/config"
	"tempsense/internal/loader"
	"tempsense/internal/logging"
	"tempsense/internal/quarantine"
	"tempsense/internal/schema"
	"tempsense/internal/stats"
	"tempsense/internal/storage"
)

type State int

const (
	Connect State = iota
	CreateSchema
	LoadCSV
	CreateViews
	ReportStats
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Connect:
		return "connect"
	case CreateSchema:
		return "create_schema"
	case LoadCSV:
		return "load_csv"
	case CreateViews:
		return "create_views"
	case ReportStats:
		return "report_stats"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Store is everything the steps need from the database.
type Store interface {
	schema.Execer
	loader.Sink
	stats.Querier
	Close()
}

// Connector opens the store. Production uses OpenStorage.
type Connector func(ctx context.Context, cfg config.Config, logger *slog.Logger) (Store, error)

func OpenStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (Store, error) {
	s, err := storage.Open(ctx, cfg.Postgres, cfg.LogSQL, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type Result struct {
	State State
	// FailedStep is the step that moved the run to Failed.
	FailedStep State
	Err        error
	Load       loader.Summary
	Stats      stats.Stats
	// StatsOK is false when the report step logged failures.
	StatsOK bool
}

func (r Result) OK() bool { return r.State == Done }

type Pipeline struct {
	cfg     config.Config
	connect Connector
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Pipeline)

func WithConnector(c Connector) Option {
	return func(p *Pipeline) { p.connect = c }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{cfg: cfg, connect: OpenStorage, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run is New(cfg, logger).Run(ctx).
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) Result {
	return New(cfg, logger).Run(ctx)
}

func (p *Pipeline) Run(ctx context.Context) Result {
	var res Result
	start := p.now()

	fail := func(step State, err error) Result {
		logging.Fail(p.logger, "pipeline: step failed", "step", step.String(), "error", err)
		res.State = Failed
		res.FailedStep = step
		res.Err = err
		return res
	}

	res.State = Connect
	p.stepStarted(Connect)
	store, err := p.connect(ctx, p.cfg, p.logger)
	if err != nil {
		return fail(Connect, err)
	}
	defer store.Close()
	p.stepOK(Connect, "host", p.cfg.Postgres.Host, "database", p.cfg.Postgres.Database)

	res.State = CreateSchema
	p.stepStarted(CreateSchema)
	if err := schema.Ensure(ctx, store, p.logger); err != nil {
		return fail(CreateSchema, err)
	}
	p.stepOK(CreateSchema)

	res.State = LoadCSV
	p.stepStarted(LoadCSV, "path", p.cfg.CSVPath)
	sum, err := p.load(ctx, store)
	res.Load = sum
	if err != nil {
		return fail(LoadCSV, err)
	}
	p.stepOK(LoadCSV, "inserted", sum.Inserted, "failed_batches", sum.FailedBatches)

	res.State = CreateViews
	p.stepStarted(CreateViews)
	if err := aggregates.Build(ctx, store, p.logger); err != nil {
		return fail(CreateViews, err)
	}
	p.stepOK(CreateViews, "views", len(aggregates.Names()))

	res.State = ReportStats
	p.stepStarted(ReportStats)
	res.Stats, res.StatsOK = stats.NewReporter(store, p.logger).Report(ctx)
	p.stepOK(ReportStats)

	res.State = Done
	logging.OK(p.logger, "pipeline: done", "duration", p.now().Sub(start).Truncate(time.Millisecond))
	return res
}

func (p *Pipeline) load(ctx context.Context, store Store) (loader.Summary, error) {
	opts := []loader.Option{loader.WithLogger(p.logger), loader.WithClock(p.now)}
	if p.cfg.QuarantinePath != "" {
		runID := p.now().UTC().Format("20060102T150405Z")
		q, err := quarantine.Open(p.cfg.QuarantinePath, runID)
		if err != nil {
			return loader.Summary{}, err
		}
		defer func() {
			if err := q.Close(); err != nil {
				p.logger.Warn("quarantine close failed", "error", err)
			}
		}()
		p.logger.Info("quarantine enabled", "path", p.cfg.QuarantinePath, "run_id", runID)
		opts = append(opts, loader.WithQuarantine(q))
	}
	return loader.New(p.cfg.BatchSize, store, opts...).Load(ctx, p.cfg.CSVPath)
}

func (p *Pipeline) stepStarted(s State, args ...any) {
	p.logger.Info("pipeline: step started", append([]any{"step", s.String()}, args...)...)
}

func (p *Pipeline) stepOK(s State, args ...any) {
	logging.OK(p.logger, "pipeline: step ok", append([]any{"step", s.String()}, args...)...)
}

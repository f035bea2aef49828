// Package loader streams the sensor CSV export into the store in bounded
// batches. Rows that fail normalization are dropped and counted; a batch whose
// insert fails is skipped and loading moves on to the next one.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"tempsense/internal/logging"
	"tempsense/internal/readings"
	"tempsense/internal/storage"
)

var (
	ErrSourceNotFound = errors.New("loader: source file not found")
	ErrEmptySource    = errors.New("loader: source has no header row")
)

// Sink receives each batch of normalized readings as one bulk insert.
type Sink interface {
	AppendReadings(ctx context.Context, rs []readings.Reading) (int64, error)
}

// Rejecter records rows the loader did not store.
type Rejecter interface {
	Reject(ctx context.Context, rs []Rejection) error
}

type Rejection struct {
	Source string
	Line   int
	Batch  int
	Reason Reason
	Detail string
	Record []string
}

type Summary struct {
	Source        string
	Rows          int64 // data rows read, header excluded
	Inserted      int64
	Dropped       map[Reason]int64
	Batches       int
	FailedBatches int
	Bytes         int64
	Duration      time.Duration
}

func (s Summary) DroppedTotal() int64 {
	var n int64
	for _, v := range s.Dropped {
		n += v
	}
	return n
}

type Loader struct {
	batchSize int
	sink      Sink
	rejecter  Rejecter
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Loader)

// WithQuarantine sends every dropped row and every row of a failed batch to r.
func WithQuarantine(r Rejecter) Option {
	return func(l *Loader) { l.rejecter = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

func New(batchSize int, sink Sink, opts ...Option) *Loader {
	l := &Loader{
		batchSize: batchSize,
		sink:      sink,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.batchSize <= 0 {
		l.batchSize = 10000
	}
	return l
}

type rawRow struct {
	line   int
	record []string
	err    error
}

// Load reads path once, front to back. It returns an error only when the
// source cannot be read or ctx is done; batch failures are reported in the
// Summary.
func (l *Loader) Load(ctx context.Context, path string) (Summary, error) {
	start := l.now()
	sum := Summary{Source: path, Dropped: make(map[Reason]int64)}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sum, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return sum, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	l.logger.Info("loading csv", "path", path, "bytes", size, "batch_size", l.batchSize)

	counter := &countingReader{r: f}
	// Strip a UTF-8 BOM (or decode UTF-16 when one announces it).
	cr := csv.NewReader(transform.NewReader(counter, unicode.BOMOverride(transform.Nop)))
	cr.FieldsPerRecord = -1

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return sum, fmt.Errorf("%w: %s", ErrEmptySource, path)
		}
		return sum, fmt.Errorf("loader: read header of %s: %w", path, err)
	}

	batch := make([]rawRow, 0, l.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		sum.Batches++
		err := l.processBatch(ctx, sum.Batches, batch, &sum)
		batch = batch[:0]
		sum.Bytes = counter.n
		l.logProgress(&sum, size)
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return sum, fmt.Errorf("loader: read %s: %w", path, err)
			}
			batch = append(batch, rawRow{line: perr.StartLine, record: rec, err: perr})
		} else {
			line, _ := cr.FieldPos(0)
			batch = append(batch, rawRow{line: line, record: rec})
		}
		if len(batch) == l.batchSize {
			if err := flush(); err != nil {
				return sum, err
			}
		}
	}
	if err := flush(); err != nil {
		return sum, err
	}

	sum.Bytes = counter.n
	sum.Duration = l.now().Sub(start)
	logging.OK(l.logger, "csv processed",
		"path", path,
		"rows", sum.Rows,
		"inserted", sum.Inserted,
		"dropped", sum.DroppedTotal(),
		"batches", sum.Batches,
		"failed_batches", sum.FailedBatches,
		"duration", sum.Duration.Truncate(time.Millisecond),
	)
	if sum.FailedBatches > 0 {
		logging.Fail(l.logger, "some batches were skipped", "failed_batches", sum.FailedBatches, "batches", sum.Batches)
	}
	return sum, nil
}

// processBatch normalizes and inserts one batch. The only error it returns is
// ctx's; every other failure is absorbed into sum.
func (l *Loader) processBatch(ctx context.Context, n int, rows []rawRow, sum *Summary) error {
	sum.Rows += int64(len(rows))

	good, kept, rejected := normalizeBatch(rows)
	for i := range rejected {
		rejected[i].Source = sum.Source
		rejected[i].Batch = n
		sum.Dropped[rejected[i].Reason]++
	}
	if len(rejected) > 0 {
		l.logger.Debug("rows dropped", "batch", n, "dropped", len(rejected))
	}

	if len(good) > 0 {
		inserted, err := l.sink.AppendReadings(ctx, good)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			sum.FailedBatches++
			reason := ReasonBatchFailed
			if storage.IsUniqueViolation(err) {
				reason = ReasonDuplicateID
			}
			logging.Fail(l.logger, "batch skipped", "batch", n, "rows", len(good), "reason", string(reason), "error", err)
			for _, r := range kept {
				rejected = append(rejected, Rejection{
					Source: sum.Source, Line: r.line, Batch: n,
					Reason: reason, Detail: err.Error(), Record: r.record,
				})
			}
		} else {
			sum.Inserted += inserted
		}
	}

	if l.rejecter != nil && len(rejected) > 0 {
		if err := l.rejecter.Reject(ctx, rejected); err != nil {
			l.logger.Warn("quarantine write failed", "batch", n, "rows", len(rejected), "error", err)
		}
	}
	return nil
}

func (l *Loader) logProgress(sum *Summary, size int64) {
	pct := 100.0
	if size > 0 {
		pct = min(100, float64(sum.Bytes)*100/float64(size))
	}
	logging.Progress(l.logger, "batch processed",
		"batch", sum.Batches,
		"pct", fmt.Sprintf("%.1f%%", pct),
		"rows", sum.Rows,
		"inserted", sum.Inserted,
	)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Package storage is the pipeline's PostgreSQL store. Every discrete
// operation (one DDL statement, one batch insert) acquires its own pooled
// connection, runs inside one transaction, commits and releases it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"tempsense/internal/config"
	"tempsense/internal/readings"
)

// SQLSTATE codes the pipeline cares about.
const (
	CodeUniqueViolation = "23505"
)

type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open builds the pool and validates connectivity with a ping. With logSQL
// every statement is traced through logger at debug level.
func Open(ctx context.Context, cfg config.Postgres, logSQL bool, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("storage: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if logSQL {
		poolCfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   slogTracer(logger),
			LogLevel: tracelog.LogLevelDebug,
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping %s: %w", cfg.DSN(true), err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// ExecDDL runs one statement in its own transaction.
func (s *Store) ExecDDL(ctx context.Context, stmt string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return describe(err)
		}
		return nil
	})
}

// AppendReadings bulk-inserts rs with COPY. It does not deduplicate: a
// repeated id fails the whole call and nothing from rs is kept.
func (s *Store) AppendReadings(ctx context.Context, rs []readings.Reading) (int64, error) {
	if len(rs) == 0 {
		return 0, nil
	}
	var n int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		n, err = tx.CopyFrom(ctx,
			pgx.Identifier{readings.Table},
			readings.Columns,
			pgx.CopyFromSlice(len(rs), func(i int) ([]any, error) {
				return rs[i].Values(), nil
			}),
		)
		if err != nil {
			return describe(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// QueryRow runs a read-only single-row query on a pooled connection.
func (s *Store) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.pool.QueryRow(ctx, sql, args...)
}

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		// The caller's ctx may already be done; rollback must still reach the server.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", describe(err))
	}
	return nil
}

// describe folds the server's SQLSTATE and detail into err's message.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.Detail != "" {
		return fmt.Errorf("%w (sqlstate %s: %s)", err, pgErr.Code, pgErr.Detail)
	}
	return fmt.Errorf("%w (sqlstate %s)", err, pgErr.Code)
}

// IsUniqueViolation reports whether err carries SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == CodeUniqueViolation
}

package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"tempsense/internal/config"
	"tempsense/internal/dashboard"
	dashboardviews "tempsense/internal/dashboard/views"
	db "tempsense/internal/db"
	httpapi "tempsense/internal/httpapi"
)

// Run serves the dashboard until ctx is done, then shuts the server down.
func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"staticDir", cfg.StaticDir,
		"driver", cfg.Driver,
		"postgres", cfg.Postgres.DSN(true),
		"maxOpenConns", cfg.MaxOpenConns,
		"maxIdleConns", cfg.MaxIdleConns,
		"connMaxLifetime", cfg.ConnMaxLifetime,
	)
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()
	slog.Info("database connection successful")

	if err := dashboardviews.LoadTemplates(); err != nil {
		return err
	}
	mux := httpapi.NewMux(dbConn, cfg.StaticDir)
	dashboard.RegisterFeature(mux, dbConn)

	srv := httpapi.NewServer(cfg, mux)
	return serve(ctx, srv)
}

func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err := <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

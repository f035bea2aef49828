//go:build e2e

package e2e

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"tempsense/internal/config"
)

const (
	pgUser     = "postgres"
	pgPassword = "admin"
	pgDatabase = "database_trabalho"
)

var pgPort = nat.Port("5432/tcp")

// startPostgres runs a throwaway PostgreSQL and returns a config pointing at it.
func startPostgres(t *testing.T) config.Config {
	t.Helper()
	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{string(pgPort)},
		Env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       pgDatabase,
		},
		// The entrypoint restarts the server once after init; wait for the second ready line.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort(pgPort),
		).WithDeadline(60 * time.Second),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, pgPort)
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}

	return config.Config{
		AppEnv:    "dev",
		BatchSize: 2,
		Postgres: config.Postgres{
			Host:     host,
			Port:     mapped.Int(),
			User:     pgUser,
			Password: pgPassword,
			Database: pgDatabase,
			SSLMode:  "disable",
			MaxConns: 4,
		},
		Driver:       "postgres",
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	}
}

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "IOT-temp.csv")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

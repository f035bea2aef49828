package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultBatchSize = 10000
	DefaultCSVPath   = "data/IOT-temp.csv"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	// LogSQL turns on statement tracing for the pipeline pool (logged at debug).
	LogSQL bool

	CSVPath   string
	BatchSize int
	// QuarantinePath is the SQLite file that receives rejected rows. Empty disables it.
	QuarantinePath string

	Postgres Postgres

	// Dashboard side. Driver is the database/sql driver name used by the dashboard.
	HTTPAddr        string
	StaticDir       string
	Driver          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Postgres is the fixed connection tuple of the store.
type Postgres struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// URL returns a postgres:// connection URL accepted by both pgx and lib/pq.
func (p Postgres) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.Database,
	}
	q := url.Values{}
	q.Set("sslmode", p.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// DSN returns the keyword/value form, used in logs with the password masked.
func (p Postgres) DSN(maskPassword bool) string {
	pw := p.Password
	if maskPassword && pw != "" {
		pw = "***"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, pw, p.Database, p.SSLMode)
}

// LoadFromEnv reads an optional .env file (ENV_FILE, default ".env") and then
// the process environment. Variables already set in the environment win.
func LoadFromEnv() (Config, error) {
	envFile := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %q: %w", envFile, err)
	}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	logSQL, err := getEnvBool("LOG_SQL", false)
	if err != nil {
		return Config{}, err
	}

	batchSize, err := getEnvInt("BATCH_SIZE", DefaultBatchSize)
	if err != nil {
		return Config{}, err
	}
	if batchSize <= 0 {
		return Config{}, fmt.Errorf("invalid BATCH_SIZE %d (must be > 0)", batchSize)
	}

	pg, err := loadPostgres()
	if err != nil {
		return Config{}, err
	}

	staticDir, err := filepath.Abs(getEnv("STATIC_DIR", "static"))
	if err != nil {
		return Config{}, fmt.Errorf("STATIC_DIR: %w", err)
	}

	maxOpenConns, err := getEnvInt("DB_MAX_OPEN_CONNS", 4)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := getEnvInt("DB_MAX_IDLE_CONNS", 2)
	if err != nil {
		return Config{}, err
	}

	lifetimeStr := getEnv("DB_CONN_MAX_LIFETIME", "0s")
	connMaxLifetime, err := time.ParseDuration(lifetimeStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME %q: %w", lifetimeStr, err)
	}

	return Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		LogSQL:          logSQL,
		CSVPath:         getEnv("CSV_PATH", DefaultCSVPath),
		BatchSize:       batchSize,
		QuarantinePath:  getEnv("QUARANTINE_PATH", ""),
		Postgres:        pg,
		HTTPAddr:        getEnv("HTTP_ADDR", ":8501"),
		StaticDir:       staticDir,
		Driver:          getEnv("DB_DRIVER", "postgres"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
	}, nil
}

func loadPostgres() (Postgres, error) {
	port, err := getEnvInt("POSTGRES_PORT", 5432)
	if err != nil {
		return Postgres{}, err
	}
	if port <= 0 || port > 65535 {
		return Postgres{}, fmt.Errorf("invalid POSTGRES_PORT %d", port)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 4)
	if err != nil {
		return Postgres{}, err
	}
	if maxConns <= 0 {
		return Postgres{}, fmt.Errorf("invalid DB_MAX_CONNS %d (must be > 0)", maxConns)
	}

	sslMode := getEnv("POSTGRES_SSLMODE", "disable")
	switch sslMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return Postgres{}, fmt.Errorf("invalid POSTGRES_SSLMODE %q", sslMode)
	}

	return Postgres{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     port,
		User:     getEnv("POSTGRES_USER", "postgres"),
		Password: getEnv("POSTGRES_PASSWORD", "admin"),
		Database: getEnv("POSTGRES_DB", "database_trabalho"),
		SSLMode:  sslMode,
		MaxConns: int32(maxConns),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SetupDatabase opens the record store described by cfg. It supports the
// "sqlite", "postgres" and "mysql" drivers, sends GORM's own logging through
// logger and applies the pool limits.
func SetupDatabase(cfg *DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	if cfg == nil {
		return nil, errors.New("database config is nil")
	}
	if logger == nil {
		return nil, errors.New("logger is nil")
	}

	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dir := filepath.Dir(cfg.SQLite.Path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory %q: %w", dir, err)
			}
		}
		dialector = sqlite.Open(buildSQLiteDSN(cfg.SQLite.Path))
	case "postgres":
		dialector = postgres.Open(buildPostgresDSN(&cfg.Postgres))
	case "mysql":
		dialector = mysql.Open(buildMySQLDSN(&cfg.MySQL))
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := configurePool(db, &cfg.Pool); err != nil {
		// Close the already-opened connection before returning.
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, err
	}

	logger.Info("database connected",
		slog.String("driver", cfg.Driver),
		slog.Int("max_idle_conns", effectiveMaxIdleConns(cfg.Pool.MaxIdleConns)),
		slog.Int("max_open_conns", effectiveMaxOpenConns(cfg.Pool.MaxOpenConns)),
		slog.String("conn_max_lifetime", effectiveConnMaxLifetime(cfg.Pool.ConnMaxLifetime)),
	)

	return db, nil
}

// configurePool sets connection pool parameters on the underlying sql.DB.
// Zero/empty values are replaced with sensible defaults.
func configurePool(db *gorm.DB, pool *PoolConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(effectiveMaxIdleConns(pool.MaxIdleConns))
	sqlDB.SetMaxOpenConns(effectiveMaxOpenConns(pool.MaxOpenConns))

	lifetime, err := time.ParseDuration(effectiveConnMaxLifetime(pool.ConnMaxLifetime))
	if err != nil {
		return fmt.Errorf("invalid pool.conn_max_lifetime %q: %w", pool.ConnMaxLifetime, err)
	}
	sqlDB.SetConnMaxLifetime(lifetime)

	return nil
}

func effectiveMaxIdleConns(v int) int {
	if v <= 0 {
		return 10
	}
	return v
}

func effectiveMaxOpenConns(v int) int {
	if v <= 0 {
		return 100
	}
	return v
}

func effectiveConnMaxLifetime(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "1h"
	}
	return v
}

// gormWriter feeds GORM's printf-style log lines into slog.
type gormWriter struct {
	log   *slog.Logger
	level slog.Level
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Log(context.Background(), w.level, strings.TrimSpace(fmt.Sprintf(format, args...)),
		slog.String("component", "gorm"))
}

// newGormLogger logs every statement when logger is at debug, and only slow
// statements and errors otherwise.
func newGormLogger(logger *slog.Logger) gormlogger.Interface {
	mode, level := gormlogger.Warn, slog.LevelWarn
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		mode, level = gormlogger.Info, slog.LevelDebug
	}
	return gormlogger.New(gormWriter{log: logger, level: level}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  mode,
		IgnoreRecordNotFoundError: true,
	})
}

// buildSQLiteDSN turns on foreign keys and a busy timeout. File databases
// also switch to WAL so the dashboard can read while the API writes.
func buildSQLiteDSN(path string) string {
	pragmas := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"}
	if !strings.Contains(path, ":memory:") && !strings.Contains(path, "mode=memory") {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(pragmas, "&")
}

func buildPostgresDSN(cfg *PostgresConfig) string {
	if cfg == nil {
		return ""
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   cfg.DBName,
	}

	if cfg.User != "" || cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}

	query := url.Values{}
	if cfg.SSLMode != "" {
		query.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = query.Encode()

	return u.String()
}

// buildMySQLDSN renders the go-sql-driver DSN. parseTime is always on so
// DATETIME columns scan into time.Time.
func buildMySQLDSN(cfg *MySQLConfig) string {
	if cfg == nil {
		return ""
	}

	query := url.Values{}
	query.Set("charset", "utf8mb4")
	query.Set("parseTime", "true")
	query.Set("loc", "UTC")
	if cfg.TLS != "" && cfg.TLS != "false" {
		query.Set("tls", cfg.TLS)
	}

	return fmt.Sprintf("%s:%s@tcp(%s)/%s?%s",
		cfg.User, cfg.Password,
		net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		cfg.DBName, query.Encode(),
	)
}

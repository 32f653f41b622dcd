package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/mediscan/mediscan/internal/common"
)

// Supported values for common.DatabaseConfig.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB wraps a database handle for either driver. SQLite runs embedded
// (pure Go, no cgo); Postgres goes through a pgx pool exposed as
// database/sql.
type DB struct {
	conn   *sql.DB
	pool   *pgxpool.Pool
	driver string
	logger *slog.Logger
}

// Open connects per cfg.Driver and bootstraps the schema.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	d := &DB{driver: cfg.Driver, logger: logger}

	switch cfg.Driver {
	case DriverSQLite:
		logger.Info("opening sqlite database", "path", cfg.Path)
		conn, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
		if err != nil {
			return nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		// modernc.org/sqlite serializes writers; a single connection
		// avoids SQLITE_BUSY churn under concurrent workers.
		conn.SetMaxOpenConns(1)
		d.conn = conn

	case DriverPostgres:
		logger.Info("connecting to postgres", "max_conns", cfg.MaxConns)
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parsing postgres DSN: %w", err)
		}
		pc.MaxConns = cfg.MaxConns
		pc.MinConns = cfg.MinConns
		pc.MaxConnLifetime = cfg.MaxConnLifetime
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
		pc.ConnConfig.RuntimeParams["application_name"] = "mediscan"

		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		pool, err := pgxpool.NewWithConfig(dialCtx, pc)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		d.pool = pool
		d.conn = stdlib.OpenDBFromPool(pool)

	default:
		return nil, common.NewAppError("CONFIG_ERROR",
			fmt.Sprintf("unknown database driver %q", cfg.Driver), common.ErrInvalidInput)
	}

	if err := d.createSchema(ctx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("database ready", "driver", cfg.Driver)
	return d, nil
}

// HealthCheck pings the database with an optional timeout.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if d.pool != nil {
		return d.pool.Ping(ctx)
	}
	return d.conn.PingContext(ctx)
}

// Close releases the underlying connections.
func (d *DB) Close() error {
	d.logger.Info("closing database")
	err := d.conn.Close()
	if d.pool != nil {
		d.pool.Close()
	}
	return err
}

// Driver reports which backend this handle talks to.
func (d *DB) Driver() string {
	return d.driver
}

// rebind rewrites ? placeholders to $n for postgres. Queries in this
// package are written in SQLite's notation.
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

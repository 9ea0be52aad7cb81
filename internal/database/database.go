// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sethvargo/go-retry"

	"github.com/zhengbinger/bing-frame-sub000/internal/audit"
	"github.com/zhengbinger/bing-frame-sub000/internal/config"
	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

const (
	migrateRetries = 3
	migrateBackoff = 100 * time.Millisecond
)

// MemoryPath opens an in-memory database with either driver.
const MemoryPath = ":memory:"

// Migrator creates the tables it owns. audit.SQLStore and
// identity.SQLResolver both satisfy it.
type Migrator interface {
	CreateTable(ctx context.Context) error
}

// DB wraps the SQL connection used by the row store and the identity resolver.
type DB struct {
	conn    *sql.DB
	cfg     config.DatabaseConfig
	dialect audit.Dialect
}

// New opens the configured database and verifies the connection.
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	dsn, dialect, err := dataSourceName(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Path != MemoryPath {
		// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	conn, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg, dialect: dialect}
	db.configureConnectionPool()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	logging.Info().
		Str("driver", cfg.Driver).
		Str("path", cfg.Path).
		Msg("Database opened")
	return db, nil
}

// dataSourceName builds the driver DSN for cfg.
func dataSourceName(cfg config.DatabaseConfig) (string, audit.Dialect, error) {
	switch cfg.Driver {
	case "duckdb":
		path := cfg.Path
		if path == MemoryPath {
			path = ""
		}
		// Disable auto-install/auto-load to prevent hangs in restricted network environments
		return fmt.Sprintf("%s?access_mode=read_write&threads=%d&autoinstall_known_extensions=false&autoload_known_extensions=false",
			path, runtime.NumCPU()), audit.DialectDuckDB, nil
	case "sqlite3":
		if cfg.Path == MemoryPath {
			return "file::memory:?cache=shared&_busy_timeout=5000", audit.DialectSQLite, nil
		}
		return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", cfg.Path),
			audit.DialectSQLite, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

// configureConnectionPool sizes the pool for the engine. SQLite allows a
// single writer, so it gets a single connection.
func (db *DB) configureConnectionPool() {
	if db.dialect == audit.DialectSQLite {
		db.conn.SetMaxOpenConns(1)
		db.conn.SetMaxIdleConns(1)
		db.conn.SetConnMaxLifetime(0)
		return
	}
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Migrate runs each migrator in order. A write conflict with another
// process creating the same tables is retried a few times.
func (db *DB) Migrate(ctx context.Context, migrators ...Migrator) error {
	for _, m := range migrators {
		backoff := retry.WithMaxRetries(migrateRetries, retry.NewConstant(migrateBackoff))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			err := m.CreateTable(ctx)
			if IsTransactionConflict(err) {
				logging.Warn().Err(err).Msgf("Migration conflict for %T, retrying", m)
				return retry.RetryableError(err)
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("migrate %T: %w", m, err)
		}
	}
	return nil
}

// Conn returns the underlying SQL database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Dialect returns the SQL dialect for the open driver.
func (db *DB) Dialect() audit.Dialect {
	return db.dialect
}

// Path returns the configured database path.
func (db *DB) Path() string {
	return db.cfg.Path
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Checkpoint flushes the write-ahead log into the main database file.
func (db *DB) Checkpoint(ctx context.Context) error {
	stmt := "CHECKPOINT"
	if db.dialect == audit.DialectSQLite {
		stmt = "PRAGMA wal_checkpoint(TRUNCATE)"
	}
	if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// Close checkpoints and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if db.cfg.Path != MemoryPath {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.Checkpoint(ctx); err != nil {
			// Best effort; the log is replayed on next open.
			logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
		}
		cancel()
	}
	return db.conn.Close()
}

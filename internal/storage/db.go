// Package storage persists knowledge-base table snapshots in SQLite so
// lookups keep working when the spreadsheet backend is unreachable.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// DB wraps the SQLite snapshot database.
type DB struct {
	conn *sql.DB
	path string
	ttl  time.Duration
}

// New opens (or creates) the snapshot database and initializes its
// schema. ttl bounds how old a snapshot may be and still serve lookups;
// zero disables the check.
func New(dbPath string, ttl time.Duration) (*DB, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	// WAL keeps readers unblocked while the refresh job writes.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=30000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath, ttl: ttl}, nil
}

// Ready reports whether the database can serve queries.
func (db *DB) Ready(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// SnapshotTables returns the per-table cached row counts.
func (db *DB) SnapshotTables(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT table_name, row_count FROM snapshot_meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot meta: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var table string
		var count int
		if err := rows.Scan(&table, &count); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot meta: %w", err)
		}
		counts[table] = count
	}
	return counts, rows.Err()
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// TTL returns the configured snapshot time-to-live.
func (db *DB) TTL() time.Duration {
	return db.ttl
}

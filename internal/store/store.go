// Package store persists readings and the gateway/node registry. SQLite is
// the source of truth; InfluxDB optionally mirrors readings for dashboards.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

type migration struct {
	version     int
	description string
	stmts       []string
}

var migrations = []migration{
	{1, "readings", []string{
		`CREATE TABLE IF NOT EXISTS readings (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			node_id       TEXT    NOT NULL,
			gateway_id    TEXT    NOT NULL,
			temperature   REAL,
			humidity      REAL,
			soil_moisture REAL,
			light_level   REAL,
			battery_level INTEGER,
			rssi          INTEGER,
			ts_ms         INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings (ts_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_node_ts ON readings (node_id, ts_ms)`,
	}},
	{2, "registry", []string{
		`CREATE TABLE IF NOT EXISTS gateways (
			gateway_id    TEXT    PRIMARY KEY,
			name          TEXT    NOT NULL,
			local_ip      TEXT    NOT NULL DEFAULT '',
			client_ip     TEXT    NOT NULL DEFAULT '',
			last_seen_ms  INTEGER NOT NULL,
			created_at_ms INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS nodes (
			node_id       TEXT    PRIMARY KEY,
			gateway_id    TEXT    NOT NULL REFERENCES gateways (gateway_id),
			name          TEXT    NOT NULL,
			is_simulated  INTEGER NOT NULL DEFAULT 0,
			last_seen_ms  INTEGER NOT NULL,
			created_at_ms INTEGER NOT NULL
		)`,
	}},
}

// SQLiteStore is backed by modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens (or creates) the database at path, applies the pragmas and
// runs pending migrations. ":memory:" works for tests.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// Single connection: writes are serialized and an in-memory database
	// stays the same database across calls.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Ping is used by readiness probes.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			version     INTEGER PRIMARY KEY,
			description TEXT    NOT NULL,
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM _migrations WHERE version = ?", m.version,
		).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		err := s.tx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO _migrations (version, description) VALUES (?, ?)", m.version, m.description)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
	}
	return nil
}

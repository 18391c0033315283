// Package postgres provides the Postgres-backed navigation journal.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/guc-preloader/internal/navigation"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const (
	defaultTable = "navigations"
	maxListLimit = 500
)

// NavigationStoreConfig controls the Postgres connection pool used for the journal.
type NavigationStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryExecCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// NavigationStore writes navigation rows into Postgres.
type NavigationStore struct {
	pool  queryExecCloser
	table string
}

// NewNavigationStore connects to Postgres and makes sure the journal table exists.
func NewNavigationStore(ctx context.Context, cfg NavigationStoreConfig) (*NavigationStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &NavigationStore{pool: pool, table: table}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewNavigationStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewNavigationStoreWithPool(pool queryExecCloser, table string) (*NavigationStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &NavigationStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the journal table and its time index when missing.
func (s *NavigationStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id uuid PRIMARY KEY,
	session_id uuid NOT NULL,
	path text NOT NULL,
	target text NOT NULL,
	step text NOT NULL,
	navigated_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_navigated_at_idx ON %[1]s (navigated_at DESC)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure %s schema: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *NavigationStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Append inserts a navigation row.
func (s *NavigationStore) Append(ctx context.Context, rec navigation.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("navigation store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	session_id,
	path,
	target,
	step,
	navigated_at
) VALUES (
	$1,$2,$3,$4,$5,$6
)`, s.table)
	args := []any{rec.ID, rec.SessionID, rec.Path, rec.Target, rec.Step, rec.At}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert navigation: %w", err)
	}
	return nil
}

// Recent returns up to limit rows, newest first.
func (s *NavigationStore) Recent(ctx context.Context, limit int) ([]navigation.Record, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("navigation store is not configured")
	}
	query := fmt.Sprintf(`
SELECT id, session_id, path, target, step, navigated_at
FROM %s
ORDER BY navigated_at DESC
LIMIT $1`, s.table)
	rows, err := s.pool.Query(ctx, query, navigation.ClampLimit(limit, maxListLimit))
	if err != nil {
		return nil, fmt.Errorf("list navigations: %w", err)
	}
	defer rows.Close()

	out := []navigation.Record{}
	for rows.Next() {
		var rec navigation.Record
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Path, &rec.Target, &rec.Step, &rec.At); err != nil {
			return nil, fmt.Errorf("scan navigation: %w", err)
		}
		rec.At = rec.At.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate navigations: %w", err)
	}
	return out, nil
}

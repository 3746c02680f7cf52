// Package postgres stores cache entries in a PostgreSQL table. Expired rows
// are invisible to reads and are removed by PurgeExpired.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/adeilh/go-rakh-kv/cache"
)

// ErrSchemaMissing is returned when the entries table has not been created.
var ErrSchemaMissing = errors.New("postgres: kv_entries table missing; apply Schema first")

// Schema creates the entries table. Apply it with postgres.ApplyMigrations
// from db/sql/postgres.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS kv_entries (
    key TEXT PRIMARY KEY,
    value BYTEA NOT NULL,
    expires_at TIMESTAMPTZ
)`,
	`CREATE INDEX IF NOT EXISTS kv_entries_expires_at_idx ON kv_entries (expires_at) WHERE expires_at IS NOT NULL`,
}

// Store implements cache.Store on a *sql.DB opened with lib/pq.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return nil, err
	}
	const query = `SELECT value FROM kv_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`
	var value []byte
	err := s.db.QueryRowContext(ctx, query, key, s.now()).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cache.ErrNotFound
		}
		return nil, translate("get", err)
	}
	return value, nil
}

// GetMany returns the live values among keys; absent keys are omitted.
func (s *Store) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	const query = `SELECT key, value FROM kv_entries WHERE key = ANY($1) AND (expires_at IS NULL OR expires_at > $2)`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(keys), s.now())
	if err != nil {
		return nil, translate("get many", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, translate("get many", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, translate("get many", err)
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	const query = `INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
                   ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: s.now().Add(ttl), Valid: true}
	}
	if value == nil {
		value = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, query, key, value, expiresAt); err != nil {
		return translate("set", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	const query = `DELETE FROM kv_entries WHERE key = $1 RETURNING (expires_at IS NULL OR expires_at > $2)`
	var live bool
	err := s.db.QueryRowContext(ctx, query, key, s.now()).Scan(&live)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cache.ErrNotFound
		}
		return translate("delete", err)
	}
	if !live {
		return cache.ErrNotFound
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= $1`, s.now())
	if err != nil {
		return 0, translate("purge", err)
	}
	return res.RowsAffected()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close closes the underlying *sql.DB.
func (s *Store) Close() error {
	return s.db.Close()
}

func translate(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
		return ErrSchemaMissing
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}

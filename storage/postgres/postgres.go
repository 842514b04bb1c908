// Package postgres provides a PostgreSQL-backed storage medium for the
// conversation store, for deployments that already run a database.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thatjuancodes/chathistory"
)

// KV is a PostgreSQL-backed storage medium. Keys and values live in a
// single two-column table.
type KV struct {
	pool      *pgxpool.Pool
	tableName string
}

var _ chathistory.KV = (*KV)(nil)

// Option configures the store.
type Option func(*KV)

// WithTableName sets a custom table name.
func WithTableName(name string) Option {
	return func(s *KV) {
		s.tableName = name
	}
}

// New creates a PostgreSQL storage medium over the given pool.
func New(pool *pgxpool.Pool, opts ...Option) *KV {
	s := &KV{
		pool:      pool,
		tableName: "chat_history_kv",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the backing table if it does not exist.
func (s *KV) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			store_key TEXT PRIMARY KEY,
			store_value TEXT NOT NULL
		)
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	query := fmt.Sprintf(`SELECT store_value FROM %s WHERE store_key = $1`, s.tableName)

	var value string
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading key: %w", err)
	}
	return value, true, nil
}

// Set stores value under key.
func (s *KV) Set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (store_key, store_value)
		VALUES ($1, $2)
		ON CONFLICT (store_key) DO UPDATE SET
			store_value = EXCLUDED.store_value
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("writing key: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *KV) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE store_key = $1`, s.tableName)

	if _, err := s.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}
	return nil
}

// Keys returns every stored key.
func (s *KV) Keys(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT store_key FROM %s`, s.tableName)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Package postgres is the PostgreSQL implementation of the vocabstore
// interfaces. It holds a single pgx connection pool shared by the batch
// pipeline's writer workers and by serving lookups; idempotent insert
// semantics mean no row-level locking is needed.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexibase/phonosim/pkg/vocabstore"
)

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface; tests substitute a mock.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Compile-time interface checks.
var (
	_ vocabstore.WordStore       = (*Store)(nil)
	_ vocabstore.ProfileStore    = (*Store)(nil)
	_ vocabstore.PairStore       = (*Store)(nil)
	_ vocabstore.CheckpointStore = (*Store)(nil)
)

// Store implements every vocabstore interface against a single PostgreSQL
// database. All operations are safe for concurrent use.
type Store struct {
	db DB

	pool *pgxpool.Pool // nil when constructed via NewWithDB
}

// New establishes a connection pool to the database at dsn and runs
// [Store.Migrate] to ensure the engine-owned tables exist. The external
// words table is assumed to exist already; it is never created or written
// here.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("vocabstore: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("vocabstore: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("vocabstore: ping: %w", err)
	}

	s := &Store{db: pool, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB creates a Store over an existing connection or pool. The caller
// is responsible for running [Store.Migrate] before issuing queries.
func NewWithDB(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL, creating the profile, pair, and
// checkpoint tables if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("vocabstore: migrate: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying pool, if this Store
// owns one.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Package db provides PostgreSQL access to the music catalog, listening
// signals and generated recommendation artifacts.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")

	// ErrConflict reports a concurrent write to the same artifact key.
	ErrConflict = errors.New("materialization conflict")
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool for advanced operations.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Catalog returns a CatalogRepository.
func (db *DB) Catalog() *CatalogRepository {
	return &CatalogRepository{pool: db.pool}
}

// Signals returns a SignalRepository.
func (db *DB) Signals() *SignalRepository {
	return &SignalRepository{pool: db.pool}
}

// Artifacts returns an ArtifactRepository.
func (db *DB) Artifacts() *ArtifactRepository {
	return &ArtifactRepository{pool: db.pool}
}

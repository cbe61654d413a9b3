// Package store is the engine's single transactional persistence layer:
// schema-versioned migrations, typed insert operations for ingestion, an
// idempotent UTXO-reconciliation transaction, guardian-health inserts,
// nostr-event upserts, and the read queries the query layer serves from.
package store

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgx connection pool with the engine's domain operations.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pgxpool connection to Postgres and verifies it is reachable.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: unable to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping failed: %w", err)
	}
	log.Println("store: connected to PostgreSQL")
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Pool exposes the underlying pool for subsystems that need direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

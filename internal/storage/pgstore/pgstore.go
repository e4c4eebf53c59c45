// Package pgstore implements an alternative Store backend for
// deployments that already run Postgres: symbols/edges/files/FTS use
// plain Postgres tables (full-text search via to_tsvector, queried
// through the same KeywordRepo contract) and vectors use a native
// pgvector column so nearest-neighbor search runs inside the database
// instead of the pure-Go cosine scan the sqlite backend falls back to.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/codeintel/engine/internal/storage"
)

// Store is the Postgres-backed Store implementation.
type Store struct {
	pool *pgxpool.Pool
}

// Config holds the connection parameters for Open.
type Config struct {
	DSN string
}

// Open connects to Postgres and ensures the schema exists, registering
// the pgvector extension type on every pooled connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStoreOpen, err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStoreOpen, err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Symbols() storage.SymbolRepo   { return &symbolRepo{pool: s.pool} }
func (s *Store) Edges() storage.EdgeRepo       { return &edgeRepo{pool: s.pool} }
func (s *Store) Files() storage.FileRepo       { return &fileRepo{pool: s.pool} }
func (s *Store) Keywords() storage.KeywordRepo { return &keywordRepo{pool: s.pool} }
func (s *Store) Vectors() storage.VectorRepo   { return &vectorRepo{pool: s.pool} }
func (s *Store) RepoMap() storage.RepoMapRepo  { return &repoMapRepo{pool: s.pool} }

func (s *Store) NeedsReembedding(ctx context.Context, modelID string) (bool, error) {
	var stored string
	err := s.pool.QueryRow(ctx, `SELECT value FROM schema_metadata WHERE key='embedding_model_id'`).Scan(&stored)
	if err != nil {
		return false, nil
	}
	return stored != modelID, nil
}

func (s *Store) SetEmbeddingModelID(ctx context.Context, modelID string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO schema_metadata(key, value) VALUES ('embedding_model_id', $1)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, modelID)
	return err
}

// SizeBytes reports the database's on-disk size via pg_database_size.
func (s *Store) SizeBytes() (int64, error) {
	var n int64
	err := s.pool.QueryRow(context.Background(), `SELECT pg_database_size(current_database())`).Scan(&n)
	return n, err
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

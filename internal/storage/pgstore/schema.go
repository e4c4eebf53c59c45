package pgstore

import (
	"context"
	"fmt"

	"github.com/codeintel/engine/internal/storage"
)

// migrate creates the relational schema plus a pgvector column sized to
// accept any dimension (pgvector permits a dimensionless vector type;
// the embedder's declared dimension is enforced at the application
// layer via Store.NeedsReembedding rather than a column constraint).
func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS schema_metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS symbols (
			id TEXT PRIMARY KEY, name TEXT NOT NULL, qualified_name TEXT NOT NULL,
			type TEXT NOT NULL, language TEXT NOT NULL, file_path TEXT NOT NULL,
			start_line INT NOT NULL, end_line INT NOT NULL, content TEXT NOT NULL,
			signature TEXT NOT NULL DEFAULT '', docstring TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL, is_external BOOLEAN NOT NULL DEFAULT FALSE,
			branch TEXT NOT NULL, embedding_model_id TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL, revision_id BIGINT NOT NULL,
			search_vector tsvector GENERATED ALWAYS AS (
				to_tsvector('simple', name || ' ' || qualified_name || ' ' || content || ' ' || file_path)
			) STORED
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_path, branch)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name, branch)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_search ON symbols USING GIN(search_vector)`,
		`CREATE TABLE IF NOT EXISTS edges (
			id TEXT PRIMARY KEY, source_id TEXT NOT NULL, target_id TEXT NOT NULL,
			type TEXT NOT NULL, confidence DOUBLE PRECISION NOT NULL, origin TEXT NOT NULL,
			branch TEXT NOT NULL, source_line INT NOT NULL DEFAULT 0, target_line INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL, metadata TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id, branch, type)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id, branch, type)`,
		`CREATE TABLE IF NOT EXISTS files (
			file_path TEXT NOT NULL, branch TEXT NOT NULL, file_hash TEXT NOT NULL,
			mtime BIGINT NOT NULL, size BIGINT NOT NULL, last_indexed TIMESTAMPTZ NOT NULL,
			language TEXT NOT NULL DEFAULT '', status TEXT NOT NULL, symbol_count INT NOT NULL DEFAULT 0,
			importance_rank DOUBLE PRECISION NOT NULL DEFAULT 0, error_message TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (file_path, branch)
		)`,
		`CREATE TABLE IF NOT EXISTS repo_map (
			file_path TEXT NOT NULL, branch TEXT NOT NULL, importance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			in_degree INT NOT NULL DEFAULT 0, out_degree INT NOT NULL DEFAULT 0, symbol_summary TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (file_path, branch)
		)`,
		`CREATE TABLE IF NOT EXISTS vectors (
			symbol_id TEXT PRIMARY KEY, embedding vector NOT NULL, branch TEXT NOT NULL,
			file_path TEXT NOT NULL, updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vectors_branch ON vectors(branch)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrSchemaMigration, err)
		}
	}
	return nil
}

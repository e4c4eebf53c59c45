package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codeintel/engine/internal/storage"
)

const currentSchemaVersion = 1

// schemaVersion reads schema_metadata; a missing table means schema
// version 0 (fresh database).
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type='table' AND name='schema_metadata'`).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrSchemaMigration, err)
	}
	if exists == 0 {
		return 0, nil
	}
	var v int
	err = db.QueryRowContext(ctx, `SELECT value FROM schema_metadata WHERE key='schema_version'`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrSchemaMigration, err)
	}
	return v, nil
}

// initializeSchema creates every table and index at version 0 and runs
// any migrations needed to reach currentSchemaVersion. Migrations are
// versioned and monotonic, per the schema-version contract.
func initializeSchema(ctx context.Context, db *sql.DB) error {
	v, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrSchemaMigration, err)
	}
	defer tx.Rollback()

	if v == 0 {
		if err := createBaseSchema(ctx, tx); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrSchemaMigration, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO schema_metadata(key, value) VALUES ('schema_version', ?)`, currentSchemaVersion); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrSchemaMigration, err)
		}
	}
	// Future migrations are added here as `if v < N { ... }` steps,
	// each bumping schema_version by exactly one version.

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrSchemaMigration, err)
	}
	return nil
}

func createBaseSchema(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS symbols (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			qualified_name     TEXT NOT NULL,
			type               TEXT NOT NULL,
			language           TEXT NOT NULL,
			file_path          TEXT NOT NULL,
			start_line         INTEGER NOT NULL,
			end_line           INTEGER NOT NULL,
			content            TEXT NOT NULL,
			signature          TEXT NOT NULL DEFAULT '',
			docstring          TEXT NOT NULL DEFAULT '',
			content_hash       TEXT NOT NULL,
			is_external        INTEGER NOT NULL DEFAULT 0,
			branch             TEXT NOT NULL,
			embedding_model_id TEXT NOT NULL DEFAULT '',
			updated_at         INTEGER NOT NULL,
			revision_id        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_path, branch)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name, branch)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_type ON symbols(type, branch)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_branch ON symbols(branch)`,

		`CREATE TABLE IF NOT EXISTS edges (
			id           TEXT PRIMARY KEY,
			source_id    TEXT NOT NULL,
			target_id    TEXT NOT NULL,
			type         TEXT NOT NULL,
			confidence   REAL NOT NULL,
			origin       TEXT NOT NULL,
			branch       TEXT NOT NULL,
			source_line  INTEGER NOT NULL DEFAULT 0,
			target_line  INTEGER NOT NULL DEFAULT 0,
			updated_at   INTEGER NOT NULL,
			metadata     TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id, branch, type)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id, branch, type)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_branch ON edges(branch)`,

		`CREATE TABLE IF NOT EXISTS files (
			file_path       TEXT NOT NULL,
			branch          TEXT NOT NULL,
			file_hash       TEXT NOT NULL,
			mtime           INTEGER NOT NULL,
			size            INTEGER NOT NULL,
			last_indexed    INTEGER NOT NULL,
			language        TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL,
			symbol_count    INTEGER NOT NULL DEFAULT 0,
			importance_rank REAL NOT NULL DEFAULT 0,
			error_message   TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (file_path, branch)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_branch ON files(branch)`,
		`CREATE INDEX IF NOT EXISTS idx_files_status ON files(status, branch)`,

		`CREATE TABLE IF NOT EXISTS repo_map (
			file_path        TEXT NOT NULL,
			branch           TEXT NOT NULL,
			importance_score REAL NOT NULL DEFAULT 0,
			in_degree        INTEGER NOT NULL DEFAULT 0,
			out_degree       INTEGER NOT NULL DEFAULT 0,
			symbol_summary   TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (file_path, branch)
		)`,

		`CREATE TABLE IF NOT EXISTS vectors (
			symbol_id  TEXT PRIMARY KEY,
			embedding  BLOB NOT NULL,
			branch     TEXT NOT NULL,
			file_path  TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vectors_branch ON vectors(branch)`,
		`CREATE INDEX IF NOT EXISTS idx_vectors_file ON vectors(file_path, branch)`,

		// FTS5 external-content table: the content lives in
		// fts_symbols_content, fts_symbols is the trigram-tokenized
		// virtual index kept in sync by triggers, mirroring the
		// base-table-plus-trigger pattern used for symbol search.
		`CREATE TABLE IF NOT EXISTS fts_symbols_content (
			rowid          INTEGER PRIMARY KEY,
			symbol_id      TEXT UNIQUE NOT NULL,
			name           TEXT NOT NULL,
			qualified_name TEXT NOT NULL,
			content        TEXT NOT NULL,
			file_path      TEXT NOT NULL,
			branch         TEXT NOT NULL
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_symbols USING fts5(
			name, qualified_name, content, file_path,
			content='fts_symbols_content', content_rowid='rowid',
			tokenize='trigram'
		)`,
		`CREATE TRIGGER IF NOT EXISTS fts_symbols_ai AFTER INSERT ON fts_symbols_content BEGIN
			INSERT INTO fts_symbols(rowid, name, qualified_name, content, file_path)
			VALUES (new.rowid, new.name, new.qualified_name, new.content, new.file_path);
		END`,
		`CREATE TRIGGER IF NOT EXISTS fts_symbols_ad AFTER DELETE ON fts_symbols_content BEGIN
			INSERT INTO fts_symbols(fts_symbols, rowid, name, qualified_name, content, file_path)
			VALUES('delete', old.rowid, old.name, old.qualified_name, old.content, old.file_path);
		END`,
		`CREATE TRIGGER IF NOT EXISTS fts_symbols_au AFTER UPDATE ON fts_symbols_content BEGIN
			INSERT INTO fts_symbols(fts_symbols, rowid, name, qualified_name, content, file_path)
			VALUES('delete', old.rowid, old.name, old.qualified_name, old.content, old.file_path);
			INSERT INTO fts_symbols(rowid, name, qualified_name, content, file_path)
			VALUES (new.rowid, new.name, new.qualified_name, new.content, new.file_path);
		END`,
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("exec %.40s...: %w", s, err)
		}
	}
	return nil
}

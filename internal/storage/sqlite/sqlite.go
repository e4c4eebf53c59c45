// Package sqlite implements the default Store backend: a single
// embedded, ACID, file-backed database (modernc.org/sqlite, a pure-Go
// SQLite driver with no cgo requirement) combining relational storage,
// an FTS5 trigram keyword index, and a pure-language cosine-scan vector
// index for workspaces without a native vector extension available.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/codeintel/engine/internal/fileutil"
	"github.com/codeintel/engine/internal/storage"
)

// Store is the sqlite-backed Store implementation.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens a sqlite database at path, running schema
// migrations as needed. WAL mode is enabled so readers observe a
// consistent MVCC snapshot while an indexing transaction is in flight.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := fileutil.EnsureParentDir(path); err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrStoreOpen, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStoreOpen, err)
	}
	db.SetMaxOpenConns(1) // sqlite allows one writer; serialize via a single pooled conn

	pragmas := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA foreign_keys=ON`,
		`PRAGMA synchronous=NORMAL`,
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", storage.ErrStoreOpen, err)
		}
	}

	if err := initializeSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Symbols() storage.SymbolRepo   { return &symbolRepo{db: s.db} }
func (s *Store) Edges() storage.EdgeRepo       { return &edgeRepo{db: s.db} }
func (s *Store) Files() storage.FileRepo       { return &fileRepo{db: s.db} }
func (s *Store) Keywords() storage.KeywordRepo { return &keywordRepo{db: s.db} }
func (s *Store) Vectors() storage.VectorRepo   { return &vectorRepo{db: s.db} }
func (s *Store) RepoMap() storage.RepoMapRepo  { return &repoMapRepo{db: s.db} }

func (s *Store) NeedsReembedding(ctx context.Context, modelID string) (bool, error) {
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM schema_metadata WHERE key='embedding_model_id'`).Scan(&stored)
	if err == sql.ErrNoRows {
		return false, nil // no embeddings yet; nothing to re-embed
	}
	if err != nil {
		return false, err
	}
	return stored != modelID, nil
}

func (s *Store) SetEmbeddingModelID(ctx context.Context, modelID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO schema_metadata(key, value) VALUES ('embedding_model_id', ?)`, modelID)
	return err
}

func (s *Store) SizeBytes() (int64, error) {
	if s.path == ":memory:" {
		return 0, nil
	}
	fi, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return fi.Size(), nil
}

func (s *Store) Close() error { return s.db.Close() }

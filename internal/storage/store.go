// Package storage defines the Store contract: the typed repositories
// (SymbolRepo, EdgeRepo, FileRepo, KeywordRepo, VectorRepo) that every
// backend (sqlite, postgres, qdrant) must implement, plus the sentinel
// errors the rest of the engine matches on.
package storage

import (
	"context"
	"errors"

	"github.com/codeintel/engine/internal/symbol"
)

// Sentinel errors per the error-handling taxonomy. FtsQuerySyntax is
// never returned to callers as an error — the KeywordRepo instead
// returns an empty result set and logs it — but it is kept as a typed
// value so backends can signal the distinction internally.
var (
	ErrStoreOpen          = errors.New("storage: failed to open store")
	ErrSchemaMigration    = errors.New("storage: schema migration failed")
	ErrSerializeEmbedding = errors.New("storage: failed to serialize embedding")
	ErrFtsQuerySyntax     = errors.New("storage: malformed full-text query")
	ErrNotFound           = errors.New("storage: not found")
)

// KeywordHit is one KeywordRepo.Search result: lower Rank is a better
// BM25 match.
type KeywordHit struct {
	SymbolID string
	Rank     float64
}

// VectorHit is one VectorRepo.Search result.
type VectorHit struct {
	SymbolID   string
	Distance   float64
	Similarity float64
}

// SymbolRepo persists and queries Symbol rows.
type SymbolRepo interface {
	Upsert(ctx context.Context, s symbol.Symbol) error
	UpsertMany(ctx context.Context, syms []symbol.Symbol) error
	ByID(ctx context.Context, id string) (symbol.Symbol, bool, error)
	ByFile(ctx context.Context, path, branch string) ([]symbol.Symbol, error)
	ByName(ctx context.Context, name, branch string) ([]symbol.Symbol, error)
	ByType(ctx context.Context, t symbol.Type, branch string) ([]symbol.Symbol, error)
	DeleteByFile(ctx context.Context, path, branch string) error
	DeleteByBranch(ctx context.Context, branch string) error
	Count(ctx context.Context, branch string) (int, error)
	All(ctx context.Context, branch string, limit int) ([]symbol.Symbol, error)
}

// EdgeRepo persists and queries Edge rows.
type EdgeRepo interface {
	Upsert(ctx context.Context, e symbol.Edge) error
	UpsertMany(ctx context.Context, edges []symbol.Edge) error
	ByID(ctx context.Context, id string) (symbol.Edge, bool, error)
	Callers(ctx context.Context, targetID, branch string) ([]symbol.Edge, error)
	Callees(ctx context.Context, sourceID, branch string) ([]symbol.Edge, error)
	DeleteByEndpoint(ctx context.Context, symbolID, branch string) error
	DeleteByBranch(ctx context.Context, branch string) error
	AllByBranch(ctx context.Context, branch string) ([]symbol.Edge, error)
}

// FileRepo persists and queries FileRecord rows.
type FileRepo interface {
	Upsert(ctx context.Context, f symbol.FileRecord) error
	ByPath(ctx context.Context, path, branch string) (symbol.FileRecord, bool, error)
	ByStatus(ctx context.Context, status symbol.FileStatus, branch string) ([]symbol.FileRecord, error)
	ByBranch(ctx context.Context, branch string) ([]symbol.FileRecord, error)
	UpdateStatus(ctx context.Context, path, branch string, status symbol.FileStatus, errMsg string) error
	UpdateSymbolCount(ctx context.Context, path, branch string, count int) error
	DeleteByPath(ctx context.Context, path, branch string) error
	DeleteByBranch(ctx context.Context, branch string) error
}

// KeywordRepo is the BM25 full-text index over symbol name, qualified
// name, content, and file path.
type KeywordRepo interface {
	Index(ctx context.Context, symbolID, name, qualifiedName, content, filePath, branch string) error
	Search(ctx context.Context, query, branch string, limit int) ([]KeywordHit, error)
	Delete(ctx context.Context, symbolID string) error
	DeleteByFile(ctx context.Context, path, branch string) error
	Rebuild(ctx context.Context) error
}

// VectorRepo is the embedding index.
type VectorRepo interface {
	Upsert(ctx context.Context, symbolID string, vector []float32) error
	Search(ctx context.Context, query []float32, k int, branch string) ([]VectorHit, error)
	Delete(ctx context.Context, symbolID string) error
	DeleteByFile(ctx context.Context, path, branch string) error
}

// RepoMapRepo persists per-file importance summaries.
type RepoMapRepo interface {
	Upsert(ctx context.Context, entry symbol.RepoMapEntry) error
	ByBranch(ctx context.Context, branch string) ([]symbol.RepoMapEntry, error)
}

// Store aggregates the typed repositories plus schema/lifecycle
// operations shared by every backend.
type Store interface {
	Symbols() SymbolRepo
	Edges() EdgeRepo
	Files() FileRepo
	Keywords() KeywordRepo
	Vectors() VectorRepo
	RepoMap() RepoMapRepo

	// NeedsReembedding reports whether the store's recorded
	// embedding_model_id differs from modelID, in which case a full
	// re-embed is required before vector search results are trustworthy.
	NeedsReembedding(ctx context.Context, modelID string) (bool, error)
	SetEmbeddingModelID(ctx context.Context, modelID string) error

	// SizeBytes reports on-disk size for index.status().
	SizeBytes() (int64, error)

	Close() error
}

// Package engine wires together the store handle, the Merkle cache, and
// the embedder LRU cache — the three process-wide mutable resources the
// rest of the engine is built around — and exposes the Query API surface
// (index.update/rebuild/status, retrieval.search/find_similar,
// analysis.impact/diff) that a CLI or MCP host calls into.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/codeintel/engine/internal/analysis"
	"github.com/codeintel/engine/internal/config"
	"github.com/codeintel/engine/internal/embed"
	"github.com/codeintel/engine/internal/graph"
	"github.com/codeintel/engine/internal/indexmanager"
	"github.com/codeintel/engine/internal/merkle"
	"github.com/codeintel/engine/internal/relsource"
	"github.com/codeintel/engine/internal/retrieval"
	"github.com/codeintel/engine/internal/storage"
	"github.com/codeintel/engine/internal/storage/pgstore"
	"github.com/codeintel/engine/internal/storage/qdrantstore"
	"github.com/codeintel/engine/internal/storage/sqlite"
	"github.com/codeintel/engine/internal/symbol"
	"github.com/codeintel/engine/internal/watch"
)

// Engine owns the workspace's store, Merkle cache, and embedder LRU
// cache, constructed once per workspace root, and exposes the query API.
type Engine struct {
	Root   string
	Branch string
	Cfg    *config.Config

	store    storage.Store
	cache    *merkle.Cache
	embedder embed.Embedder

	indexManager *indexmanager.Manager
	retriever    *retrieval.Retriever
	analyzer     *analysis.Analyzer
}

// Open loads (or defaults) the workspace config, opens the configured
// store backend, restores the Merkle cache from disk, and constructs an
// embedder from config. branch selects the active partition ("main" if
// empty). relSrc may be nil.
func Open(ctx context.Context, root, branch string, relSrc relsource.Source) (*Engine, error) {
	if branch == "" {
		branch = "main"
	}

	var cfg *config.Config
	var err error
	if config.Exists(root) {
		cfg, err = config.Load(root)
	} else {
		cfg = config.DefaultConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("engine: load config: %w", err)
	}

	store, err := openStore(ctx, root, cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: open store: %w", err)
	}

	cache := merkle.Load(cfg.AbsCachePath(root))

	embedder, err := openEmbedder(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("engine: open embedder: %w", err)
	}

	im := indexmanager.New(root, branch, cfg, store, cache, embedder, relSrc)

	e := &Engine{
		Root:         root,
		Branch:       branch,
		Cfg:          cfg,
		store:        store,
		cache:        cache,
		embedder:     embedder,
		indexManager: im,
		retriever:    retrieval.New(store, cfg),
		analyzer:     analysis.New(store, cfg),
	}
	return e, nil
}

func openStore(ctx context.Context, root string, cfg *config.Config) (storage.Store, error) {
	switch cfg.Store.Backend {
	case "", "sqlite":
		return sqlite.Open(ctx, cfg.AbsDBPath(root))
	case "postgres":
		return pgstore.Open(ctx, pgstore.Config{DSN: cfg.Store.Postgres.DSN})
	case "qdrant":
		return qdrantstore.Open(ctx, qdrantstore.Config{
			RelationalPath: cfg.AbsDBPath(root),
			Addr:           cfg.Store.Qdrant.Addr,
			Collection:     cfg.Store.Qdrant.Collection,
			Dimension:      uint64(cfg.Embedder.Dimension),
		})
	default:
		return nil, fmt.Errorf("engine: unknown store backend %q", cfg.Store.Backend)
	}
}

func openEmbedder(cfg *config.Config) (embed.Embedder, error) {
	switch cfg.Embedder.Provider {
	case "", "synthetic":
		return embed.NewSyntheticEmbedder(cfg.Embedder.Dimension), nil
	case "http":
		return embed.NewHTTPEmbedder(
			embed.WithEndpoint(cfg.Embedder.Endpoint),
			embed.WithModel(cfg.Embedder.Model),
			embed.WithAPIKey(cfg.Embedder.APIKey),
			embed.WithDimensions(cfg.Embedder.Dimension),
		)
	default:
		return nil, fmt.Errorf("engine: unknown embedder provider %q", cfg.Embedder.Provider)
	}
}

// Close releases the store and embedder.
func (e *Engine) Close() error {
	embedErr := e.embedder.Close()
	storeErr := e.store.Close()
	if storeErr != nil {
		return storeErr
	}
	return embedErr
}

// UpdateResult is the index.update / index.rebuild response shape.
type UpdateResult struct {
	RunID        string
	FilesIndexed int
	FilesRemoved int
	FilesErrored int
	ChunksAdded  int
	Duration     time.Duration
}

// Update runs an incremental index refresh.
func (e *Engine) Update(ctx context.Context, progress indexmanager.ProgressFunc) (*UpdateResult, error) {
	stats, err := e.indexManager.Update(ctx, progress)
	if err != nil {
		return nil, err
	}
	e.refreshRepoMap(ctx, stats.RunID)
	return &UpdateResult{
		RunID:        stats.RunID,
		FilesIndexed: stats.FilesIndexed,
		FilesRemoved: stats.FilesRemoved,
		FilesErrored: stats.FilesErrored,
		ChunksAdded:  stats.ChunksAdded,
		Duration:     stats.Duration,
	}, nil
}

// Rebuild truncates the branch and re-indexes from scratch.
func (e *Engine) Rebuild(ctx context.Context, progress indexmanager.ProgressFunc) (*UpdateResult, error) {
	stats, err := e.indexManager.Rebuild(ctx, progress)
	if err != nil {
		return nil, err
	}
	e.refreshRepoMap(ctx, stats.RunID)
	return &UpdateResult{
		RunID:        stats.RunID,
		FilesIndexed: stats.FilesIndexed,
		FilesRemoved: stats.FilesRemoved,
		FilesErrored: stats.FilesErrored,
		ChunksAdded:  stats.ChunksAdded,
		Duration:     stats.Duration,
	}, nil
}

// refreshRepoMap recomputes per-file importance scores and persists them.
// It is a non-critical side effect of indexing: a failure here is logged
// and swallowed rather than failing the update that triggered it, the same
// propagation policy EnsureFresh uses for its own best-effort refresh.
func (e *Engine) refreshRepoMap(ctx context.Context, runID string) {
	entries, err := graph.ComputeRepoMap(ctx, e.store, e.Branch)
	if err != nil {
		log.Printf("codeintel: run %s: repo map refresh failed: %v", runID, err)
		return
	}
	for _, entry := range entries {
		if err := e.store.RepoMap().Upsert(ctx, entry); err != nil {
			log.Printf("codeintel: run %s: repo map upsert for %s failed: %v", runID, entry.FilePath, err)
			return
		}
	}
}

// RepoMap returns the current per-file importance ranking for the engine's
// branch, as last computed by Update or Rebuild.
func (e *Engine) RepoMap(ctx context.Context) ([]symbol.RepoMapEntry, error) {
	return e.store.RepoMap().ByBranch(ctx, e.Branch)
}

// Symbol fetches a single symbol by id, for callers that want to annotate
// a result (e.g. an impact analysis) with details beyond the ids it returns.
func (e *Engine) Symbol(ctx context.Context, id string) (symbol.Symbol, bool, error) {
	return e.store.Symbols().ByID(ctx, id)
}

// StatusResult is the index.status response shape.
type StatusResult struct {
	FileCount   int
	ChunkCount  int
	LastUpdated time.Time
	IsIndexing  bool
	DBSizeBytes int64
}

// Status reports the current index health without triggering a refresh.
func (e *Engine) Status(ctx context.Context) (*StatusResult, error) {
	fileRecords, err := e.store.Files().ByBranch(ctx, e.Branch)
	if err != nil {
		return nil, fmt.Errorf("engine: list files: %w", err)
	}
	chunkCount, err := e.store.Symbols().Count(ctx, e.Branch)
	if err != nil {
		return nil, fmt.Errorf("engine: count symbols: %w", err)
	}
	sizeBytes, err := e.store.SizeBytes()
	if err != nil {
		return nil, fmt.Errorf("engine: db size: %w", err)
	}

	var lastUpdated time.Time
	for _, f := range fileRecords {
		if f.LastIndexed.After(lastUpdated) {
			lastUpdated = f.LastIndexed
		}
	}

	return &StatusResult{
		FileCount:   len(fileRecords),
		ChunkCount:  chunkCount,
		LastUpdated: lastUpdated,
		IsIndexing:  e.indexManager.IsIndexing(),
		DBSizeBytes: sizeBytes,
	}, nil
}

// EnsureFresh runs the best-effort auto-refresh hook every read path
// calls before serving a query.
func (e *Engine) EnsureFresh(ctx context.Context) {
	e.indexManager.EnsureFresh(ctx)
}

// Search runs the hybrid retrieval pipeline, auto-refreshing first.
func (e *Engine) Search(ctx context.Context, q retrieval.Query) (*retrieval.QueryResult, error) {
	e.EnsureFresh(ctx)
	if q.Branch == "" {
		q.Branch = e.Branch
	}
	return e.retriever.Search(ctx, q)
}

// EmbedQuery embeds free text with the engine's configured embedder, for
// callers (such as the CLI) that need a vector to populate retrieval.Query
// before calling Search.
func (e *Engine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embedder.Embed(ctx, text)
}

// FindSimilar embeds a code snippet and returns its nearest neighbors —
// retrieval.find_similar from the Query API, implemented as a vector-only
// search seeded from freshly computed embedding rather than a stored id.
func (e *Engine) FindSimilar(ctx context.Context, code string, opts retrieval.Query) (*retrieval.QueryResult, error) {
	e.EnsureFresh(ctx)
	vec, err := e.embedder.Embed(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("engine: embed similarity query: %w", err)
	}
	opts.Embedding = vec
	opts.QueryText = ""
	if opts.Branch == "" {
		opts.Branch = e.Branch
	}
	return e.retriever.Search(ctx, opts)
}

// NearestRelated finds the cheapest call path between two
// symbols on the engine's branch, auto-refreshing first. It is a helper
// alongside Search, not part of the search pipeline itself.
func (e *Engine) NearestRelated(ctx context.Context, sourceID, targetID string) (retrieval.RelatedPath, error) {
	e.EnsureFresh(ctx)
	return e.retriever.NearestRelated(ctx, sourceID, targetID, e.Branch)
}

// Impact runs callers-only impact analysis, auto-refreshing first.
func (e *Engine) Impact(ctx context.Context, symbolID string, opts analysis.ImpactOptions) (*analysis.ImpactAnalysis, error) {
	e.EnsureFresh(ctx)
	if opts.Branch == "" {
		opts.Branch = e.Branch
	}
	return e.analyzer.Impact(ctx, symbolID, opts)
}

// Diff compares two branches' symbol and edge sets.
func (e *Engine) Diff(ctx context.Context, sourceBranch, targetBranch string, opts analysis.BranchDiffOptions) (*analysis.BranchDiffResult, error) {
	e.EnsureFresh(ctx)
	return e.analyzer.Diff(ctx, sourceBranch, targetBranch, opts)
}

// Watch starts a debounced filesystem watcher and runs Update on every
// batch of changes it reports, until ctx is canceled. It is a purely
// additive accelerant over EnsureFresh's cooldown-gated auto-refresh,
// not a replacement for it — a caller that never starts Watch still
// gets freshness on every query path via EnsureFresh.
func (e *Engine) Watch(ctx context.Context, progress indexmanager.ProgressFunc) error {
	w, err := watch.New(e.Root, e.Cfg.Scan.IncludePatterns, e.Cfg.Scan.ExcludePatterns, e.Cfg.Watch.DebounceMs)
	if err != nil {
		return fmt.Errorf("engine: start watcher: %w", err)
	}
	defer w.Close()

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("engine: start watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-w.Events():
			if !ok {
				return nil
			}
			if _, err := e.Update(ctx, progress); err != nil {
				return fmt.Errorf("engine: update after watch event: %w", err)
			}
		}
	}
}

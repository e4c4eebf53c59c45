// Package indexmanager owns the write-path state machine: discovery,
// Merkle-based change detection, extraction, batch embedding, and
// persistence, plus the auto-refresh hook every read path calls first.
package indexmanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codeintel/engine/internal/config"
	"github.com/codeintel/engine/internal/embed"
	"github.com/codeintel/engine/internal/extract"
	"github.com/codeintel/engine/internal/merkle"
	"github.com/codeintel/engine/internal/relsource"
	"github.com/codeintel/engine/internal/scan"
	"github.com/codeintel/engine/internal/storage"
	"github.com/codeintel/engine/internal/symbol"
)

// ErrIndexingAlreadyInProgress is returned by Update/Rebuild when a
// prior call is still running.
var ErrIndexingAlreadyInProgress = errors.New("indexing already in progress")

// Phase identifies a stage of an indexing run for progress reporting.
type Phase string

const (
	PhaseScanning Phase = "scanning"
	PhaseHashing  Phase = "hashing"
	PhaseEmbedding Phase = "embedding"
	PhaseStoring  Phase = "storing"
	PhaseComplete Phase = "complete"
)

// Progress describes one progress-callback invocation.
type Progress struct {
	Phase       Phase
	Current     int
	Total       int
	CurrentFile string
}

// ProgressFunc receives Progress events during Update/Rebuild.
type ProgressFunc func(Progress)

// Stats summarizes the outcome of an Update/Rebuild call.
type Stats struct {
	RunID        string
	FilesIndexed int
	FilesRemoved int
	FilesErrored int
	ChunksAdded  int
	Duration     time.Duration
}

// Manager coordinates discovery, extraction, embedding, and storage
// for a single project root and branch.
type Manager struct {
	root     string
	branch   string
	cfg      *config.Config
	store    storage.Store
	cache    *merkle.Cache
	registry *extract.Registry
	relSrc   relsource.Source
	embedder embed.Embedder
	embedCache *embed.LRUCache

	mu          sync.Mutex // serializes cache load/save
	indexing    atomic.Bool
	lastRefresh atomic.Int64 // unix millis
	revision    atomic.Int64
}

// New constructs a Manager. relSrc may be relsource.None{} when no
// external LSP/SCIP source is wired.
func New(root, branch string, cfg *config.Config, st storage.Store, cache *merkle.Cache, emb embed.Embedder, relSrc relsource.Source) *Manager {
	if relSrc == nil {
		relSrc = relsource.None{}
	}
	return &Manager{
		root:       root,
		branch:     branch,
		cfg:        cfg,
		store:      st,
		cache:      cache,
		registry:   extract.NewRegistryWithChunking(cfg.Chunking.MaxChunkLines, cfg.Chunking.ChunkOverlap),
		relSrc:     relSrc,
		embedder:   emb,
		embedCache: embed.NewLRUCache(cfg.Embedder.CacheSize),
	}
}

// IsIndexing reports whether an Update or Rebuild is currently running.
func (m *Manager) IsIndexing() bool {
	return m.indexing.Load()
}

// Update discovers changes since the last run and indexes the delta.
func (m *Manager) Update(ctx context.Context, progress ProgressFunc) (*Stats, error) {
	if !m.indexing.CompareAndSwap(false, true) {
		return nil, ErrIndexingAlreadyInProgress
	}
	defer m.indexing.Store(false)
	return m.runUpdate(ctx, progress)
}

// Rebuild truncates all branch-scoped data and the Merkle cache, then
// runs a full Update.
func (m *Manager) Rebuild(ctx context.Context, progress ProgressFunc) (*Stats, error) {
	if !m.indexing.CompareAndSwap(false, true) {
		return nil, ErrIndexingAlreadyInProgress
	}
	defer m.indexing.Store(false)

	if err := m.store.Symbols().DeleteByBranch(ctx, m.branch); err != nil {
		return nil, fmt.Errorf("rebuild: clear symbols: %w", err)
	}
	if err := m.store.Edges().DeleteByBranch(ctx, m.branch); err != nil {
		return nil, fmt.Errorf("rebuild: clear edges: %w", err)
	}
	files, err := m.store.Files().ByBranch(ctx, m.branch)
	if err != nil {
		return nil, fmt.Errorf("rebuild: list files: %w", err)
	}
	for _, f := range files {
		_ = m.store.Files().DeleteByPath(ctx, f.FilePath, m.branch)
	}

	m.mu.Lock()
	m.cache = merkle.New()
	m.mu.Unlock()

	return m.runUpdate(ctx, progress)
}

// EnsureFresh is the best-effort auto-refresh hook every read path
// calls before serving a query. Failures never propagate; they are
// logged and the query proceeds on stale data.
func (m *Manager) EnsureFresh(ctx context.Context) {
	if !m.cfg.Index.AutoRefresh {
		return
	}
	if m.indexing.Load() {
		return // silently no-op while indexing is active
	}
	now := time.Now().UnixMilli()
	last := m.lastRefresh.Load()
	if now-last < int64(m.cfg.Index.AutoRefreshCooldownMs) {
		return
	}
	if !m.lastRefresh.CompareAndSwap(last, now) {
		return // another goroutine just refreshed
	}
	if !m.indexing.CompareAndSwap(false, true) {
		return
	}
	defer m.indexing.Store(false)

	files, err := scan.Discover(m.root, m.cfg.Scan.IncludePatterns, m.cfg.Scan.ExcludePatterns)
	if err != nil {
		log.Printf("codeintel: ensure_fresh: discovery failed: %v", err)
		return
	}
	if len(files) > m.cfg.Index.AutoRefreshMaxFiles {
		return // ceiling exceeded, skip this cycle
	}
	if _, err := m.indexDelta(ctx, files, nil); err != nil {
		log.Printf("codeintel: ensure_fresh: %v", err)
	}
}

func (m *Manager) runUpdate(ctx context.Context, progress ProgressFunc) (*Stats, error) {
	start := time.Now()
	runID := uuid.NewString()
	log.Printf("codeintel: run %s: update started for branch %s", runID, m.branch)

	if progress != nil {
		progress(Progress{Phase: PhaseScanning})
	}
	files, err := scan.Discover(m.root, m.cfg.Scan.IncludePatterns, m.cfg.Scan.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("update: discover: %w", err)
	}

	stats, err := m.indexDelta(ctx, files, progress)
	if err != nil {
		return nil, err
	}
	stats.RunID = runID
	stats.Duration = time.Since(start)
	log.Printf("codeintel: run %s: indexed %d, removed %d, errored %d in %s",
		runID, stats.FilesIndexed, stats.FilesRemoved, stats.FilesErrored, stats.Duration)
	if progress != nil {
		progress(Progress{Phase: PhaseComplete})
	}
	return stats, nil
}

// indexDelta feeds the discovered file list through the Merkle cache
// to find added/modified/deleted files, indexes the delta, and
// persists the cache. This is the code path both Update and
// EnsureFresh converge on.
func (m *Manager) indexDelta(ctx context.Context, files []scan.File, progress ProgressFunc) (*Stats, error) {
	if progress != nil {
		progress(Progress{Phase: PhaseHashing, Total: len(files)})
	}

	current := make(map[string]struct{ Mtime, Size int64 }, len(files))
	byPath := make(map[string]scan.File, len(files))
	for _, f := range files {
		current[f.RelPath] = struct{ Mtime, Size int64 }{Mtime: f.Mtime, Size: f.Size}
		byPath[f.RelPath] = f
	}

	changes, err := m.cache.FindChanged(current, func(path string) ([]byte, error) {
		return os.ReadFile(byPath[path].AbsPath)
	})
	if err != nil {
		return nil, fmt.Errorf("find changed: %w", err)
	}

	deleted := m.cache.FindDeleted(currentPaths(files))

	stats := &Stats{}
	if len(changes.Added) == 0 && len(changes.Modified) == 0 && len(deleted) == 0 {
		return stats, nil // no-op
	}

	for _, path := range deleted {
		if err := m.deleteFile(ctx, path); err != nil {
			log.Printf("codeintel: delete %s: %v", path, err)
			continue
		}
		m.cache.Remove(path)
		stats.FilesRemoved++
	}

	toIndex := append(append([]string{}, changes.Added...), changes.Modified...)
	if len(toIndex) > 0 {
		added, errored := m.indexFiles(ctx, toIndex, byPath, progress)
		stats.ChunksAdded += added
		stats.FilesIndexed += len(toIndex) - errored
		stats.FilesErrored += errored
	}

	m.mu.Lock()
	saveErr := m.cache.Save(m.cfg.AbsCachePath(m.root))
	m.mu.Unlock()
	if saveErr != nil {
		return nil, fmt.Errorf("persist merkle cache: %w", saveErr)
	}
	if progress != nil {
		progress(Progress{Phase: PhaseStoring})
	}
	return stats, nil
}

// indexFiles indexes a batch of files with bounded fan-out, per
// [4.D] Parallelism (default 10 concurrent files).
func (m *Manager) indexFiles(ctx context.Context, paths []string, byPath map[string]scan.File, progress ProgressFunc) (chunksAdded, errored int) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Index.Parallelism)

	total := len(paths)
	var done atomic.Int32

	for _, path := range paths {
		path := path
		g.Go(func() error {
			n, err := m.indexOneFile(gctx, byPath[path])
			cur := int(done.Add(1))
			if progress != nil {
				progress(Progress{Phase: PhaseEmbedding, Current: cur, Total: total, CurrentFile: path})
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("codeintel: index %s: %v", path, err)
				errored++
				_ = m.store.Files().Upsert(ctx, symbol.FileRecord{
					FilePath: path, Branch: m.branch, Status: symbol.StatusError,
					ErrorMessage: err.Error(), LastIndexed: time.Now(),
				})
				return nil // per-file failures never propagate
			}
			chunksAdded += n
			return nil
		})
	}
	_ = g.Wait()
	return chunksAdded, errored
}

// indexOneFile implements the per-file pipeline from [4.D]:
// read, hash-compare, delete-then-reextract, embed, persist atomically.
func (m *Manager) indexOneFile(ctx context.Context, f scan.File) (int, error) {
	data, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	content := string(data)
	contentHash := symbol.ContentHash(content)

	existing, found, err := m.store.Files().ByPath(ctx, f.RelPath, m.branch)
	if err != nil {
		return 0, fmt.Errorf("lookup file record: %w", err)
	}
	if found && existing.FileHash == contentHash && existing.Status == symbol.StatusIndexed {
		return 0, nil // unchanged, per content_hash comparison
	}

	if err := m.clearFile(ctx, f.RelPath); err != nil {
		return 0, fmt.Errorf("clear stale state: %w", err)
	}

	rawSyms, rawEdges, extractErr := m.registry.Extract(content, f.RelPath)
	lang := languageForPath(f.RelPath)

	if extractErr != nil {
		return 0, fmt.Errorf("extract: %w", extractErr)
	}

	rev := m.revision.Add(1)
	now := time.Now()
	syms := make([]*symbol.Symbol, 0, len(rawSyms))
	byQualifiedName := make(map[string]*symbol.Symbol, len(rawSyms))
	for _, r := range rawSyms {
		s := &symbol.Symbol{
			ID:            symbol.ID(r.QualifiedName, r.Signature, lang),
			Name:          r.Name,
			QualifiedName: r.QualifiedName,
			Type:          r.Type,
			Language:      lang,
			FilePath:      f.RelPath,
			StartLine:     r.StartLine,
			EndLine:       r.EndLine,
			Content:       r.Content,
			Signature:     r.Signature,
			Docstring:     r.Docstring,
			ContentHash:   symbol.ContentHash(r.Content),
			Branch:        m.branch,
			UpdatedAt:     now,
			RevisionID:    rev,
		}
		syms = append(syms, s)
		byQualifiedName[s.QualifiedName] = s
	}

	if extEdges, err := m.relSrc.EdgesForFile(f.RelPath, m.branch); err == nil {
		rawEdges = append(rawEdges, extEdges...)
	}

	edges := make([]*symbol.Edge, 0, len(rawEdges))
	for _, r := range rawEdges {
		src, ok := byQualifiedName[r.SourceQualifiedName]
		if !ok {
			continue // caller could not be resolved to a declaration in this file
		}
		name := r.TargetQualifiedName
		if name == "" {
			name = r.TargetExternalName
		}
		if name == "" {
			continue
		}
		targetID := name
		if targetSym, ok := byQualifiedName[name]; ok {
			targetID = targetSym.ID
		} else {
			fallbackType := symbol.Function
			if r.Type == symbol.Imports {
				fallbackType = symbol.Module
			}
			resolved, err := m.resolveTarget(ctx, name, fallbackType, now)
			if err != nil {
				return 0, fmt.Errorf("resolve edge target %q: %w", name, err)
			}
			targetID = resolved
		}
		e := &symbol.Edge{
			ID:         symbol.EdgeID(src.ID, targetID, r.Type, r.Origin),
			SourceID:   src.ID,
			TargetID:   targetID,
			Type:       r.Type,
			Confidence: r.Confidence,
			Origin:     r.Origin,
			Branch:     m.branch,
			SourceLine: r.SourceLine,
			TargetLine: r.TargetLine,
			UpdatedAt:  now,
		}
		edges = append(edges, e)
	}

	embeddings, err := m.embedSymbols(ctx, syms)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}

	symVals := make([]symbol.Symbol, len(syms))
	for i, s := range syms {
		symVals[i] = *s
	}
	if err := m.store.Symbols().UpsertMany(ctx, symVals); err != nil {
		return 0, fmt.Errorf("persist symbols: %w", err)
	}
	for _, s := range syms {
		if vec, ok := embeddings[s.ID]; ok {
			if err := m.store.Vectors().Upsert(ctx, s.ID, vec); err != nil {
				return 0, fmt.Errorf("persist vector: %w", err)
			}
		}
		if err := m.store.Keywords().Index(ctx, s.ID, s.Name, s.QualifiedName, s.Content, s.FilePath, s.Branch); err != nil {
			return 0, fmt.Errorf("persist keyword index: %w", err)
		}
	}
	edgeVals := make([]symbol.Edge, len(edges))
	for i, e := range edges {
		edgeVals[i] = *e
	}
	if err := m.store.Edges().UpsertMany(ctx, edgeVals); err != nil {
		return 0, fmt.Errorf("persist edges: %w", err)
	}

	if err := m.store.Files().Upsert(ctx, symbol.FileRecord{
		FilePath: f.RelPath, Branch: m.branch, FileHash: contentHash,
		Mtime: f.Mtime, Size: f.Size, LastIndexed: now, Language: lang,
		Status: symbol.StatusIndexed, SymbolCount: len(syms),
	}); err != nil {
		return 0, fmt.Errorf("persist file record: %w", err)
	}

	return len(syms), nil
}

// resolveTarget maps an edge target name to a symbol id, per the
// target_id invariant: it must refer to a symbol that exists or is
// marked external, never a bare name. It checks symbols already
// persisted for the branch (declarations from this file's earlier
// same-file pass are already excluded by the caller) and, failing
// that, synthesizes an is_external placeholder so the edge is never
// left orphaned. The placeholder's id is content-derived, so repeated
// resolution of the same name across files and runs converges on the
// same row instead of duplicating it.
func (m *Manager) resolveTarget(ctx context.Context, name string, fallbackType symbol.Type, now time.Time) (string, error) {
	matches, err := m.store.Symbols().ByName(ctx, name, m.branch)
	if err != nil {
		return "", fmt.Errorf("lookup target symbol: %w", err)
	}
	if len(matches) > 0 {
		return matches[0].ID, nil
	}
	id := symbol.ID(name, "", "external")
	ext := symbol.Symbol{
		ID:            id,
		Name:          name,
		QualifiedName: name,
		Type:          fallbackType,
		Language:      "external",
		IsExternal:    true,
		Branch:        m.branch,
		UpdatedAt:     now,
	}
	if err := m.store.Symbols().Upsert(ctx, ext); err != nil {
		return "", fmt.Errorf("persist external placeholder: %w", err)
	}
	return id, nil
}

// embedSymbols batch-embeds symbol contents, consulting the LRU cache
// by content_hash first so duplicate content across files and re-edits
// back to a prior state are never re-embedded.
func (m *Manager) embedSymbols(ctx context.Context, syms []*symbol.Symbol) (map[string][]float32, error) {
	result := make(map[string][]float32, len(syms))
	var toEmbed []*symbol.Symbol
	for _, s := range syms {
		if vec, ok := m.embedCache.Get(s.ContentHash); ok {
			result[s.ID] = vec
			continue
		}
		toEmbed = append(toEmbed, s)
	}

	batchSize := m.cfg.Index.EmbeddingBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	for start := 0; start < len(toEmbed); start += batchSize {
		end := start + batchSize
		if end > len(toEmbed) {
			end = len(toEmbed)
		}
		batch := toEmbed[start:end]
		texts := make([]string, len(batch))
		for i, s := range batch {
			texts[i] = embedText(s)
		}
		vecs, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		for i, s := range batch {
			if i >= len(vecs) {
				break
			}
			result[s.ID] = vecs[i]
			m.embedCache.Put(s.ContentHash, vecs[i])
		}
	}
	return result, nil
}

// embedText is the text an embedder sees for a symbol: signature and
// docstring carry more retrieval signal than raw content alone, so
// both are folded in when present.
func embedText(s *symbol.Symbol) string {
	text := s.Content
	if s.Docstring != "" {
		text = s.Docstring + "\n" + text
	}
	if s.Signature != "" {
		text = s.Signature + "\n" + text
	}
	return text
}

// clearFile removes symbols, their edges (by endpoint), FTS entries,
// and vectors for (path, branch) ahead of re-extraction or deletion.
// Each removal is a separate store call; they are not wrapped in one
// transaction, so a failure part way leaves the earlier removals done.
func (m *Manager) clearFile(ctx context.Context, path string) error {
	syms, err := m.store.Symbols().ByFile(ctx, path, m.branch)
	if err != nil {
		return fmt.Errorf("list stale symbols: %w", err)
	}
	for _, s := range syms {
		if err := m.store.Edges().DeleteByEndpoint(ctx, s.ID, m.branch); err != nil {
			return fmt.Errorf("clear edges for %s: %w", s.ID, err)
		}
		if err := m.store.Vectors().Delete(ctx, s.ID); err != nil {
			return fmt.Errorf("clear vector for %s: %w", s.ID, err)
		}
		if err := m.store.Keywords().Delete(ctx, s.ID); err != nil {
			return fmt.Errorf("clear keyword entry for %s: %w", s.ID, err)
		}
	}
	return m.store.Symbols().DeleteByFile(ctx, path, m.branch)
}

func (m *Manager) deleteFile(ctx context.Context, path string) error {
	if err := m.clearFile(ctx, path); err != nil {
		return err
	}
	return m.store.Files().DeleteByPath(ctx, path, m.branch)
}

func currentPaths(files []scan.File) map[string]struct{} {
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		set[f.RelPath] = struct{}{}
	}
	return set
}

var langByExt = map[string]string{
	".go": "go", ".js": "javascript", ".jsx": "javascript",
	".ts": "typescript", ".tsx": "typescript", ".py": "python",
}

func languageForPath(path string) string {
	ext := extOfPath(path)
	if lang, ok := langByExt[ext]; ok {
		return lang
	}
	return "unknown"
}

func extOfPath(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' {
			break
		}
	}
	return ""
}

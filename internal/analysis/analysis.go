// Package analysis implements impact analysis (caller-only BFS with risk
// tiers) and branch diffing over the symbol graph.
package analysis

import (
	"context"
	"fmt"
	"sort"

	"github.com/codeintel/engine/internal/config"
	"github.com/codeintel/engine/internal/storage"
	"github.com/codeintel/engine/internal/symbol"
)

// RiskTier classifies the blast radius of changing a symbol.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// ImpactConfidence reflects how trustworthy an impact result is.
type ImpactConfidence string

const (
	ImpactHigh     ImpactConfidence = "high"
	ImpactMedium   ImpactConfidence = "medium"
	ImpactDegraded ImpactConfidence = "degraded"
)

// ImpactOptions tunes an impact analysis query.
type ImpactOptions struct {
	Branch              string
	MaxDepth            int
	ConfidenceThreshold float64
}

// ImpactAnalysis is the result of Impact.
type ImpactAnalysis struct {
	SymbolID              string
	DirectDependents      int
	TransitiveDependents  int
	Risk                  RiskTier
	Confidence            ImpactConfidence
	Paths                 [][]string // each path is an ordered list of qualified names, seed first
}

const defaultImpactDepth = 10

// Analyzer runs impact and branch-diff queries against a Store.
type Analyzer struct {
	store storage.Store
	cfg   *config.Config
}

// New builds an Analyzer backed by store.
func New(store storage.Store, cfg *config.Config) *Analyzer {
	return &Analyzer{store: store, cfg: cfg}
}

type frontierNode struct {
	symbolID string
	depth    int
	path     []string
}

// Impact runs a callers-only BFS from symbolID, bounded by opts.MaxDepth
// (default 10) and opts.ConfidenceThreshold (default from config, 0.5).
func (a *Analyzer) Impact(ctx context.Context, symbolID string, opts ImpactOptions) (*ImpactAnalysis, error) {
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultImpactDepth
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = a.cfg.Graph.ConfidenceThreshold
	}

	seed, ok, err := a.store.Symbols().ByID(ctx, symbolID)
	if err != nil {
		return nil, fmt.Errorf("lookup seed symbol: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("symbol %s not found in branch %s", symbolID, opts.Branch)
	}

	visited := map[string]symbol.Symbol{seed.ID: seed}
	var paths [][]string
	directDependents := 0
	depthCapped := false
	sawMissingSymbol := false
	stale := false

	queue := []frontierNode{{symbolID: seed.ID, depth: 0, path: []string{seed.QualifiedName}}}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if node.depth >= opts.MaxDepth {
			// There may be more callers beyond this point we never explore.
			callers, err := a.store.Edges().Callers(ctx, node.symbolID, opts.Branch)
			if err == nil && len(callers) > 0 {
				depthCapped = true
			}
			continue
		}

		callers, err := a.store.Edges().Callers(ctx, node.symbolID, opts.Branch)
		if err != nil {
			return nil, fmt.Errorf("callers of %s: %w", node.symbolID, err)
		}

		for _, e := range callers {
			if e.Confidence < opts.ConfidenceThreshold {
				continue
			}

			caller, ok, err := a.store.Symbols().ByID(ctx, e.SourceID)
			if err != nil {
				return nil, fmt.Errorf("lookup caller %s: %w", e.SourceID, err)
			}
			if !ok {
				sawMissingSymbol = true
				continue
			}

			if caller.UpdatedAt.After(e.UpdatedAt) {
				stale = true
			}

			path := append(append([]string{}, node.path...), caller.QualifiedName)

			if node.depth == 0 {
				directDependents++
			}

			if _, already := visited[caller.ID]; already {
				continue
			}
			visited[caller.ID] = caller
			paths = append(paths, path)

			queue = append(queue, frontierNode{symbolID: caller.ID, depth: node.depth + 1, path: path})
		}
	}

	transitiveDependents := len(visited) - 1 // exclude the seed itself

	confidence := ImpactHigh
	if stale {
		confidence = ImpactDegraded
	} else if depthCapped || sawMissingSymbol {
		confidence = ImpactMedium
	}

	sort.Slice(paths, func(i, j int) bool {
		if len(paths[i]) != len(paths[j]) {
			return len(paths[i]) < len(paths[j])
		}
		return paths[i][len(paths[i])-1] < paths[j][len(paths[j])-1]
	})

	return &ImpactAnalysis{
		SymbolID:             seed.ID,
		DirectDependents:     directDependents,
		TransitiveDependents: transitiveDependents,
		Risk:                 riskTier(transitiveDependents),
		Confidence:           confidence,
		Paths:                paths,
	}, nil
}

func riskTier(transitiveDependents int) RiskTier {
	switch {
	case transitiveDependents <= 3:
		return RiskLow
	case transitiveDependents <= 10:
		return RiskMedium
	case transitiveDependents <= 25:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// SymbolChange describes how a symbol differs between two branches.
type SymbolChange struct {
	QualifiedName    string
	SourceID         string
	TargetID         string
	ContentChanged   bool
	SignatureChanged bool
	LocationChanged  bool
}

// EdgeChange describes an added or removed edge, keyed by (source, target, type).
type EdgeChange struct {
	SourceQualifiedName string
	TargetQualifiedName string
	Type                symbol.EdgeType
}

// BranchDiffOptions tunes a diff query.
type BranchDiffOptions struct {
	Offset int
	Limit  int
}

// BranchDiffResult is the result of Diff.
type BranchDiffResult struct {
	Added         []symbol.Symbol
	Removed       []symbol.Symbol
	Modified      []SymbolChange
	EdgesAdded    []EdgeChange
	EdgesRemoved  []EdgeChange
	AffectedFiles []string
	AddedCount    int
	RemovedCount  int
	ModifiedCount int
}

// Diff compares two branches' symbol and edge sets. Symbols are matched by
// qualified_name; edges by (source_id, target_id, type).
// allSymbolsLimit bounds a full-branch symbol scan. Symbols().All takes a
// literal SQL LIMIT with no "0 means unlimited" sentinel, so a diff needs an
// explicit ceiling large enough to cover any realistic branch.
const allSymbolsLimit = 10_000_000

func (a *Analyzer) Diff(ctx context.Context, sourceBranch, targetBranch string, opts BranchDiffOptions) (*BranchDiffResult, error) {
	sourceSyms, err := a.store.Symbols().All(ctx, sourceBranch, allSymbolsLimit)
	if err != nil {
		return nil, fmt.Errorf("list source symbols: %w", err)
	}
	targetSyms, err := a.store.Symbols().All(ctx, targetBranch, allSymbolsLimit)
	if err != nil {
		return nil, fmt.Errorf("list target symbols: %w", err)
	}

	byNameSource := indexByQualifiedName(sourceSyms)
	byNameTarget := indexByQualifiedName(targetSyms)

	affected := make(map[string]bool)
	result := &BranchDiffResult{}

	for name, s := range byNameSource {
		if _, ok := byNameTarget[name]; !ok {
			result.Added = append(result.Added, s)
			affected[s.FilePath] = true
		}
	}
	for name, s := range byNameTarget {
		if _, ok := byNameSource[name]; !ok {
			result.Removed = append(result.Removed, s)
			affected[s.FilePath] = true
		}
	}
	for name, srcSym := range byNameSource {
		tgtSym, ok := byNameTarget[name]
		if !ok {
			continue
		}
		if srcSym.ContentHash == tgtSym.ContentHash &&
			srcSym.Signature == tgtSym.Signature &&
			srcSym.FilePath == tgtSym.FilePath &&
			srcSym.StartLine == tgtSym.StartLine {
			continue
		}
		result.Modified = append(result.Modified, SymbolChange{
			QualifiedName:    name,
			SourceID:         srcSym.ID,
			TargetID:         tgtSym.ID,
			ContentChanged:   srcSym.ContentHash != tgtSym.ContentHash,
			SignatureChanged: srcSym.Signature != tgtSym.Signature,
			LocationChanged:  srcSym.FilePath != tgtSym.FilePath || srcSym.StartLine != tgtSym.StartLine,
		})
		affected[srcSym.FilePath] = true
		affected[tgtSym.FilePath] = true
	}

	sourceEdges, err := a.store.Edges().AllByBranch(ctx, sourceBranch)
	if err != nil {
		return nil, fmt.Errorf("list source edges: %w", err)
	}
	targetEdges, err := a.store.Edges().AllByBranch(ctx, targetBranch)
	if err != nil {
		return nil, fmt.Errorf("list target edges: %w", err)
	}

	symbolsByID := make(map[string]symbol.Symbol, len(sourceSyms)+len(targetSyms))
	for _, s := range sourceSyms {
		symbolsByID[s.ID] = s
	}
	for _, s := range targetSyms {
		symbolsByID[s.ID] = s
	}

	sourceEdgeKeys := indexEdgesByKey(sourceEdges)
	targetEdgeKeys := indexEdgesByKey(targetEdges)

	for key, e := range sourceEdgeKeys {
		if _, ok := targetEdgeKeys[key]; !ok {
			result.EdgesAdded = append(result.EdgesAdded, edgeChangeFrom(e, symbolsByID))
		}
	}
	for key, e := range targetEdgeKeys {
		if _, ok := sourceEdgeKeys[key]; !ok {
			result.EdgesRemoved = append(result.EdgesRemoved, edgeChangeFrom(e, symbolsByID))
		}
	}

	result.AffectedFiles = make([]string, 0, len(affected))
	for f := range affected {
		result.AffectedFiles = append(result.AffectedFiles, f)
	}
	sort.Strings(result.AffectedFiles)

	sort.Slice(result.Added, func(i, j int) bool { return result.Added[i].QualifiedName < result.Added[j].QualifiedName })
	sort.Slice(result.Removed, func(i, j int) bool { return result.Removed[i].QualifiedName < result.Removed[j].QualifiedName })
	sort.Slice(result.Modified, func(i, j int) bool { return result.Modified[i].QualifiedName < result.Modified[j].QualifiedName })

	result.AddedCount = len(result.Added)
	result.RemovedCount = len(result.Removed)
	result.ModifiedCount = len(result.Modified)

	result.Added = paginateSymbols(result.Added, opts)
	result.Removed = paginateSymbols(result.Removed, opts)
	result.Modified = paginateChanges(result.Modified, opts)

	return result, nil
}

func indexByQualifiedName(syms []symbol.Symbol) map[string]symbol.Symbol {
	m := make(map[string]symbol.Symbol, len(syms))
	for _, s := range syms {
		m[s.QualifiedName] = s
	}
	return m
}

type edgeKey struct {
	sourceID string
	targetID string
	edgeType symbol.EdgeType
}

func indexEdgesByKey(edges []symbol.Edge) map[edgeKey]symbol.Edge {
	m := make(map[edgeKey]symbol.Edge, len(edges))
	for _, e := range edges {
		m[edgeKey{sourceID: e.SourceID, targetID: e.TargetID, edgeType: e.Type}] = e
	}
	return m
}

func edgeChangeFrom(e symbol.Edge, symbolsByID map[string]symbol.Symbol) EdgeChange {
	src := symbolsByID[e.SourceID].QualifiedName
	tgt := symbolsByID[e.TargetID].QualifiedName
	return EdgeChange{SourceQualifiedName: src, TargetQualifiedName: tgt, Type: e.Type}
}

func paginateSymbols(syms []symbol.Symbol, opts BranchDiffOptions) []symbol.Symbol {
	start, end := paginateRange(len(syms), opts)
	return syms[start:end]
}

func paginateChanges(changes []SymbolChange, opts BranchDiffOptions) []SymbolChange {
	start, end := paginateRange(len(changes), opts)
	return changes[start:end]
}

func paginateRange(n int, opts BranchDiffOptions) (int, int) {
	if opts.Limit <= 0 {
		return 0, n
	}
	start := opts.Offset
	if start < 0 || start > n {
		start = n
	}
	end := start + opts.Limit
	if end > n {
		end = n
	}
	return start, end
}

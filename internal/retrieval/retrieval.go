// Package retrieval implements the engine's hybrid search pipeline: parallel
// vector and keyword retrieval, reciprocal rank fusion, graph expansion over
// call edges, and token-budget context packing.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeintel/engine/internal/config"
	"github.com/codeintel/engine/internal/graph"
	"github.com/codeintel/engine/internal/storage"
	"github.com/codeintel/engine/internal/symbol"
)

const retrievalLimit = 20

// Query is the input to Search. Embedding and QueryText are each optional but
// at least one should be set for useful results.
type Query struct {
	Embedding           []float32
	QueryText           string
	Branch              string
	MaxTokens           int
	GraphDepth          int
	MaxFanOut           int
	ConfidenceThreshold float64
	SymbolTypes         []symbol.Type
}

// Confidence summarizes how much signal backed a result.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Metadata reports how a QueryResult was assembled.
type Metadata struct {
	QueryTimeMs     int64
	VectorHits      int
	KeywordHits     int
	GraphExpansions int
	Confidence      Confidence
}

// QueryResult is the output of Search.
type QueryResult struct {
	Symbols      []symbol.Symbol
	Edges        []symbol.Edge
	ContextString string
	TokenCount   int
	Metadata     Metadata
}

// Retriever runs hybrid search against a Store.
type Retriever struct {
	store storage.Store
	cfg   *config.Config
}

// New builds a Retriever backed by store, defaulting unset query parameters
// from cfg.
func New(store storage.Store, cfg *config.Config) *Retriever {
	return &Retriever{store: store, cfg: cfg}
}

type rankedHit struct {
	symbolID string
	rank     int // 1-based
}

// Search runs the full six-step pipeline and returns a token-budgeted
// context bundle.
func (r *Retriever) Search(ctx context.Context, q Query) (*QueryResult, error) {
	start := time.Now()
	r.applyDefaults(&q)

	vectorHits, keywordHits, err := r.retrieveParallel(ctx, q)
	if err != nil {
		return nil, err
	}

	fused := fuse(vectorHits, keywordHits, r.cfg.Retrieval.RRFK)

	hydrated, err := r.hydrate(ctx, fused)
	if err != nil {
		return nil, fmt.Errorf("hydrate: %w", err)
	}

	expandNodes, expandEdges, expansions, err := r.expandGraph(ctx, hydrated, q)
	if err != nil {
		return nil, fmt.Errorf("graph expansion: %w", err)
	}

	allSymbols := mergeSymbols(hydrated, expandNodes)
	contextString, tokenCount := packContext(allSymbols, q.MaxTokens)

	result := &QueryResult{
		Symbols:       allSymbols,
		Edges:         expandEdges,
		ContextString: contextString,
		TokenCount:    tokenCount,
		Metadata: Metadata{
			QueryTimeMs:     time.Since(start).Milliseconds(),
			VectorHits:      len(vectorHits),
			KeywordHits:     len(keywordHits),
			GraphExpansions: expansions,
			Confidence:      confidenceFor(len(vectorHits), len(keywordHits)),
		},
	}
	return result, nil
}

func (r *Retriever) applyDefaults(q *Query) {
	if q.MaxTokens <= 0 {
		q.MaxTokens = r.cfg.Retrieval.MaxTokens
	}
	if q.GraphDepth <= 0 {
		q.GraphDepth = r.cfg.Graph.Depth
	}
	if q.GraphDepth > 3 {
		q.GraphDepth = 3
	}
	if q.MaxFanOut <= 0 {
		q.MaxFanOut = r.cfg.Graph.MaxFanOut
	}
	if q.ConfidenceThreshold <= 0 {
		q.ConfidenceThreshold = r.cfg.Graph.ConfidenceThreshold
	}
	if q.Branch == "" {
		q.Branch = "main"
	}
}

// RelatedPath describes the cheapest call path between two
// symbols, for callers that want to explain why a symbol showed up near
// another rather than just that it did.
type RelatedPath struct {
	SymbolIDs []string
	Hops      []graph.PathHop
	Cost      float64
	Reachable bool
}

// NearestRelated finds the lowest-cost path between two symbols, weighting
// each hop by its edge confidence so well-attested edges are preferred over
// speculative ones. It is an optional helper alongside Search, not part of
// the search pipeline itself.
func (r *Retriever) NearestRelated(ctx context.Context, sourceID, targetID, branch string) (RelatedPath, error) {
	ids, hops, cost, err := graph.ShortestPath(ctx, r.store, sourceID, targetID, branch)
	if err != nil {
		return RelatedPath{}, fmt.Errorf("nearest related: %w", err)
	}
	if ids == nil {
		return RelatedPath{Reachable: false}, nil
	}
	return RelatedPath{SymbolIDs: ids, Hops: hops, Cost: cost, Reachable: true}, nil
}

// retrieveParallel runs vector and keyword search concurrently. Either
// returns an empty slice if its corresponding query input was not given.
func (r *Retriever) retrieveParallel(ctx context.Context, q Query) ([]rankedHit, []rankedHit, error) {
	var vectorHits, keywordHits []rankedHit

	g, ctx := errgroup.WithContext(ctx)

	if len(q.Embedding) > 0 {
		g.Go(func() error {
			hits, err := r.store.Vectors().Search(ctx, q.Embedding, retrievalLimit, q.Branch)
			if err != nil {
				return fmt.Errorf("vector search: %w", err)
			}
			vectorHits = make([]rankedHit, len(hits))
			for i, h := range hits {
				vectorHits[i] = rankedHit{symbolID: h.SymbolID, rank: i + 1}
			}
			return nil
		})
	}

	if strings.TrimSpace(q.QueryText) != "" {
		g.Go(func() error {
			hits, err := r.store.Keywords().Search(ctx, q.QueryText, q.Branch, retrievalLimit)
			if err != nil {
				return fmt.Errorf("keyword search: %w", err)
			}
			exact, err := r.store.Symbols().ByName(ctx, q.QueryText, q.Branch)
			if err != nil {
				return fmt.Errorf("exact name lookup: %w", err)
			}
			exactIDs := make(map[string]bool, len(exact))
			for _, s := range exact {
				exactIDs[s.ID] = true
			}
			hits = r.boostExactName(hits, exactIDs)
			keywordHits = make([]rankedHit, len(hits))
			for i, h := range hits {
				keywordHits[i] = rankedHit{symbolID: h.SymbolID, rank: i + 1}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return vectorHits, keywordHits, nil
}

type fusedHit struct {
	symbolID string
	score    float64
}

// fuse combines ranked lists via reciprocal rank fusion: fused score for a
// symbol is the sum of 1/(k+rank) across every list it appears in. Any
// exact-name boost has already reordered the keyword list's ranks by the
// time it reaches here.
func fuse(vectorHits, keywordHits []rankedHit, k int) []fusedHit {
	scores := make(map[string]float64)
	order := []string{}
	add := func(hits []rankedHit) {
		for _, h := range hits {
			if _, ok := scores[h.symbolID]; !ok {
				order = append(order, h.symbolID)
			}
			scores[h.symbolID] += 1.0 / float64(k+h.rank)
		}
	}
	add(vectorHits)
	add(keywordHits)

	out := make([]fusedHit, 0, len(order))
	for _, id := range order {
		out = append(out, fusedHit{symbolID: id, score: scores[id]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].symbolID < out[j].symbolID // deterministic tiebreak
	})
	return out
}

// boostExactName re-ranks keyword hits so a name that matches the query text
// exactly sorts ahead of the rest before RRF assigns positional ranks. Lower
// Rank is a better BM25 match, so halving it moves an exact match up.
func (r *Retriever) boostExactName(hits []storage.KeywordHit, exactIDs map[string]bool) []storage.KeywordHit {
	boosted := make([]storage.KeywordHit, len(hits))
	copy(boosted, hits)
	for i := range boosted {
		if exactIDs[boosted[i].SymbolID] {
			boosted[i].Rank /= r.cfg.Retrieval.ExactNameBoost
		}
	}
	sort.Slice(boosted, func(i, j int) bool { return boosted[i].Rank < boosted[j].Rank })
	return boosted
}

func (r *Retriever) hydrate(ctx context.Context, fused []fusedHit) ([]symbol.Symbol, error) {
	out := make([]symbol.Symbol, 0, len(fused))
	for _, f := range fused {
		s, ok, err := r.store.Symbols().ByID(ctx, f.symbolID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

const graphExpansionSeeds = 5

// expandGraph runs BFS callers/callees from the top hydrated symbols up to
// q.GraphDepth, dropping low-confidence edges and truncating fan-out.
func (r *Retriever) expandGraph(ctx context.Context, hydrated []symbol.Symbol, q Query) ([]symbol.Symbol, []symbol.Edge, int, error) {
	typeFilter := make(map[symbol.Type]bool, len(q.SymbolTypes))
	for _, t := range q.SymbolTypes {
		typeFilter[t] = true
	}
	filterTypes := len(typeFilter) > 0

	seeds := hydrated
	if len(seeds) > graphExpansionSeeds {
		seeds = seeds[:graphExpansionSeeds]
	}

	visited := make(map[string]bool, len(hydrated))
	nodes := make(map[string]symbol.Symbol, len(hydrated))
	for _, s := range hydrated {
		visited[s.ID] = true
		nodes[s.ID] = s
	}

	var edges []symbol.Edge
	seenEdges := make(map[string]bool)
	expansions := 0

	type frontierItem struct {
		symbolID string
		depth    int
	}
	var queue []frontierItem
	for _, s := range seeds {
		queue = append(queue, frontierItem{symbolID: s.ID, depth: 0})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.depth >= q.GraphDepth {
			continue
		}

		callers, err := r.store.Edges().Callers(ctx, item.symbolID, q.Branch)
		if err != nil {
			return nil, nil, 0, err
		}
		callees, err := r.store.Edges().Callees(ctx, item.symbolID, q.Branch)
		if err != nil {
			return nil, nil, 0, err
		}

		candidates := make([]symbol.Edge, 0, len(callers)+len(callees))
		for _, e := range callers {
			if e.Confidence >= q.ConfidenceThreshold {
				candidates = append(candidates, e)
			}
		}
		for _, e := range callees {
			if e.Confidence >= q.ConfidenceThreshold {
				candidates = append(candidates, e)
			}
		}

		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Confidence > candidates[j].Confidence })
		if len(candidates) > q.MaxFanOut {
			candidates = candidates[:q.MaxFanOut]
		}

		for _, e := range candidates {
			neighborID := e.SourceID
			if neighborID == item.symbolID {
				neighborID = e.TargetID
			}

			// An edge reached again from its other endpoint is already
			// in the result, and that endpoint is already visited.
			if seenEdges[e.ID] {
				continue
			}
			seenEdges[e.ID] = true
			edges = append(edges, e)
			expansions++

			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true

			neighbor, ok, err := r.store.Symbols().ByID(ctx, neighborID)
			if err != nil {
				return nil, nil, 0, err
			}
			if !ok {
				continue
			}
			if filterTypes && !typeFilter[neighbor.Type] {
				continue
			}
			nodes[neighborID] = neighbor
			queue = append(queue, frontierItem{symbolID: neighborID, depth: item.depth + 1})
		}
	}

	hydratedIDs := make(map[string]struct{}, len(hydrated))
	for _, s := range hydrated {
		hydratedIDs[s.ID] = struct{}{}
	}

	extra := make([]symbol.Symbol, 0, len(nodes))
	for id, s := range nodes {
		if _, already := hydratedIDs[id]; already {
			continue
		}
		extra = append(extra, s)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].ID < extra[j].ID })

	return extra, edges, expansions, nil
}

func mergeSymbols(primary, extra []symbol.Symbol) []symbol.Symbol {
	out := make([]symbol.Symbol, 0, len(primary)+len(extra))
	out = append(out, primary...)
	out = append(out, extra...)
	return out
}

const minRemainderTokens = 100

// packContext renders symbols in order into a token-budgeted context string.
// Each block is headed by type/qualified_name, file:line range, signature,
// docstring and fenced source. Token count is estimated as ceil(len/4).
func packContext(symbols []symbol.Symbol, maxTokens int) (string, int) {
	var b strings.Builder
	tokens := 0

	for _, s := range symbols {
		block := formatBlock(s)
		blockTokens := estimateTokens(block)

		if tokens+blockTokens > maxTokens {
			remaining := maxTokens - tokens
			if remaining < minRemainderTokens {
				break
			}
			truncated := truncateToTokens(block, remaining)
			b.WriteString(truncated)
			tokens += estimateTokens(truncated)
			break
		}

		b.WriteString(block)
		tokens += blockTokens
	}

	return b.String(), tokens
}

func formatBlock(s symbol.Symbol) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s %s\n", s.Type, s.QualifiedName)
	fmt.Fprintf(&b, "%s:%d-%d\n", s.FilePath, s.StartLine, s.EndLine)
	if s.Signature != "" {
		fmt.Fprintf(&b, "%s\n", s.Signature)
	}
	if s.Docstring != "" {
		fmt.Fprintf(&b, "%s\n", s.Docstring)
	}
	fmt.Fprintf(&b, "```%s\n%s\n```\n\n", s.Language, s.Content)
	return b.String()
}

func estimateTokens(s string) int {
	return int(math.Ceil(float64(len(s)) / 4.0))
}

func truncateToTokens(s string, tokens int) string {
	maxLen := tokens * 4
	if maxLen >= len(s) {
		return s
	}
	return s[:maxLen]
}

func confidenceFor(vectorHits, keywordHits int) Confidence {
	if vectorHits >= 1 && keywordHits >= 1 {
		return ConfidenceHigh
	}
	if vectorHits+keywordHits >= 5 {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// Package graph provides store-backed graph algorithms shared by retrieval
// and analysis: weighted shortest path between two symbols, and per-file
// importance scoring from call/import degree.
package graph

import (
	"container/heap"
	"context"
	"fmt"
	"sort"

	"github.com/codeintel/engine/internal/storage"
	"github.com/codeintel/engine/internal/symbol"
)

// edgeCost converts an edge's confidence into a traversal cost: higher
// confidence means a cheaper, more trustworthy hop. Edges at or below zero
// confidence are heavily penalized rather than excluded outright.
func edgeCost(confidence float64) float64 {
	if confidence <= 0 {
		return 10.0
	}
	return 1.0 / confidence
}

type pqItem struct {
	symbolID string
	cost     float64
	index    int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].cost < pq[j].cost }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i]; pq[i].index = i; pq[j].index = j }
func (pq *priorityQueue) Push(x any)         { item := x.(*pqItem); item.index = len(*pq); *pq = append(*pq, item) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// PathHop is one edge traversed along a ShortestPath result.
type PathHop struct {
	Edge     symbol.Edge
	ToSymbol string
}

// ShortestPath runs Dijkstra over CALLS edges (bidirectionally,
// so a path can traverse a caller or a callee at each hop) between source
// and target within branch, fetching each node's neighbors from the store
// lazily rather than materializing the whole branch's edge set in memory.
// Returns nil, nil, -1 if target is unreachable, or [source], nil, 0 if
// source == target.
func ShortestPath(ctx context.Context, store storage.Store, source, target, branch string) ([]string, []PathHop, float64, error) {
	if source == target {
		if _, ok, err := store.Symbols().ByID(ctx, source); err != nil {
			return nil, nil, -1, err
		} else if !ok {
			return nil, nil, -1, nil
		}
		return []string{source}, nil, 0, nil
	}

	dist := map[string]float64{source: 0}
	prev := map[string]string{}
	prevEdge := map[string]symbol.Edge{}

	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &pqItem{symbolID: source, cost: 0})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*pqItem)
		if cur.symbolID == target {
			break
		}
		if cur.cost > dist[cur.symbolID] {
			continue
		}

		callers, err := store.Edges().Callers(ctx, cur.symbolID, branch)
		if err != nil {
			return nil, nil, -1, fmt.Errorf("graph: shortest path: callers of %s: %w", cur.symbolID, err)
		}
		callees, err := store.Edges().Callees(ctx, cur.symbolID, branch)
		if err != nil {
			return nil, nil, -1, fmt.Errorf("graph: shortest path: callees of %s: %w", cur.symbolID, err)
		}

		neighbors := make([]symbol.Edge, 0, len(callers)+len(callees))
		neighbors = append(neighbors, callers...)
		neighbors = append(neighbors, callees...)

		for _, e := range neighbors {
			neighbor := e.SourceID
			if neighbor == cur.symbolID {
				neighbor = e.TargetID
			}
			cost := cur.cost + edgeCost(e.Confidence)
			if old, ok := dist[neighbor]; !ok || cost < old {
				dist[neighbor] = cost
				prev[neighbor] = cur.symbolID
				prevEdge[neighbor] = e
				heap.Push(pq, &pqItem{symbolID: neighbor, cost: cost})
			}
		}
	}

	if _, ok := dist[target]; !ok {
		return nil, nil, -1, nil
	}

	var path []string
	var hops []PathHop
	for cur := target; cur != ""; cur = prev[cur] {
		path = append(path, cur)
		if e, ok := prevEdge[cur]; ok {
			hops = append(hops, PathHop{Edge: e, ToSymbol: cur})
		}
		if cur == source {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	for i, j := 0, len(hops)-1; i < j; i, j = i+1, j-1 {
		hops[i], hops[j] = hops[j], hops[i]
	}

	return path, hops, dist[target], nil
}

const allSymbolsLimit = 10_000_000

// ComputeRepoMap aggregates per-file in/out degree over every CALLS and
// IMPORTS edge in branch and derives an importance score from it, in the
// spirit of a PageRank-lite over the call graph: files that are called into
// or imported from many places rank higher than files that only call out.
// It does not persist the result; callers upsert entries through
// storage.RepoMapRepo themselves.
func ComputeRepoMap(ctx context.Context, store storage.Store, branch string) ([]symbol.RepoMapEntry, error) {
	syms, err := store.Symbols().All(ctx, branch, allSymbolsLimit)
	if err != nil {
		return nil, fmt.Errorf("graph: repo map: list symbols: %w", err)
	}
	fileOf := make(map[string]string, len(syms))
	symsByFile := make(map[string][]symbol.Symbol, len(syms))
	for _, s := range syms {
		fileOf[s.ID] = s.FilePath
		symsByFile[s.FilePath] = append(symsByFile[s.FilePath], s)
	}

	edges, err := store.Edges().AllByBranch(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("graph: repo map: list edges: %w", err)
	}

	inDeg := map[string]int{}
	outDeg := map[string]int{}
	for _, e := range edges {
		if e.Type != symbol.Calls && e.Type != symbol.Imports {
			continue
		}
		srcFile, ok := fileOf[e.SourceID]
		if !ok {
			continue
		}
		dstFile, ok := fileOf[e.TargetID]
		if !ok {
			continue
		}
		outDeg[srcFile]++
		inDeg[dstFile]++
	}

	filesSeen := make(map[string]bool)
	for _, f := range fileOf {
		filesSeen[f] = true
	}

	maxDeg := 1
	for f := range filesSeen {
		if d := inDeg[f] + outDeg[f]; d > maxDeg {
			maxDeg = d
		}
	}

	entries := make([]symbol.RepoMapEntry, 0, len(filesSeen))
	for f := range filesSeen {
		in, out := inDeg[f], outDeg[f]
		entries = append(entries, symbol.RepoMapEntry{
			FilePath:        f,
			Branch:          branch,
			InDegree:        in,
			OutDegree:       out,
			ImportanceScore: float64(in+out) / float64(maxDeg),
			SymbolSummary:   fileSummary(symsByFile[f]),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].FilePath < entries[j].FilePath })
	return entries, nil
}

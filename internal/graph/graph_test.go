package graph

import (
	"context"
	"testing"

	"github.com/codeintel/engine/internal/storage/sqlite"
	"github.com/codeintel/engine/internal/symbol"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func putSymbol(t *testing.T, st *sqlite.Store, branch, id, name, filePath string) symbol.Symbol {
	t.Helper()
	s := symbol.Symbol{
		ID:            id,
		Name:          name,
		QualifiedName: name,
		Type:          symbol.Function,
		Language:      "go",
		FilePath:      filePath,
		ContentHash:   id,
		Branch:        branch,
	}
	if err := st.Symbols().Upsert(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	return s
}

func putEdge(t *testing.T, st *sqlite.Store, branch, sourceID, targetID string, confidence float64) {
	t.Helper()
	e := symbol.Edge{
		ID:         sourceID + "->" + targetID,
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       symbol.Calls,
		Confidence: confidence,
		Origin:     symbol.OriginASTInfer,
		Branch:     branch,
	}
	if err := st.Edges().Upsert(context.Background(), e); err != nil {
		t.Fatal(err)
	}
}

func TestShortestPathFindsCheapestRoute(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	putSymbol(t, st, "main", "a", "A", "a.go")
	putSymbol(t, st, "main", "b", "B", "b.go")
	putSymbol(t, st, "main", "c", "C", "c.go")
	putEdge(t, st, "main", "a", "b", 0.9)
	putEdge(t, st, "main", "b", "c", 0.9)
	putEdge(t, st, "main", "a", "c", 0.1)

	path, hops, cost, err := ShortestPath(ctx, st, "a", "c", "main")
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 3 || path[0] != "a" || path[2] != "c" {
		t.Fatalf("expected path through b, got %v", path)
	}
	if len(hops) != 2 {
		t.Fatalf("expected 2 hops, got %d", len(hops))
	}
	if cost <= 0 {
		t.Fatalf("expected positive cost, got %f", cost)
	}
}

func TestShortestPathUnreachable(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	putSymbol(t, st, "main", "a", "A", "a.go")
	putSymbol(t, st, "main", "b", "B", "b.go")

	path, _, cost, err := ShortestPath(ctx, st, "a", "b", "main")
	if err != nil {
		t.Fatal(err)
	}
	if path != nil || cost != -1 {
		t.Fatalf("expected unreachable, got path=%v cost=%f", path, cost)
	}
}

func TestComputeRepoMapRanksCalledIntoFileHigher(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	putSymbol(t, st, "main", "caller1", "HandleRequest", "caller.go")
	putSymbol(t, st, "main", "caller2", "ValidateToken", "caller.go")
	putSymbol(t, st, "main", "hub", "Dispatch", "hub.go")
	putEdge(t, st, "main", "caller1", "hub", 0.9)
	putEdge(t, st, "main", "caller2", "hub", 0.9)

	entries, err := ComputeRepoMap(ctx, st, "main")
	if err != nil {
		t.Fatal(err)
	}
	byFile := make(map[string]symbol.RepoMapEntry, len(entries))
	for _, e := range entries {
		byFile[e.FilePath] = e
	}
	hub, ok := byFile["hub.go"]
	if !ok {
		t.Fatalf("missing hub.go entry: %v", entries)
	}
	if hub.InDegree != 2 {
		t.Fatalf("expected hub.go in-degree 2, got %d", hub.InDegree)
	}
	if hub.ImportanceScore != 1.0 {
		t.Fatalf("expected hub.go to be the most important file, got %f", hub.ImportanceScore)
	}
	caller := byFile["caller.go"]
	if caller.SymbolSummary == "" {
		t.Fatalf("expected a non-empty symbol summary for caller.go")
	}
}

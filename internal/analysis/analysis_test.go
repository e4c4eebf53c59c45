package analysis

import (
	"context"
	"testing"

	"github.com/codeintel/engine/internal/config"
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

func putSymbol(t *testing.T, st *sqlite.Store, branch, id, qualifiedName, contentHash string) symbol.Symbol {
	t.Helper()
	s := symbol.Symbol{
		ID:            id,
		Name:          qualifiedName,
		QualifiedName: qualifiedName,
		Type:          symbol.Function,
		Language:      "go",
		FilePath:      "pkg/" + qualifiedName + ".go",
		StartLine:     1,
		EndLine:       3,
		ContentHash:   contentHash,
		Signature:     "func " + qualifiedName + "()",
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

func TestImpactCountsDirectAndTransitiveCallers(t *testing.T) {
	st := newTestStore(t)
	target := putSymbol(t, st, "main", "target", "pkg.Target", "h0")
	callerA := putSymbol(t, st, "main", "a", "pkg.A", "h1")
	callerB := putSymbol(t, st, "main", "b", "pkg.B", "h2")
	putEdge(t, st, "main", callerA.ID, target.ID, 0.9)
	putEdge(t, st, "main", callerB.ID, callerA.ID, 0.9)

	a := New(st, config.DefaultConfig())
	result, err := a.Impact(context.Background(), target.ID, ImpactOptions{Branch: "main"})
	if err != nil {
		t.Fatal(err)
	}
	if result.DirectDependents != 1 {
		t.Fatalf("expected 1 direct dependent, got %d", result.DirectDependents)
	}
	if result.TransitiveDependents != 2 {
		t.Fatalf("expected 2 transitive dependents, got %d", result.TransitiveDependents)
	}
	if result.Risk != RiskLow {
		t.Fatalf("expected low risk for 2 dependents, got %s", result.Risk)
	}
	if result.Confidence != ImpactHigh {
		t.Fatalf("expected high confidence, got %s", result.Confidence)
	}
}

func TestImpactDropsLowConfidenceEdges(t *testing.T) {
	st := newTestStore(t)
	target := putSymbol(t, st, "main", "target", "pkg.Target", "h0")
	caller := putSymbol(t, st, "main", "a", "pkg.A", "h1")
	putEdge(t, st, "main", caller.ID, target.ID, 0.1)

	a := New(st, config.DefaultConfig())
	result, err := a.Impact(context.Background(), target.ID, ImpactOptions{Branch: "main", ConfidenceThreshold: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if result.DirectDependents != 0 {
		t.Fatalf("expected low-confidence edge dropped, got %d dependents", result.DirectDependents)
	}
}

func TestDiffDetectsAddedRemovedModified(t *testing.T) {
	st := newTestStore(t)
	putSymbol(t, st, "main", "shared-main", "pkg.Shared", "H1")
	putSymbol(t, st, "feature", "shared-feature", "pkg.Shared", "H2")
	putSymbol(t, st, "feature", "new-feature", "pkg.NewFunc", "H3")

	a := New(st, config.DefaultConfig())
	result, err := a.Diff(context.Background(), "feature", "main", BranchDiffOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.AddedCount != 1 || result.Added[0].QualifiedName != "pkg.NewFunc" {
		t.Fatalf("expected pkg.NewFunc added, got %+v", result.Added)
	}
	if result.ModifiedCount != 1 || !result.Modified[0].ContentChanged {
		t.Fatalf("expected pkg.Shared modified with content change, got %+v", result.Modified)
	}
	if result.RemovedCount != 0 {
		t.Fatalf("expected no removed symbols, got %+v", result.Removed)
	}
}

func TestDiffPaginatesResults(t *testing.T) {
	st := newTestStore(t)
	for i := 0; i < 5; i++ {
		name := string(rune('A' + i))
		putSymbol(t, st, "feature", "sym-"+name, "pkg."+name, "h-"+name)
	}

	a := New(st, config.DefaultConfig())
	result, err := a.Diff(context.Background(), "feature", "main", BranchDiffOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if result.AddedCount != 5 {
		t.Fatalf("expected total count 5, got %d", result.AddedCount)
	}
	if len(result.Added) != 2 {
		t.Fatalf("expected page size 2, got %d", len(result.Added))
	}
}

package retrieval

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

func seedSymbol(t *testing.T, st *sqlite.Store, id, name, qualifiedName string, vec []float32) symbol.Symbol {
	t.Helper()
	ctx := context.Background()
	s := symbol.Symbol{
		ID:            id,
		Name:          name,
		QualifiedName: qualifiedName,
		Type:          symbol.Function,
		Language:      "go",
		FilePath:      "main.go",
		StartLine:     1,
		EndLine:       3,
		Content:       "func " + name + "() {}",
		Signature:     "func " + name + "()",
		ContentHash:   "hash-" + id,
		Branch:        "main",
	}
	if err := st.Symbols().Upsert(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := st.Keywords().Index(ctx, s.ID, s.Name, s.QualifiedName, s.Content, s.FilePath, s.Branch); err != nil {
		t.Fatal(err)
	}
	if vec != nil {
		if err := st.Vectors().Upsert(ctx, s.ID, vec); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestSearchFusesVectorAndKeywordHits(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	vec := make([]float32, 8)
	vec[0] = 1
	seedSymbol(t, st, "sym1", "HandleRequest", "pkg.HandleRequest", vec)
	seedSymbol(t, st, "sym2", "ValidateToken", "pkg.ValidateToken", nil)

	r := New(st, config.DefaultConfig())
	result, err := r.Search(ctx, Query{
		Embedding: vec,
		QueryText: "HandleRequest",
		Branch:    "main",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Symbols) == 0 {
		t.Fatal("expected at least one symbol")
	}
	if result.Symbols[0].ID != "sym1" {
		t.Fatalf("expected sym1 to rank first via fusion, got %+v", result.Symbols)
	}
	if result.Metadata.Confidence != ConfidenceHigh {
		t.Fatalf("expected high confidence with both sources hit, got %s", result.Metadata.Confidence)
	}
}

func TestSearchWithOnlyKeywordText(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedSymbol(t, st, "sym1", "ValidateToken", "pkg.ValidateToken", nil)

	r := New(st, config.DefaultConfig())
	result, err := r.Search(ctx, Query{QueryText: "ValidateToken", Branch: "main"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Symbols) != 1 || result.Symbols[0].ID != "sym1" {
		t.Fatalf("expected sym1 from keyword-only search, got %+v", result.Symbols)
	}
	if result.Metadata.VectorHits != 0 {
		t.Fatalf("expected no vector hits, got %d", result.Metadata.VectorHits)
	}
}

func TestSearchExpandsGraphOverCallEdges(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	caller := seedSymbol(t, st, "caller", "Caller", "pkg.Caller", nil)
	callee := seedSymbol(t, st, "callee", "Callee", "pkg.Callee", nil)

	edge := symbol.Edge{
		ID:         "edge1",
		SourceID:   caller.ID,
		TargetID:   callee.ID,
		Type:       symbol.Calls,
		Confidence: 0.9,
		Origin:     symbol.OriginASTInfer,
		Branch:     "main",
	}
	if err := st.Edges().Upsert(ctx, edge); err != nil {
		t.Fatal(err)
	}

	r := New(st, config.DefaultConfig())
	result, err := r.Search(ctx, Query{QueryText: "Caller", Branch: "main"})
	if err != nil {
		t.Fatal(err)
	}

	foundCallee := false
	for _, s := range result.Symbols {
		if s.ID == callee.ID {
			foundCallee = true
		}
	}
	if !foundCallee {
		t.Fatalf("expected graph expansion to pull in callee, got %+v", result.Symbols)
	}
	if len(result.Edges) != 1 {
		t.Fatalf("expected 1 expanded edge, got %d", len(result.Edges))
	}
}

func TestSearchRespectsTokenBudget(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		seedSymbol(t, st, symbolID(i), symbolName(i), "pkg."+symbolName(i), nil)
	}
	_ = ctx

	r := New(st, config.DefaultConfig())
	result, err := r.Search(context.Background(), Query{QueryText: "Sym", MaxTokens: 10, Branch: "main"})
	if err != nil {
		t.Fatal(err)
	}
	if result.TokenCount > 10 {
		t.Fatalf("expected token count within budget, got %d", result.TokenCount)
	}
}

func symbolID(i int) string   { return []string{"a", "b", "c"}[i] }
func symbolName(i int) string { return []string{"SymA", "SymB", "SymC"}[i] }

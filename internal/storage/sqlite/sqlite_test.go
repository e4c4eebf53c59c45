package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/codeintel/engine/internal/symbol"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertSymbolIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	sym := symbol.Symbol{
		ID: "abc123", Name: "Run", QualifiedName: "main.go:Run", Type: symbol.Function,
		Language: "go", FilePath: "main.go", Branch: "main", ContentHash: "h1",
		UpdatedAt: time.Now(),
	}
	if err := s.Symbols().Upsert(ctx, sym); err != nil {
		t.Fatal(err)
	}
	if err := s.Symbols().Upsert(ctx, sym); err != nil {
		t.Fatal(err)
	}
	n, err := s.Symbols().Count(ctx, "main")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row after double upsert, got %d", n)
	}
}

func TestDeleteByFileThenReExtractRestoresIDs(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	sym := symbol.Symbol{ID: "id1", Name: "Foo", FilePath: "a.go", Branch: "main", UpdatedAt: time.Now()}
	if err := s.Symbols().Upsert(ctx, sym); err != nil {
		t.Fatal(err)
	}
	if err := s.Symbols().DeleteByFile(ctx, "a.go", "main"); err != nil {
		t.Fatal(err)
	}
	if err := s.Symbols().Upsert(ctx, sym); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Symbols().ByID(ctx, "id1")
	if err != nil || !ok {
		t.Fatalf("expected symbol restored, ok=%v err=%v", ok, err)
	}
	if got.ID != "id1" {
		t.Fatalf("id changed across delete/re-extract")
	}
}

func TestBranchIsolation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	main := symbol.Symbol{ID: "s1", Name: "F", FilePath: "a.go", Branch: "main", UpdatedAt: time.Now()}
	feature := symbol.Symbol{ID: "s2", Name: "F", FilePath: "a.go", Branch: "feature", UpdatedAt: time.Now()}
	if err := s.Symbols().Upsert(ctx, main); err != nil {
		t.Fatal(err)
	}
	if err := s.Symbols().Upsert(ctx, feature); err != nil {
		t.Fatal(err)
	}

	syms, err := s.Symbols().ByFile(ctx, "a.go", "main")
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 1 || syms[0].ID != "s1" {
		t.Fatalf("branch filter leaked across partitions: %+v", syms)
	}
}

func TestVectorSearchCosineFallback(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, sym := range []symbol.Symbol{
		{ID: "v1", Name: "A", FilePath: "a.go", Branch: "main", UpdatedAt: time.Now()},
		{ID: "v2", Name: "B", FilePath: "b.go", Branch: "main", UpdatedAt: time.Now()},
	} {
		if err := s.Symbols().Upsert(ctx, sym); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Vectors().Upsert(ctx, "v1", []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := s.Vectors().Upsert(ctx, "v2", []float32{0, 1, 0}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Vectors().Search(ctx, []float32{1, 0, 0}, 5, "main")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].SymbolID != "v1" {
		t.Fatalf("expected v1 ranked first, got %+v", hits)
	}
	if hits[0].Similarity < 0.99 {
		t.Fatalf("expected near-1 similarity for identical vector, got %f", hits[0].Similarity)
	}
}

func TestKeywordSearchMalformedQueryReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	hits, err := s.Keywords().Search(ctx, `"unbalanced`, "main", 10)
	if err != nil {
		t.Fatalf("malformed FTS query must not return an error, got %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected empty result for malformed query, got %d hits", len(hits))
	}
}

func TestKeywordSearchFindsIndexedSymbol(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.Keywords().Index(ctx, "k1", "createLogger", "log.go:createLogger", "func createLogger() {}", "log.go", "main"); err != nil {
		t.Fatal(err)
	}
	hits, err := s.Keywords().Search(ctx, "createLogger", "main", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0].SymbolID != "k1" {
		t.Fatalf("expected k1 to match, got %+v", hits)
	}
}

func TestNeedsReembedding(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	need, err := s.NeedsReembedding(ctx, "model-a")
	if err != nil || need {
		t.Fatalf("expected no re-embed needed with no prior model, got need=%v err=%v", need, err)
	}
	if err := s.SetEmbeddingModelID(ctx, "model-a"); err != nil {
		t.Fatal(err)
	}
	need, err = s.NeedsReembedding(ctx, "model-b")
	if err != nil || !need {
		t.Fatalf("expected re-embed needed after model change, got need=%v err=%v", need, err)
	}
}

package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/codeintel/engine/internal/analysis"
	"github.com/codeintel/engine/internal/retrieval"
)

func writeSrc(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func openTestEngine(t *testing.T, root string) *Engine {
	t.Helper()
	e, err := Open(context.Background(), root, "main", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngineUpdateAndStatus(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "main.go", "package main\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n")

	e := openTestEngine(t, root)
	stats, err := e.Update(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesIndexed != 1 {
		t.Fatalf("expected 1 file indexed, got %+v", stats)
	}

	status, err := e.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status.FileCount != 1 {
		t.Fatalf("expected 1 file in status, got %+v", status)
	}
	if status.ChunkCount != 2 {
		t.Fatalf("expected the Hello symbol plus the file's MODULE symbol, got %+v", status)
	}
	if status.IsIndexing {
		t.Fatalf("expected indexing to have finished")
	}
}

func TestEngineRebuildReplacesIndex(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "main.go", "package main\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n")

	e := openTestEngine(t, root)
	if _, err := e.Update(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	writeSrc(t, root, "extra.go", "package main\n\nfunc World() string {\n\treturn \"world\"\n}\n")
	stats, err := e.Rebuild(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesIndexed != 2 {
		t.Fatalf("expected 2 files after rebuild, got %+v", stats)
	}
}

func TestEngineSearchFindsIndexedSymbol(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "greet.go", "package main\n\nfunc Greet() string {\n\treturn \"hi\"\n}\n")

	e := openTestEngine(t, root)
	if _, err := e.Update(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	vec, err := e.embedder.Embed(context.Background(), "Greet")
	if err != nil {
		t.Fatal(err)
	}
	result, err := e.Search(context.Background(), retrieval.Query{Embedding: vec, QueryText: "Greet"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Symbols) == 0 {
		t.Fatalf("expected at least one search hit")
	}
}

func TestEngineFindSimilarEmbedsQuerySnippet(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "greet.go", "package main\n\nfunc Greet() string {\n\treturn \"hi\"\n}\n")

	e := openTestEngine(t, root)
	if _, err := e.Update(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	result, err := e.FindSimilar(context.Background(), "func Greet() string { return \"hi\" }", retrieval.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("expected a result")
	}
}

func TestEngineImpactAndDiff(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "main.go", "package main\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n")

	e := openTestEngine(t, root)
	if _, err := e.Update(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	syms, err := e.store.Symbols().ByFile(context.Background(), "main.go", "main")
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) == 0 {
		t.Fatal("expected at least one indexed symbol")
	}

	if _, err := e.Impact(context.Background(), syms[0].ID, analysis.ImpactOptions{}); err != nil {
		t.Fatal(err)
	}

	diff, err := e.Diff(context.Background(), "main", "main", analysis.BranchDiffOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if diff.AddedCount != 0 || diff.RemovedCount != 0 {
		t.Fatalf("expected no diff against itself, got %+v", diff)
	}
}

func TestEngineRepoMapPopulatedAfterUpdate(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "main.go", "package main\n\nfunc HandleRequest() {\n}\n")

	e := openTestEngine(t, root)
	if _, err := e.Update(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	entries, err := e.RepoMap(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 repo map entry, got %+v", entries)
	}
	if entries[0].FilePath != "main.go" {
		t.Fatalf("expected main.go entry, got %+v", entries[0])
	}
}

func TestEngineNearestRelatedFindsPath(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "main.go", "package main\n\nfunc A() { B() }\nfunc B() {}\n")

	e := openTestEngine(t, root)
	if _, err := e.Update(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	syms, err := e.store.Symbols().ByFile(context.Background(), "main.go", "main")
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) < 2 {
		t.Fatalf("expected at least 2 symbols, got %d", len(syms))
	}

	if _, err := e.NearestRelated(context.Background(), syms[0].ID, syms[1].ID); err != nil {
		t.Fatal(err)
	}
}

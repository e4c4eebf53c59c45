package indexmanager

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/codeintel/engine/internal/config"
	"github.com/codeintel/engine/internal/embed"
	"github.com/codeintel/engine/internal/merkle"
	"github.com/codeintel/engine/internal/storage/sqlite"
	"github.com/codeintel/engine/internal/symbol"
)

func newTestManager(t *testing.T, root string) *Manager {
	t.Helper()
	st, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig()
	cfg.CachePath = filepath.Join(root, ".cache", "merkle-cache.json")
	emb := embed.NewSyntheticEmbedder(64)
	return New(root, "main", cfg, st, merkle.New(), emb, nil)
}

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

func TestUpdateIndexesNewGoFile(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "main.go", "package main\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n")

	m := newTestManager(t, root)
	stats, err := m.Update(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesIndexed != 1 {
		t.Fatalf("expected 1 file indexed, got %+v", stats)
	}

	syms, err := m.store.Symbols().ByFile(context.Background(), "main.go", "main")
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 2 {
		t.Fatalf("expected the Hello symbol plus the file's MODULE symbol, got %+v", syms)
	}
	var sawHello bool
	for _, s := range syms {
		if s.Name == "Hello" {
			sawHello = true
		}
	}
	if !sawHello {
		t.Fatalf("expected Hello symbol, got %+v", syms)
	}
}

func TestUpdateIsNoOpWhenNothingChanged(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "main.go", "package main\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n")

	m := newTestManager(t, root)
	if _, err := m.Update(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	stats, err := m.Update(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesIndexed != 0 {
		t.Fatalf("expected second update to be a no-op, got %+v", stats)
	}
}

func TestReentrantUpdateReturnsError(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "main.go", "package main\n")
	m := newTestManager(t, root)
	m.indexing.Store(true)
	_, err := m.Update(context.Background(), nil)
	if err != ErrIndexingAlreadyInProgress {
		t.Fatalf("expected ErrIndexingAlreadyInProgress, got %v", err)
	}
}

func TestDeletedFileRemovesSymbols(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "main.go")
	writeSrc(t, root, "main.go", "package main\n\nfunc Hello() string { return \"hi\" }\n")

	m := newTestManager(t, root)
	if _, err := m.Update(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	stats, err := m.Update(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesRemoved != 1 {
		t.Fatalf("expected 1 file removed, got %+v", stats)
	}

	syms, err := m.store.Symbols().ByFile(context.Background(), "main.go", "main")
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 0 {
		t.Fatalf("expected symbols to be gone after file deletion, got %+v", syms)
	}
}

func TestRebuildClearsBranchThenReindexes(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "main.go", "package main\n\nfunc Hello() string { return \"hi\" }\n")

	m := newTestManager(t, root)
	if _, err := m.Update(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	stats, err := m.Rebuild(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesIndexed != 1 {
		t.Fatalf("expected rebuild to reindex the one file, got %+v", stats)
	}
}

func TestCrossFileCallEdgeResolvesToRealSymbolID(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "a.go", "package main\n\nfunc A() {\n\tB()\n}\n")
	writeSrc(t, root, "b.go", "package main\n\nfunc B() {}\n")

	m := newTestManager(t, root)
	if _, err := m.Update(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	aSyms, err := m.store.Symbols().ByFile(context.Background(), "a.go", "main")
	if err != nil {
		t.Fatal(err)
	}
	bSyms, err := m.store.Symbols().ByFile(context.Background(), "b.go", "main")
	if err != nil {
		t.Fatal(err)
	}
	var aID, bID string
	for _, s := range aSyms {
		if s.Name == "A" {
			aID = s.ID
		}
	}
	for _, s := range bSyms {
		if s.Name == "B" {
			bID = s.ID
		}
	}
	if aID == "" || bID == "" {
		t.Fatalf("expected to find A and B symbols, got a=%+v b=%+v", aSyms, bSyms)
	}

	callees, err := m.store.Edges().Callees(context.Background(), aID, "main")
	if err != nil {
		t.Fatal(err)
	}
	var sawRealTarget bool
	for _, e := range callees {
		if e.Type == symbol.Calls && e.TargetID == bID {
			sawRealTarget = true
		}
		if e.Type == symbol.Calls && e.TargetID == "B" {
			t.Fatalf("expected CALLS edge target to resolve to B's real symbol id, got bare name %q", e.TargetID)
		}
	}
	if !sawRealTarget {
		t.Fatalf("expected a CALLS edge from A to B's real symbol id, got %+v", callees)
	}
}

func TestImportEdgeAttributedToFileModuleSymbol(t *testing.T) {
	root := t.TempDir()
	writeSrc(t, root, "main.go", "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n")

	m := newTestManager(t, root)
	if _, err := m.Update(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	syms, err := m.store.Symbols().ByFile(context.Background(), "main.go", "main")
	if err != nil {
		t.Fatal(err)
	}
	var moduleID string
	for _, s := range syms {
		if s.Type == symbol.Module {
			moduleID = s.ID
		}
	}
	if moduleID == "" {
		t.Fatalf("expected a MODULE symbol for the file, got %+v", syms)
	}

	edges, err := m.store.Edges().AllByBranch(context.Background(), "main")
	if err != nil {
		t.Fatal(err)
	}
	var importTarget string
	for _, e := range edges {
		if e.SourceID == moduleID && e.Type == symbol.Imports {
			importTarget = e.TargetID
		}
	}
	if importTarget == "" {
		t.Fatalf("expected an IMPORTS edge sourced from the file's MODULE symbol, got %+v", edges)
	}

	fmtSyms, err := m.store.Symbols().ByName(context.Background(), "fmt", "main")
	if err != nil {
		t.Fatal(err)
	}
	if len(fmtSyms) != 1 || fmtSyms[0].ID != importTarget || !fmtSyms[0].IsExternal {
		t.Fatalf("expected an is_external placeholder symbol for \"fmt\", got %+v", fmtSyms)
	}
}

package merkle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildTreeDeterministicAcrossInsertionOrder(t *testing.T) {
	c1 := New()
	c1.entries["a.go"] = Record{Hash: "h1", Mtime: 1, Size: 10}
	c1.entries["b.go"] = Record{Hash: "h2", Mtime: 2, Size: 20}
	c1.entries["c.go"] = Record{Hash: "h3", Mtime: 3, Size: 30}

	c2 := New()
	c2.entries["c.go"] = Record{Hash: "h3", Mtime: 3, Size: 30}
	c2.entries["a.go"] = Record{Hash: "h1", Mtime: 1, Size: 10}
	c2.entries["b.go"] = Record{Hash: "h2", Mtime: 2, Size: 20}

	if c1.BuildTree() != c2.BuildTree() {
		t.Fatalf("root hash must be independent of insertion order")
	}
}

func TestBuildTreeOddLevelDuplicatesLast(t *testing.T) {
	c := New()
	c.entries["a.go"] = Record{Hash: "h1", Mtime: 1, Size: 1}
	root1 := c.BuildTree()
	// Same single-entry tree computed again must match.
	root2 := c.BuildTree()
	if root1 != root2 {
		t.Fatalf("single-node tree must be stable")
	}
}

func TestFindChangedIdempotent(t *testing.T) {
	c := New()
	files := map[string]struct {
		Mtime int64
		Size  int64
	}{
		"a.go": {Mtime: 1, Size: 5},
	}
	read := func(string) ([]byte, error) { return []byte("hello"), nil }

	ch, err := c.FindChanged(files, read)
	if err != nil {
		t.Fatal(err)
	}
	if len(ch.Added) != 1 {
		t.Fatalf("expected 1 added file, got %d", len(ch.Added))
	}

	ch2, err := c.FindChanged(files, read)
	if err != nil {
		t.Fatal(err)
	}
	if len(ch2.Added) != 0 || len(ch2.Modified) != 0 {
		t.Fatalf("second call with unchanged input must yield empty added/modified, got %+v", ch2)
	}
	if len(ch2.Unchanged) != 1 {
		t.Fatalf("expected 1 unchanged file, got %d", len(ch2.Unchanged))
	}
}

func TestHashFileFastPathSkipsRead(t *testing.T) {
	c := New()
	reads := 0
	read := func() ([]byte, error) {
		reads++
		return []byte("content"), nil
	}
	if _, err := c.HashFile("x.go", 100, 7, read); err != nil {
		t.Fatal(err)
	}
	if reads != 1 {
		t.Fatalf("expected 1 read on first call, got %d", reads)
	}
	if _, err := c.HashFile("x.go", 100, 7, read); err != nil {
		t.Fatal(err)
	}
	if reads != 1 {
		t.Fatalf("expected fast path to skip re-read, got %d reads", reads)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "merkle-cache.json")

	c := New()
	c.entries["a.go"] = Record{Hash: "h1", Mtime: 1, Size: 10}
	if err := c.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded := Load(path)
	if loaded.Len() != 1 {
		t.Fatalf("expected 1 entry after load, got %d", loaded.Len())
	}
	if loaded.BuildTree() != c.BuildTree() {
		t.Fatalf("round-tripped cache must produce same root hash")
	}
}

func TestLoadUnreadableYieldsEmptyCache(t *testing.T) {
	c := Load(filepath.Join(os.TempDir(), "does-not-exist-merkle-cache.json"))
	if c.Len() != 0 {
		t.Fatalf("expected empty cache for missing file")
	}
}

func TestFindDeleted(t *testing.T) {
	c := New()
	c.entries["a.go"] = Record{Hash: "h1"}
	c.entries["b.go"] = Record{Hash: "h2"}

	deleted := c.FindDeleted(map[string]struct{}{"a.go": {}})
	if len(deleted) != 1 || deleted[0] != "b.go" {
		t.Fatalf("expected b.go reported deleted, got %v", deleted)
	}
}

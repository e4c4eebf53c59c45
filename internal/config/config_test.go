package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigMatchesDocumentedTunables(t *testing.T) {
	c := DefaultConfig()
	if c.Chunking.MaxChunkLines != 100 || c.Chunking.ChunkOverlap != 10 {
		t.Fatalf("unexpected chunking defaults: %+v", c.Chunking)
	}
	if c.Index.Parallelism != 10 || c.Index.EmbeddingBatchSize != 100 {
		t.Fatalf("unexpected index defaults: %+v", c.Index)
	}
	if c.Graph.Depth != 2 || c.Graph.MaxFanOut != 10 || c.Graph.ConfidenceThreshold != 0.5 {
		t.Fatalf("unexpected graph defaults: %+v", c.Graph)
	}
	if c.Retrieval.MaxTokens != 8000 || c.Retrieval.RRFK != 60 || c.Retrieval.ExactNameBoost != 2.0 {
		t.Fatalf("unexpected retrieval defaults: %+v", c.Retrieval)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Retrieval.MaxTokens = 4000
	if err := cfg.Save(root); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Retrieval.MaxTokens != 4000 {
		t.Fatalf("expected overridden value to survive round trip, got %d", loaded.Retrieval.MaxTokens)
	}
	if loaded.Retrieval.RRFK != 60 {
		t.Fatalf("expected untouched default to survive round trip, got %d", loaded.Retrieval.RRFK)
	}
}

func TestGraphDepthClampedToMaxThree(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Graph.Depth = 9
	if err := cfg.Save(root); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Graph.Depth != 3 {
		t.Fatalf("expected graph depth clamp to 3, got %d", loaded.Graph.Depth)
	}
}

func TestAbsPathsResolveRelativeToProjectRoot(t *testing.T) {
	cfg := DefaultConfig()
	root := "/workspace/proj"
	if got := cfg.AbsDBPath(root); got != filepath.Join(root, cfg.DBPath) {
		t.Fatalf("unexpected abs db path: %s", got)
	}
}

package embed

import "testing"

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache(2)
	c.Put("a", []float32{1})
	c.Put("b", []float32{2})
	c.Put("c", []float32{3}) // evicts "a"

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatalf("expected b still cached")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("expected c still cached")
	}
}

func TestLRUMoveOnAccess(t *testing.T) {
	c := NewLRUCache(2)
	c.Put("a", []float32{1})
	c.Put("b", []float32{2})
	c.Get("a") // touch a, making b the LRU entry
	c.Put("c", []float32{3})

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b evicted after a was touched")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a retained")
	}
}

func TestSyntheticEmbedderDeterministic(t *testing.T) {
	e := NewSyntheticEmbedder(16)
	v1, _ := e.Embed(nil, "hello world")
	v2, _ := e.Embed(nil, "hello world")
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected deterministic embedding at index %d", i)
		}
	}
	v3, _ := e.Embed(nil, "different text")
	same := true
	for i := range v1 {
		if v1[i] != v3[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("expected different texts to embed differently")
	}
}

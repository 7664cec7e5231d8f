package embedding

import (
	"context"
	"errors"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestCachedEmbedder_DoesNotCacheFailures(t *testing.T) {
	boom := errors.New("boom")
	faulty := NewFaultyEmbedder(NewMockEmbedder(8), boom, 1)
	e := WithCache(faulty, 10)
	ctx := context.Background()

	if _, err := e.Embed(ctx, "hello"); !errors.Is(err, boom) {
		t.Fatalf("first call: expected boom, got %v", err)
	}
	first, err := e.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if faulty.Calls() != 2 {
		t.Errorf("inner calls = %d, want 2 (third call served from cache)", faulty.Calls())
	}
	if first[0] != second[0] {
		t.Error("cached embedding differs")
	}
}

func TestWithCache_ZeroSizeReturnsInner(t *testing.T) {
	m := NewMockEmbedder(4)
	if WithCache(m, 0) != Embedder(m) {
		t.Error("size 0 should return the inner embedder")
	}
}

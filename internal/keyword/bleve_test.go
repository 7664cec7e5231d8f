package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/tenderwise/internal/models"
)

func newTestIndex(t *testing.T) (*BleveIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bleve")
	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	return idx, path
}

func indexAll(t *testing.T, idx *BleveIndex, nodes ...*models.GraphNode) {
	t.Helper()
	for _, n := range nodes {
		if err := idx.IndexClause(context.Background(), n); err != nil {
			t.Fatalf("IndexClause %s: %v", n.ClauseID, err)
		}
	}
}

func TestBleveIndex_SearchIsTenderScoped(t *testing.T) {
	idx, _ := newTestIndex(t)
	defer func() { _ = idx.Close() }()
	indexAll(t, idx,
		&models.GraphNode{ClauseID: "a1", TenderID: "A", Number: "GEN-1", Content: "Reinforced concrete shall be grade C30."},
		&models.GraphNode{ClauseID: "a2", TenderID: "A", Number: "GEN-2", Content: "Steel fixings shall be galvanised."},
		&models.GraphNode{ClauseID: "b1", TenderID: "B", Number: "GEN-1", Content: "Concrete works are excluded."},
	)
	ctx := context.Background()

	hits, err := idx.Search(ctx, "A", "concrete grade", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ClauseID != "a1" {
		t.Fatalf("tender A hits = %+v", hits)
	}
	if hits[0].Score <= 0 {
		t.Errorf("score should be positive: %v", hits[0].Score)
	}

	hits, err = idx.Search(ctx, "B", "concrete", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ClauseID != "b1" {
		t.Errorf("tender B hits = %+v", hits)
	}

	hits, err = idx.Search(ctx, "C", "concrete", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("unknown tender should have no hits: %+v", hits)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx, _ := newTestIndex(t)
	defer func() { _ = idx.Close() }()
	indexAll(t, idx, &models.GraphNode{ClauseID: "a1", TenderID: "A", Content: "Galvanised steel fixings."})
	ctx := context.Background()

	hits, _ := idx.Search(ctx, "A", "galvanized", 10, nil)
	if len(hits) != 0 {
		t.Errorf("exact search should not match misspelling: %+v", hits)
	}
	hits, err := idx.Search(ctx, "A", "galvanized", 10, &SearchOptions{FuzzyEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("fuzzy search should match: %+v", hits)
	}
}

func TestBleveIndex_ReplaceAndReopen(t *testing.T) {
	idx, path := newTestIndex(t)
	ctx := context.Background()
	indexAll(t, idx,
		&models.GraphNode{ClauseID: "a1", TenderID: "A", Content: "Original wording about drainage."},
		&models.GraphNode{ClauseID: "a1", TenderID: "A", Content: "Updated wording about roofing."},
		&models.GraphNode{ClauseID: "a2", TenderID: "A", Content: "Another clause about fencing."},
	)
	if n, _ := idx.DocCount(); n != 2 {
		t.Errorf("DocCount = %d, want 2", n)
	}
	if hits, _ := idx.Search(ctx, "A", "drainage", 10, nil); len(hits) != 0 {
		t.Errorf("replaced content should not match: %+v", hits)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if n, _ := reopened.DocCount(); n != 2 {
		t.Errorf("DocCount after reopen = %d, want 2", n)
	}
	hits, err := reopened.Search(ctx, "A", "roofing", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ClauseID != "a1" {
		t.Errorf("hits after reopen = %+v", hits)
	}
}

func TestBleveIndex_EmptyInputs(t *testing.T) {
	idx, _ := newTestIndex(t)
	defer func() { _ = idx.Close() }()
	ctx := context.Background()
	for _, tc := range []struct{ tender, query string }{{"A", ""}, {"", "concrete"}, {"A", "   "}} {
		hits, err := idx.Search(ctx, tc.tender, tc.query, 5, nil)
		if err != nil || hits != nil {
			t.Errorf("Search(%q, %q) = %v, %v", tc.tender, tc.query, hits, err)
		}
	}
	if err := idx.IndexClause(ctx, &models.GraphNode{}); err == nil {
		t.Error("IndexClause without id should fail")
	}
}

func TestTokenizeQuery(t *testing.T) {
	got := tokenizeQuery("  What does Clause 5.1 say? ")
	want := []string{"what", "does", "clause", "5.1", "say"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("term %d = %q, want %q", i, got[i], want[i])
		}
	}
}

package retrieval

import (
	"math"
	"testing"

	"github.com/hyperjump/tenderwise/internal/models"
)

func scored(ids ...string) []models.ScoredChunk {
	out := make([]models.ScoredChunk, len(ids))
	for i, id := range ids {
		out[i] = models.ScoredChunk{Chunk: &models.Chunk{ID: id}, Rank: i + 1}
	}
	return out
}

func TestFuseRRF(t *testing.T) {
	got := FuseRRF(60, scored("a", "b", "c"), scored("c", "a"))
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	// a: 1/61 + 1/62, c: 1/63 + 1/61, b: 1/62
	if got[0].Chunk.ID != "a" || got[1].Chunk.ID != "c" || got[2].Chunk.ID != "b" {
		t.Errorf("order: %s %s %s", got[0].Chunk.ID, got[1].Chunk.ID, got[2].Chunk.ID)
	}
	want := 1.0/61 + 1.0/62
	if math.Abs(got[0].Score-want) > 1e-12 {
		t.Errorf("score(a) = %v, want %v", got[0].Score, want)
	}
	for i, r := range got {
		if r.Rank != i+1 {
			t.Errorf("result %d Rank=%d", i, r.Rank)
		}
	}
}

func TestFuseRRF_tieBreakByID(t *testing.T) {
	got := FuseRRF(60, scored("z"), scored("m"), scored("b"))
	if got[0].Chunk.ID != "b" || got[1].Chunk.ID != "m" || got[2].Chunk.ID != "z" {
		t.Errorf("ties should order by ID: %s %s %s", got[0].Chunk.ID, got[1].Chunk.ID, got[2].Chunk.ID)
	}
}

func TestFuseRRF_duplicateInListCountsOnce(t *testing.T) {
	got := FuseRRF(60, scored("a", "a", "b"))
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if math.Abs(got[0].Score-1.0/61) > 1e-12 {
		t.Errorf("score(a) = %v", got[0].Score)
	}
	if math.Abs(got[1].Score-1.0/63) > 1e-12 {
		t.Errorf("score(b) should keep its list position: %v", got[1].Score)
	}
}

func TestFuseRRF_keepsDistanceAndDefaultsK(t *testing.T) {
	vec := scored("a")
	vec[0].Distance = 0.25
	got := FuseRRF(0, scored("a"), vec)
	if got[0].Distance != 0.25 {
		t.Errorf("Distance = %v", got[0].Distance)
	}
	if math.Abs(got[0].Score-2.0/61) > 1e-12 {
		t.Errorf("default k should be 60: score %v", got[0].Score)
	}
	if len(FuseRRF(60)) != 0 {
		t.Error("no lists should give no results")
	}
}

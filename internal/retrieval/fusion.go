package retrieval

import (
	"sort"

	"github.com/hyperjump/tenderwise/internal/models"
)

// DefaultRRFK is the Reciprocal Rank Fusion constant.
const DefaultRRFK = 60

// FuseRRF merges rankings with Reciprocal Rank Fusion: each chunk scores
// sum(1 / (k + rank)) over the lists it appears in, rank being 1-based. A chunk listed
// twice in one list counts once, at its best rank. Results are ordered by descending
// score, ties broken by chunk ID, and carry the fused Score and 1-based Rank.
// Distance is kept from the first list entry that had one.
func FuseRRF(k float64, lists ...[]models.ScoredChunk) []models.ScoredChunk {
	if k <= 0 {
		k = DefaultRRFK
	}
	fused := make(map[string]*models.ScoredChunk)
	for _, list := range lists {
		seen := make(map[string]bool, len(list))
		for i, sc := range list {
			if sc.Chunk == nil {
				continue
			}
			id := sc.Chunk.ID
			if seen[id] {
				continue
			}
			seen[id] = true
			contribution := 1.0 / (k + float64(i+1))
			if f, ok := fused[id]; ok {
				f.Score += contribution
				if f.Distance == 0 && sc.Distance != 0 {
					f.Distance = sc.Distance
				}
				continue
			}
			cp := sc
			cp.Score = contribution
			fused[id] = &cp
		}
	}

	out := make([]models.ScoredChunk, 0, len(fused))
	for _, f := range fused {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

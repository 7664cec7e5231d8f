package vector

import "sort"

// Candidate is a scored vector awaiting ranking.
type Candidate struct {
	ID       string
	Distance float64
}

// TopK returns the k candidates with the smallest distance, ascending.
// Equal distances are ordered by ID so results are deterministic.
// k <= 0 returns every candidate. The input slice is reordered.
func TopK(cands []Candidate, k int) []Candidate {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Distance != cands[j].Distance {
			return cands[i].Distance < cands[j].Distance
		}
		return cands[i].ID < cands[j].ID
	})
	if k > 0 && k < len(cands) {
		cands = cands[:k]
	}
	return cands
}

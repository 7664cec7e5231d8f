// Package vector provides similarity, ranking and encoding helpers for embedding vectors.
package vector

import "math"

// CosineDistance returns 1 - cos(a, b) in [0, 2]. Vectors of different length
// are at distance 2; a zero vector is treated as orthogonal (distance 1).
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	d := 1 - dot/(na*nb)
	// clamp rounding noise
	return math.Max(0, math.Min(2, d))
}

// L2Norm returns the L2 norm of a vector, accumulated in float64.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		f := float64(v)
		sum += f * f
	}
	return math.Sqrt(sum)
}

package utils

import "math"

// NormalizeL2 scales an embedding in place to unit length, so cosine similarity between two
// normalized embeddings reduces to their dot product. The sum is accumulated in float64;
// a zero vector is left unchanged.
func NormalizeL2(x []float32) {
	var sum float64
	for _, v := range x {
		f := float64(v)
		sum += f * f
	}
	if sum == 0 {
		return
	}
	scale := 1 / math.Sqrt(sum)
	for i := range x {
		x[i] = float32(float64(x[i]) * scale)
	}
}

// Package mathutil provides the small amount of vector arithmetic the
// retrieval engine needs. All functions assume equal-length inputs; length
// checks belong to the callers, which know how to report a dimension
// mismatch.
package mathutil

import "math"

// Dot computes the dot product of two vectors.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm computes the L2 norm of a vector.
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}

// CosineSimilarity computes cosine similarity between two vectors.
// Returns 1 for identical directions, 0 for perpendicular or zero-norm
// inputs, -1 for opposite directions.
func CosineSimilarity(a, b []float32) float64 {
	normA := Norm(a)
	normB := Norm(b)
	if normA == 0 || normB == 0 {
		return 0
	}
	return Dot(a, b) / (normA * normB)
}

// CosineDistance converts cosine similarity to a distance metric:
// 0 for identical vectors, 2 for opposite vectors.
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

// Normalize returns a unit vector in the same direction. Zero vectors are
// returned unchanged.
func Normalize(v []float32) []float32 {
	norm := Norm(v)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32(float64(v[i]) / norm)
	}
	return out
}

// Package embedder defines the embedding provider contract and its concrete
// backends. A provider turns batches of text into fixed-dimension vectors;
// which provider runs is an explicit construction-time choice, never a
// runtime fallback.
package embedder

import (
	"context"
	"errors"
	"fmt"

	"corpus/internal/mathutil"
)

var (
	// ErrProviderUnavailable reports an unreachable or failing embedding
	// backend. Callers may retry with backoff; they must not substitute a
	// different provider, which would mix model outputs in one collection.
	ErrProviderUnavailable = errors.New("embedder: provider unavailable")

	// ErrDimensionMismatch reports vectors of differing length compared
	// with each other. This is a caller bug and is never retried.
	ErrDimensionMismatch = errors.New("embedder: vector dimension mismatch")
)

// Provider produces embedding vectors for batches of text.
//
// Generate returns one vector per input, in input order. A provider may
// sub-batch internally, but the result length always equals len(texts).
type Provider interface {
	Generate(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelID() string
}

// Result is a single embedded text, as produced per request. Cached reports
// whether the vector came out of the embedding cache rather than a model
// call.
type Result struct {
	Text      string
	Vector    []float32
	ModelID   string
	Dimension int
	Cached    bool
}

// Similarity computes the cosine similarity of two vectors.
func Similarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	return mathutil.CosineSimilarity(a, b), nil
}

// Distance computes cosine distance (1 - similarity): 0 means identical
// direction, 2 maximally dissimilar.
func Distance(a, b []float32) (float64, error) {
	sim, err := Similarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}

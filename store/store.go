// Package store persists chunks with their vectors, grouped into named
// collections, and answers k-nearest-neighbor queries over them. Backends
// share one contract; the Memory backend is the reference implementation
// correctness is judged against, the SQLite and Postgres backends are
// durable drop-in replacements.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrCollectionNotFound reports an operation against an unregistered
// collection id.
var ErrCollectionNotFound = errors.New("store: collection not found")

// DocumentChunk is the atomic stored unit: a bounded slice of a source
// document plus its embedding. Once embedded a chunk is read-only; only its
// metadata may be amended by re-adding it.
type DocumentChunk struct {
	ID               string
	Text             string
	Embedding        []float32
	Metadata         map[string]any
	SourceDocumentID string
	ChunkIndex       int
}

// ChunkID derives the canonical chunk id for a document position. Using the
// same derivation on re-ingestion makes chunk overwrites line up.
func ChunkID(sourceDocumentID string, index int) string {
	return fmt.Sprintf("%s#%d", sourceDocumentID, index)
}

// SearchResult is one k-NN match. Distance is cosine distance: 0 means
// identical direction, 2 maximally dissimilar.
type SearchResult struct {
	ChunkID      string
	Text         string
	Metadata     map[string]any
	Distance     float64
	CollectionID string
}

// CollectionRecord is a stored collection's identity and metadata, as
// enumerated from a backend.
type CollectionRecord struct {
	ID       string
	Metadata map[string]any
}

// CollectionStats summarizes a collection's contents.
type CollectionStats struct {
	ChunkCount          int
	AvgChunkLength      float64
	SourceDocumentCount int
}

// VectorStore is the backend contract.
//
// Add overwrites chunks that share an id with an already-stored chunk; a
// collection never holds duplicate ids. Search returns at most topK results
// in ascending distance order, ties broken by insertion order (the earlier
// added chunk wins); searching an empty collection returns an empty slice.
// Concurrent searches against one collection are safe and see a consistent
// snapshot; Add and Delete never corrupt an in-flight Search.
type VectorStore interface {
	Create(ctx context.Context, collectionID string, metadata map[string]any) error
	Add(ctx context.Context, collectionID string, chunks []DocumentChunk) error
	Search(ctx context.Context, collectionID string, query []float32, topK int) ([]SearchResult, error)
	RemoveDocument(ctx context.Context, collectionID, sourceDocumentID string) error
	Delete(ctx context.Context, collectionID string) error
	Collections(ctx context.Context) ([]CollectionRecord, error)
	Stats(ctx context.Context, collectionID string) (CollectionStats, error)
	Close() error
}

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"corpus/embedder"
)

// Compile-time interface check.
var _ VectorStore = (*Memory)(nil)

// Memory is the reference backend: an in-memory linear scan. A single
// RWMutex per store gives reader/reader parallelism while excluding writers,
// so every Search sees a consistent snapshot.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	metadata map[string]any
	chunks   []DocumentChunk // insertion order
	byID     map[string]int  // chunk id -> position in chunks
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

// Create registers a collection. Creating an existing collection is a no-op.
func (m *Memory) Create(ctx context.Context, collectionID string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collectionID]; ok {
		return nil
	}
	m.collections[collectionID] = &memCollection{
		metadata: metadata,
		byID:     make(map[string]int),
	}
	return nil
}

// Add stores chunks, overwriting on duplicate chunk id. An overwritten chunk
// keeps its original insertion position.
func (m *Memory) Add(ctx context.Context, collectionID string, chunks []DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.collections[collectionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
	}

	for _, c := range chunks {
		if pos, exists := col.byID[c.ID]; exists {
			col.chunks[pos] = c
			continue
		}
		col.byID[c.ID] = len(col.chunks)
		col.chunks = append(col.chunks, c)
	}
	return nil
}

// Search linearly scans the collection, sorts by ascending cosine distance
// (stable, so insertion order breaks ties) and truncates to topK.
func (m *Memory) Search(ctx context.Context, collectionID string, query []float32, topK int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, ok := m.collections[collectionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
	}
	if topK <= 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(col.chunks))
	for _, c := range col.chunks {
		if c.Embedding == nil {
			continue
		}
		dist, err := embedder.Distance(query, c.Embedding)
		if err != nil {
			return nil, fmt.Errorf("store: search %s: %w", collectionID, err)
		}
		results = append(results, SearchResult{
			ChunkID:      c.ID,
			Text:         c.Text,
			Metadata:     c.Metadata,
			Distance:     dist,
			CollectionID: collectionID,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// RemoveDocument drops every chunk belonging to a source document.
func (m *Memory) RemoveDocument(ctx context.Context, collectionID, sourceDocumentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.collections[collectionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
	}

	kept := col.chunks[:0:0]
	for _, c := range col.chunks {
		if c.SourceDocumentID != sourceDocumentID {
			kept = append(kept, c)
		}
	}
	col.chunks = kept
	col.byID = make(map[string]int, len(kept))
	for i, c := range kept {
		col.byID[c.ID] = i
	}
	return nil
}

// Delete removes a collection and its chunks. Unknown ids are a no-op.
func (m *Memory) Delete(ctx context.Context, collectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, collectionID)
	return nil
}

// Collections enumerates stored collections.
func (m *Memory) Collections(ctx context.Context) ([]CollectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]CollectionRecord, 0, len(m.collections))
	for id, col := range m.collections {
		records = append(records, CollectionRecord{ID: id, Metadata: col.metadata})
	}
	return records, nil
}

// Stats summarizes a collection.
func (m *Memory) Stats(ctx context.Context, collectionID string) (CollectionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, ok := m.collections[collectionID]
	if !ok {
		return CollectionStats{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
	}

	stats := CollectionStats{ChunkCount: len(col.chunks)}
	sources := make(map[string]struct{})
	total := 0
	for _, c := range col.chunks {
		total += len(c.Text)
		sources[c.SourceDocumentID] = struct{}{}
	}
	if stats.ChunkCount > 0 {
		stats.AvgChunkLength = float64(total) / float64(stats.ChunkCount)
	}
	stats.SourceDocumentCount = len(sources)
	return stats, nil
}

// Close is a no-op for the memory backend.
func (m *Memory) Close() error { return nil }

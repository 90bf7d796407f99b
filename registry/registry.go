// Package registry manages collection lifecycle and the document ingestion
// pipeline: chunk, embed through the cache, write to the vector store.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"corpus/cache"
	"corpus/chunker"
	"corpus/store"
)

var (
	// ErrPartialBatch reports an ingest where some documents succeeded and
	// some failed. The IngestReport still carries the per-document outcomes.
	ErrPartialBatch = errors.New("registry: some documents failed to ingest")

	// ErrCollectionExists rejects creating a collection under an explicit id
	// that is already registered.
	ErrCollectionExists = errors.New("registry: collection already exists")
)

// Document is a source document to ingest.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Spec describes a collection to create. A zero ID gets a generated uuid.
type Spec struct {
	ID          string
	Name        string
	Description string
	Metadata    map[string]any
}

// Summary is the registry's view of a collection.
type Summary struct {
	ID          string
	Name        string
	Description string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// DocumentOutcome reports the result of ingesting one document.
type DocumentOutcome struct {
	DocumentID string
	Chunks     int
	Err        error
}

// IngestReport aggregates the per-document outcomes of one Ingest call.
type IngestReport struct {
	Outcomes []DocumentOutcome
}

// Succeeded counts documents that ingested cleanly.
func (r *IngestReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts documents that did not ingest.
func (r *IngestReport) Failed() int { return len(r.Outcomes) - r.Succeeded() }

// Registry tracks collections and runs ingestion. Reads are concurrent;
// create and delete take the write lock. The ingest path itself holds no
// registry lock while embedding or writing to the store.
type Registry struct {
	store    store.VectorStore
	embedder *cache.Embedder
	chunker  chunker.Chunker

	mu    sync.RWMutex
	items map[string]*Summary
}

// Metadata keys the registry reserves for collection identity when
// persisting to the store.
const (
	metaName        = "name"
	metaDescription = "description"
	metaCreatedAt   = "created_at"
)

// New builds a Registry over the given store, restoring any collections the
// store already holds so a restart picks up where it left off.
func New(ctx context.Context, s store.VectorStore, e *cache.Embedder, c chunker.Chunker) (*Registry, error) {
	r := &Registry{
		store:    s,
		embedder: e,
		chunker:  c,
		items:    make(map[string]*Summary),
	}

	records, err := s.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: restore collections: %w", err)
	}
	for _, rec := range records {
		r.items[rec.ID] = summaryFromRecord(rec)
	}
	return r, nil
}

func summaryFromRecord(rec store.CollectionRecord) *Summary {
	sum := &Summary{ID: rec.ID, Metadata: map[string]any{}}
	for k, v := range rec.Metadata {
		switch k {
		case metaName:
			sum.Name, _ = v.(string)
		case metaDescription:
			sum.Description, _ = v.(string)
		case metaCreatedAt:
			if ts, ok := v.(string); ok {
				sum.CreatedAt, _ = time.Parse(time.RFC3339, ts)
			}
		default:
			sum.Metadata[k] = v
		}
	}
	return sum
}

// CreateCollection registers a new collection and returns its id. An empty
// Spec.ID gets a generated uuid; an explicit id that already exists is
// rejected.
func (r *Registry) CreateCollection(ctx context.Context, spec Spec) (string, error) {
	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; ok {
		return "", fmt.Errorf("%w: %s", ErrCollectionExists, id)
	}

	sum := &Summary{
		ID:          id,
		Name:        spec.Name,
		Description: spec.Description,
		Metadata:    spec.Metadata,
		CreatedAt:   time.Now().UTC(),
	}

	meta := map[string]any{
		metaName:        sum.Name,
		metaDescription: sum.Description,
		metaCreatedAt:   sum.CreatedAt.Format(time.RFC3339),
	}
	for k, v := range spec.Metadata {
		meta[k] = v
	}
	if err := r.store.Create(ctx, id, meta); err != nil {
		return "", fmt.Errorf("registry: create collection %s: %w", id, err)
	}

	r.items[id] = sum
	return id, nil
}

// Get returns the summary for a collection id.
func (r *Registry) Get(ctx context.Context, id string) (*Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum, ok := r.items[id]
	if !ok {
		return nil, false
	}
	cp := *sum
	return &cp, true
}

// List returns summaries for all collections, in no particular order.
func (r *Registry) List(ctx context.Context) []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.items))
	for _, sum := range r.items {
		out = append(out, *sum)
	}
	return out
}

// Delete removes a collection and its stored chunks. Unknown ids are a
// no-op.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("registry: delete collection %s: %w", id, err)
	}
	delete(r.items, id)
	return nil
}

// Stats reports collection size from the store.
func (r *Registry) Stats(ctx context.Context, id string) (store.CollectionStats, error) {
	r.mu.RLock()
	_, ok := r.items[id]
	r.mu.RUnlock()
	if !ok {
		return store.CollectionStats{}, fmt.Errorf("%w: %s", store.ErrCollectionNotFound, id)
	}
	return r.store.Stats(ctx, id)
}

// ingestDoc is a document with its chunks, tracked through the pipeline.
type ingestDoc struct {
	doc    Document
	chunks []chunker.Chunk
	vecs   [][]float32
	err    error
}

// Ingest chunks, embeds, and stores a batch of documents. All chunks go to
// the provider as one batch; if that batch fails, each document is retried
// on its own so failures are attributed to the documents that caused them.
// Re-ingesting a document id replaces its previous chunks, including the
// case where the new version has fewer chunks than the old one.
func (r *Registry) Ingest(ctx context.Context, collectionID string, docs []Document) (*IngestReport, error) {
	r.mu.RLock()
	_, ok := r.items[collectionID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrCollectionNotFound, collectionID)
	}

	work := make([]*ingestDoc, len(docs))
	var texts []string
	for i, doc := range docs {
		w := &ingestDoc{doc: doc, chunks: r.chunker.Chunk(doc.Text)}
		work[i] = w
		for _, c := range w.chunks {
			texts = append(texts, c.Text)
		}
	}

	results, err := r.embedder.Results(ctx, texts)
	if err != nil {
		// Batch failed as a whole; retry per document to find out which
		// documents the failure belongs to.
		for _, w := range work {
			w.embedOwn(ctx, r.embedder)
		}
	} else {
		pos := 0
		for _, w := range work {
			w.vecs = make([][]float32, len(w.chunks))
			for j := range w.chunks {
				w.vecs[j] = results[pos].Vector
				pos++
			}
		}
	}

	report := &IngestReport{}
	for _, w := range work {
		outcome := DocumentOutcome{DocumentID: w.doc.ID, Chunks: len(w.chunks)}
		if w.err != nil {
			outcome.Err = w.err
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}
		if err := r.storeDoc(ctx, collectionID, w); err != nil {
			outcome.Err = err
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	switch failed := report.Failed(); {
	case failed == 0:
		return report, nil
	case failed == len(report.Outcomes) && len(report.Outcomes) > 0:
		first := report.Outcomes[0].Err
		return report, fmt.Errorf("registry: ingest into %s: %w", collectionID, first)
	default:
		return report, fmt.Errorf("%w: %d of %d", ErrPartialBatch, failed, len(report.Outcomes))
	}
}

// embedOwn embeds one document's chunks in isolation.
func (w *ingestDoc) embedOwn(ctx context.Context, e *cache.Embedder) {
	if len(w.chunks) == 0 {
		return
	}
	texts := make([]string, len(w.chunks))
	for i, c := range w.chunks {
		texts[i] = c.Text
	}
	results, err := e.Results(ctx, texts)
	if err != nil {
		w.err = err
		return
	}
	w.vecs = make([][]float32, len(results))
	for i := range results {
		w.vecs[i] = results[i].Vector
	}
}

// storeDoc replaces a document's chunks in the store. The old chunks are
// only removed once embedding has succeeded, so a failed ingest never
// destroys data already in the collection.
func (r *Registry) storeDoc(ctx context.Context, collectionID string, w *ingestDoc) error {
	if err := r.store.RemoveDocument(ctx, collectionID, w.doc.ID); err != nil {
		return err
	}
	if len(w.chunks) == 0 {
		return nil
	}

	chunks := make([]store.DocumentChunk, len(w.chunks))
	for i, c := range w.chunks {
		chunks[i] = store.DocumentChunk{
			ID:               store.ChunkID(w.doc.ID, c.Index),
			Text:             c.Text,
			Embedding:        w.vecs[i],
			Metadata:         w.doc.Metadata,
			SourceDocumentID: w.doc.ID,
			ChunkIndex:       c.Index,
		}
	}
	return r.store.Add(ctx, collectionID, chunks)
}

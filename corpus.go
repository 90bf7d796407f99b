// Package corpus is a retrieval engine for text: documents are chunked,
// embedded through a two-tier cache, and stored in per-collection vector
// stores; queries come back as ranked results or budget-bounded context
// bundles.
package corpus

import (
	"context"
	"errors"

	"corpus/assembler"
	"corpus/cache"
	"corpus/chunker"
	"corpus/embedder"
	"corpus/registry"
	"corpus/store"
)

// Version of the corpus library
const Version = "0.1.0"

// Default configuration used when the Builder is not told otherwise.
const (
	defaultChunkSize     = 500
	defaultChunkOverlap  = 50
	defaultCacheCapacity = 1024
	defaultDimensions    = 384
)

// Engine ties all layers together: chunker, cached embedder, vector store,
// collection registry, and context assembler.
type Engine struct {
	chunker   chunker.Chunker
	cache     *cache.Cache
	embedder  *cache.Embedder
	store     store.VectorStore
	registry  *registry.Registry
	assembler *assembler.Assembler
}

// Builder configures an Engine.
type Builder struct {
	chunker      chunker.Chunker
	provider     embedder.Provider
	store        store.VectorStore
	cachePath    string
	cacheSize    int
	chunkSize    int
	chunkOverlap int
}

// NewBuilder creates a new Engine builder.
func NewBuilder() *Builder {
	return &Builder{
		cacheSize:    defaultCacheCapacity,
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
	}
}

// WithChunker sets the chunker.
func (b *Builder) WithChunker(c chunker.Chunker) *Builder {
	b.chunker = c
	return b
}

// WithChunkWindow sets the window parameters for the default chunker.
func (b *Builder) WithChunkWindow(maxSize, overlap int) *Builder {
	b.chunkSize = maxSize
	b.chunkOverlap = overlap
	return b
}

// WithProvider sets the embedding provider.
func (b *Builder) WithProvider(p embedder.Provider) *Builder {
	b.provider = p
	return b
}

// WithStore sets the vector store backend.
func (b *Builder) WithStore(s store.VectorStore) *Builder {
	b.store = s
	return b
}

// WithCacheCapacity bounds the in-process embedding cache tier.
func (b *Builder) WithCacheCapacity(n int) *Builder {
	b.cacheSize = n
	return b
}

// WithCachePath enables the durable SQLite embedding cache tier.
func (b *Builder) WithCachePath(path string) *Builder {
	b.cachePath = path
	return b
}

// Build creates the Engine. Unset components get working defaults: a window
// chunker, the deterministic provider, an in-memory store, and a memory-only
// cache. The deterministic provider is a configuration choice for tests and
// offline use, never a runtime fallback for a failing live provider.
func (b *Builder) Build(ctx context.Context) (*Engine, error) {
	e := &Engine{}

	if b.chunker != nil {
		e.chunker = b.chunker
	} else {
		win, err := chunker.NewWindow(b.chunkSize, b.chunkOverlap)
		if err != nil {
			return nil, WrapError("Build", err)
		}
		e.chunker = win
	}

	provider := b.provider
	if provider == nil {
		provider = embedder.NewDeterministic(defaultDimensions)
	}

	c, err := cache.New(cache.Options{Capacity: b.cacheSize, Path: b.cachePath})
	if err != nil {
		return nil, WrapError("Build", err)
	}
	e.cache = c
	e.embedder = cache.NewEmbedder(provider, c)

	if b.store != nil {
		e.store = b.store
	} else {
		e.store = store.NewMemory()
	}

	reg, err := registry.New(ctx, e.store, e.embedder, e.chunker)
	if err != nil {
		c.Close()
		return nil, WrapError("Build", err)
	}
	e.registry = reg
	e.assembler = assembler.New(e.embedder, e.store, reg)

	return e, nil
}

// CreateCollection registers a collection and returns its id.
func (e *Engine) CreateCollection(ctx context.Context, spec registry.Spec) (string, error) {
	id, err := e.registry.CreateCollection(ctx, spec)
	return id, WrapError("CreateCollection", err)
}

// Ingest chunks, embeds, and stores documents into a collection. The report
// carries per-document outcomes even when the returned error is non-nil.
func (e *Engine) Ingest(ctx context.Context, collectionID string, docs []registry.Document) (*registry.IngestReport, error) {
	report, err := e.registry.Ingest(ctx, collectionID, docs)
	return report, WrapError("Ingest", err)
}

// Assemble builds a context bundle for a query within a size budget.
func (e *Engine) Assemble(ctx context.Context, query string, opts assembler.Options) (*assembler.Bundle, error) {
	bundle, err := e.assembler.Assemble(ctx, query, opts)
	return bundle, WrapError("Assemble", err)
}

// Search returns raw per-collection results for callers that do their own
// ranking. Nil collectionIDs targets every registered collection.
func (e *Engine) Search(ctx context.Context, query string, collectionIDs []string, topK int) (map[string][]store.SearchResult, []assembler.CollectionFailure, error) {
	results, failed, err := e.assembler.Search(ctx, query, collectionIDs, topK)
	return results, failed, WrapError("Search", err)
}

// GetCollection returns the summary for a collection id.
func (e *Engine) GetCollection(ctx context.Context, id string) (*registry.Summary, bool) {
	return e.registry.Get(ctx, id)
}

// ListCollections returns summaries for all registered collections.
func (e *Engine) ListCollections(ctx context.Context) []registry.Summary {
	return e.registry.List(ctx)
}

// CollectionStats reports chunk count, average chunk length, and source
// document count for a collection.
func (e *Engine) CollectionStats(ctx context.Context, id string) (store.CollectionStats, error) {
	stats, err := e.registry.Stats(ctx, id)
	return stats, WrapError("CollectionStats", err)
}

// DeleteCollection removes a collection and its stored chunks. Unknown ids
// are a no-op.
func (e *Engine) DeleteCollection(ctx context.Context, id string) error {
	return WrapError("DeleteCollection", e.registry.Delete(ctx, id))
}

// ClearEmbeddingCache drops both cache tiers.
func (e *Engine) ClearEmbeddingCache() error {
	return WrapError("ClearEmbeddingCache", e.cache.Clear())
}

// CacheStats reports embedding cache hit/miss/eviction counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// Close releases the cache and store. The Engine is unusable afterwards.
func (e *Engine) Close() error {
	return WrapError("Close", errors.Join(e.cache.Close(), e.store.Close()))
}

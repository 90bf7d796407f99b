package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"corpus/embedder"
)

// Compile-time interface check.
var _ embedder.Provider = (*Embedder)(nil)

const (
	defaultAttempts = 3
	defaultBackoff  = 200 * time.Millisecond
)

// Embedder wraps a provider with the cache: hits are answered from the
// cache, misses are batched to the inner provider and stored on success.
// Transient provider failures are retried a fixed number of times with
// exponential backoff before surfacing; an entry is only written after a
// fully successful generation, so a timed-out call leaves nothing behind.
type Embedder struct {
	provider embedder.Provider
	cache    *Cache
	attempts int
	backoff  time.Duration
}

// NewEmbedder wraps provider with c.
func NewEmbedder(provider embedder.Provider, c *Cache) *Embedder {
	return &Embedder{
		provider: provider,
		cache:    c,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
	}
}

// Dimension reports the inner provider's vector length.
func (e *Embedder) Dimension() int { return e.provider.Dimension() }

// ModelID reports the inner provider's model id.
func (e *Embedder) ModelID() string { return e.provider.ModelID() }

// Generate returns one vector per text, in input order.
func (e *Embedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	results, err := e.Results(ctx, texts)
	if err != nil {
		return nil, err
	}
	vecs := make([][]float32, len(results))
	for i, r := range results {
		vecs[i] = r.Vector
	}
	return vecs, nil
}

// Results is Generate with per-item provenance: each result reports whether
// its vector came from the cache.
func (e *Embedder) Results(ctx context.Context, texts []string) ([]embedder.Result, error) {
	model := e.provider.ModelID()
	results := make([]embedder.Result, len(texts))

	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if res, ok := e.cache.Get(text, model); ok {
			results[i] = res
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missIdx) == 0 {
		return results, nil
	}

	vecs, err := e.generateWithRetry(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, i := range missIdx {
		res := embedder.Result{
			Text:      texts[i],
			Vector:    vecs[j],
			ModelID:   model,
			Dimension: len(vecs[j]),
		}
		if err := e.cache.Put(res); err != nil {
			// A failed cache write loses only future reuse.
			log.Printf("cache: store embedding: %v", err)
		}
		results[i] = res
	}

	return results, nil
}

func (e *Embedder) generateWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < e.attempts; attempt++ {
		if attempt > 0 {
			backoff := e.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		vecs, err := e.provider.Generate(ctx, texts)
		if err == nil {
			if len(vecs) != len(texts) {
				return nil, fmt.Errorf("cache: provider returned %d vectors for %d texts", len(vecs), len(texts))
			}
			return vecs, nil
		}
		if !errors.Is(err, embedder.ErrProviderUnavailable) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

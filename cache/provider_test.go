package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpus/embedder"
)

// stubProvider counts calls and can be told to fail the first n of them.
type stubProvider struct {
	calls    int
	failures int
	failWith error
}

func (s *stubProvider) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.failures > 0 {
		s.failures--
		return nil, s.failWith
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = []float32{float32(len(text)), 1}
	}
	return vecs, nil
}

func (s *stubProvider) Dimension() int  { return 2 }
func (s *stubProvider) ModelID() string { return "stub-2" }

func newTestEmbedder(t *testing.T, p embedder.Provider) *Embedder {
	t.Helper()
	c, err := New(Options{Capacity: 16})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	e := NewEmbedder(p, c)
	e.backoff = time.Millisecond
	return e
}

func TestEmbedder_CacheHitSkipsProvider(t *testing.T) {
	stub := &stubProvider{}
	e := newTestEmbedder(t, stub)
	ctx := context.Background()

	first, err := e.Results(ctx, []string{"hello", "world"})
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)
	assert.False(t, first[0].Cached)
	assert.False(t, first[1].Cached)

	second, err := e.Results(ctx, []string{"hello", "world"})
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls, "cached texts must not reach the provider")
	assert.True(t, second[0].Cached)
	assert.True(t, second[1].Cached)
	assert.Equal(t, first[0].Vector, second[0].Vector)
}

func TestEmbedder_PartialHitBatchesOnlyMisses(t *testing.T) {
	stub := &stubProvider{}
	e := newTestEmbedder(t, stub)
	ctx := context.Background()

	_, err := e.Results(ctx, []string{"aa"})
	require.NoError(t, err)

	results, err := e.Results(ctx, []string{"aa", "bbb"})
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls)
	assert.True(t, results[0].Cached)
	assert.False(t, results[1].Cached)
	assert.Equal(t, []float32{2, 1}, results[0].Vector)
	assert.Equal(t, []float32{3, 1}, results[1].Vector)
}

func TestEmbedder_RetriesTransientFailure(t *testing.T) {
	stub := &stubProvider{failures: 2, failWith: fmt.Errorf("%w: test", embedder.ErrProviderUnavailable)}
	e := newTestEmbedder(t, stub)

	vecs, err := e.Generate(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, 3, stub.calls, "two failures then success")
	assert.Len(t, vecs, 1)
}

func TestEmbedder_SurfacesAfterRetriesExhausted(t *testing.T) {
	stub := &stubProvider{failures: 10, failWith: fmt.Errorf("%w: test", embedder.ErrProviderUnavailable)}
	e := newTestEmbedder(t, stub)

	_, err := e.Generate(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, embedder.ErrProviderUnavailable)
	assert.Equal(t, 3, stub.calls, "retry count is bounded")

	// Nothing may be cached after a failed generation.
	_, ok := e.cache.Get("x", "stub-2")
	assert.False(t, ok)
}

func TestEmbedder_DoesNotRetryCallerBugs(t *testing.T) {
	stub := &stubProvider{failures: 1, failWith: errors.New("malformed input")}
	e := newTestEmbedder(t, stub)

	_, err := e.Generate(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, 1, stub.calls, "non-transient errors surface immediately")
}

func TestEmbedder_CancelledDuringBackoff(t *testing.T) {
	stub := &stubProvider{failures: 10, failWith: fmt.Errorf("%w: test", embedder.ErrProviderUnavailable)}
	e := newTestEmbedder(t, stub)
	e.backoff = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := e.Generate(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmbedder_Delegation(t *testing.T) {
	e := newTestEmbedder(t, &stubProvider{})
	assert.Equal(t, 2, e.Dimension())
	assert.Equal(t, "stub-2", e.ModelID())
}

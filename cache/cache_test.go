package cache

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpus/embedder"
)

func newResult(text, model string, vec []float32) embedder.Result {
	return embedder.Result{
		Text:      text,
		Vector:    vec,
		ModelID:   model,
		Dimension: len(vec),
	}
}

func TestCache_PutGet(t *testing.T) {
	c, err := New(Options{Capacity: 10})
	require.NoError(t, err)
	defer c.Close()

	res := newResult("hello", "mock-4", []float32{1, 2, 3, 4})
	require.NoError(t, c.Put(res))

	got, ok := c.Get("hello", "mock-4")
	require.True(t, ok)
	assert.True(t, got.Cached, "a cache hit must be marked cached")
	assert.Equal(t, res.Vector, got.Vector)
	assert.Equal(t, "mock-4", got.ModelID)
	assert.Equal(t, 4, got.Dimension)
}

func TestCache_MissOnDifferentModel(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put(newResult("hello", "model-a", []float32{1})))

	_, ok := c.Get("hello", "model-b")
	assert.False(t, ok, "same text under another model is a different key")
}

func TestKey_SeparatorAmbiguity(t *testing.T) {
	// Without a separator, ("ab","c") and ("a","bc") would collide.
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

func TestCache_LRUEviction(t *testing.T) {
	c, err := New(Options{Capacity: 2})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put(newResult("a", "m", []float32{1})))
	require.NoError(t, c.Put(newResult("b", "m", []float32{2})))

	// Touch "a" so "b" becomes least recently used.
	_, ok := c.Get("a", "m")
	require.True(t, ok)

	require.NoError(t, c.Put(newResult("c", "m", []float32{3})))

	_, ok = c.Get("b", "m")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("a", "m")
	assert.True(t, ok)
	_, ok = c.Get("c", "m")
	assert.True(t, ok)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Evictions)
	assert.Equal(t, 2, stats.MemoryEntries)
}

func TestCache_DurableRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.db")

	c1, err := New(Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, c1.Put(newResult("persisted", "mock-3", []float32{1, 2, 3})))
	require.NoError(t, c1.Close())

	// A fresh cache has an empty memory tier; the hit must come from the
	// durable tier and repopulate memory.
	c2, err := New(Options{Path: path})
	require.NoError(t, err)
	defer c2.Close()

	got, ok := c2.Get("persisted", "mock-3")
	require.True(t, ok)
	assert.True(t, got.Cached)
	assert.Equal(t, []float32{1, 2, 3}, got.Vector)
	assert.Equal(t, 1, c2.Stats().MemoryEntries, "durable hit should repopulate memory tier")
}

func TestCache_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.db")
	c, err := New(Options{Path: path})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put(newResult("x", "m", []float32{1})))
	require.NoError(t, c.Clear())

	_, ok := c.Get("x", "m")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, 0, stats.MemoryEntries)
	assert.Equal(t, 0, stats.DurableEntries)
}

func TestCache_Stats(t *testing.T) {
	c, err := New(Options{Capacity: 5})
	require.NoError(t, err)
	defer c.Close()

	c.Get("missing", "m")
	require.NoError(t, c.Put(newResult("hit", "m", []float32{1})))
	c.Get("hit", "m")

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 5, stats.Capacity)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c, err := New(Options{Capacity: 64})
	require.NoError(t, err)
	defer c.Close()

	texts := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				text := texts[(w+i)%len(texts)]
				if _, ok := c.Get(text, "m"); !ok {
					_ = c.Put(newResult(text, "m", []float32{float32(len(text))}))
				}
			}
		}(w)
	}
	wg.Wait()

	for _, text := range texts {
		got, ok := c.Get(text, "m")
		require.True(t, ok)
		assert.Equal(t, []float32{float32(len(text))}, got.Vector)
	}
}

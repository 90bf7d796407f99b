// Package cache provides a two-tier embedding cache: a bounded in-process
// LRU map in front of an optional durable SQLite store. Entries are
// content-addressed by a hash of (text, model id) and never mutated, only
// created or evicted.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"sync"

	"corpus/embedder"
)

const defaultCapacity = 10000

// Key derives the cache key for a text/model pair. The NUL separator keeps
// (text, model) pairs from colliding across the concatenation boundary.
func Key(text, modelID string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(modelID))
	return hex.EncodeToString(h.Sum(nil))
}

// Options configures a Cache.
type Options struct {
	// Capacity bounds the in-process tier, in entries. Defaults to 10000.
	Capacity int

	// Path enables the durable SQLite tier. Empty means memory-only.
	Path string
}

// Stats describes cache occupancy and effectiveness.
type Stats struct {
	Hits           uint64
	Misses         uint64
	Evictions      uint64
	MemoryEntries  int
	DurableEntries int
	Capacity       int
}

// Cache is safe for concurrent use. The in-process tier uses LRU eviction:
// a Get refreshes an entry's recency, and inserting into a full tier evicts
// the least recently used entry. The durable tier is unbounded; entries
// persist until Clear.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used

	durable *durable

	hits      uint64
	misses    uint64
	evictions uint64
}

type cacheEntry struct {
	key    string
	result embedder.Result
}

// New creates a Cache. With a non-empty Options.Path the durable tier is
// opened (and created) at that SQLite path.
func New(opts Options) (*Cache, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = defaultCapacity
	}

	c := &Cache{
		capacity: opts.Capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}

	if opts.Path != "" {
		d, err := openDurable(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("cache: open durable tier: %w", err)
		}
		c.durable = d
	}

	return c, nil
}

// Get returns the cached embedding for (text, modelID), if present in either
// tier. A durable-tier hit repopulates the in-process tier. The returned
// result has Cached set.
func (c *Cache) Get(text, modelID string) (embedder.Result, bool) {
	key := Key(text, modelID)

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		res := el.Value.(*cacheEntry).result
		c.hits++
		c.mu.Unlock()
		res.Cached = true
		return res, true
	}
	c.mu.Unlock()

	if c.durable != nil {
		res, ok, err := c.durable.get(key)
		if err == nil && ok {
			c.mu.Lock()
			c.insertLocked(key, res)
			c.hits++
			c.mu.Unlock()
			res.Cached = true
			return res, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return embedder.Result{}, false
}

// Put stores a freshly computed embedding in both tiers. Writing an existing
// key is idempotent: the durable tier replaces the row atomically, so
// concurrent writers for one key settle on a complete entry either way.
func (c *Cache) Put(res embedder.Result) error {
	res.Cached = false
	key := Key(res.Text, res.ModelID)

	c.mu.Lock()
	c.insertLocked(key, res)
	c.mu.Unlock()

	if c.durable != nil {
		if err := c.durable.put(key, res); err != nil {
			return fmt.Errorf("cache: durable put: %w", err)
		}
	}
	return nil
}

// insertLocked adds or refreshes a memory-tier entry, evicting the LRU tail
// when over capacity. Caller holds c.mu.
func (c *Cache) insertLocked(key string, res embedder.Result) {
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).result = res
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, result: res})

	for len(c.entries) > c.capacity {
		tail := c.order.Back()
		if tail == nil {
			break
		}
		c.order.Remove(tail)
		delete(c.entries, tail.Value.(*cacheEntry).key)
		c.evictions++
	}
}

// Clear empties both tiers.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()

	if c.durable != nil {
		if err := c.durable.clear(); err != nil {
			return fmt.Errorf("cache: clear durable tier: %w", err)
		}
	}
	return nil
}

// Stats reports occupancy and hit counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	s := Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		MemoryEntries: len(c.entries),
		Capacity:      c.capacity,
	}
	c.mu.Unlock()

	if c.durable != nil {
		if n, err := c.durable.count(); err == nil {
			s.DurableEntries = n
		}
	}
	return s
}

// Close releases the durable tier, if any.
func (c *Cache) Close() error {
	if c.durable != nil {
		return c.durable.close()
	}
	return nil
}

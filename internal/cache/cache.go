// Package cache implements the fingerprint-keyed memoization layer
// consulted by the executor. It stores the most recent output per
// document node identity together with the input fingerprint that
// produced it, bounded by entry count and estimated byte size with
// least-recently-used eviction.
//
// The cache is the only mutable state shared between concurrent
// evaluations; all operations are safe for concurrent use. Entry
// storage is sharded (concurrent-map); recency, size accounting, and
// pinning share one bookkeeping mutex.
package cache

import (
	"container/list"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/document"
	"github.com/vk/nodeflow/internal/fingerprint"
	"github.com/vk/nodeflow/internal/proto"
	"github.com/vk/nodeflow/internal/value"
)

// Config bounds the cache. Zero values fall back to the defaults.
type Config struct {
	MaxEntries int
	MaxBytes   int
}

const (
	defaultMaxEntries = 4096
	defaultMaxBytes   = 256 << 20
)

type entry struct {
	fp         fingerprint.Digest
	value      cty.Value
	generation uint64
	size       int
}

// Cache is a bounded, concurrency-safe memoization store.
type Cache struct {
	entries cmap.ConcurrentMap[string, *entry]

	mu      sync.Mutex
	recency *list.List               // front = most recent; values are keys
	byKey   map[string]*list.Element // key -> recency element
	bytes   int
	pins    map[string]int

	maxEntries int
	maxBytes   int
}

// New creates a cache with the given bounds.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	return &Cache{
		entries:    cmap.New[*entry](),
		recency:    list.New(),
		byKey:      make(map[string]*list.Element),
		pins:       make(map[string]int),
		maxEntries: cfg.MaxEntries,
		maxBytes:   cfg.MaxBytes,
	}
}

// Get returns the cached value for (identity, fingerprint). A stored
// entry whose fingerprint no longer matches is evicted lazily: it was
// produced by inputs that have since changed and can never hit again.
// On a hit the entry's generation is refreshed so live entries outrank
// stale ones under eviction pressure.
func (c *Cache) Get(id document.ID, fp fingerprint.Digest, generation uint64) (cty.Value, bool) {
	key := string(id)
	e, ok := c.entries.Get(key)
	if !ok {
		return cty.NilVal, false
	}
	if e.fp != fp {
		c.remove(key)
		return cty.NilVal, false
	}

	c.mu.Lock()
	e.generation = generation
	if el, ok := c.byKey[key]; ok {
		c.recency.MoveToFront(el)
	}
	c.mu.Unlock()
	return e.value, true
}

// Put stores a freshly computed value. It replaces any previous entry
// for the identity (one entry per node identity) and evicts
// least-recently-used entries if the cache exceeds its bounds. Entries
// pinned by an in-flight evaluation are never evicted.
func (c *Cache) Put(id document.ID, fp fingerprint.Digest, v cty.Value, generation uint64) {
	key := string(id)
	e := &entry{fp: fp, value: v, generation: generation, size: value.EstimateSize(v)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries.Get(key); ok {
		c.bytes -= old.size
	}
	c.entries.Set(key, e)
	c.bytes += e.size
	if el, ok := c.byKey[key]; ok {
		c.recency.MoveToFront(el)
	} else {
		c.byKey[key] = c.recency.PushFront(key)
	}

	c.evictLocked()
}

// evictLocked removes least-recently-used, unpinned entries until the
// cache is back within bounds. Caller holds c.mu.
func (c *Cache) evictLocked() {
	el := c.recency.Back()
	for el != nil && (c.recency.Len() > c.maxEntries || c.bytes > c.maxBytes) {
		prev := el.Prev()
		key := el.Value.(string)
		if c.pins[key] == 0 {
			c.removeLocked(key)
		}
		el = prev
	}
}

// remove deletes one entry and its bookkeeping.
func (c *Cache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

func (c *Cache) removeLocked(key string) {
	if e, ok := c.entries.Get(key); ok {
		c.bytes -= e.size
		c.entries.Remove(key)
	}
	if el, ok := c.byKey[key]; ok {
		c.recency.Remove(el)
		delete(c.byKey, key)
	}
}

// Invalidate removes the entry for one node identity.
func (c *Cache) Invalidate(id document.ID) {
	c.remove(string(id))
}

// InvalidateTransitive removes the entries for the node and every node
// reachable forward from it in the given proto graph. Used when a
// node's computation is known to be non-deterministic or externally
// sourced.
func (c *Cache) InvalidateTransitive(id document.ID, g *proto.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, reached := range g.ForwardReach(id) {
		c.removeLocked(string(reached))
	}
}

// Pin protects a node's entry from eviction for the duration of an
// in-flight evaluation. Pins nest.
func (c *Cache) Pin(id document.ID) {
	c.mu.Lock()
	c.pins[string(id)]++
	c.mu.Unlock()
}

// Unpin releases a pin.
func (c *Cache) Unpin(id document.ID) {
	c.mu.Lock()
	key := string(id)
	if c.pins[key] > 1 {
		c.pins[key]--
	} else {
		delete(c.pins, key)
	}
	c.mu.Unlock()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

// Bytes reports the estimated total size of cached values.
func (c *Cache) Bytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

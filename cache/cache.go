// Package cache implements the region cache (spec.md §4.H): an
// LRU of device-resident tile results keyed by (region, pipeline
// fingerprint, generation), so the executor can skip re-uploading and
// re-executing a tile it has already computed for the current pipeline.
//
// The LRU core's own state (recency order, entry map) is guarded by
// github.com/hashicorp/golang-lru/v2's internal mutex. The byte-budget
// bookkeeping layered on top (used, hits, misses) is additional state
// the library knows nothing about, so Cache guards it with its own
// mutex — this resolves the "unguarded concurrent cache access" open
// question (spec.md §9 Open Question 2) without replicating the
// unguarded-field form the question warns against.
package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vfxgo/compute/backend"
	"github.com/vfxgo/compute/region"
)

// Key identifies one cached tile result.
type Key struct {
	Region      region.Region
	Fingerprint uint64 // hash of the pipeline that produced this tile
	Generation  uint64 // bumped whenever the source data changes
}

// Entry is a cached device-resident tile, plus bookkeeping the executor
// needs to know whether it is still safe to reuse.
type Entry struct {
	Handle backend.Handle
	Bytes  int64
}

// Cache bounds device memory spent on retained tiles by pixel-byte
// budget rather than by a fixed entry count, since tile footprints vary
// with image channel count and tile dimension.
type Cache struct {
	lru     *lru.Cache[Key, Entry]
	onEvict func(Key, Entry)
	budget  int64

	mu      sync.Mutex // guards used, hits, misses, pending
	used    int64
	hits    uint64
	misses  uint64
	pending []evicted // entries evicted since the last drain, awaiting onEvict
}

type evicted struct {
	key   Key
	entry Entry
}

// New creates a Cache that evicts least-recently-used entries once the
// sum of their Bytes would exceed budget. onEvict, if non-nil, is called
// for every entry removed (by capacity eviction or an explicit Purge),
// giving the caller a chance to release the backend handle.
func New(budget int64, onEvict func(Key, Entry)) (*Cache, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("cache: budget must be positive, got %d", budget)
	}
	c := &Cache{budget: budget, onEvict: onEvict}
	// golang-lru requires a fixed entry-count capacity; we use a
	// generously large one and do the real budget accounting ourselves
	// via evictOverBudget, called after every Add.
	l, err := lru.NewWithEvict[Key, Entry](1<<20, func(k Key, v Entry) {
		// Called synchronously from Put/evictOverBudget/Remove/Purge,
		// all of which already hold c.mu, so we mutate state directly
		// rather than re-locking. The onEvict callback itself is NOT
		// invoked here: a caller's releaser can block on real device
		// work (e.g. the vendor backend's buffer/memory teardown), and
		// running that while c.mu is held would serialize every
		// concurrent Get/Put behind it. Instead we queue the entry and
		// drain the queue after releasing the lock.
		c.used -= v.Bytes
		c.pending = append(c.pending, evicted{key: k, entry: v})
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	c.lru = l
	return c, nil
}

// Get looks up a cached tile, recording a hit or miss for Stats.
func (c *Cache) Get(k Key) (Entry, bool) {
	v, ok := c.lru.Get(k)

	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	return v, ok
}

// Put inserts or replaces a cached tile, evicting least-recently-used
// entries until the running byte total fits the budget.
func (c *Cache) Put(k Key, e Entry) {
	c.mu.Lock()
	if old, ok := c.lru.Peek(k); ok {
		c.used -= old.Bytes
	}
	c.used += e.Bytes
	c.lru.Add(k, e)
	c.evictOverBudget()
	pending := c.drainPendingLocked()
	c.mu.Unlock()

	c.notify(pending)
}

// evictOverBudget must be called with c.mu held.
func (c *Cache) evictOverBudget() {
	for c.used > c.budget {
		_, _, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
	}
}

// Remove drops a specific entry, if present, calling onEvict.
func (c *Cache) Remove(k Key) {
	c.mu.Lock()
	c.lru.Remove(k)
	pending := c.drainPendingLocked()
	c.mu.Unlock()

	c.notify(pending)
}

// Purge empties the cache, calling onEvict for every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.lru.Purge()
	c.used = 0
	pending := c.drainPendingLocked()
	c.mu.Unlock()

	c.notify(pending)
}

// drainPendingLocked must be called with c.mu held.
func (c *Cache) drainPendingLocked() []evicted {
	if len(c.pending) == 0 {
		return nil
	}
	pending := c.pending
	c.pending = nil
	return pending
}

// notify runs onEvict for a batch of evicted entries without holding
// c.mu, so a slow releaser doesn't block concurrent cache access.
func (c *Cache) notify(pending []evicted) {
	if c.onEvict == nil {
		return
	}
	for _, ev := range pending {
		c.onEvict(ev.key, ev.entry)
	}
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits, Misses uint64
	UsedBytes    int64
	BudgetBytes  int64
	Entries      int
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		UsedBytes:   c.used,
		BudgetBytes: c.budget,
		Entries:     c.lru.Len(),
	}
}

package cache

import (
	"container/list"
	"sync"
)

// entryOverhead approximates the bookkeeping cost (hash key plus list/map
// node) each L1 slot carries beyond its raw payload, so Weight reflects
// real memory pressure rather than just the cached bytes.
const entryOverhead = 56

// l1Entry is one in-memory cache slot.
type l1Entry struct {
	key    string
	data   []byte
	weight int64
}

func (e *l1Entry) recomputeWeight() {
	e.weight = int64(len(e.data)) + entryOverhead
}

// L1Cache is a weighted, size-bounded in-memory LRU: eviction runs on
// accumulated byte weight rather than entry count, since a handful of
// multi-megabyte package archives should not starve out thousands of
// small metadata blobs sharing the same budget. Grounded on
// original_source's moka-backed L1Cache (weight = data.len()+32+24),
// re-expressed over container/list the way the teacher's pkg/client and
// pkg/helpers packages build their own LRUs on top of hashicorp/golang-lru
// primitives — here hand-rolled because weighted eviction isn't something
// golang-lru/v2's Cache exposes.
type L1Cache struct {
	mu       sync.Mutex
	ll       *list.List
	items    map[string]*list.Element
	maxBytes int64
	curBytes int64

	insertions int64
	evictions  int64
}

// NewL1Cache builds an L1Cache with the given byte budget.
func NewL1Cache(maxBytes int64) *L1Cache {
	if maxBytes <= 0 {
		maxBytes = 256 * 1024 * 1024
	}
	return &L1Cache{
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		maxBytes: maxBytes,
	}
}

// Get returns the cached bytes for key and marks it most-recently-used.
func (c *L1Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*l1Entry).data, true
}

// Insert stores data under key, evicting least-recently-used entries
// until the cache fits within its byte budget.
func (c *L1Cache) Insert(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*l1Entry)
		c.curBytes -= entry.weight
		entry.data = data
		entry.recomputeWeight()
		c.curBytes += entry.weight
		c.ll.MoveToFront(el)
	} else {
		entry := &l1Entry{key: key, data: data}
		entry.recomputeWeight()
		el := c.ll.PushFront(entry)
		c.items[key] = el
		c.curBytes += entry.weight
		c.insertions++
	}

	for c.curBytes > c.maxBytes && c.ll.Len() > 0 {
		c.evictOldest()
	}
}

// evictOldest removes the least-recently-used entry. Caller must hold mu.
func (c *L1Cache) evictOldest() {
	back := c.ll.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*l1Entry)
	c.ll.Remove(back)
	delete(c.items, entry.key)
	c.curBytes -= entry.weight
	c.evictions++
}

// Remove deletes key if present, reporting whether it was.
func (c *L1Cache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	entry := el.Value.(*l1Entry)
	c.ll.Remove(el)
	delete(c.items, key)
	c.curBytes -= entry.weight
	return true
}

// Contains reports presence without affecting recency order.
func (c *L1Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Clear empties the cache.
func (c *L1Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	c.curBytes = 0
}

// Len returns the number of cached entries.
func (c *L1Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Size returns the current weighted byte size of the cache.
func (c *L1Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// FillRatio returns Size()/maxBytes, in [0,1].
func (c *L1Cache) FillRatio() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxBytes == 0 {
		return 0
	}
	return float64(c.curBytes) / float64(c.maxBytes)
}

// Stats returns cumulative insertion/eviction counters.
func (c *L1Cache) Stats() (insertions, evictions int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertions, c.evictions
}

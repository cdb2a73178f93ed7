package cache

import (
	"time"

	"github.com/libretto-pm/libretto-sub002/pkg/hashing"
)

// TieredCache is the public entry point: bloom pre-filter, L1 in-memory
// weighted LRU, L2 on-disk CAS. Every Get/Put goes through here; callers
// never touch L1/L2 directly.
type TieredCache struct {
	config Config
	bloom  *BloomGate
	l1     *L1Cache
	l2     *L2
	stats  Stats
}

// Open builds (or reopens) a tiered cache rooted at config.Root.
func Open(config Config) (*TieredCache, error) {
	l2, err := OpenL2(config)
	if err != nil {
		return nil, err
	}

	tc := &TieredCache{
		config: config,
		bloom:  NewBloomGate(config.BloomExpectedItems, config.BloomFalsePositive),
		l1:     NewL1Cache(config.L1SizeLimit),
		l2:     l2,
	}

	// Warm the bloom filter from whatever L2 already has on disk so a
	// restarted process doesn't pay false negatives for its own history.
	for _, t := range AllEntryTypes() {
		for _, e := range l2.index.FindByType(t) {
			tc.bloom.Add(e.Key)
		}
	}

	return tc, nil
}

// Get retrieves the artifact for hash, checking L1 then L2. A bloom
// "definitely not present" answer short-circuits both.
func (c *TieredCache) Get(hash hashing.ContentHash) ([]byte, bool, error) {
	key := hash.Hex()

	if !c.bloom.MaybeContains(key) {
		c.stats.recordBloomTN()
		c.stats.recordMiss()
		return nil, false, nil
	}

	if data, ok := c.l1.Get(key); ok {
		c.stats.recordL1Hit(len(data))
		return data, true, nil
	}

	data, ok, err := c.l2.Get(hash)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		c.stats.recordBloomFP()
		c.stats.recordMiss()
		return nil, false, nil
	}

	c.stats.recordL2Hit(len(data))
	c.l1.Insert(key, data)
	return data, true, nil
}

// Contains reports whether hash is cached without reading its payload.
func (c *TieredCache) Contains(hash hashing.ContentHash) bool {
	key := hash.Hex()
	if !c.bloom.MaybeContains(key) {
		return false
	}
	if c.l1.Contains(key) {
		return true
	}
	return c.l2.Contains(hash)
}

// Put stores data (computing its BLAKE3 hash) under entryType with ttl
// (0 meaning entryType's default). It lands in both L1 and L2.
func (c *TieredCache) Put(data []byte, entryType EntryType, ttl time.Duration, metadata string) (hashing.ContentHash, error) {
	hash, err := c.l2.Put(data, entryType, ttl, metadata)
	if err != nil {
		return hashing.ContentHash{}, err
	}
	c.bloom.Add(hash.Hex())
	c.l1.Insert(hash.Hex(), data)
	c.stats.recordWrite(len(data))
	return hash, nil
}

// PutWithHash stores data under a pre-computed hash (the downloader
// already hashed the stream while writing it).
func (c *TieredCache) PutWithHash(hash hashing.ContentHash, data []byte, entryType EntryType, ttl time.Duration, metadata string) error {
	if err := c.l2.PutWithHash(hash, data, entryType, ttl, metadata); err != nil {
		return err
	}
	c.bloom.Add(hash.Hex())
	c.l1.Insert(hash.Hex(), data)
	c.stats.recordWrite(len(data))
	return nil
}

// Remove deletes hash from both tiers.
func (c *TieredCache) Remove(hash hashing.ContentHash) (bool, error) {
	c.l1.Remove(hash.Hex())
	return c.l2.Remove(hash)
}

// ClearByType wipes every entry of entryType from L2 (and any L1 slots
// that happen to share its key space, which is cleared wholesale since
// L1 has no per-type index).
func (c *TieredCache) ClearByType(entryType EntryType) int {
	c.l1.Clear()
	return c.l2.ClearByType(entryType)
}

// Clear wipes the entire cache.
func (c *TieredCache) Clear() error {
	c.l1.Clear()
	c.bloom.Reset(c.config.BloomExpectedItems, c.config.BloomFalsePositive)
	return c.l2.Clear()
}

// RemoveExpired sweeps TTL-expired L2 entries, the maintenance entry
// point an install run (or a standalone `cache gc` command) calls
// periodically.
func (c *TieredCache) RemoveExpired() int {
	n := c.l2.RemoveExpired()
	for i := 0; i < n; i++ {
		c.stats.recordExpiration()
	}
	return n
}

// EvictLRU frees at least targetBytes from L2 by deleting the
// least-recently-used entries.
func (c *TieredCache) EvictLRU(targetBytes int64) int {
	n := c.l2.EvictLRU(targetBytes)
	for i := 0; i < n; i++ {
		c.stats.recordEviction()
	}
	return n
}

// Flush persists the L2 index to disk.
func (c *TieredCache) Flush() error {
	return c.l2.Flush()
}

// Stats returns a snapshot of cumulative hit/miss/eviction counters.
func (c *TieredCache) Stats() Snapshot {
	return c.stats.Snapshot()
}

// L1FillRatio exposes the in-memory tier's fill ratio for diagnostics.
func (c *TieredCache) L1FillRatio() float64 {
	return c.l1.FillRatio()
}

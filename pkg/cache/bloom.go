package cache

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// BloomGate is a concurrency-safe probabilistic pre-filter in front of
// the L2 disk lookup: a negative answer is certain (the key has never
// been Add-ed), a positive answer merely means "maybe, go check the
// index." It never shrinks, matching Composer's own install-then-forget
// usage pattern — a filter sized for the run's working set, discarded
// with the process.
type BloomGate struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewBloomGate builds a filter sized for expectedItems keys at the given
// false-positive rate.
func NewBloomGate(expectedItems uint, falsePositiveRate float64) *BloomGate {
	if expectedItems == 0 {
		expectedItems = 10_000
	}
	if falsePositiveRate <= 0 {
		falsePositiveRate = 0.01
	}
	return &BloomGate{filter: bloom.NewWithEstimates(expectedItems, falsePositiveRate)}
}

// Add records key as present.
func (g *BloomGate) Add(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filter.AddString(key)
}

// MaybeContains reports whether key might be present. false is a
// definitive "not cached"; true requires a follow-up disk check.
func (g *BloomGate) MaybeContains(key string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.filter.TestString(key)
}

// Reset clears the filter, used when the L2 index is rebuilt from
// scratch (e.g. after a `cache clear`).
func (g *BloomGate) Reset(expectedItems uint, falsePositiveRate float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filter = bloom.NewWithEstimates(expectedItems, falsePositiveRate)
}

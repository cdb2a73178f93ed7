package resolver

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"
)

// memoCacheSize bounds MemoizedFetcher's remembered package names, so a
// long-running resolver process (a daemon re-resolving many projects)
// doesn't grow its memo without bound across resolves.
const memoCacheSize = 4096

// PackageFetcher retrieves every known version of a package from a
// registry (Packagist-compatible or a private repository). Implementations
// live in the registry client, not here; the resolver only depends on
// this narrow interface so it can be tested against a fixture fetcher.
type PackageFetcher interface {
	Fetch(ctx context.Context, name PackageName) (PackageEntry, error)
}

// MemoizedFetcher wraps a PackageFetcher with a bounded memo cache and a
// concurrency cap, the way the teacher's registry guarded its own
// upstream calls with a runtime.NumCPU()-sized semaphore channel: here
// expressed with golang.org/x/sync/semaphore instead of a raw guard
// channel, since the cap needs to be shared across many goroutines
// issuing Fetch concurrently during candidate expansion. The memo itself
// is a hashicorp/golang-lru/v2 cache rather than a plain map, so a
// resolver re-used across many resolves can't accumulate an unbounded
// number of remembered package names.
type MemoizedFetcher struct {
	inner PackageFetcher
	sem   *semaphore.Weighted

	mu   sync.Mutex
	memo *lru.Cache[string, fetchResult]
}

type fetchResult struct {
	entry PackageEntry
	err   error
}

// NewMemoizedFetcher builds a fetcher that never issues more than
// maxConcurrency simultaneous calls to inner, and never fetches the same
// package name twice while it's still in the memo cache.
func NewMemoizedFetcher(inner PackageFetcher, maxConcurrency int64) *MemoizedFetcher {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	memo, _ := lru.New[string, fetchResult](memoCacheSize) // only errors on size <= 0
	return &MemoizedFetcher{
		inner: inner,
		sem:   semaphore.NewWeighted(maxConcurrency),
		memo:  memo,
	}
}

// Fetch implements PackageFetcher.
func (f *MemoizedFetcher) Fetch(ctx context.Context, name PackageName) (PackageEntry, error) {
	key := name.String()

	f.mu.Lock()
	if r, ok := f.memo.Get(key); ok {
		f.mu.Unlock()
		return r.entry, r.err
	}
	f.mu.Unlock()

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return PackageEntry{}, err
	}
	defer f.sem.Release(1)

	// Re-check after acquiring the semaphore: another goroutine may have
	// fetched this name while we waited for a slot.
	f.mu.Lock()
	if r, ok := f.memo.Get(key); ok {
		f.mu.Unlock()
		return r.entry, r.err
	}
	f.mu.Unlock()

	entry, err := f.inner.Fetch(ctx, name)
	entry.SortVersionsDescending()

	f.mu.Lock()
	f.memo.Add(key, fetchResult{entry: entry, err: err})
	f.mu.Unlock()

	return entry, err
}

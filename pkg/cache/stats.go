package cache

import "sync/atomic"

// Stats accumulates counters across the lifetime of a TieredCache,
// grounded on original_source's CacheStats (atomic counters, lock-free
// snapshotting).
type Stats struct {
	hits               atomic.Int64
	misses             atomic.Int64
	l1Hits             atomic.Int64
	l2Hits             atomic.Int64
	bytesRead          atomic.Int64
	bytesWritten       atomic.Int64
	evictions          atomic.Int64
	expirations        atomic.Int64
	bloomTrueNegatives atomic.Int64
	bloomFalsePositive atomic.Int64
}

func (s *Stats) recordL1Hit(n int)  { s.hits.Add(1); s.l1Hits.Add(1); s.bytesRead.Add(int64(n)) }
func (s *Stats) recordL2Hit(n int)  { s.hits.Add(1); s.l2Hits.Add(1); s.bytesRead.Add(int64(n)) }
func (s *Stats) recordMiss()        { s.misses.Add(1) }
func (s *Stats) recordWrite(n int)  { s.bytesWritten.Add(int64(n)) }
func (s *Stats) recordEviction()    { s.evictions.Add(1) }
func (s *Stats) recordExpiration()  { s.expirations.Add(1) }
func (s *Stats) recordBloomTN()     { s.bloomTrueNegatives.Add(1) }
func (s *Stats) recordBloomFP()     { s.bloomFalsePositive.Add(1) }

// Snapshot is a point-in-time read of Stats.
type Snapshot struct {
	Hits, Misses             int64
	L1Hits, L2Hits           int64
	BytesRead, BytesWritten  int64
	Evictions, Expirations   int64
	BloomTrueNeg, BloomFalse int64
	HitRate                  float64
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Snapshot {
	hits, misses := s.hits.Load(), s.misses.Load()
	total := hits + misses
	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Snapshot{
		Hits: hits, Misses: misses,
		L1Hits: s.l1Hits.Load(), L2Hits: s.l2Hits.Load(),
		BytesRead: s.bytesRead.Load(), BytesWritten: s.bytesWritten.Load(),
		Evictions: s.evictions.Load(), Expirations: s.expirations.Load(),
		BloomTrueNeg: s.bloomTrueNegatives.Load(), BloomFalse: s.bloomFalsePositive.Load(),
		HitRate: rate,
	}
}

package downloader

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// BandwidthThrottler caps aggregate download throughput across every
// stream wrapped with it, grounded on stream.rs's per-chunk
// throttler.acquire(chunk.len()) calls: each Read is billed against a
// shared token bucket before its bytes are returned to the caller.
type BandwidthThrottler struct {
	limiter *rate.Limiter
}

// NewBandwidthThrottler builds a throttler allowing bytesPerSecond
// sustained throughput with a burst of one second's worth of data. A
// bytesPerSecond of 0 means unlimited (NewStreamDownloader accepts nil
// instead, but a zero-valued throttler is also safely a no-op).
func NewBandwidthThrottler(bytesPerSecond int) *BandwidthThrottler {
	if bytesPerSecond <= 0 {
		return nil
	}
	return &BandwidthThrottler{limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond)}
}

// Wrap returns r gated by the throttler: each Read blocks until its byte
// count has been admitted by the shared token bucket.
func (t *BandwidthThrottler) Wrap(r io.Reader) io.Reader {
	if t == nil || t.limiter == nil {
		return r
	}
	return &throttledReader{r: r, limiter: t.limiter}
}

type throttledReader struct {
	r       io.Reader
	limiter *rate.Limiter
}

func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		// WaitN requires n <= burst; reserve in burst-sized slices when a
		// single chunk exceeds it rather than rejecting the read outright.
		burst := t.limiter.Burst()
		remaining := n
		for remaining > 0 {
			take := remaining
			if burst > 0 && take > burst {
				take = burst
			}
			if werr := t.limiter.WaitN(context.Background(), take); werr != nil {
				return n, werr
			}
			remaining -= take
		}
	}
	return n, err
}

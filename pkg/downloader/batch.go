package downloader

import (
	"context"
	"net/url"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/libretto-pm/libretto-sub002/pkg/pipelineerr"
	"github.com/libretto-pm/libretto-sub002/pkg/source"
)

// ProgressSink receives download progress events. The headless NoopSink
// discards everything; a CLI wires a real implementation in to drive a
// progress bar.
type ProgressSink interface {
	Started(job source.Spec)
	Completed(job source.Spec, result DownloadResult)
	Failed(job source.Spec, err error)
}

// NoopSink implements ProgressSink with no side effects.
type NoopSink struct{}

func (NoopSink) Started(source.Spec)                   {}
func (NoopSink) Completed(source.Spec, DownloadResult) {}
func (NoopSink) Failed(source.Spec, error)             {}

// BatchOptions tunes a Manager's concurrency behavior.
type BatchOptions struct {
	// MaxConcurrent bounds the total number of simultaneous downloads.
	MaxConcurrent int64
	// MaxPerHost bounds simultaneous downloads to any single host, so a
	// batch of packages all hosted on the same mirror doesn't open more
	// connections than that host tolerates.
	MaxPerHost int64
	Sink       ProgressSink
}

// DefaultBatchOptions matches Composer's own default of a handful of
// parallel downloads with a tighter per-host cap to stay polite to
// single-origin mirrors like packagist's CDN.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{MaxConcurrent: 8, MaxPerHost: 4, Sink: NoopSink{}}
}

// Manager runs a batch of source.Spec downloads against a StreamDownloader,
// trying each spec's primary source then its fallbacks in order, enforcing
// global and per-host concurrency caps, and folding every install into a
// single call site the resolver's output feeds directly.
type Manager struct {
	stream *StreamDownloader
	opts   BatchOptions

	global *semaphore.Weighted

	hostMu sync.Mutex
	hosts  map[string]*semaphore.Weighted
}

// NewManager builds a Manager over stream with the given options.
func NewManager(stream *StreamDownloader, opts BatchOptions) *Manager {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	if opts.MaxPerHost <= 0 {
		opts.MaxPerHost = opts.MaxConcurrent
	}
	if opts.Sink == nil {
		opts.Sink = NoopSink{}
	}
	return &Manager{
		stream: stream,
		opts:   opts,
		global: semaphore.NewWeighted(opts.MaxConcurrent),
		hosts:  make(map[string]*semaphore.Weighted),
	}
}

func (m *Manager) hostSemaphore(host string) *semaphore.Weighted {
	m.hostMu.Lock()
	defer m.hostMu.Unlock()
	s, ok := m.hosts[host]
	if !ok {
		s = semaphore.NewWeighted(m.opts.MaxPerHost)
		m.hosts[host] = s
	}
	return s
}

// FetchAll downloads every job's Spec into destDir/<job.ID()>, running up
// to opts.MaxConcurrent at once, and returns one DownloadResult per job in
// input order (nil entries mark jobs that failed every mirror).
func (m *Manager) FetchAll(ctx context.Context, jobs []source.Spec, destDir string) ([]*DownloadResult, []error) {
	results := make([]*DownloadResult, len(jobs))
	errs := make([]error, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		i, job := i, job
		if err := m.global.Acquire(ctx, 1); err != nil {
			errs[i] = pipelineerr.Wrap(pipelineerr.KindCancelled, "downloader.batch", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer m.global.Release(1)

			dest := filepath.Join(destDir, filepath.FromSlash(job.ID()))
			res, err := m.fetchOne(ctx, job, dest)
			if err != nil {
				errs[i] = err
				m.opts.Sink.Failed(job, err)
				return
			}
			results[i] = &res
			m.opts.Sink.Completed(job, res)
		}()
	}
	wg.Wait()
	return results, errs
}

// fetchOne tries job's primary source then each fallback in order,
// enforcing the per-host cap around each attempt, and returns
// AllMirrorsFailed if every URL is exhausted.
func (m *Manager) fetchOne(ctx context.Context, job source.Spec, dest string) (DownloadResult, error) {
	m.opts.Sink.Started(job)

	var causes []pipelineerr.MirrorCause
	for _, src := range job.All() {
		if src.Kind != source.KindDist {
			continue
		}
		host := hostOf(src.DistURL)
		sem := m.hostSemaphore(host)
		if err := sem.Acquire(ctx, 1); err != nil {
			return DownloadResult{}, pipelineerr.Wrap(pipelineerr.KindCancelled, "downloader.batch", err)
		}

		checksums := checksumsOf(src)
		res, err := m.stream.Download(ctx, src.DistURL, dest, checksums)
		sem.Release(1)

		if err == nil {
			return res, nil
		}
		causes = append(causes, pipelineerr.MirrorCause{URL: src.DistURL, Err: err})
	}

	if len(causes) == 0 {
		return DownloadResult{}, pipelineerr.New(pipelineerr.KindConfig, "downloader.batch", "no dist sources for "+job.ID())
	}
	return DownloadResult{}, &pipelineerr.AllMirrorsFailed{Causes: causes}
}

func checksumsOf(src source.Source) []ExpectedChecksum {
	if src.Checksum == "" {
		return nil
	}
	if len(src.Checksum) == 40 {
		return []ExpectedChecksum{{Algorithm: "sha1", Hex: src.Checksum}}
	}
	return []ExpectedChecksum{{Algorithm: "sha256", Hex: src.Checksum}}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}

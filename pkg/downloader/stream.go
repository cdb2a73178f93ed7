package downloader

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"

	"github.com/libretto-pm/libretto-sub002/pkg/hashing"
	"github.com/libretto-pm/libretto-sub002/pkg/httpclient"
	"github.com/libretto-pm/libretto-sub002/pkg/pipelineerr"
)

// mmapThreshold is the response size above which StreamDownloader
// pre-sizes the destination file and writes through a memory map instead
// of buffered io.Copy, avoiding a second full-size allocation for large
// package archives.
const mmapThreshold = 8 * 1024 * 1024

// DownloadResult describes a completed single-URL download.
type DownloadResult struct {
	Path     string
	Size     int64
	Hash     hashing.ContentHash
	Resumed  bool
	UsedMmap bool
}

// ExpectedChecksum is a declared checksum to verify a download against.
type ExpectedChecksum struct {
	Algorithm hashing.Algorithm
	Hex       string
}

// StreamDownloader fetches a single URL to a destination file, choosing
// a strategy (plain streaming, HTTP Range resume, or mmap pre-sized
// write) based on the response's declared size and whether a partial
// download already exists. Every byte is hashed exactly once via
// hashing.MultiHasher so checksum verification never re-reads the file.
type StreamDownloader struct {
	client    *httpclient.Client
	throttler *BandwidthThrottler
}

// NewStreamDownloader builds a StreamDownloader over client, optionally
// throttled (pass nil for unlimited bandwidth).
func NewStreamDownloader(client *httpclient.Client, throttler *BandwidthThrottler) *StreamDownloader {
	return &StreamDownloader{client: client, throttler: throttler}
}

// Download fetches url to dest, verifying against checksums (if any) as
// the stream is written. A ".partial" sibling file is used for resume:
// if dest's download was interrupted, a second call picks up where it
// left off via a Range request.
func (d *StreamDownloader) Download(ctx context.Context, url, dest string, checksums []ExpectedChecksum) (DownloadResult, error) {
	partialPath := dest + ".partial"

	var startOffset int64
	if info, err := os.Stat(partialPath); err == nil {
		startOffset = info.Size()
	}

	req := d.client.NewRequest(ctx)
	if startOffset > 0 {
		req.SetHeader("Range", rangeHeader(startOffset))
	}

	resp, err := req.SetDoNotParseResponse(true).Execute(http.MethodGet, url)
	if err != nil {
		return DownloadResult{}, pipelineerr.WrapRetryable(pipelineerr.KindNetwork, "download", err)
	}
	body := resp.RawBody()
	defer body.Close()

	resumed := startOffset > 0 && resp.StatusCode() == http.StatusPartialContent
	if !resumed {
		startOffset = 0
	}

	totalSize := contentLength(resp, startOffset)

	var (
		hasher = newChecksumHasher(checksums)
		n      int64
		usedMmap bool
	)

	if resumed {
		pf, err := os.Open(partialPath)
		if err != nil {
			return DownloadResult{}, pipelineerr.Wrap(pipelineerr.KindIO, "download", err)
		}
		_, err = io.Copy(hasher, pf)
		pf.Close()
		if err != nil {
			return DownloadResult{}, pipelineerr.Wrap(pipelineerr.KindIO, "download", err)
		}
	}

	if totalSize > 0 && totalSize >= mmapThreshold && !resumed {
		n, err = d.writeMmap(body, partialPath, totalSize, hasher)
		usedMmap = true
	} else {
		n, err = d.writeStreaming(body, partialPath, startOffset, hasher)
	}
	if err != nil {
		return DownloadResult{}, err
	}

	sum := hasher.Sum32()
	if len(checksums) > 0 {
		expected := make(map[hashing.Algorithm]string, len(checksums))
		for _, c := range checksums {
			expected[c.Algorithm] = c.Hex
		}
		if err := hasher.Verify(expected); err != nil {
			os.Remove(partialPath)
			return DownloadResult{}, pipelineerr.Wrap(pipelineerr.KindIntegrity, "download.verify", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return DownloadResult{}, pipelineerr.Wrap(pipelineerr.KindIO, "download", err)
	}
	if err := os.Rename(partialPath, dest); err != nil {
		return DownloadResult{}, pipelineerr.Wrap(pipelineerr.KindIO, "download", err)
	}

	return DownloadResult{Path: dest, Size: startOffset + n, Hash: sum, Resumed: resumed, UsedMmap: usedMmap}, nil
}

func (d *StreamDownloader) writeStreaming(body io.Reader, partialPath string, startOffset int64, hasher *hashing.MultiHasher) (int64, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if startOffset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(partialPath, flags, 0o644)
	if err != nil {
		return 0, pipelineerr.Wrap(pipelineerr.KindIO, "download", err)
	}
	defer f.Close()

	reader := body
	if d.throttler != nil {
		reader = d.throttler.Wrap(body)
	}

	w := io.MultiWriter(f, hasher)
	n, err := io.Copy(w, reader)
	if err != nil {
		return n, pipelineerr.WrapRetryable(pipelineerr.KindNetwork, "download", err)
	}
	return n, nil
}

func (d *StreamDownloader) writeMmap(body io.Reader, partialPath string, totalSize int64, hasher *hashing.MultiHasher) (int64, error) {
	f, err := os.OpenFile(partialPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, pipelineerr.Wrap(pipelineerr.KindIO, "download", err)
	}
	defer f.Close()

	if err := f.Truncate(totalSize); err != nil {
		return 0, pipelineerr.Wrap(pipelineerr.KindIO, "download", err)
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		// Fall back to streaming if mmap isn't available on this platform.
		return d.writeStreaming(body, partialPath, 0, hasher)
	}
	defer m.Unmap()

	reader := body
	if d.throttler != nil {
		reader = d.throttler.Wrap(body)
	}

	var position int64
	buf := make([]byte, 256*1024)
	for {
		n, rerr := reader.Read(buf)
		if n > 0 {
			end := position + int64(n)
			if end > totalSize {
				end = totalSize
			}
			copy(m[position:end], buf[:end-position])
			hasher.Write(buf[:n]) //nolint:errcheck
			position = end
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return position, pipelineerr.WrapRetryable(pipelineerr.KindNetwork, "download", rerr)
		}
	}

	if err := m.Flush(); err != nil {
		return position, pipelineerr.Wrap(pipelineerr.KindIO, "download", err)
	}
	return position, nil
}

func newChecksumHasher(checksums []ExpectedChecksum) *hashing.MultiHasher {
	var extra []hashing.Algorithm
	for _, c := range checksums {
		if c.Algorithm != hashing.AlgorithmBlake3 {
			extra = append(extra, c.Algorithm)
		}
	}
	return hashing.NewMultiHasher(extra...)
}

func rangeHeader(offset int64) string {
	return "bytes=" + itoa(offset) + "-"
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func contentLength(resp interface{ Header() http.Header }, alreadyHave int64) int64 {
	h := resp.Header()
	cl := h.Get("Content-Length")
	if cl == "" {
		return 0
	}
	var n int64
	for _, c := range cl {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	if alreadyHave > 0 {
		n += alreadyHave
	}
	return n
}

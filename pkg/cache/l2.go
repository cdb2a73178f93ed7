package cache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/libretto-pm/libretto-sub002/pkg/hashing"
	"github.com/libretto-pm/libretto-sub002/pkg/pipelineerr"
)

// L2 is the on-disk content-addressable store: every artifact is named
// by the first 16 hex characters of its BLAKE3 hash under a
// per-entry-type subdirectory, with a persisted Index tracking full
// hashes, sizes, compression and expiry. Grounded on original_source's
// libretto-cache::l2::L2Cache.
type L2 struct {
	root   string
	index  *Index
	config Config
}

// OpenL2 creates (if needed) the L2 root and its per-type subdirectories
// and loads the persisted index.
func OpenL2(config Config) (*L2, error) {
	root := config.Root
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindIO, "cache.open", err)
	}
	for _, t := range AllEntryTypes() {
		if err := os.MkdirAll(filepath.Join(root, t.Subdir()), 0o755); err != nil {
			return nil, pipelineerr.Wrap(pipelineerr.KindIO, "cache.open", err)
		}
	}

	idx, err := OpenIndex(filepath.Join(root, "index.bin"))
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindIO, "cache.open", err)
	}

	return &L2{root: root, index: idx, config: config}, nil
}

// Get reads and (if needed) decompresses the artifact for hash. A
// missing file self-heals the dangling index entry rather than erroring.
func (l *L2) Get(hash hashing.ContentHash) ([]byte, bool, error) {
	key := hash.Hex()
	entry, ok := l.index.Get(key)
	if !ok {
		return nil, false, nil
	}
	if entry.IsExpired() {
		return nil, false, nil
	}

	path := filepath.Join(l.root, entry.Path)
	if _, err := os.Stat(path); err != nil {
		l.index.Remove(key)
		return nil, false, nil
	}

	data, err := l.readFile(path, entry.Size)
	if err != nil {
		return nil, false, pipelineerr.Wrap(pipelineerr.KindIO, "cache.get", err)
	}

	if entry.Compressed {
		if payload, ok := stripMagic(data); ok {
			data, err = decompress(payload)
			if err != nil {
				return nil, false, pipelineerr.Wrap(pipelineerr.KindIntegrity, "cache.decompress", err)
			}
		}
	}

	l.index.Touch(key)
	return data, true, nil
}

func (l *L2) readFile(path string, size int64) ([]byte, error) {
	if size > l.config.MmapThreshold && l.config.MmapThreshold > 0 {
		return l.readMmap(path)
	}
	return os.ReadFile(path)
}

func (l *L2) readMmap(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return os.ReadFile(path)
	}
	defer m.Unmap()

	out := make([]byte, len(m))
	copy(out, m)
	return out, nil
}

// Put stores data under its BLAKE3 hash, compressing when beneficial.
// Already-cached content is a no-op other than touching recency.
func (l *L2) Put(data []byte, entryType EntryType, ttl time.Duration, metadata string) (hashing.ContentHash, error) {
	hash := hashing.Sum(data)
	key := hash.Hex()

	if l.index.Contains(key) {
		l.index.Touch(key)
		return hash, nil
	}

	if err := l.putWithHash(hash, data, entryType, ttl, metadata); err != nil {
		return hashing.ContentHash{}, err
	}
	return hash, nil
}

// PutWithHash stores data under a caller-supplied hash (used by the
// downloader, which has already hashed the stream while writing it to a
// temp file and doesn't want to hash it again).
func (l *L2) PutWithHash(hash hashing.ContentHash, data []byte, entryType EntryType, ttl time.Duration, metadata string) error {
	key := hash.Hex()
	if l.index.Contains(key) {
		l.index.Touch(key)
		return nil
	}
	return l.putWithHash(hash, data, entryType, ttl, metadata)
}

func (l *L2) putWithHash(hash hashing.ContentHash, data []byte, entryType EntryType, ttl time.Duration, metadata string) error {
	key := hash.Hex()
	if ttl == 0 {
		ttl = entryType.DefaultTTL()
	}

	finalData := data
	compressed := false
	if l.config.CompressionOn && shouldCompress(data) {
		c := compress(data, l.config.CompressionLvl)
		if len(c) < len(data) {
			finalData = withMagic(c)
			compressed = true
		}
	}

	relPath := filepath.Join(entryType.Subdir(), key[:16]+".bin")
	fullPath := filepath.Join(l.root, relPath)
	if err := writeAtomic(fullPath, finalData); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindIO, "cache.put", err)
	}

	now := time.Now()
	l.index.Insert(IndexEntry{
		Key:          key,
		Type:         entryType,
		Path:         relPath,
		Size:         int64(len(finalData)),
		OriginalSize: int64(len(data)),
		Compressed:   compressed,
		CachedAt:     now,
		LastAccess:   now,
		ExpiresAt:    now.Add(ttl),
		Metadata:     metadata,
	})
	return nil
}

// Contains reports whether hash is cached and not expired, checking the
// file still exists on disk.
func (l *L2) Contains(hash hashing.ContentHash) bool {
	key := hash.Hex()
	entry, ok := l.index.Get(key)
	if !ok || entry.IsExpired() {
		return false
	}
	_, err := os.Stat(filepath.Join(l.root, entry.Path))
	return err == nil
}

// Remove deletes the artifact and its index entry.
func (l *L2) Remove(hash hashing.ContentHash) (bool, error) {
	key := hash.Hex()
	entry, ok := l.index.Remove(key)
	if !ok {
		return false, nil
	}
	path := filepath.Join(l.root, entry.Path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false, pipelineerr.Wrap(pipelineerr.KindIO, "cache.remove", err)
	}
	return true, nil
}

// ClearByType deletes every entry of the given type, returning the count
// removed.
func (l *L2) ClearByType(entryType EntryType) int {
	entries := l.index.FindByType(entryType)
	removed := 0
	for _, e := range entries {
		os.Remove(filepath.Join(l.root, e.Path))
		l.index.Remove(e.Key)
		removed++
	}
	return removed
}

// Clear wipes every subdirectory and the index.
func (l *L2) Clear() error {
	for _, t := range AllEntryTypes() {
		subdir := filepath.Join(l.root, t.Subdir())
		if err := os.RemoveAll(subdir); err != nil {
			return pipelineerr.Wrap(pipelineerr.KindIO, "cache.clear", err)
		}
		if err := os.MkdirAll(subdir, 0o755); err != nil {
			return pipelineerr.Wrap(pipelineerr.KindIO, "cache.clear", err)
		}
	}
	l.index.Clear()
	return nil
}

// RemoveExpired deletes every entry past its TTL, returning the count.
func (l *L2) RemoveExpired() int {
	removed := 0
	for _, key := range l.index.FindExpired() {
		if entry, ok := l.index.Remove(key); ok {
			os.Remove(filepath.Join(l.root, entry.Path))
			removed++
		}
	}
	return removed
}

// EvictLRU removes the least-recently-used entries until at least
// targetBytes have been freed, returning the count removed.
func (l *L2) EvictLRU(targetBytes int64) int {
	var freed int64
	removed := 0
	for freed < targetBytes {
		oldest := l.index.FindOldest(100)
		if len(oldest) == 0 {
			break
		}
		progressed := false
		for _, entry := range oldest {
			if freed >= targetBytes {
				break
			}
			if _, ok := l.index.Remove(entry.Key); ok {
				os.Remove(filepath.Join(l.root, entry.Path))
				freed += entry.Size
				removed++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return removed
}

// Flush persists the index to disk.
func (l *L2) Flush() error {
	return l.index.Flush()
}

// IndexLen returns the number of indexed entries, for diagnostics/tests.
func (l *L2) IndexLen() int { return l.index.Len() }

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".l2-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

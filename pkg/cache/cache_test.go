package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *TieredCache {
	t.Helper()
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "cache"))
	cfg.L1SizeLimit = 1024 * 1024
	tc, err := Open(cfg)
	require.NoError(t, err)
	return tc
}

func TestTieredCachePutGetRoundTrip(t *testing.T) {
	tc := newTestCache(t)
	data := []byte("package contents, repeated to exceed the compression floor. " +
		"package contents, repeated to exceed the compression floor.")

	hash, err := tc.Put(data, EntryPackage, 0, "")
	require.NoError(t, err)

	got, ok, err := tc.Get(hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, data, got)
}

func TestTieredCacheMissIsDefinitive(t *testing.T) {
	tc := newTestCache(t)
	var randomHash [32]byte
	randomHash[0] = 0xAB

	_, ok, err := tc.Get(randomHash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTieredCacheSurvivesRestart(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	cfg := DefaultConfig(root)

	tc1, err := Open(cfg)
	require.NoError(t, err)
	data := []byte("autoload artifact bytes for restart test, long enough to compress")
	hash, err := tc1.Put(data, EntryAutoloader, 0, "")
	require.NoError(t, err)
	require.NoError(t, tc1.Flush())

	tc2, err := Open(cfg)
	require.NoError(t, err)
	got, ok, err := tc2.Get(hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, data, got)
}

func TestTieredCacheRemove(t *testing.T) {
	tc := newTestCache(t)
	data := []byte("removable content")
	hash, err := tc.Put(data, EntryMetadata, 0, "")
	require.NoError(t, err)

	removed, err := tc.Remove(hash)
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok, err := tc.Get(hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTieredCacheClearByType(t *testing.T) {
	tc := newTestCache(t)
	_, err := tc.Put([]byte("repo metadata blob one"), EntryRepository, 0, "")
	require.NoError(t, err)
	_, err = tc.Put([]byte("repo metadata blob two"), EntryRepository, 0, "")
	require.NoError(t, err)
	_, err = tc.Put([]byte("package blob untouched"), EntryPackage, 0, "")
	require.NoError(t, err)

	n := tc.ClearByType(EntryRepository)
	assert.Equal(t, 2, n)
}

func TestL1CacheWeightedEviction(t *testing.T) {
	l1 := NewL1Cache(300)
	l1.Insert("a", make([]byte, 100))
	l1.Insert("b", make([]byte, 100))
	l1.Insert("c", make([]byte, 100))
	// budget 300, three entries of weight 156 each would exceed it, so
	// the oldest ("a") must have been evicted by the time "c" lands.
	_, ok := l1.Get("a")
	assert.False(t, ok)
	_, ok = l1.Get("c")
	assert.True(t, ok)
}

func TestBloomGateDefinitiveNegative(t *testing.T) {
	g := NewBloomGate(1000, 0.01)
	assert.False(t, g.MaybeContains("never-added"))
	g.Add("present")
	assert.True(t, g.MaybeContains("present"))
}

func TestCompressionRoundTrip(t *testing.T) {
	data := []byte(repeatString("compressible payload segment ", 50))
	require.True(t, shouldCompress(data))

	c := compress(data, 3)
	assert.Less(t, len(c), len(data))

	out, err := decompress(c)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func repeatString(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

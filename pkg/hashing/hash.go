// Package hashing computes the content hashes used throughout the cache
// and downloader: BLAKE3 as the primary content address, SHA-256 and
// SHA-1 kept for registries that still publish those as checksums.
package hashing

import (
	"crypto/sha1" //nolint:gosec // compat checksum only, never security-sensitive
	"crypto/sha256"
	"encoding/hex"
	"hash"

	"github.com/zeebo/blake3"
)

// HashSize is the length in bytes of a ContentHash.
const HashSize = 32

// ContentHash is a 32-byte BLAKE3 digest — the cache key, the CAS filename
// stem, and the identity of every cached artifact.
type ContentHash [HashSize]byte

// Hex renders the canonical lowercase-hex form of the hash.
func (h ContentHash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h ContentHash) String() string { return h.Hex() }

// IsZero reports whether h is the zero value (never a valid digest of any
// input, since BLAKE3(b) is never all-zero for realistic inputs, but used
// as a sentinel for "no hash computed yet").
func (h ContentHash) IsZero() bool {
	return h == ContentHash{}
}

// Sum computes the BLAKE3 digest of b in one shot.
func Sum(b []byte) ContentHash {
	return ContentHash(blake3.Sum256(b))
}

// ParseHex parses a canonical hex digest back into a ContentHash.
func ParseHex(s string) (ContentHash, bool) {
	var h ContentHash
	if len(s) != HashSize*2 {
		return h, false
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, false
	}
	copy(h[:], raw)
	return h, true
}

// Algorithm names a checksum algorithm a registry might declare alongside
// a distribution archive.
type Algorithm string

const (
	AlgorithmBlake3 Algorithm = "blake3"
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmSHA1   Algorithm = "sha1"
)

// MultiHasher feeds every chunk of a stream into BLAKE3 plus whichever
// additional algorithms the caller needs verified, so a download is
// hashed exactly once regardless of how many checksums it must satisfy.
type MultiHasher struct {
	blake3 *blake3.Hasher
	extra  map[Algorithm]hash.Hash
}

// NewMultiHasher constructs a hasher that always tracks BLAKE3 plus the
// requested extra algorithms (deduplicated).
func NewMultiHasher(extra ...Algorithm) *MultiHasher {
	m := &MultiHasher{
		blake3: blake3.New(),
		extra:  make(map[Algorithm]hash.Hash, len(extra)),
	}
	for _, alg := range extra {
		switch alg {
		case AlgorithmSHA256:
			m.extra[alg] = sha256.New()
		case AlgorithmSHA1:
			m.extra[alg] = sha1.New() //nolint:gosec
		case AlgorithmBlake3:
			// already tracked
		}
	}
	return m
}

// Write feeds a chunk into every tracked algorithm. It never returns an
// error (hash.Hash.Write never fails), matching io.Writer's contract.
func (m *MultiHasher) Write(p []byte) (int, error) {
	m.blake3.Write(p) //nolint:errcheck
	for _, h := range m.extra {
		h.Write(p) //nolint:errcheck
	}
	return len(p), nil
}

// Sum32 returns the BLAKE3 content hash accumulated so far.
func (m *MultiHasher) Sum32() ContentHash {
	var out ContentHash
	m.blake3.Sum(out[:0])
	return out
}

// SumHex returns the hex digest for one of the extra algorithms requested
// at construction time, or "" if it wasn't requested.
func (m *MultiHasher) SumHex(alg Algorithm) string {
	h, ok := m.extra[alg]
	if !ok {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks that the accumulated sums match the expected hex digests.
// An empty expected value skips that algorithm. Returns the first
// mismatch found, or nil if every declared checksum matches.
func (m *MultiHasher) Verify(expected map[Algorithm]string) error {
	for alg, want := range expected {
		if want == "" {
			continue
		}
		var got string
		if alg == AlgorithmBlake3 {
			got = m.Sum32().Hex()
		} else {
			got = m.SumHex(alg)
		}
		if got == "" {
			continue // algorithm wasn't tracked, nothing to compare
		}
		if got != want {
			return &MismatchError{Algorithm: string(alg), Expected: want, Actual: got}
		}
	}
	return nil
}

// MismatchError reports a checksum disagreement; the stream downloader
// wraps it in a pipelineerr.Error of KindIntegrity.
type MismatchError struct {
	Algorithm string
	Expected  string
	Actual    string
}

func (e *MismatchError) Error() string {
	return "checksum mismatch for " + e.Algorithm
}

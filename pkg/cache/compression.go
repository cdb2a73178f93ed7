package cache

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// compressedMagic prefixes every zstd-compressed L2 payload so get() can
// tell compressed from raw bytes without consulting the index (the index
// entry's Compressed flag is the source of truth, but the magic lets a
// payload be sniffed in isolation, e.g. by a debugging tool).
var compressedMagic = []byte{0x4c, 0x43, 0x5a, 0x31} // "LCZ1"

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

func getEncoder(level int) *zstd.Encoder {
	encoderOnce.Do(func() {
		encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	})
	return encoder
}

func getDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		decoder, _ = zstd.NewReader(nil)
	})
	return decoder
}

// shouldCompress skips compression for payloads too small to benefit and
// for already-compressed formats (zip/gzip/xz magic bytes), mirroring
// the teacher's archive helpers which never re-gzip a GitLab tarball.
func shouldCompress(data []byte) bool {
	if len(data) < 256 {
		return false
	}
	switch {
	case bytes.HasPrefix(data, []byte{0x50, 0x4b, 0x03, 0x04}): // zip
		return false
	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}): // gzip
		return false
	case bytes.HasPrefix(data, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a}): // xz
		return false
	case bytes.HasPrefix(data, compressedMagic):
		return false
	}
	return true
}

// compress zstd-compresses data at the given level.
func compress(data []byte, level int) []byte {
	return getEncoder(level).EncodeAll(data, nil)
}

// decompress reverses compress.
func decompress(data []byte) ([]byte, error) {
	return getDecoder().DecodeAll(data, nil)
}

// withMagic prefixes compressed data with compressedMagic.
func withMagic(compressed []byte) []byte {
	out := make([]byte, 0, len(compressedMagic)+len(compressed))
	out = append(out, compressedMagic...)
	out = append(out, compressed...)
	return out
}

// stripMagic removes the magic prefix, reporting ok=false if data
// doesn't carry it (meaning it was never actually compressed, even
// though the index entry claims it is — a self-healing read path, not an
// error).
func stripMagic(data []byte) (payload []byte, ok bool) {
	if !bytes.HasPrefix(data, compressedMagic) {
		return nil, false
	}
	return data[len(compressedMagic):], true
}

package platform

import "bytes"

// ContainsAny reports whether any of needles occurs in haystack. Go's
// bytes.Contains already dispatches to an architecture-specific
// SIMD-accelerated routine (internal/bytealg), so a userspace multi-
// pattern matcher would not beat it for the short literal keywords the
// classmap scanner tests for; this
// function just gives that fast path a name callers reach for instead of
// reimplementing the loop.
func ContainsAny(haystack []byte, needles ...[]byte) bool {
	for _, n := range needles {
		if bytes.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// IndexBoundary reports whether the byte at position i-1 in buf is a
// valid identifier boundary (not part of a PHP identifier or the `::`/`$`
// operators that would make a following keyword part of a larger token).
// It applies the same rule as the scanner's own isBoundaryChar (which
// suppresses matches like `Foo::class`); the scanner does not call it.
func IndexBoundary(buf []byte, i int) bool {
	if i == 0 {
		return true
	}
	c := buf[i-1]
	return !isIdentByte(c) && c != ':' && c != '$'
}

func isIdentByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

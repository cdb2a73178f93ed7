// Package platform detects CPU features and provides the fast
// byte-search primitives the classmap scanner builds on. The cache's
// bloom filter does not use them.
package platform

import (
	"github.com/klauspost/cpuid/v2"
)

// Features summarizes the SIMD-relevant CPU capabilities of the host,
// queried once at process start.
type Features struct {
	SSE42  bool
	AVX2   bool
	AVX512 bool
	NEON   bool
}

var detected = detect()

func detect() Features {
	return Features{
		SSE42:  cpuid.CPU.Supports(cpuid.SSE42),
		AVX2:   cpuid.CPU.Supports(cpuid.AVX2),
		AVX512: cpuid.CPU.Supports(cpuid.AVX512F),
		NEON:   cpuid.CPU.Supports(cpuid.ASIMD),
	}
}

// Detected returns the CPU features found on this host.
func Detected() Features { return detected }

// Name returns a short human-readable label for the detected vector
// width, used only in diagnostics/logging.
func (f Features) Name() string {
	switch {
	case f.AVX512:
		return "avx512"
	case f.AVX2:
		return "avx2"
	case f.NEON:
		return "neon"
	case f.SSE42:
		return "sse4.2"
	default:
		return "scalar"
	}
}

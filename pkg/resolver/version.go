package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blang/semver/v4"
)

// Stability is the pre-release maturity of a version.
type Stability int

const (
	StabilityDev Stability = iota
	StabilityAlpha
	StabilityBeta
	StabilityRC
	StabilityStable
)

// stabilityNames keeps both directions of the string<->Stability mapping
// in one place instead of a fragile parallel switch.
var stabilityNames = []string{"dev", "alpha", "beta", "RC", "stable"}

func (s Stability) String() string {
	if int(s) < 0 || int(s) >= len(stabilityNames) {
		return "unknown"
	}
	return stabilityNames[s]
}

// ParseStability parses a free-form stability token (as found in a
// version's pre-release suffix) into a Stability value.
func ParseStability(s string) (Stability, bool) {
	switch strings.ToLower(s) {
	case "stable", "":
		return StabilityStable, true
	case "rc":
		return StabilityRC, true
	case "beta", "b":
		return StabilityBeta, true
	case "alpha", "a":
		return StabilityAlpha, true
	case "dev":
		return StabilityDev, true
	}
	return 0, false
}

// ComposerVersion is the semver-like quadruple Composer uses: three
// numeric release components plus a build number, a stability tag, and
// an optional pre-release ordinal (the "3" in "1.2.0-beta3"). Dev
// versions carry a branch name instead of numeric components and form a
// disjoint order from released versions.
type ComposerVersion struct {
	Major, Minor, Patch, Build uint64
	Stability                  Stability
	PreReleaseNum              uint64
	IsDev                      bool
	DevBranch                  string // e.g. "main" for "dev-main"
	raw                        string
}

// String returns the original string a parsed version came from, as is
// (a "v" prefix included). A version built without parsing renders as
// major.minor.patch.build with a dasherized stability suffix.
func (v ComposerVersion) String() string {
	if v.raw != "" {
		return v.raw
	}
	if v.IsDev {
		return "dev-" + v.DevBranch
	}
	base := fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
	if v.Stability == StabilityStable {
		return base
	}
	return fmt.Sprintf("%s-%s%d", base, strings.ToLower(v.Stability.String()), v.PreReleaseNum)
}

// ParseVersion parses a Composer-style version string: optional leading
// "v", up to four dot-separated numeric components, and an optional
// "-stability[N]" or "@stability" suffix. "dev-*" and "*-dev" branch
// references are recognized as dev versions.
func ParseVersion(s string) (ComposerVersion, error) {
	raw := s
	s = strings.TrimSpace(s)

	if strings.HasPrefix(strings.ToLower(s), "dev-") {
		return ComposerVersion{IsDev: true, DevBranch: s[4:], Stability: StabilityDev, raw: raw}, nil
	}
	if strings.HasSuffix(strings.ToLower(s), "-dev") {
		return ComposerVersion{IsDev: true, DevBranch: strings.TrimSuffix(s, "-dev"), Stability: StabilityDev, raw: raw}, nil
	}

	s = strings.TrimPrefix(s, "v")
	s = strings.TrimPrefix(s, "V")

	numeric := s
	var stabilitySuffix string
	if idx := strings.IndexAny(s, "-+@"); idx >= 0 {
		numeric = s[:idx]
		if !isBuildMetadata(s, idx) {
			stabilitySuffix = s[idx+1:]
		}
	}

	parts := strings.Split(numeric, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return ComposerVersion{}, fmt.Errorf("invalid version: %q", raw)
	}
	var nums [4]uint64
	for i, p := range parts {
		if p == "*" {
			break
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return ComposerVersion{}, fmt.Errorf("invalid version component %q in %q: %w", p, raw, err)
		}
		nums[i] = n
	}

	if err := normalizeSemver(nums[0], nums[1], nums[2]); err != nil {
		return ComposerVersion{}, fmt.Errorf("invalid release identifier in %q: %w", raw, err)
	}

	stability := StabilityStable
	var preNum uint64
	if stabilitySuffix != "" {
		tag, numStr := splitStabilityTag(stabilitySuffix)
		st, ok := ParseStability(tag)
		if !ok {
			return ComposerVersion{}, fmt.Errorf("unknown stability tag %q in %q", tag, raw)
		}
		stability = st
		if numStr != "" {
			n, err := strconv.ParseUint(numStr, 10, 64)
			if err == nil {
				preNum = n
			}
		}
	}

	return ComposerVersion{
		Major:         nums[0],
		Minor:         nums[1],
		Patch:         nums[2],
		Build:         nums[3],
		Stability:     stability,
		PreReleaseNum: preNum,
		raw:           raw,
	}, nil
}

// isBuildMetadata distinguishes a genuine stability separator from a "+"
// build-metadata marker that semver.Validate also tolerates; Composer
// constraints never need build metadata so we simply fold it away.
func isBuildMetadata(s string, idx int) bool {
	return s[idx] == '+'
}

func splitStabilityTag(s string) (tag string, num string) {
	i := 0
	for i < len(s) && !(s[i] >= '0' && s[i] <= '9') {
		i++
	}
	return s[:i], s[i:]
}

// Compare implements the spec's total order: lexicographic on
// (major, minor, patch, build), then stability with Stable highest.
// Dev versions are incomparable to numeric releases in the sense that
// they always sort below every released version and are compared to
// each other by branch name only (a dev-* version is only ever selected
// by a dev-targeted constraint, so this ordering only matters for
// display and for breaking ties among multiple dev candidates).
func (v ComposerVersion) Compare(o ComposerVersion) int {
	if v.IsDev || o.IsDev {
		switch {
		case v.IsDev && o.IsDev:
			return strings.Compare(v.DevBranch, o.DevBranch)
		case v.IsDev:
			return -1
		default:
			return 1
		}
	}
	if c := cmpUint(v.Major, o.Major); c != 0 {
		return c
	}
	if c := cmpUint(v.Minor, o.Minor); c != 0 {
		return c
	}
	if c := cmpUint(v.Patch, o.Patch); c != 0 {
		return c
	}
	if c := cmpUint(v.Build, o.Build); c != 0 {
		return c
	}
	if v.Stability != o.Stability {
		if v.Stability > o.Stability {
			return 1
		}
		return -1
	}
	return cmpUint(v.PreReleaseNum, o.PreReleaseNum)
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less reports v < o under Compare.
func (v ComposerVersion) Less(o ComposerVersion) bool { return v.Compare(o) < 0 }

// Equal reports v == o under Compare.
func (v ComposerVersion) Equal(o ComposerVersion) bool { return v.Compare(o) == 0 }

// normalizeSemver validates that a version's numeric release triple is a
// well-formed semver core, leaning on blang/semver the way the teacher's
// registry package did ("releaseInfo, err := semver.Make") — there,
// validating a git tag name; here, validating the already-parsed
// major.minor.patch before it's accepted as a release identifier.
func normalizeSemver(major, minor, patch uint64) error {
	_, err := semver.Make(fmt.Sprintf("%d.%d.%d", major, minor, patch))
	return err
}

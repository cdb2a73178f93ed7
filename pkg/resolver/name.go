package resolver

import (
	"fmt"
	"strings"
)

// PackageName is an interned, lowercase-normalized "vendor/name" string.
// It is immutable after construction; equality, hashing (as a map key)
// and ordering all derive from the full normalized string.
type PackageName struct {
	full string
	sep  int
}

// NewPackageName builds a PackageName from already-split vendor/name
// parts, lowercasing both.
func NewPackageName(vendor, name string) (PackageName, error) {
	if vendor == "" {
		return PackageName{}, fmt.Errorf("package name: vendor cannot be empty")
	}
	if name == "" {
		return PackageName{}, fmt.Errorf("package name: name cannot be empty")
	}
	vendor = strings.ToLower(vendor)
	name = strings.ToLower(name)
	return PackageName{full: vendor + "/" + name, sep: len(vendor)}, nil
}

// ParsePackageName parses "vendor/name" into a PackageName, normalizing
// case. Returns an error if there isn't exactly one "/" with non-empty
// parts on both sides. Platform package names (php, ext-*, lib-*, hhvm,
// composer-plugin-api, composer-runtime-api) are the one exception: they
// carry no vendor segment at all, so they're accepted unsplit with
// sep=len(s) and Vendor() returning the whole name.
func ParsePackageName(s string) (PackageName, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if IsPlatformPackageName(s) {
		return PackageName{full: s, sep: len(s)}, nil
	}
	idx := strings.IndexByte(s, '/')
	if idx <= 0 || idx == len(s)-1 {
		return PackageName{}, fmt.Errorf("invalid package name: %q", s)
	}
	if strings.IndexByte(s[idx+1:], '/') >= 0 {
		return PackageName{}, fmt.Errorf("invalid package name: %q", s)
	}
	return PackageName{full: s, sep: idx}, nil
}

// Vendor returns the vendor segment, or the whole name for a platform
// package (which has no vendor segment).
func (p PackageName) Vendor() string { return p.full[:p.sep] }

// Name returns the name segment, or "" for a platform package.
func (p PackageName) Name() string {
	if p.sep >= len(p.full) {
		return ""
	}
	return p.full[p.sep+1:]
}

// String returns the canonical "vendor/name" form.
func (p PackageName) String() string { return p.full }

// IsPlatform reports whether this name denotes a platform package (php,
// ext-*, lib-*, hhvm, composer-plugin-api, composer-runtime-api) that the
// resolver never fetches from a registry.
func (p PackageName) IsPlatform() bool {
	return IsPlatformPackageName(p.full)
}

// IsPlatformPackageName is the raw-string form of PackageName.IsPlatform,
// usable before a name has been validated as vendor/name (platform names
// like "php" are not vendor/name shaped at all).
func IsPlatformPackageName(name string) bool {
	name = strings.ToLower(name)
	switch name {
	case "php", "hhvm", "composer-plugin-api", "composer-runtime-api":
		return true
	}
	return strings.HasPrefix(name, "ext-") || strings.HasPrefix(name, "lib-")
}

package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureFetcher serves PackageEntry values from an in-memory map, the
// way the resolver is exercised against a recorded Packagist response in
// tests instead of hitting the network.
type fixtureFetcher struct {
	entries map[string]PackageEntry
}

func (f *fixtureFetcher) Fetch(_ context.Context, name PackageName) (PackageEntry, error) {
	e, ok := f.entries[name.String()]
	if !ok {
		return PackageEntry{}, fmt.Errorf("no fixture for %s", name)
	}
	return e, nil
}

func pkgVersion(t *testing.T, name, version string, requires ...Dependency) PackageVersion {
	t.Helper()
	n, err := ParsePackageName(name)
	require.NoError(t, err)
	v, err := ParseVersion(version)
	require.NoError(t, err)
	return PackageVersion{Name: n, Version: v, Stability: v.Stability, Require: requires}
}

func dep(t *testing.T, name, constraint string) Dependency {
	t.Helper()
	n, err := ParsePackageName(name)
	require.NoError(t, err)
	c, err := ParseConstraint(constraint)
	require.NoError(t, err)
	return Dependency{Name: n, Constraint: c}
}

// Scenario A: a simple two-level dependency chain resolves to the
// highest version of each package satisfying every constraint in the
// chain.
func TestResolveSimpleChain(t *testing.T) {
	fetcher := &fixtureFetcher{entries: map[string]PackageEntry{
		"acme/app": {Versions: []PackageVersion{
			pkgVersion(t, "acme/app", "1.0.0", dep(t, "acme/lib", "^1.0")),
		}},
		"acme/lib": {Versions: []PackageVersion{
			pkgVersion(t, "acme/lib", "1.0.0"),
			pkgVersion(t, "acme/lib", "1.2.0"),
			pkgVersion(t, "acme/lib", "2.0.0"),
		}},
	}}

	r := NewResolver(fetcher, AlwaysSatisfied{})
	res, err := r.Resolve(context.Background(), []Dependency{dep(t, "acme/app", "^1.0")})
	require.NoError(t, err)

	app := res.Packages["acme/app"]
	lib := res.Packages["acme/lib"]
	assert.Equal(t, "1.0.0", app.Version.String())
	assert.Equal(t, "1.2.0", lib.Version.String())
}

// Scenario B: a conflicting pair of transitive requirements (two
// packages each pin a mutually-exclusive version of a shared dependency)
// has no solution.
func TestResolveConflictingTransitiveRequirement(t *testing.T) {
	fetcher := &fixtureFetcher{entries: map[string]PackageEntry{
		"acme/app": {Versions: []PackageVersion{
			pkgVersion(t, "acme/app", "1.0.0",
				dep(t, "acme/a", "^1.0"),
				dep(t, "acme/b", "^1.0"),
			),
		}},
		"acme/a": {Versions: []PackageVersion{
			pkgVersion(t, "acme/a", "1.0.0", dep(t, "acme/shared", "^1.0")),
		}},
		"acme/b": {Versions: []PackageVersion{
			pkgVersion(t, "acme/b", "1.0.0", dep(t, "acme/shared", "^2.0")),
		}},
		"acme/shared": {Versions: []PackageVersion{
			pkgVersion(t, "acme/shared", "1.5.0"),
			pkgVersion(t, "acme/shared", "2.5.0"),
		}},
	}}

	r := NewResolver(fetcher, AlwaysSatisfied{})
	_, err := r.Resolve(context.Background(), []Dependency{dep(t, "acme/app", "^1.0")})
	require.Error(t, err)
}

func TestResolveBacktracksAcrossCandidates(t *testing.T) {
	// acme/app accepts any acme/lib; acme/other pins acme/lib to ~1.5, so
	// only 1.5.0 is compatible. 2.0.0 is tried first under SelectLatest
	// and must be rejected in favor of 1.5.0.
	fetcher := &fixtureFetcher{entries: map[string]PackageEntry{
		"acme/app": {Versions: []PackageVersion{
			pkgVersion(t, "acme/app", "1.0.0",
				dep(t, "acme/lib", "*"),
				dep(t, "acme/other", "^1.0"),
			),
		}},
		"acme/lib": {Versions: []PackageVersion{
			pkgVersion(t, "acme/lib", "1.5.0"),
			pkgVersion(t, "acme/lib", "2.0.0"),
		}},
		"acme/other": {Versions: []PackageVersion{
			pkgVersion(t, "acme/other", "1.0.0", dep(t, "acme/lib", "~1.5")),
		}},
	}}

	r := NewResolver(fetcher, AlwaysSatisfied{})
	r.Mode = SelectLatest
	res, err := r.Resolve(context.Background(), []Dependency{dep(t, "acme/app", "^1.0")})
	require.NoError(t, err)
	assert.Equal(t, "1.5.0", res.Packages["acme/lib"].Version.String())
}

func TestResolvePlatformGate(t *testing.T) {
	fetcher := &fixtureFetcher{entries: map[string]PackageEntry{
		"acme/app": {Versions: []PackageVersion{
			pkgVersion(t, "acme/app", "1.0.0", dep(t, "php", ">=8.0")),
		}},
	}}
	platform, err := NewStaticPlatform(map[string]string{"php": "8.2.10"})
	require.NoError(t, err)

	r := NewResolver(fetcher, platform)
	res, err := r.Resolve(context.Background(), []Dependency{dep(t, "acme/app", "^1.0")})
	require.NoError(t, err)
	_, hasPHP := res.Packages["php"]
	assert.False(t, hasPHP, "platform packages must not appear in the resolved set")
}

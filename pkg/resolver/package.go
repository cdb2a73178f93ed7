package resolver

import "sort"

// Dependency is a single "vendor/name: constraint" edge, as found in a
// package's require/require-dev/conflict/replace/provide list.
type Dependency struct {
	Name       PackageName
	Constraint ComposerConstraint
}

// Source describes where a package version's code comes from; the full
// tagged-union definition (Dist/Git/Hg/Svn/Path) lives in pkg/source, but
// the resolver only needs to carry the identifying URL/type/reference it
// was told about by the registry, so it keeps its own light copy here to
// avoid an import cycle between resolver and source.
type Source struct {
	DistURL    string
	DistType   string // "zip", "tar", ...
	DistShasum string

	SourceURL       string
	SourceType      string // "git", "svn", "hg"
	SourceReference string
}

// PackageVersion is one resolvable version of a package: its identity,
// its dependency edges, and enough metadata to drive the lockfile and
// the autoloader once installed.
type PackageVersion struct {
	Name    PackageName
	Version ComposerVersion

	Require     []Dependency
	RequireDev  []Dependency
	Replace     []Dependency
	Provide     []Dependency
	Conflict    []Dependency
	Suggest     []Dependency

	Stability Stability
	Source    Source

	PackageType  string // "library", "composer-plugin", "metapackage", ...
	Description  string
	Homepage     string
	License      []string
	Keywords     []string
	Autoload     map[string]any
	AutoloadDev  map[string]any
	Extra        map[string]any
	Bin          []string
}

// PackageEntry is the full set of versions known for one package name, as
// returned by a registry lookup.
type PackageEntry struct {
	Name     PackageName
	Versions []PackageVersion
}

// SortVersionsDescending orders Versions from newest to oldest using
// ComposerVersion.Compare, matching Composer's own "always consider the
// highest version first" traversal order.
func (e *PackageEntry) SortVersionsDescending() {
	sort.Slice(e.Versions, func(i, j int) bool {
		return e.Versions[j].Version.Less(e.Versions[i].Version)
	})
}

// MatchingVersions returns every version satisfying c, in the order of
// e.Versions (descending once SortVersionsDescending has been called); it
// does not sort.
func (e *PackageEntry) MatchingVersions(c ComposerConstraint) []PackageVersion {
	var out []PackageVersion
	for _, v := range e.Versions {
		if c.Matches(v.Version) {
			out = append(out, v)
		}
	}
	return out
}

// HighestMatching returns the newest version satisfying c, or false if
// none does.
func (e *PackageEntry) HighestMatching(c ComposerConstraint) (PackageVersion, bool) {
	best := PackageVersion{}
	found := false
	for _, v := range e.Versions {
		if !c.Matches(v.Version) {
			continue
		}
		if !found || best.Version.Less(v.Version) {
			best = v
			found = true
		}
	}
	return best, found
}

// LowestMatching returns the oldest version satisfying c, or false if
// none does.
func (e *PackageEntry) LowestMatching(c ComposerConstraint) (PackageVersion, bool) {
	best := PackageVersion{}
	found := false
	for _, v := range e.Versions {
		if !c.Matches(v.Version) {
			continue
		}
		if !found || v.Version.Less(best.Version) {
			best = v
			found = true
		}
	}
	return best, found
}

package resolver

// PlatformProvider reports the platform capabilities the resolver should
// treat as always-satisfied: the running PHP version, loaded extensions,
// available libraries, and the runtime the install is targeting (PHP vs
// HHVM). The resolver never attempts to fetch or install a platform
// package; it only checks whether one is "provided" by the environment.
type PlatformProvider interface {
	// Satisfies reports whether dep is satisfied by this platform, given
	// that dep.Name.IsPlatform() is true.
	Satisfies(dep Dependency) bool
}

// StaticPlatform is a PlatformProvider backed by a fixed snapshot, the
// way an install pins php/ext-*/lib-* versions at the start of a run
// (composer.lock's "platform" + "platform-dev" sections) instead of
// re-querying the runtime mid-resolve.
type StaticPlatform struct {
	versions map[string]ComposerVersion
}

// NewStaticPlatform builds a platform snapshot from a name->version map,
// e.g. {"php": "8.2.10", "ext-json": "8.2.10", "composer-runtime-api": "2.2.2"}.
func NewStaticPlatform(versions map[string]string) (*StaticPlatform, error) {
	parsed := make(map[string]ComposerVersion, len(versions))
	for name, raw := range versions {
		v, err := ParseVersion(raw)
		if err != nil {
			return nil, err
		}
		parsed[name] = v
	}
	return &StaticPlatform{versions: parsed}, nil
}

// Satisfies implements PlatformProvider.
func (p *StaticPlatform) Satisfies(dep Dependency) bool {
	v, ok := p.versions[dep.Name.String()]
	if !ok {
		return false
	}
	return dep.Constraint.Matches(v)
}

// AlwaysSatisfied is a PlatformProvider that accepts every platform
// dependency unconditionally; used when platform checking has been
// explicitly disabled (composer's "platform: {ignore: true}" equivalent).
type AlwaysSatisfied struct{}

// Satisfies implements PlatformProvider.
func (AlwaysSatisfied) Satisfies(Dependency) bool { return true }

package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/libretto-pm/libretto-sub002/pkg/pipelineerr"
)

// SelectionMode controls how the resolver orders candidates within a
// single package's matching-version set before trying them.
type SelectionMode int

const (
	// SelectLatest orders candidates that clear MinStability by stability,
	// then version, both descending (the same order SelectPreferStable
	// uses).
	SelectLatest SelectionMode = iota
	// SelectPreferStable tries stable versions before any RC/beta/alpha
	// candidate that also satisfies the constraint.
	SelectPreferStable
	// SelectPreferLowest tries the oldest matching version first
	// (composer's --prefer-lowest, used by test matrices pinning the
	// floor of a dependency range).
	SelectPreferLowest
)

// Resolver runs the backtracking search over a dependency graph fetched
// from a PackageFetcher, respecting replace/provide/conflict edges and
// platform gates.
type Resolver struct {
	Fetcher      PackageFetcher
	Platform     PlatformProvider
	Mode         SelectionMode
	MinStability Stability
}

// NewResolver builds a Resolver with the given fetcher and platform
// provider, defaulting to SelectPreferStable at StabilityStable (the
// values Composer itself defaults composer.json to when unspecified).
func NewResolver(fetcher PackageFetcher, platform PlatformProvider) *Resolver {
	return &Resolver{
		Fetcher:      fetcher,
		Platform:     platform,
		Mode:         SelectPreferStable,
		MinStability: StabilityStable,
	}
}

// Resolution is the final, flattened output of a successful resolve: one
// chosen PackageVersion per non-platform package name.
type Resolution struct {
	Packages map[string]PackageVersion
}

// Ordered returns the resolved packages sorted by name, the order a
// lockfile or install plan renders them in.
func (r Resolution) Ordered() []PackageVersion {
	out := make([]PackageVersion, 0, len(r.Packages))
	for _, v := range r.Packages {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name.String() < out[j].Name.String() })
	return out
}

// decision records one tentative assignment for diagnostic trailing; the
// undo itself happens via the recursive call stack (assigning into the
// shared map and deleting on backtrack), matching the "decision stack +
// undo log" shape from the design while avoiding a full map copy per
// branch.
type decision struct {
	name      string
	candidate ComposerVersion
}

// Resolve runs the backtracking search starting from rootRequires (the
// top-level composer.json "require" + "require-dev" edges, already
// merged by the caller). It returns the first depth-first solution found
// under the configured SelectionMode, or a *pipelineerr.Error of Kind
// KindResolution describing why no solution exists.
func (r *Resolver) Resolve(ctx context.Context, rootRequires []Dependency) (Resolution, error) {
	assigned := make(map[string]PackageVersion)
	var trail []decision

	ok, err := r.resolveQueue(ctx, rootRequires, assigned, &trail)
	if err != nil {
		return Resolution{}, err
	}
	if !ok {
		return Resolution{}, pipelineerr.New(pipelineerr.KindResolution, "resolve", failureSummary(trail, rootRequires))
	}

	// Platform packages never enter `assigned`; drop them is a no-op here
	// since resolveQueue only assigns non-platform names.
	return Resolution{Packages: assigned}, nil
}

func (r *Resolver) resolveQueue(ctx context.Context, queue []Dependency, assigned map[string]PackageVersion, trail *[]decision) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, pipelineerr.Wrap(pipelineerr.KindCancelled, "resolve", err)
	}
	if len(queue) == 0 {
		return true, nil
	}

	dep := queue[0]
	rest := queue[1:]

	if dep.Name.IsPlatform() {
		if !r.Platform.Satisfies(dep) {
			return false, nil
		}
		return r.resolveQueue(ctx, rest, assigned, trail)
	}

	key := dep.Name.String()
	if existing, ok := assigned[key]; ok {
		if dep.Constraint.Matches(existing.Version) || providesSatisfies(existing, dep) {
			return r.resolveQueue(ctx, rest, assigned, trail)
		}
		return false, nil
	}

	entry, err := r.Fetcher.Fetch(ctx, dep.Name)
	if err != nil {
		return false, pipelineerr.Wrap(pipelineerr.KindResolution, "fetch:"+key, err)
	}

	candidates := r.orderedCandidates(entry, dep)
	if len(candidates) == 0 {
		return false, nil
	}

	for _, cand := range candidates {
		if conflictsWithAssigned(cand, assigned) || replacedConflictsWithAssigned(cand, assigned) {
			continue
		}

		assigned[key] = cand
		*trail = append(*trail, decision{name: key, candidate: cand.Version})

		newQueue := make([]Dependency, 0, len(rest)+len(cand.Require))
		newQueue = append(newQueue, rest...)
		newQueue = append(newQueue, cand.Require...)

		ok, err := r.resolveQueue(ctx, newQueue, assigned, trail)
		if err != nil {
			delete(assigned, key)
			*trail = (*trail)[:len(*trail)-1]
			return false, err
		}
		if ok {
			return true, nil
		}

		delete(assigned, key)
		*trail = (*trail)[:len(*trail)-1]
	}

	return false, nil
}

// orderedCandidates filters entry's versions to those matching dep's
// constraint and at or above MinStability (dev-targeted constraints
// bypass the stability floor: a branch reference is always exactly one
// candidate), then orders them per Mode.
func (r *Resolver) orderedCandidates(entry PackageEntry, dep Dependency) []PackageVersion {
	matches := entry.MatchingVersions(dep.Constraint)

	filtered := matches[:0:0]
	for _, v := range matches {
		if v.Version.IsDev || v.Stability >= r.MinStability {
			filtered = append(filtered, v)
		}
	}

	out := make([]PackageVersion, len(filtered))
	copy(out, filtered)

	switch r.Mode {
	case SelectPreferLowest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Version.Less(out[j].Version) })
	default: // SelectPreferStable, SelectLatest
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Stability != out[j].Stability {
				return out[i].Stability > out[j].Stability
			}
			return out[j].Version.Less(out[i].Version)
		})
	}
	return out
}

// providesSatisfies reports whether an already-assigned package's
// replace/provide declarations cover dep, letting e.g. "psr/log-implementation"
// be satisfied by whatever logger happens to be installed.
func providesSatisfies(existing PackageVersion, dep Dependency) bool {
	for _, p := range existing.Provide {
		if p.Name == dep.Name && (p.Constraint.raw == "*" || dep.Constraint.Matches(versionFromConstraintHint(p))) {
			return true
		}
	}
	for _, p := range existing.Replace {
		if p.Name == dep.Name {
			return true
		}
	}
	return false
}

// versionFromConstraintHint extracts a representative version out of a
// provide/replace declaration's own constraint, since provide edges
// declare "what version range I provide" rather than a single version;
// the resolver treats the provided range's lower bound (its first "=" or
// ">=" atom) as the version to test the dependent's constraint against.
// A "*" provide never reaches this: providesSatisfies accepts it for any
// constraint.
func versionFromConstraintHint(p Dependency) ComposerVersion {
	for _, clause := range p.Constraint.clauses {
		for _, atom := range clause {
			if atom.op == "=" || atom.op == ">=" {
				return atom.ver
			}
		}
	}
	return ComposerVersion{}
}

func conflictsWithAssigned(cand PackageVersion, assigned map[string]PackageVersion) bool {
	for _, c := range cand.Conflict {
		if other, ok := assigned[c.Name.String()]; ok && c.Constraint.Matches(other.Version) {
			return true
		}
	}
	return false
}

// replacedConflictsWithAssigned checks the reverse direction: does any
// already-assigned package declare a conflict against cand?
func replacedConflictsWithAssigned(cand PackageVersion, assigned map[string]PackageVersion) bool {
	for _, other := range assigned {
		for _, c := range other.Conflict {
			if c.Name == cand.Name && c.Constraint.Matches(cand.Version) {
				return true
			}
		}
	}
	return false
}

func failureSummary(trail []decision, roots []Dependency) string {
	if len(trail) == 0 {
		return fmt.Sprintf("no solution satisfying %d root requirement(s)", len(roots))
	}
	last := trail[len(trail)-1]
	return fmt.Sprintf("could not satisfy requirements after assigning %s %s (and %d prior decision(s))",
		last.name, last.candidate.String(), len(trail)-1)
}

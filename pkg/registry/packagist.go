// Package registry fetches package metadata from a Composer-compatible
// repository (Packagist's own "p2" metadata endpoint being the
// canonical example) and adapts its JSON shape into the resolver's
// PackageEntry/PackageVersion types — the Go equivalent of the teacher's
// ComposerPackage/composerVersion/composerDist emulation, read the other
// direction (consuming a real registry instead of emulating one).
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/libretto-pm/libretto-sub002/pkg/httpclient"
	"github.com/libretto-pm/libretto-sub002/pkg/pipelineerr"
	"github.com/libretto-pm/libretto-sub002/pkg/resolver"
)

// composerVersion mirrors the teacher's composerVersion JSON shape, this
// time as the registry's wire format being decoded rather than encoded.
type composerVersion struct {
	Name       string                 `json:"name"`
	Type       string                 `json:"type,omitempty"`
	Version    string                 `json:"version"`
	Require    map[string]string      `json:"require,omitempty"`
	RequireDev map[string]string      `json:"require-dev,omitempty"`
	Replace    map[string]string      `json:"replace,omitempty"`
	Provide    map[string]string      `json:"provide,omitempty"`
	Conflict   map[string]string      `json:"conflict,omitempty"`
	Suggest    map[string]string      `json:"suggest,omitempty"`
	Autoload   map[string]any         `json:"autoload,omitempty"`
	Extra      map[string]any         `json:"extra,omitempty"`
	Bin        []string               `json:"bin,omitempty"`
	Homepage   string                 `json:"homepage,omitempty"`
	Desc       string                 `json:"description,omitempty"`
	License    json.RawMessage        `json:"license,omitempty"`
	Keywords   []string               `json:"keywords,omitempty"`
	Dist       composerDist           `json:"dist"`
	Source     composerSource         `json:"source"`
}

type composerDist struct {
	URL       string `json:"url"`
	Type      string `json:"type"`
	Shasum    string `json:"shasum"`
	Reference string `json:"reference"`
}

type composerSource struct {
	URL       string `json:"url"`
	Type      string `json:"type"`
	Reference string `json:"reference"`
}

// p2Response is the shape of Packagist's {base}/p2/{vendor}/{name}.json
// endpoint: a map from the full package name to its list of versions.
type p2Response struct {
	Packages map[string][]composerVersion `json:"packages"`
}

// PackagistFetcher implements resolver.PackageFetcher against a single
// Composer-compatible repository base URL.
type PackagistFetcher struct {
	client  *httpclient.Client
	baseURL string
}

// NewPackagistFetcher builds a fetcher against baseURL (e.g.
// "https://repo.packagist.org").
func NewPackagistFetcher(client *httpclient.Client, baseURL string) *PackagistFetcher {
	return &PackagistFetcher{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Fetch retrieves and decodes the p2 metadata file for name.
func (f *PackagistFetcher) Fetch(ctx context.Context, name resolver.PackageName) (resolver.PackageEntry, error) {
	url := fmt.Sprintf("%s/p2/%s.json", f.baseURL, name.String())

	resp, err := f.client.Get(ctx, url)
	if err != nil {
		return resolver.PackageEntry{}, pipelineerr.Wrap(pipelineerr.KindNetwork, "registry.fetch", err)
	}

	var decoded p2Response
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return resolver.PackageEntry{}, pipelineerr.Wrap(pipelineerr.KindConfig, "registry.decode", err)
	}

	raw, ok := decoded.Packages[name.String()]
	if !ok {
		return resolver.PackageEntry{}, pipelineerr.New(pipelineerr.KindResolution, "registry.fetch", "no versions for "+name.String())
	}

	entry := resolver.PackageEntry{Name: name}
	for _, cv := range raw {
		pv, err := adaptVersion(name, cv)
		if err != nil {
			continue // a single malformed version shouldn't sink the whole package
		}
		entry.Versions = append(entry.Versions, pv)
	}
	entry.SortVersionsDescending()
	return entry, nil
}

func adaptVersion(name resolver.PackageName, cv composerVersion) (resolver.PackageVersion, error) {
	version, err := resolver.ParseVersion(cv.Version)
	if err != nil {
		return resolver.PackageVersion{}, err
	}

	pv := resolver.PackageVersion{
		Name:        name,
		Version:     version,
		Stability:   stabilityOf(version, cv.Version),
		PackageType: cv.Type,
		Description: cv.Desc,
		Homepage:    cv.Homepage,
		Keywords:    cv.Keywords,
		Autoload:    cv.Autoload,
		Extra:       cv.Extra,
		Bin:         cv.Bin,
		Source: resolver.Source{
			DistURL:         cv.Dist.URL,
			DistType:        cv.Dist.Type,
			DistShasum:      cv.Dist.Shasum,
			SourceURL:       cv.Source.URL,
			SourceType:      cv.Source.Type,
			SourceReference: cv.Source.Reference,
		},
	}

	pv.Require = adaptDeps(cv.Require)
	pv.RequireDev = adaptDeps(cv.RequireDev)
	pv.Replace = adaptDeps(cv.Replace)
	pv.Provide = adaptDeps(cv.Provide)
	pv.Conflict = adaptDeps(cv.Conflict)
	pv.Suggest = adaptDeps(cv.Suggest)

	if len(cv.License) > 0 {
		pv.License = decodeLicense(cv.License)
	}

	return pv, nil
}

func adaptDeps(m map[string]string) []resolver.Dependency {
	if len(m) == 0 {
		return nil
	}
	out := make([]resolver.Dependency, 0, len(m))
	for raw, constraintStr := range m {
		name, err := resolver.ParsePackageName(raw)
		if err != nil {
			// platform requirements (php, ext-*, lib-*) aren't vendor/name
			// shaped; ParsePackageName still accepts them via IsPlatform,
			// so a real error here means a genuinely malformed entry.
			continue
		}
		constraint, err := resolver.ParseConstraint(constraintStr)
		if err != nil {
			continue
		}
		out = append(out, resolver.Dependency{Name: name, Constraint: constraint})
	}
	return out
}

func stabilityOf(v resolver.ComposerVersion, raw string) resolver.Stability {
	if v.IsDev {
		return resolver.StabilityDev
	}
	if tag, ok := extractStabilityTag(raw); ok {
		if s, ok := resolver.ParseStability(tag); ok {
			return s
		}
	}
	return resolver.StabilityStable
}

func extractStabilityTag(raw string) (string, bool) {
	lower := strings.ToLower(raw)
	for _, tag := range []string{"alpha", "beta", "rc", "dev"} {
		if idx := strings.LastIndex(lower, tag); idx >= 0 {
			return tag, true
		}
	}
	return "", false
}

// decodeLicense accepts either a single JSON string or an array of
// strings, matching Composer's own flexible "license" field.
func decodeLicense(raw json.RawMessage) []string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

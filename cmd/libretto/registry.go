package main

import (
	"fmt"
	"strings"

	"github.com/libretto-pm/libretto-sub002/internal/config"
	"github.com/libretto-pm/libretto-sub002/pkg/credential"
	"github.com/libretto-pm/libretto-sub002/pkg/httpclient"
	"github.com/libretto-pm/libretto-sub002/pkg/registry"
	"github.com/libretto-pm/libretto-sub002/pkg/resolver"
)

// defaultRepository is Packagist's own metadata endpoint, the implicit
// repository every composer.json gets unless it overrides "repositories".
const defaultRepository = "https://repo.packagist.org"

// parseRequireArgs turns "vendor/name:constraint" CLI arguments into root
// Dependency edges.
func parseRequireArgs(args []string) ([]resolver.Dependency, error) {
	out := make([]resolver.Dependency, 0, len(args))
	for _, arg := range args {
		idx := strings.LastIndex(arg, ":")
		if idx < 0 {
			return nil, fmt.Errorf("invalid requirement %q, expected vendor/name:constraint", arg)
		}
		name, err := resolver.ParsePackageName(arg[:idx])
		if err != nil {
			return nil, err
		}
		constraint, err := resolver.ParseConstraint(arg[idx+1:])
		if err != nil {
			return nil, err
		}
		out = append(out, resolver.Dependency{Name: name, Constraint: constraint})
	}
	return out, nil
}

// buildFetcherAndPlatform wires a memoized Packagist-metadata fetcher and
// a static platform snapshot (fixed php, composer-runtime-api and
// composer-plugin-api versions; the running system is not inspected) for
// the resolver to consult.
func buildFetcherAndPlatform(cfg config.Config) (resolver.PackageFetcher, resolver.PlatformProvider, error) {
	creds := credential.NewTable()
	if cfg.GitHubToken != "" {
		creds.Set("api.github.com", credential.Auth{Scheme: credential.SchemeGitHubToken, Token: cfg.GitHubToken})
	}
	client := httpclient.New(httpclient.DefaultConfig(), creds)

	base := registry.NewPackagistFetcher(client, defaultRepository)
	memoized := resolver.NewMemoizedFetcher(base, int64(maxInt(cfg.MaxConcurrentDownloads, 4)))

	platform, err := resolver.NewStaticPlatform(map[string]string{
		"php":                  "8.3.0",
		"composer-runtime-api": "2.2.2",
		"composer-plugin-api":  "2.6.0",
	})
	if err != nil {
		return nil, nil, err
	}
	return memoized, platform, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

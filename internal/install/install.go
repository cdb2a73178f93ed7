// Package install wires the resolver, cache, downloader, scanner, and
// autoloader into the single control-flow an "install" actually runs:
// resolve the dependency graph, fetch and verify every package's code,
// unpack it into vendor/, then regenerate the autoloader.
package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/libretto-pm/libretto-sub002/internal/config"
	"github.com/libretto-pm/libretto-sub002/pkg/autoloader"
	"github.com/libretto-pm/libretto-sub002/pkg/cache"
	"github.com/libretto-pm/libretto-sub002/pkg/credential"
	"github.com/libretto-pm/libretto-sub002/pkg/downloader"
	"github.com/libretto-pm/libretto-sub002/pkg/httpclient"
	"github.com/libretto-pm/libretto-sub002/pkg/pipelineerr"
	"github.com/libretto-pm/libretto-sub002/pkg/resolver"
	"github.com/libretto-pm/libretto-sub002/pkg/source"
)

// Installer owns every long-lived component an install run needs.
type Installer struct {
	cfg     config.Config
	cache   *cache.TieredCache
	client  *httpclient.Client
	manager *downloader.Manager
	sink    Sink
}

// Sink receives progress updates during an install; nil means silent.
type Sink interface {
	Resolved(count int)
	downloader.ProgressSink
	AutoloadGenerated(classCount int)
}

// NoopSink discards every event.
type NoopSink struct{ downloader.NoopSink }

func (NoopSink) Resolved(int)            {}
func (NoopSink) AutoloadGenerated(int)    {}

// New builds an Installer from cfg, opening the tiered cache and wiring
// credentials into the shared HTTP client.
func New(cfg config.Config, sink Sink) (*Installer, error) {
	if sink == nil {
		sink = NoopSink{}
	}

	cacheCfg := cache.DefaultConfig(cfg.CacheDir)
	tc, err := cache.Open(cacheCfg)
	if err != nil {
		return nil, err
	}

	creds := credential.NewTable()
	if cfg.GitHubToken != "" {
		creds.Set("api.github.com", credential.Auth{Scheme: credential.SchemeGitHubToken, Token: cfg.GitHubToken})
	}
	if cfg.GitLabToken != "" && cfg.GitLabHost != "" {
		creds.Set(cfg.GitLabHost, credential.Auth{Scheme: credential.SchemeGitLabPrivateToken, Token: cfg.GitLabToken})
	}

	httpCfg := httpclient.DefaultConfig()
	client := httpclient.New(httpCfg, creds)

	var throttle *downloader.BandwidthThrottler
	if cfg.BandwidthLimitBytesPerSec > 0 {
		throttle = downloader.NewBandwidthThrottler(cfg.BandwidthLimitBytesPerSec)
	}
	stream := downloader.NewStreamDownloader(client, throttle)

	batchOpts := downloader.DefaultBatchOptions()
	if cfg.MaxConcurrentDownloads > 0 {
		batchOpts.MaxConcurrent = int64(cfg.MaxConcurrentDownloads)
	}
	if cfg.MaxPerHostDownloads > 0 {
		batchOpts.MaxPerHost = int64(cfg.MaxPerHostDownloads)
	}
	batchOpts.Sink = sink
	manager := downloader.NewManager(stream, batchOpts)

	return &Installer{cfg: cfg, cache: tc, client: client, manager: manager, sink: sink}, nil
}

// Plan is the outcome of resolution, ready to be fetched.
type Plan struct {
	Resolution resolver.Resolution
}

// Resolve runs the backtracking resolver over rootRequires using fetcher
// for registry lookups and platform for platform-package gating.
func (in *Installer) Resolve(ctx context.Context, fetcher resolver.PackageFetcher, platform resolver.PlatformProvider, rootRequires []resolver.Dependency) (Plan, error) {
	r := resolver.NewResolver(fetcher, platform)
	if minStability, ok := resolver.ParseStability(in.cfg.MinStability); ok {
		r.MinStability = minStability
	}

	res, err := r.Resolve(ctx, rootRequires)
	if err != nil {
		return Plan{}, err
	}
	in.sink.Resolved(len(res.Packages))
	return Plan{Resolution: res}, nil
}

// Fetch downloads and extracts every package in plan into
// cfg.VendorDir/<vendor>/<name>, using the downloader's batch Manager for
// dist archives and its VCS handlers for source installs. Dist archives
// are downloaded on every call; the tiered cache is not consulted.
func (in *Installer) Fetch(ctx context.Context, plan Plan) error {
	versions := plan.Resolution.Ordered()

	var distJobs []source.Spec
	var distTypes []string

	for _, v := range versions {
		if v.Source.DistURL != "" {
			distJobs = append(distJobs, source.Spec{
				PackageName: v.Name.String(),
				Version:     v.Version.String(),
				Primary: source.Source{
					Kind:     source.KindDist,
					DistURL:  v.Source.DistURL,
					Checksum: v.Source.DistShasum,
				},
			})
			distTypes = append(distTypes, v.Source.DistType)
			continue
		}

		dest := filepath.Join(in.cfg.VendorDir, v.Name.Vendor(), v.Name.Name())
		if err := in.fetchVCS(ctx, v, dest); err != nil {
			return err
		}
	}

	if len(distJobs) == 0 {
		return nil
	}

	results, errs := in.manager.FetchAll(ctx, distJobs, os.TempDir())
	for i, job := range distJobs {
		if errs[i] != nil {
			return pipelineerr.Wrap(pipelineerr.KindNetwork, "install.fetch", errs[i])
		}
		res := results[i]
		if res == nil {
			continue
		}
		dest := vendorDestForJob(in.cfg.VendorDir, job)
		// The downloaded file is named after the job ID, which carries no
		// extension; Extract picks the format from the file name.
		archivePath := res.Path + "." + distTypes[i]
		if err := os.Rename(res.Path, archivePath); err != nil {
			return pipelineerr.Wrap(pipelineerr.KindIO, "install.fetch", err)
		}
		if _, err := downloader.Extract(archivePath, dest, downloader.ExtractOptions{StripPrefix: 1}); err != nil {
			return err
		}
	}
	return nil
}

func vendorDestForJob(vendorDir string, job source.Spec) string {
	parts := splitVendorName(job.PackageName)
	return filepath.Join(vendorDir, parts[0], parts[1])
}

func splitVendorName(name string) [2]string {
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			return [2]string{name[:i], name[i+1:]}
		}
	}
	return [2]string{name, name}
}

func (in *Installer) fetchVCS(ctx context.Context, v resolver.PackageVersion, dest string) error {
	ref := source.ParseVcsRef(v.Source.SourceReference)
	switch v.Source.SourceType {
	case "git":
		h := downloader.NewGitHandler()
		_, err := h.Clone(ctx, v.Source.SourceURL, dest, ref)
		return err
	case "svn":
		h := downloader.SvnHandler{}
		_, err := h.Checkout(ctx, v.Source.SourceURL, dest, ref.Value)
		return err
	case "hg":
		h := downloader.HgHandler{}
		_, err := h.Clone(ctx, v.Source.SourceURL, dest, ref.Value)
		return err
	}
	return pipelineerr.New(pipelineerr.KindConfig, "install.fetch", "package "+v.Name.String()+" has no dist or source")
}


// GenerateAutoloader assembles and emits the vendor autoloader from
// every installed package's autoload declaration.
func (in *Installer) GenerateAutoloader(plan Plan) error {
	level := autoloader.None
	if in.cfg.ClassmapAuthoritative {
		level = autoloader.Authoritative
	} else if in.cfg.OptimizeAutoloader {
		level = autoloader.Optimized
	}

	gen := autoloader.NewGenerator(in.cfg.VendorDir, level)
	for _, v := range plan.Resolution.Ordered() {
		root := filepath.Join(in.cfg.VendorDir, v.Name.Vendor(), v.Name.Name())
		gen.AddPackage(translateAutoload(root, v.Autoload))
	}

	assembled, err := gen.Assemble()
	if err != nil {
		return err
	}
	if err := gen.Emit(assembled); err != nil {
		return err
	}
	in.sink.AutoloadGenerated(len(assembled.Classmap))
	return nil
}

// translateAutoload converts a composer.json-shaped "autoload" map
// (psr-4/psr-0/classmap/files, string-or-array values) into the
// autoloader package's typed form.
func translateAutoload(root string, raw map[string]any) autoloader.PackageAutoload {
	out := autoloader.PackageAutoload{
		PackageRoot: root,
		PSR4:        map[string][]string{},
		PSR0:        map[string][]string{},
	}
	if raw == nil {
		return out
	}
	if psr4, ok := raw["psr-4"].(map[string]any); ok {
		for prefix, v := range psr4 {
			out.PSR4[prefix] = stringOrSlice(v)
		}
	}
	if psr0, ok := raw["psr-0"].(map[string]any); ok {
		for prefix, v := range psr0 {
			out.PSR0[prefix] = stringOrSlice(v)
		}
	}
	if classmap, ok := raw["classmap"].([]any); ok {
		out.Classmap = toStrings(classmap)
	}
	if files, ok := raw["files"].([]any); ok {
		out.Files = toStrings(files)
	}
	if exclude, ok := raw["exclude-from-classmap"].([]any); ok {
		out.Exclude = toStrings(exclude)
	}
	return out
}

func stringOrSlice(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		return toStrings(t)
	}
	return nil
}

func toStrings(in []any) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Run executes resolve -> fetch -> autoload-generate in one call, the
// shape a CLI's install/update command invokes directly.
func (in *Installer) Run(ctx context.Context, fetcher resolver.PackageFetcher, platform resolver.PlatformProvider, rootRequires []resolver.Dependency) error {
	plan, err := in.Resolve(ctx, fetcher, platform, rootRequires)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	if err := in.Fetch(ctx, plan); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := in.GenerateAutoloader(plan); err != nil {
		return fmt.Errorf("autoload: %w", err)
	}
	return nil
}

// Close flushes the tiered cache's index to disk.
func (in *Installer) Close() error {
	return in.cache.Flush()
}

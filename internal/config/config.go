// Package config reads the environment and an optional YAML file to
// build the settings that drive a single install run, in the spirit of
// the teacher's client.go init() which read its own GITLAB_* variables
// with fail-fast validation.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved configuration for one install run.
type Config struct {
	// Home is the root directory for installer state (COMPOSER_HOME
	// equivalent): credentials, default cache location.
	Home string `yaml:"home"`
	// CacheDir is the tiered cache's on-disk root (COMPOSER_CACHE_DIR
	// equivalent).
	CacheDir string `yaml:"cache_dir"`
	// VendorDir is where resolved packages are installed.
	VendorDir string `yaml:"vendor_dir"`
	// MaxConcurrentDownloads bounds the downloader's global semaphore.
	MaxConcurrentDownloads int `yaml:"max_concurrent_downloads"`
	// MaxPerHostDownloads bounds per-host concurrency.
	MaxPerHostDownloads int `yaml:"max_per_host_downloads"`
	// BandwidthLimitBytesPerSec caps aggregate download throughput; 0
	// means unlimited.
	BandwidthLimitBytesPerSec int `yaml:"bandwidth_limit_bytes_per_sec"`
	// MinStability is the lowest acceptable package stability tag
	// ("stable", "rc", "beta", "alpha", "dev").
	MinStability string `yaml:"minimum_stability"`
	// OptimizeAutoloader requests PSR-4/PSR-0-to-classmap flattening.
	OptimizeAutoloader bool `yaml:"optimize_autoloader"`
	// ClassmapAuthoritative additionally disables the PSR-4 fallback.
	ClassmapAuthoritative bool `yaml:"classmap_authoritative"`
	// HTTPProxy/HTTPSProxy/NoProxy record the proxy settings from the
	// config file and the uppercase proxy env vars. They are not passed to
	// pkg/httpclient, which resolves proxies from the environment itself.
	HTTPProxy  string `yaml:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy"`
	NoProxy    string `yaml:"no_proxy"`
	// GitHubToken/GitLabToken, when set, seed the credential table for
	// api.github.com / the configured GitLab host.
	GitHubToken string `yaml:"github_token"`
	GitLabToken string `yaml:"gitlab_token"`
	GitLabHost  string `yaml:"gitlab_host"`
}

// Default returns a Config with the same defaults Composer itself ships:
// a project-local vendor/ directory, cache under the user's home, a
// conservative download concurrency, and "stable" as the minimum
// stability floor.
func Default() Config {
	home := defaultHome()
	return Config{
		Home:                   home,
		CacheDir:               filepath.Join(home, "cache"),
		VendorDir:              "vendor",
		MaxConcurrentDownloads: 8,
		MaxPerHostDownloads:    4,
		MinStability:           "stable",
	}
}

func defaultHome() string {
	if h := os.Getenv("COMPOSER_HOME"); h != "" {
		return h
	}
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".composer")
	}
	return ".composer"
}

// Load builds a Config starting from Default(), applying an optional
// YAML file at path (Home/config.yaml when path is empty; a file that
// cannot be read, including a missing explicit path, is skipped silently
// and only a file that fails to parse is an error), then applying
// environment variable
// overrides — env always wins, matching Composer's own precedence of
// "environment overrides config file."
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.Home, "config.yaml")
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("COMPOSER_HOME"); v != "" {
		cfg.Home = v
	}
	if v := os.Getenv("COMPOSER_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("COMPOSER_VENDOR_DIR"); v != "" {
		cfg.VendorDir = v
	}
	if v := os.Getenv("HTTP_PROXY"); v != "" {
		cfg.HTTPProxy = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.HTTPSProxy = v
	}
	if v := os.Getenv("NO_PROXY"); v != "" {
		cfg.NoProxy = v
	}
	if v := os.Getenv("COMPOSER_MAX_PARALLEL_HTTP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrentDownloads = n
		}
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.GitHubToken = v
	}
	if v := os.Getenv("GITLAB_TOKEN"); v != "" {
		cfg.GitLabToken = v
	}
	if v := os.Getenv("GITLAB_URL"); v != "" {
		cfg.GitLabHost = v
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultUsesComposerHomeForCacheDir(t *testing.T) {
	t.Setenv("COMPOSER_HOME", "/tmp/libretto-home")

	cfg := Default()

	assert.Equal(t, "/tmp/libretto-home", cfg.Home)
	assert.Equal(t, filepath.Join("/tmp/libretto-home", "cache"), cfg.CacheDir)
	assert.Equal(t, "stable", cfg.MinStability)
	assert.Equal(t, 8, cfg.MaxConcurrentDownloads)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vendor_dir: lib\nminimum_stability: beta\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "lib", cfg.VendorDir)
	assert.Equal(t, "beta", cfg.MinStability)
}

func TestLoadToleratesMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "vendor", cfg.VendorDir)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vendor_dir: from-file\n"), 0o644))

	t.Setenv("COMPOSER_VENDOR_DIR", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.VendorDir)
}

func TestApplyEnvParsesMaxParallelHTTP(t *testing.T) {
	t.Setenv("COMPOSER_MAX_PARALLEL_HTTP", "16")

	cfg := Default()
	applyEnv(&cfg)

	assert.Equal(t, 16, cfg.MaxConcurrentDownloads)
}

func TestApplyEnvIgnoresUnparsableMaxParallelHTTP(t *testing.T) {
	t.Setenv("COMPOSER_MAX_PARALLEL_HTTP", "not-a-number")

	cfg := Default()
	cfg.MaxConcurrentDownloads = 3
	applyEnv(&cfg)

	assert.Equal(t, 3, cfg.MaxConcurrentDownloads)
}

func TestApplyEnvSeedsCredentials(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "gh-token")
	t.Setenv("GITLAB_TOKEN", "gl-token")
	t.Setenv("GITLAB_URL", "gitlab.example.com")

	cfg := Default()
	applyEnv(&cfg)

	assert.Equal(t, "gh-token", cfg.GitHubToken)
	assert.Equal(t, "gl-token", cfg.GitLabToken)
	assert.Equal(t, "gitlab.example.com", cfg.GitLabHost)
}

package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libretto-pm/libretto-sub002/pkg/httpclient"
	"github.com/libretto-pm/libretto-sub002/pkg/resolver"
)

const examplePackagistResponse = `{
  "packages": {
    "acme/widget": [
      {
        "name": "acme/widget",
        "version": "2.1.0",
        "require": {"php": ">=8.0", "acme/gadget": "^1.0"},
        "require-dev": {"acme/test-kit": "^3.0"},
        "license": "MIT",
        "dist": {"url": "https://example.test/widget-2.1.0.zip", "type": "zip", "shasum": "abc123"},
        "source": {"url": "https://example.test/widget.git", "type": "git", "reference": "deadbeef"}
      },
      {
        "name": "acme/widget",
        "version": "2.0.0-beta1",
        "license": ["MIT", "Apache-2.0"],
        "dist": {"url": "https://example.test/widget-2.0.0-beta1.zip", "type": "zip", "shasum": "def456"}
      },
      {
        "name": "acme/widget",
        "version": "not-a-real-version"
      }
    ]
  }
}`

func newTestFetcher(t *testing.T, handler http.HandlerFunc) *PackagistFetcher {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client := httpclient.New(httpclient.DefaultConfig(), nil)
	return NewPackagistFetcher(client, ts.URL)
}

func mustName(t *testing.T, s string) resolver.PackageName {
	t.Helper()
	n, err := resolver.ParsePackageName(s)
	require.NoError(t, err)
	return n
}

func TestFetchDecodesVersionsAndSkipsMalformed(t *testing.T) {
	fetcher := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/p2/acme/widget.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(examplePackagistResponse))
	})

	entry, err := fetcher.Fetch(context.Background(), mustName(t, "acme/widget"))
	require.NoError(t, err)

	require.Len(t, entry.Versions, 2, "the malformed third version should be skipped")

	first := entry.Versions[0]
	assert.Equal(t, "https://example.test/widget-2.1.0.zip", first.Source.DistURL)
	assert.Equal(t, "https://example.test/widget.git", first.Source.SourceURL)
	require.Len(t, first.Require, 2)
	require.Len(t, first.RequireDev, 1)
	assert.Equal(t, []string{"MIT"}, first.License)

	second := entry.Versions[1]
	assert.ElementsMatch(t, []string{"MIT", "Apache-2.0"}, second.License)
}

func TestFetchReturnsErrorForUnknownPackage(t *testing.T) {
	fetcher := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"packages": {}}`))
	})

	_, err := fetcher.Fetch(context.Background(), mustName(t, "acme/widget"))
	assert.Error(t, err)
}

func TestDecodeLicenseAcceptsStringAndArray(t *testing.T) {
	assert.Equal(t, []string{"MIT"}, decodeLicense([]byte(`"MIT"`)))
	assert.Equal(t, []string{"MIT", "Apache-2.0"}, decodeLicense([]byte(`["MIT","Apache-2.0"]`)))
	assert.Nil(t, decodeLicense([]byte(`42`)))
}

func TestExtractStabilityTag(t *testing.T) {
	tag, ok := extractStabilityTag("2.0.0-beta1")
	require.True(t, ok)
	assert.Equal(t, "beta", tag)

	_, ok = extractStabilityTag("2.0.0")
	assert.False(t, ok)
}

func TestAdaptDepsSkipsMalformedEntries(t *testing.T) {
	deps := adaptDeps(map[string]string{
		"acme/gadget": "^1.0",
		"php":         ">=8.0",
		"bad name":    "not-a-constraint-either",
	})

	names := make([]string, 0, len(deps))
	for _, d := range deps {
		names = append(names, d.Name.String())
	}
	assert.Contains(t, names, "acme/gadget")
	assert.Contains(t, names, "php")
}

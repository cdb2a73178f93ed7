package install

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/libretto-pm/libretto-sub002/pkg/source"
)

func TestTranslateAutoloadParsesPSR4StringAndArrayValues(t *testing.T) {
	raw := map[string]any{
		"psr-4": map[string]any{
			"Acme\\Widget\\": "src",
			"Acme\\Shared\\": []any{"src", "compat"},
		},
		"classmap": []any{"lib/Legacy.php"},
		"files":    []any{"src/functions.php"},
	}

	got := translateAutoload("/vendor/acme/widget", raw)

	assert.Equal(t, "/vendor/acme/widget", got.PackageRoot)
	assert.Equal(t, []string{"src"}, got.PSR4["Acme\\Widget\\"])
	assert.Equal(t, []string{"src", "compat"}, got.PSR4["Acme\\Shared\\"])
	assert.Equal(t, []string{"lib/Legacy.php"}, got.Classmap)
	assert.Equal(t, []string{"src/functions.php"}, got.Files)
}

func TestTranslateAutoloadHandlesNilAutoload(t *testing.T) {
	got := translateAutoload("/vendor/acme/widget", nil)
	assert.Empty(t, got.PSR4)
	assert.Empty(t, got.Classmap)
}

func TestTranslateAutoloadIgnoresNonStringClassmapEntries(t *testing.T) {
	raw := map[string]any{
		"classmap": []any{"lib/Legacy.php", 42, true},
	}
	got := translateAutoload("/vendor/acme/widget", raw)
	assert.Equal(t, []string{"lib/Legacy.php"}, got.Classmap)
}

func TestSplitVendorName(t *testing.T) {
	assert.Equal(t, [2]string{"acme", "widget"}, splitVendorName("acme/widget"))
	assert.Equal(t, [2]string{"php", "php"}, splitVendorName("php"))
}

func TestVendorDestForJob(t *testing.T) {
	job := source.Spec{PackageName: "acme/widget"}
	got := vendorDestForJob("vendor", job)
	assert.Equal(t, filepath.Join("vendor", "acme", "widget"), got)
}

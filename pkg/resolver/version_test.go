package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	cases := []struct {
		in   string
		want ComposerVersion
	}{
		{"1.2.3", ComposerVersion{Major: 1, Minor: 2, Patch: 3, Stability: StabilityStable}},
		{"v1.2.3", ComposerVersion{Major: 1, Minor: 2, Patch: 3, Stability: StabilityStable}},
		{"1.2.3.4", ComposerVersion{Major: 1, Minor: 2, Patch: 3, Build: 4, Stability: StabilityStable}},
		{"1.2.3-beta2", ComposerVersion{Major: 1, Minor: 2, Patch: 3, Stability: StabilityBeta, PreReleaseNum: 2}},
		{"1.0.0-RC1", ComposerVersion{Major: 1, Stability: StabilityRC, PreReleaseNum: 1}},
	}
	for _, c := range cases {
		got, err := ParseVersion(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want.Major, got.Major, c.in)
		assert.Equal(t, c.want.Minor, got.Minor, c.in)
		assert.Equal(t, c.want.Patch, got.Patch, c.in)
		assert.Equal(t, c.want.Build, got.Build, c.in)
		assert.Equal(t, c.want.Stability, got.Stability, c.in)
		assert.Equal(t, c.want.PreReleaseNum, got.PreReleaseNum, c.in)
	}
}

func TestParseVersionDevBranch(t *testing.T) {
	v, err := ParseVersion("dev-main")
	require.NoError(t, err)
	assert.True(t, v.IsDev)
	assert.Equal(t, "main", v.DevBranch)

	v2, err := ParseVersion("feature/foo-dev")
	require.NoError(t, err)
	assert.True(t, v2.IsDev)
	assert.Equal(t, "feature/foo", v2.DevBranch)
}

func TestVersionCompareTotalOrder(t *testing.T) {
	order := []string{
		"dev-main",
		"1.0.0-alpha1",
		"1.0.0-beta1",
		"1.0.0-RC1",
		"1.0.0",
		"1.0.1",
		"1.1.0",
		"2.0.0",
	}
	var parsed []ComposerVersion
	for _, s := range order {
		v, err := ParseVersion(s)
		require.NoError(t, err, s)
		parsed = append(parsed, v)
	}
	for i := 1; i < len(parsed); i++ {
		assert.True(t, parsed[i-1].Less(parsed[i]), "%s should sort before %s", order[i-1], order[i])
	}
}

func TestVersionEqualIgnoresRawForm(t *testing.T) {
	a, _ := ParseVersion("v1.2.3")
	b, _ := ParseVersion("1.2.3")
	assert.True(t, a.Equal(b))
}

package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustVersion(t *testing.T, s string) ComposerVersion {
	t.Helper()
	v, err := ParseVersion(s)
	require.NoError(t, err)
	return v
}

func TestConstraintCaret(t *testing.T) {
	c, err := ParseConstraint("^1.2.3")
	require.NoError(t, err)

	assert.True(t, c.Matches(mustVersion(t, "1.2.3")))
	assert.True(t, c.Matches(mustVersion(t, "1.9.9")))
	assert.False(t, c.Matches(mustVersion(t, "1.2.2")))
	assert.False(t, c.Matches(mustVersion(t, "2.0.0")))
}

func TestConstraintCaretBelowOne(t *testing.T) {
	c, err := ParseConstraint("^0.2.3")
	require.NoError(t, err)
	assert.True(t, c.Matches(mustVersion(t, "0.2.9")))
	assert.False(t, c.Matches(mustVersion(t, "0.3.0")))

	c2, err := ParseConstraint("^0.0.3")
	require.NoError(t, err)
	assert.True(t, c2.Matches(mustVersion(t, "0.0.3")))
	assert.False(t, c2.Matches(mustVersion(t, "0.0.4")))
}

func TestConstraintTilde(t *testing.T) {
	c, err := ParseConstraint("~1.2.3")
	require.NoError(t, err)
	assert.True(t, c.Matches(mustVersion(t, "1.2.9")))
	assert.False(t, c.Matches(mustVersion(t, "1.3.0")))

	c2, err := ParseConstraint("~1.2")
	require.NoError(t, err)
	assert.True(t, c2.Matches(mustVersion(t, "1.9.9")))
	assert.False(t, c2.Matches(mustVersion(t, "2.0.0")))
}

func TestConstraintWildcard(t *testing.T) {
	c, err := ParseConstraint("1.2.*")
	require.NoError(t, err)
	assert.True(t, c.Matches(mustVersion(t, "1.2.0")))
	assert.True(t, c.Matches(mustVersion(t, "1.2.9")))
	assert.False(t, c.Matches(mustVersion(t, "1.3.0")))
}

func TestConstraintRangeAndUnion(t *testing.T) {
	c, err := ParseConstraint(">=1.0,<1.5 || >=2.0,<3.0")
	require.NoError(t, err)
	assert.True(t, c.Matches(mustVersion(t, "1.2.0")))
	assert.False(t, c.Matches(mustVersion(t, "1.6.0")))
	assert.True(t, c.Matches(mustVersion(t, "2.5.0")))
	assert.False(t, c.Matches(mustVersion(t, "3.0.0")))
}

func TestConstraintHyphenRange(t *testing.T) {
	c, err := ParseConstraint("1.0.0 - 2.0.0")
	require.NoError(t, err)
	assert.True(t, c.Matches(mustVersion(t, "1.0.0")))
	assert.True(t, c.Matches(mustVersion(t, "2.0.0")))
	assert.False(t, c.Matches(mustVersion(t, "2.0.1")))
}

func TestConstraintUniversal(t *testing.T) {
	c, err := ParseConstraint("*")
	require.NoError(t, err)
	assert.True(t, c.Matches(mustVersion(t, "0.0.1")))
	assert.True(t, c.Matches(mustVersion(t, "99.0.0")))
	assert.False(t, c.Matches(mustVersion(t, "dev-main")))
}

func TestConstraintDevBranch(t *testing.T) {
	c, err := ParseConstraint("dev-main")
	require.NoError(t, err)
	assert.True(t, c.Matches(mustVersion(t, "dev-main")))
	assert.False(t, c.Matches(mustVersion(t, "dev-develop")))
	assert.False(t, c.Matches(mustVersion(t, "1.0.0")))
}

func TestConstraintExact(t *testing.T) {
	c, err := ParseConstraint("1.2.3")
	require.NoError(t, err)
	assert.True(t, c.Matches(mustVersion(t, "1.2.3")))
	assert.False(t, c.Matches(mustVersion(t, "1.2.4")))
}

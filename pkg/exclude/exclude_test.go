package exclude

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPathPrefixSubtree(t *testing.T) {
	s := New(Mode{Enabled: true, SubtreePropagation: true})
	s.AddPathPrefix("/var/cache", true)

	require.True(t, s.Excluded("/var/cache"))
	require.True(t, s.Excluded("/var/cache/apt/archives"))
	require.False(t, s.Excluded("/var/cachefoo"))
	require.False(t, s.Excluded("/var/log"))
}

func TestPathPrefixWithoutSubtreePropagation(t *testing.T) {
	s := New(Mode{Enabled: true, SubtreePropagation: false})
	s.AddPathPrefix("/var/cache", true)

	require.True(t, s.Excluded("/var/cache"))
	require.False(t, s.Excluded("/var/cache/apt"))
}

func TestLeafGlob(t *testing.T) {
	s := New(Mode{Enabled: true})
	require.NoError(t, s.AddLeafGlob("*.tmp"))
	require.NoError(t, s.AddLeafGlob("core.[0-9]*"))

	require.True(t, s.Excluded("/any/path/build.tmp"))
	require.True(t, s.Excluded("/any/path/core.123"))
	require.False(t, s.Excluded("/any/path/readme.txt"))
}

func TestDisabledSetExcludesNothing(t *testing.T) {
	s := New(Mode{Enabled: false})
	s.AddPathPrefix("/anything", true)
	require.False(t, s.Excluded("/anything"))
}

func TestGlobCharacterClassNegation(t *testing.T) {
	s := New(Mode{Enabled: true})
	require.NoError(t, s.AddLeafGlob("[!.]*"))

	require.True(t, s.Excluded("/x/visible"))
	require.False(t, s.Excluded("/x/.hidden"))
}

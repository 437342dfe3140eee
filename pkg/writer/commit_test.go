package writer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/medium"
	"github.com/rstms/isoburn/pkg/nodetree"
)

func TestCommitWritesPlannedBlocksAtStartLBA(t *testing.T) {
	tree := nodetree.New()
	file := nodetree.NewFile("A.TXT;1")
	require.NoError(t, tree.AddChild(tree.Root(), file))

	src := newMemSource(64)
	content := memContentSource{byPath: map[string][]byte{"/A.TXT;1": []byte("data")}}
	serializer := PlainSerializer{VolumeIdentifier: "COMMITTEST"}

	cm := &medium.ClassifiedMedium{RandomAccess: true}
	result, err := Commit(src, cm, tree, content, serializer, Overrides{}, fakeBackend{auto: WriteTAO}, 0, 0, "")
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, WriteTAO, result.Plan.WriteType)
	require.True(t, result.Written > 0)

	// The written session's PVD standard identifier must land exactly at
	// the plan's start LBA.
	var sector [blocksource.SectorSize]byte
	require.NoError(t, src.ReadBlocks(result.Plan.StartLBA, 1, sector[:]))
	require.Equal(t, []byte("CD001"), sector[1:6])
}

func TestCommitNilClassifiedMediumDefaultsToFreshMedium(t *testing.T) {
	tree := nodetree.New()
	src := newMemSource(32)
	content := memContentSource{byPath: map[string][]byte{}}

	result, err := Commit(src, nil, tree, content, PlainSerializer{}, Overrides{}, nil, 0, 0, "")
	require.NoError(t, err)
	require.NotNil(t, result)
}

package writer

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/cache"
	"github.com/rstms/isoburn/pkg/loader"
	"github.com/rstms/isoburn/pkg/nodetree"
	"github.com/rstms/isoburn/pkg/treebuilder"
)

// memContentSource implements ContentSource over an in-memory map keyed by
// ISO path, for nodes whose bytes aren't addressed by any prior image.
type memContentSource struct {
	byPath map[string][]byte
}

func (m memContentSource) Open(n *nodetree.Node, isoPath string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.byPath[isoPath])), nil
}

// memSource is a flat in-memory blocksource.Source, matching
// pkg/treebuilder's test double of the same shape.
type memSource struct {
	data []byte
}

func newMemSource(blocks uint32) *memSource {
	return &memSource{data: make([]byte, int(blocks)*blocksource.SectorSize)}
}

func (m *memSource) ReadBlocks(lba, count uint32, buf []byte) error {
	off := int(lba) * blocksource.SectorSize
	n := int(count) * blocksource.SectorSize
	copy(buf, m.data[off:off+n])
	return nil
}
func (m *memSource) WriteBlocks(lba, count uint32, buf []byte) error {
	off := int(lba) * blocksource.SectorSize
	n := int(count) * blocksource.SectorSize
	if off+n > len(m.data) {
		grown := make([]byte, off+n)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[off:off+n], buf)
	return nil
}
func (m *memSource) ReadCapacity() blocksource.Capacity {
	return blocksource.Known(uint32(len(m.data) / blocksource.SectorSize))
}
func (m *memSource) Role() blocksource.Role { return blocksource.RoleRegularFile }
func (m *memSource) Caps() blocksource.Capabilities {
	return blocksource.Capabilities{StartAdr: true, RandomAccessReadable: true}
}
func (m *memSource) TruncateTo(blocks uint32) error { return nil }
func (m *memSource) Release() error                 { return nil }

func buildSampleTree(t *testing.T) *nodetree.Tree {
	t.Helper()
	tree := nodetree.New()
	root := tree.Root()

	sub, err := tree.Mkdir("/SUBDIR")
	require.NoError(t, err)

	hello := nodetree.NewFile("HELLO.TXT;1")
	require.NoError(t, tree.AddChild(root, hello))

	nested := nodetree.NewFile("NESTED.TXT;1")
	require.NoError(t, tree.AddChild(sub, nested))

	return tree
}

func TestPlainSerializerRoundTripsThroughTreeBuilder(t *testing.T) {
	tree := buildSampleTree(t)
	content := memContentSource{byPath: map[string][]byte{
		"/HELLO.TXT;1":         []byte("hello world"),
		"/SUBDIR/NESTED.TXT;1": []byte("nested content"),
	}}

	serializer := PlainSerializer{VolumeIdentifier: "TESTVOL", Now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	data, err := serializer.Serialize(tree, 16, content)
	require.NoError(t, err)
	require.True(t, len(data)%blocksource.SectorSize == 0)

	blocks := uint32(len(data)) / blocksource.SectorSize
	src := newMemSource(16 + blocks)
	require.NoError(t, src.WriteBlocks(16, blocks, data))

	c, err := cache.New(src, cache.Displacement{}, 4, 8)
	require.NoError(t, err)
	reader := cache.NewReaderAt(c)

	built, found, err := treebuilder.New(nil).Build(reader, 16, loader.ReadOptions{})
	require.NoError(t, err)
	require.False(t, found.RockRidge)

	hello, ok := built.Root().Child("HELLO.TXT;1")
	require.True(t, ok)
	require.False(t, hello.IsDir())
	require.Len(t, hello.Extents, 1)

	sub, ok := built.Root().Child("SUBDIR")
	require.True(t, ok)
	require.True(t, sub.IsDir())

	nested, ok := sub.Child("NESTED.TXT;1")
	require.True(t, ok)
	require.False(t, nested.IsDir())
	require.Len(t, nested.Extents, 1)
}

func TestPlainSerializerEmptyTree(t *testing.T) {
	tree := nodetree.New()
	data, err := (PlainSerializer{VolumeIdentifier: "EMPTY"}).Serialize(tree, 16, memContentSource{byPath: map[string][]byte{}})
	require.NoError(t, err)
	require.True(t, len(data)%blocksource.SectorSize == 0)
	// PVD + terminator + path tables (L and M) + root dir extent
	require.True(t, len(data) >= 5*blocksource.SectorSize)
}

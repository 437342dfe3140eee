package session

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/cache"
	"github.com/rstms/isoburn/pkg/nodetree"
)

// memSource is a flat in-memory blocksource.Source, mirroring the one used
// in pkg/treebuilder's tests.
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

func newTestReader(t *testing.T, src *memSource) *cache.ReaderAt {
	t.Helper()
	c, err := cache.New(src, cache.Displacement{}, 4, 8)
	require.NoError(t, err)
	return cache.NewReaderAt(c)
}

func TestImageOpenerReadsSingleExtent(t *testing.T) {
	src := newMemSource(32)
	content := []byte("hello, world")
	off := 19 * blocksource.SectorSize
	copy(src.data[off:], content)

	opener := imageOpener{reader: newTestReader(t, src)}
	n := nodetree.NewFile("greeting.txt")
	n.Extents = []nodetree.Extent{{StartLBA: 19, Blocks: 1, LastBlockSize: uint32(len(content))}}

	rc, err := opener.Open(n)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestImageOpenerConcatenatesMultipleExtents(t *testing.T) {
	src := newMemSource(32)
	copy(src.data[19*blocksource.SectorSize:], []byte("part-one--"))
	copy(src.data[20*blocksource.SectorSize:], []byte("part-two"))

	opener := imageOpener{reader: newTestReader(t, src)}
	n := nodetree.NewFile("split.bin")
	n.Extents = []nodetree.Extent{
		{StartLBA: 19, Blocks: 1, LastBlockSize: 10},
		{StartLBA: 20, Blocks: 1, LastBlockSize: 8},
	}

	rc, err := opener.Open(n)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "part-one--part-two", string(got))
}

func TestImageOpenerEmptyExtentsYieldsEmptyReader(t *testing.T) {
	opener := imageOpener{reader: nil}
	n := nodetree.NewFile("empty.bin")

	rc, err := opener.Open(n)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestImageOpenerNoReaderErrorsOnNonEmptyNode(t *testing.T) {
	opener := imageOpener{reader: nil}
	n := nodetree.NewFile("orphan.bin")
	n.Extents = []nodetree.Extent{{StartLBA: 19, Blocks: 1, LastBlockSize: 4}}

	_, err := opener.Open(n)
	require.Error(t, err)
}

func TestOpenBlankHasEmptyTreeAndNoSource(t *testing.T) {
	s := OpenBlank(nil)
	require.NotNil(t, s.Tree)
	require.NotNil(t, s.Found)
	require.Nil(t, s.Source)
	require.NoError(t, s.Close())
}

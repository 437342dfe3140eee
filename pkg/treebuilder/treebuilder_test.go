package treebuilder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/cache"
	"github.com/rstms/isoburn/pkg/iso9660/descriptor"
	"github.com/rstms/isoburn/pkg/iso9660/directory"
	"github.com/rstms/isoburn/pkg/iso9660/encoding"
	"github.com/rstms/isoburn/pkg/loader"
)

// rockRidgePX builds a raw "PX" System Use entry carrying the given
// permissions and file serial number (inode), the same wire shape an
// AAIP-aware writer emits.
func rockRidgePX(t *testing.T, mode, serial uint32) []byte {
	t.Helper()
	buf := []byte{'P', 'X', 4 + 40, 1}
	for _, v := range []uint32{mode, 1, 0, 0, serial} {
		enc := encoding.MarshalBothByteOrders32(v)
		buf = append(buf, enc[:]...)
	}
	return buf
}

// memSource is a flat in-memory blocksource.Source used to hand-assemble a
// tiny, valid ISO 9660 image for the builder to read back.
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

func (m *memSource) putSector(lba uint32, b []byte) {
	off := int(lba) * blocksource.SectorSize
	copy(m.data[off:off+len(b)], b)
}

// buildMinimalImage assembles a 20-sector image: System Area (0-15), a
// Primary Volume Descriptor at 16, a Terminator at 17, a one-sector root
// directory extent at 18 containing "." ".." and one file record, and the
// file's single-sector content at 19.
func buildMinimalImage(t *testing.T) *memSource {
	t.Helper()
	src := newMemSource(32)
	stamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	mkRecord := func(id string, lba, length uint32, isDir bool) []byte {
		rec := &directory.DirectoryRecord{
			LocationOfExtent:     lba,
			DataLength:           length,
			RecordingDateAndTime: stamp,
			FileFlags:            directory.FileFlags{Directory: isDir},
			FileIdentifier:       id,
		}
		b, err := rec.Marshal()
		require.NoError(t, err)
		return b
	}

	var dirExtent []byte
	dirExtent = append(dirExtent, mkRecord("\x00", 18, 2048, true)...)
	dirExtent = append(dirExtent, mkRecord("\x01", 18, 2048, true)...)
	dirExtent = append(dirExtent, mkRecord("HELLO.TXT;1", 19, 5, false)...)
	src.putSector(18, dirExtent)

	src.putSector(19, []byte("hello"))

	root := &directory.DirectoryRecord{
		LocationOfExtent:     18,
		DataLength:           2048,
		RecordingDateAndTime: stamp,
		FileFlags:            directory.FileFlags{Directory: true},
		FileIdentifier:       "\x00",
	}
	pvd := &descriptor.PrimaryVolumeDescriptor{
		VolumeDescriptorHeader: descriptor.VolumeDescriptorHeader{
			VolumeDescriptorType:    descriptor.TYPE_PRIMARY_DESCRIPTOR,
			StandardIdentifier:      "CD001",
			VolumeDescriptorVersion: 1,
		},
		PrimaryVolumeDescriptorBody: descriptor.PrimaryVolumeDescriptorBody{
			VolumeIdentifier:     "TESTVOL",
			VolumeSpaceSize:      20,
			LogicalBlockSize:     2048,
			RootDirectoryRecord:  root,
			FileStructureVersion: 1,
		},
	}
	pvdBytes, err := pvd.Marshal()
	require.NoError(t, err)
	src.putSector(16, pvdBytes[:])

	term := descriptor.NewVolumeDescriptorSetTerminator()
	termBytes, err := term.Marshal()
	require.NoError(t, err)
	src.putSector(17, termBytes[:])

	return src
}

func openReader(t *testing.T, src *memSource) *cache.ReaderAt {
	t.Helper()
	c, err := cache.New(src, cache.Displacement{}, 4, 8)
	require.NoError(t, err)
	return cache.NewReaderAt(c)
}

func TestBuildReadsRootDirectory(t *testing.T) {
	src := buildMinimalImage(t)
	r := openReader(t, src)

	tree, found, err := New(nil).Build(r, 0, loader.ReadOptions{})
	require.NoError(t, err)
	require.NotNil(t, tree)

	file, ok := tree.Root().Child("HELLO.TXT;1")
	require.True(t, ok)
	require.False(t, file.IsDir())
	require.Len(t, file.Extents, 1)
	require.EqualValues(t, 19, file.Extents[0].StartLBA)
	require.EqualValues(t, 1, file.Extents[0].Blocks)
	require.EqualValues(t, 5, file.Extents[0].LastBlockSize)

	require.False(t, found.RockRidge)
	require.False(t, found.Joliet)
	require.False(t, found.ElTorito)
	require.EqualValues(t, 20, found.ImageSize)

	// "." and ".." must not appear as ordinary children.
	_, dot := tree.Root().Child("\x00")
	require.False(t, dot)
}

// buildHardlinkImage is buildMinimalImage with two files sharing a PX file
// serial number instead of one plain file.
func buildHardlinkImage(t *testing.T) *memSource {
	t.Helper()
	src := newMemSource(32)
	stamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	mkRecord := func(id string, lba, length uint32, isDir bool, systemUse []byte) []byte {
		rec := &directory.DirectoryRecord{
			LocationOfExtent:     lba,
			DataLength:           length,
			RecordingDateAndTime: stamp,
			FileFlags:            directory.FileFlags{Directory: isDir},
			FileIdentifier:       id,
			SystemUse:            systemUse,
		}
		b, err := rec.Marshal()
		require.NoError(t, err)
		return b
	}

	px := rockRidgePX(t, 0100644, 42)

	var dirExtent []byte
	dirExtent = append(dirExtent, mkRecord("\x00", 18, 2048, true, nil)...)
	dirExtent = append(dirExtent, mkRecord("\x01", 18, 2048, true, nil)...)
	dirExtent = append(dirExtent, mkRecord("A.TXT;1", 19, 5, false, px)...)
	dirExtent = append(dirExtent, mkRecord("B.TXT;1", 19, 5, false, px)...)
	src.putSector(18, dirExtent)
	src.putSector(19, []byte("hello"))

	root := &directory.DirectoryRecord{
		LocationOfExtent:     18,
		DataLength:           2048,
		RecordingDateAndTime: stamp,
		FileFlags:            directory.FileFlags{Directory: true},
		FileIdentifier:       "\x00",
	}
	pvd := &descriptor.PrimaryVolumeDescriptor{
		VolumeDescriptorHeader: descriptor.VolumeDescriptorHeader{
			VolumeDescriptorType:    descriptor.TYPE_PRIMARY_DESCRIPTOR,
			StandardIdentifier:      "CD001",
			VolumeDescriptorVersion: 1,
		},
		PrimaryVolumeDescriptorBody: descriptor.PrimaryVolumeDescriptorBody{
			VolumeIdentifier:     "TESTVOL",
			VolumeSpaceSize:      20,
			LogicalBlockSize:     2048,
			RootDirectoryRecord:  root,
			FileStructureVersion: 1,
		},
	}
	pvdBytes, err := pvd.Marshal()
	require.NoError(t, err)
	src.putSector(16, pvdBytes[:])

	term := descriptor.NewVolumeDescriptorSetTerminator()
	termBytes, err := term.Marshal()
	require.NoError(t, err)
	src.putSector(17, termBytes[:])

	return src
}

func TestBuildConsolidatesHardlinksFromRecordedInode(t *testing.T) {
	src := buildHardlinkImage(t)
	r := openReader(t, src)

	tree, found, err := New(nil).Build(r, 0, loader.ReadOptions{})
	require.NoError(t, err)
	require.True(t, found.RockRidge)

	a, ok := tree.Root().Child("A.TXT;1")
	require.True(t, ok)
	require.NotNil(t, a.RecordedDevIno)
	require.EqualValues(t, 42, a.RecordedDevIno.Ino)

	siblings := tree.HardlinkSiblings(a)
	require.Len(t, siblings, 1)
	require.Equal(t, "B.TXT;1", siblings[0].Name())
}

func TestBuildSkipsRecordedInodeWhenNoInodeSet(t *testing.T) {
	src := buildHardlinkImage(t)
	r := openReader(t, src)

	tree, _, err := New(nil).Build(r, 0, loader.ReadOptions{NoInode: true})
	require.NoError(t, err)

	a, ok := tree.Root().Child("A.TXT;1")
	require.True(t, ok)
	require.Nil(t, a.RecordedDevIno)
}

func TestBuildComputesMD5ByDefault(t *testing.T) {
	src := buildMinimalImage(t)
	r := openReader(t, src)

	tree, _, err := New(nil).Build(r, 0, loader.ReadOptions{})
	require.NoError(t, err)

	file, ok := tree.Root().Child("HELLO.TXT;1")
	require.True(t, ok)
	require.NotNil(t, file.MD5)
}

func TestBuildSkipsMD5WhenNoMD5Set(t *testing.T) {
	src := buildMinimalImage(t)
	r := openReader(t, src)

	tree, _, err := New(nil).Build(r, 0, loader.ReadOptions{NoMD5: 1})
	require.NoError(t, err)

	file, ok := tree.Root().Child("HELLO.TXT;1")
	require.True(t, ok)
	require.Nil(t, file.MD5)
}

func TestReadDescriptorSetStopsAtTerminator(t *testing.T) {
	src := buildMinimalImage(t)
	// Poison everything after the terminator; a correct scan never reads it.
	for lba := uint32(18); lba < 20; lba++ {
		off := int(lba) * blocksource.SectorSize
		for i := range src.data[off : off+blocksource.SectorSize] {
			src.data[off+i] = 0xFF
		}
	}
	set, err := readDescriptorSet(openReader(t, src), 0)
	require.NoError(t, err)
	require.NotNil(t, set.Primary)
	require.NotNil(t, set.Terminator)
	require.Empty(t, set.Supplementary)
}

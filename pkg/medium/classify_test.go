package medium

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/isoerr"
)

// memSource is a minimal in-memory blocksource.Source for classifier
// tests: a flat byte buffer addressed in 2048-byte blocks.
type memSource struct {
	data []byte
	role blocksource.Role
	caps blocksource.Capabilities
}

func newMemSource(blocks uint32) *memSource {
	return &memSource{
		data: make([]byte, int(blocks)*blocksource.SectorSize),
		role: blocksource.RoleRegularFile,
		caps: blocksource.Capabilities{StartAdr: true, RandomAccessReadable: true},
	}
}

func (m *memSource) ReadBlocks(lba, count uint32, buf []byte) error {
	off := int(lba) * blocksource.SectorSize
	n := int(count) * blocksource.SectorSize
	if off+n > len(m.data) {
		return isoerr.New(isoerr.Transport, isoerr.CodeOutOfRange, "read past end of memory source")
	}
	copy(buf, m.data[off:off+n])
	return nil
}

func (m *memSource) WriteBlocks(lba, count uint32, buf []byte) error {
	off := int(lba) * blocksource.SectorSize
	n := int(count) * blocksource.SectorSize
	copy(m.data[off:off+n], buf[:n])
	return nil
}

func (m *memSource) ReadCapacity() blocksource.Capacity {
	return blocksource.Known(uint32(len(m.data) / blocksource.SectorSize))
}
func (m *memSource) Role() blocksource.Role         { return m.role }
func (m *memSource) Caps() blocksource.Capabilities { return m.caps }
func (m *memSource) TruncateTo(blocks uint32) error { return nil }
func (m *memSource) Release() error                 { return nil }

// writePVD stamps a recognizable PVD at block lba announcing volumeBlocks
// as its volume space size.
func writePVD(m *memSource, lba uint32, volumeBlocks uint32) {
	off := int(lba) * blocksource.SectorSize
	m.data[off] = 0x01
	copy(m.data[off+1:off+6], "CD001")
	binary.LittleEndian.PutUint32(m.data[off+80:off+84], volumeBlocks)
}

func TestRecognizePVD(t *testing.T) {
	buf := make([]byte, blocksource.SectorSize)
	require.False(t, recognizePVD(buf))

	buf[0] = 0x01
	copy(buf[1:6], "CD001")
	require.True(t, recognizePVD(buf))

	binary.LittleEndian.PutUint32(buf[80:84], 12345)
	require.Equal(t, uint32(12345), volumeSpaceSize(buf))
}

func TestEmulateTOCChain(t *testing.T) {
	src := newMemSource(1024)
	writePVD(src, 32, 256)
	writePVD(src, 320, 256)
	writePVD(src, 640, 256)

	entries, err := scanSessionChain(src, 32)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, uint32(32), entries[0].StartLBA)
	require.Equal(t, uint32(256), entries[0].Blocks)
	require.Equal(t, uint32(320), entries[1].StartLBA)
	require.Equal(t, uint32(640), entries[2].StartLBA)
}

func TestMBROffsetAcceptance(t *testing.T) {
	imageBlocks := uint32(1000)
	header := make([]byte, 512)
	header[510] = 0x55
	header[511] = 0xAA

	entryOff := 446
	header[entryOff] = 0x80
	header[entryOff+1] = 0x01 // nonzero CHS start
	binary.LittleEndian.PutUint32(header[entryOff+8:entryOff+12], 64)
	binary.LittleEndian.PutUint32(header[entryOff+12:entryOff+16], imageBlocks-64)

	offset, ok := recognizedMBROffset(header, imageBlocks)
	require.True(t, ok)
	require.Equal(t, uint32(64), offset)
}

func TestMBROffsetRejectedBeyondBound(t *testing.T) {
	imageBlocks := uint32(10000)
	header := make([]byte, 512)
	header[510] = 0x55
	header[511] = 0xAA

	entryOff := 446
	header[entryOff] = 0x80
	header[entryOff+1] = 0x01
	binary.LittleEndian.PutUint32(header[entryOff+8:entryOff+12], 500) // > 480
	binary.LittleEndian.PutUint32(header[entryOff+12:entryOff+16], imageBlocks-500)

	_, ok := recognizedMBROffset(header, imageBlocks)
	require.False(t, ok)
}

func TestClassifyBlankRegularFile(t *testing.T) {
	src := newMemSource(1024)
	cm, err := Classify(src, 0, nil, Flags{})
	require.NoError(t, err)
	require.Equal(t, StatusBlank, cm.Status)
	require.True(t, cm.Fabricated)
}

func TestClassifyAppendable(t *testing.T) {
	src := newMemSource(1024)
	writePVD(src, 16, 300)

	cm, err := Classify(src, 0, nil, Flags{})
	require.NoError(t, err)
	require.Equal(t, StatusAppendable, cm.Status)
	require.Equal(t, uint32(300), cm.NWA)
}

func TestClassifyBlankDefaultsZeroNWA(t *testing.T) {
	src := newMemSource(1024)
	cm, err := Classify(src, 0, nil, Flags{})
	require.NoError(t, err)
	require.Equal(t, StatusBlank, cm.Status)
	require.Equal(t, uint32(32), cm.ZeroNWA)
	require.Equal(t, uint32(32), cm.NWA)
}

func TestClassifyPretendBlank(t *testing.T) {
	src := newMemSource(1024)
	writePVD(src, 16, 300)

	cm, err := Classify(src, 0, nil, Flags{PretendBlankOnOverwriteable: true})
	require.NoError(t, err)
	require.Equal(t, StatusBlank, cm.Status)
	require.NotNil(t, cm.FabricatedMSC1)
}

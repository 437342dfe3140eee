package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/isoerr"
)

// fakeSource is an in-memory blocksource.Source backed by a byte slice,
// with the ability to inject read failures at specific LBA ranges for
// exercising the cache's error-suppression path.
type fakeSource struct {
	data      []byte
	failAt    map[uint32]bool
	callCount int
}

func newFakeSource(blocks uint32) *fakeSource {
	return &fakeSource{
		data:   make([]byte, int(blocks)*blocksource.SectorSize),
		failAt: map[uint32]bool{},
	}
}

// stamp writes the LBA as a marker into the first 4 bytes of the block so
// tests can assert which block was actually copied out.
func (f *fakeSource) stamp(lba uint32) {
	off := int(lba) * blocksource.SectorSize
	f.data[off] = byte(lba)
	f.data[off+1] = byte(lba >> 8)
	f.data[off+2] = byte(lba >> 16)
	f.data[off+3] = byte(lba >> 24)
}

func (f *fakeSource) ReadBlocks(lba uint32, count uint32, buf []byte) error {
	f.callCount++
	for i := uint32(0); i < count; i++ {
		if f.failAt[lba+i] {
			return errors.New("injected read failure")
		}
	}
	off := int(lba) * blocksource.SectorSize
	n := int(count) * blocksource.SectorSize
	copy(buf, f.data[off:off+n])
	return nil
}

func (f *fakeSource) WriteBlocks(lba uint32, count uint32, buf []byte) error { return nil }
func (f *fakeSource) ReadCapacity() blocksource.Capacity {
	return blocksource.Known(uint32(len(f.data) / blocksource.SectorSize))
}
func (f *fakeSource) Role() blocksource.Role { return blocksource.RoleRegularFile }
func (f *fakeSource) Caps() blocksource.Capabilities {
	return blocksource.Capabilities{StartAdr: true, RandomAccessReadable: true}
}
func (f *fakeSource) TruncateTo(blocks uint32) error { return nil }
func (f *fakeSource) Release() error                 { return nil }

func readLBA(t *testing.T, c *Cache, lba uint32) uint32 {
	t.Helper()
	var buf [blocksource.SectorSize]byte
	require.NoError(t, c.ReadBlock(lba, buf[:]))
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}

func TestCacheHitAndMiss(t *testing.T) {
	src := newFakeSource(256)
	for lba := uint32(0); lba < 256; lba++ {
		src.stamp(lba)
	}
	c, err := New(src, Displacement{}, 2, 4)
	require.NoError(t, err)

	require.Equal(t, uint32(5), readLBA(t, c, 5))
	callsAfterMiss := src.callCount
	require.Equal(t, uint32(5), readLBA(t, c, 5))
	require.Equal(t, callsAfterMiss, src.callCount, "repeated read of same block should hit the tile, no new source call")
}

func TestCacheEvictsLowestAge(t *testing.T) {
	src := newFakeSource(256)
	for lba := uint32(0); lba < 256; lba++ {
		src.stamp(lba)
	}
	// two tiles of 4 blocks: aligned groups [0-3],[4-7],[8-11]...
	c, err := New(src, Displacement{}, 2, 4)
	require.NoError(t, err)

	require.Equal(t, uint32(0), readLBA(t, c, 0))
	require.Equal(t, uint32(4), readLBA(t, c, 4))
	// both tiles now occupied; reading a third aligned group evicts tile for [0-3]
	// since it has the lower age (read first).
	require.Equal(t, uint32(8), readLBA(t, c, 8))
	callsBefore := src.callCount
	// re-reading lba 0 must miss again (tile for [0-3] got evicted)
	require.Equal(t, uint32(0), readLBA(t, c, 0))
	require.Greater(t, src.callCount, callsBefore)
}

func TestCacheDisplacementPositive(t *testing.T) {
	src := newFakeSource(256)
	for lba := uint32(0); lba < 256; lba++ {
		src.stamp(lba)
	}
	c, err := New(src, Displacement{Value: 16, Sign: 1}, 2, 4)
	require.NoError(t, err)

	// logical lba 0 maps to physical lba 16
	require.Equal(t, uint32(16), readLBA(t, c, 0))
}

func TestCacheDisplacementRollover(t *testing.T) {
	src := newFakeSource(8)
	c, err := New(src, Displacement{Value: 10, Sign: -1}, 2, 4)
	require.NoError(t, err)

	var buf [blocksource.SectorSize]byte
	err = c.ReadBlock(5, buf[:])
	require.Error(t, err)
	var isoErr *isoerr.Error
	require.True(t, errors.As(err, &isoErr))
	require.Equal(t, isoerr.CodeDisplaceRollover, isoErr.Code)
}

func TestCacheFallbackSingleReadOnTileFailure(t *testing.T) {
	src := newFakeSource(32)
	for lba := uint32(0); lba < 32; lba++ {
		src.stamp(lba)
	}
	// make the tile-sized read covering [4-7] fail by poisoning block 6,
	// but block 5 itself (the one actually requested) is fine.
	src.failAt[6] = true

	c, err := New(src, Displacement{}, 1, 4)
	require.NoError(t, err)

	require.Equal(t, uint32(5), readLBA(t, c, 5))
}

func TestCacheDataSourceMishapWhenSingleReadAlsoFails(t *testing.T) {
	src := newFakeSource(32)
	src.failAt[5] = true

	c, err := New(src, Displacement{}, 1, 4)
	require.NoError(t, err)

	var buf [blocksource.SectorSize]byte
	err = c.ReadBlock(5, buf[:])
	require.Error(t, err)
	var isoErr *isoerr.Error
	require.True(t, errors.As(err, &isoErr))
	require.Equal(t, isoerr.CodeDataSourceMishap, isoErr.Code)

	// a second read of the exact same failing lba retries neither the
	// tile-sized read (last-aligned-error LBA matches) nor the single-block
	// read (last-error LBA matches) and still reports mishap.
	callsBefore := src.callCount
	err = c.ReadBlock(5, buf[:])
	require.Error(t, err)
	require.Equal(t, callsBefore, src.callCount, "no source read is retried for a known-bad aligned group and lba")
}

func TestCacheDetach(t *testing.T) {
	src := newFakeSource(8)
	c, err := New(src, Displacement{}, 1, 4)
	require.NoError(t, err)
	c.Detach()

	var buf [blocksource.SectorSize]byte
	err = c.ReadBlock(0, buf[:])
	require.Error(t, err)
	var isoErr *isoerr.Error
	require.True(t, errors.As(err, &isoErr))
	require.Equal(t, isoerr.CodeAssertFailure, isoErr.Code)
}

func TestNewRejectsInvalidTileBlocks(t *testing.T) {
	src := newFakeSource(8)
	_, err := New(src, Displacement{}, 1, 3)
	require.Error(t, err)
}

//go:build !linux

package blocksource

import "os"

// blockDeviceBlocks falls back to seeking to end-of-device on platforms
// without a BLKGETSIZE64-style ioctl exposed through golang.org/x/sys/unix.
func blockDeviceBlocks(f *os.File) (uint32, error) {
	end, err := f.Seek(0, os.SEEK_END)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, os.SEEK_SET); err != nil {
		return 0, err
	}
	return uint32(end / SectorSize), nil
}

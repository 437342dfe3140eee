//go:build linux

package blocksource

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// blockDeviceBlocks asks the kernel for a block device's size via the
// BLKGETSIZE64 ioctl, which reports the size in bytes.
func blockDeviceBlocks(f *os.File) (uint32, error) {
	var sizeBytes uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&sizeBytes)))
	if errno != 0 {
		return 0, errno
	}
	return uint32(sizeBytes / SectorSize), nil
}

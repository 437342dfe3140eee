package blocksource

import (
	"fmt"

	"github.com/rstms/isoburn/pkg/isoerr"
)

// SectorSize is the logical block size every Source reads and writes in.
const SectorSize = 2048

// Source is the uniform block-addressed interface every higher layer
// consumes. Implementations exist for file-backed storage (regular files
// and block devices opened via the stdio: address form) and for pipe
// output; an optical-drive implementation is an external collaborator
// (out of scope per the package's SCSI/MMC boundary) that satisfies the
// same interface.
type Source interface {
	// ReadBlocks reads count blocks starting at lba into buf, which must be
	// at least count*SectorSize bytes. It fails with isoerr CodeOutOfRange
	// if lba+count exceeds a known capacity, or CodeNotReadable on a
	// pipe-out role.
	ReadBlocks(lba uint32, count uint32, buf []byte) error
	// WriteBlocks writes count blocks starting at lba from buf. Only valid
	// when Caps().StartAdr is true for random-access writes; pipe-out
	// sources accept only strictly sequential appends.
	WriteBlocks(lba uint32, count uint32, buf []byte) error
	// ReadCapacity reports the backend's size in blocks, or Unknown.
	ReadCapacity() Capacity
	// Role reports what kind of backend this is.
	Role() Role
	// Caps reports the backend's capability bits.
	Caps() Capabilities
	// TruncateTo truncates a file-backed Source to exactly blocks blocks.
	// No-op (and no error) on backends that cannot be truncated.
	TruncateTo(blocks uint32) error
	// Release relinquishes the backend. After Release, every method
	// except Release itself returns a Programming/ASSERT_FAILURE error.
	Release() error
}

func checkCount(buf []byte, count uint32) error {
	need := int(count) * SectorSize
	if len(buf) < need {
		return isoerr.New(isoerr.Programming, isoerr.CodeNullInput,
			fmt.Sprintf("buffer too small: need %d bytes, have %d", need, len(buf)))
	}
	return nil
}

func outOfRange(lba, count uint32, cap Capacity) error {
	blocks, known := cap.Blocks()
	if known && uint64(lba)+uint64(count) > uint64(blocks) {
		return isoerr.New(isoerr.Transport, isoerr.CodeOutOfRange,
			fmt.Sprintf("read past capacity: lba=%d count=%d capacity=%d", lba, count, blocks))
	}
	return nil
}

package cache

import (
	"io"

	"github.com/rstms/isoburn/pkg/blocksource"
)

// ReaderAt adapts a Cache to io.ReaderAt for byte-oriented consumers (the
// tree builder's descriptor and directory-record codecs), translating byte
// offsets into block reads through ReadBlock.
type ReaderAt struct {
	cache *Cache
}

// NewReaderAt wraps c for byte-addressed reads.
func NewReaderAt(c *Cache) *ReaderAt {
	return &ReaderAt{cache: c}
}

func (r *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.ErrShortBuffer
	}
	const blockSize = blocksource.SectorSize

	var buf [blockSize]byte
	n := 0
	for n < len(p) {
		lba := uint32((off + int64(n)) / blockSize)
		inBlock := int((off + int64(n)) % blockSize)

		if err := r.cache.ReadBlock(lba, buf[:]); err != nil {
			return n, err
		}

		copied := copy(p[n:], buf[inBlock:])
		n += copied
	}
	return n, nil
}

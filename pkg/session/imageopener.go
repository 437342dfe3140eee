package session

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rstms/isoburn/pkg/cache"
	"github.com/rstms/isoburn/pkg/consts"
	"github.com/rstms/isoburn/pkg/nodetree"
	"github.com/rstms/isoburn/pkg/update"
)

// imageOpener implements update.ContentOpener by reading a node's content
// across its recorded Extents through the session's displaced Tiled Cache,
// so Diff/Sync/Extract see the same bytes at the same addresses the tree
// builder did when it attached those extents to the node.
type imageOpener struct {
	reader *cache.ReaderAt
}

func (o imageOpener) Open(n *nodetree.Node) (io.ReadCloser, error) {
	if len(n.Extents) == 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if o.reader == nil {
		return nil, fmt.Errorf("session: no image content reader available (blank session)")
	}
	return &extentReader{reader: o.reader, extents: n.Extents}, nil
}

// extentReader reads the concatenation of a node's Extents in order,
// advancing to the next extent as each one is exhausted.
type extentReader struct {
	reader  *cache.ReaderAt
	extents []nodetree.Extent
	idx     int
	off     int64 // byte offset within extents[idx]
}

func (e *extentReader) Read(p []byte) (int, error) {
	for {
		if e.idx >= len(e.extents) {
			return 0, io.EOF
		}
		ext := e.extents[e.idx]
		length := int64(ext.ByteLength(consts.ISO9660_SECTOR_SIZE))
		remaining := length - e.off
		if remaining <= 0 {
			e.idx++
			e.off = 0
			continue
		}

		n := len(p)
		if int64(n) > remaining {
			n = int(remaining)
		}
		base := int64(ext.StartLBA) * consts.ISO9660_SECTOR_SIZE
		read, err := e.reader.ReadAt(p[:n], base+e.off)
		e.off += int64(read)
		if err != nil && err != io.EOF {
			return read, fmt.Errorf("session: reading extent at LBA %d: %w", ext.StartLBA, err)
		}
		if read > 0 {
			return read, nil
		}
		// Zero-byte read with no error: extent exhausted early, advance.
		e.idx++
		e.off = 0
	}
}

func (e *extentReader) Close() error { return nil }

// imageContentOpener returns a ContentOpener reading file content from the
// session's backing image through its displacement-aware cache reader.
func (s *Session) imageContentOpener() update.ContentOpener {
	return imageOpener{reader: s.reader}
}

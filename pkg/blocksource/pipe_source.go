package blocksource

import (
	"fmt"
	"io"

	"github.com/rstms/isoburn/pkg/isoerr"
)

// PipeSource backs the "stdio:-" and "stdio:/dev/fd/1" address forms: a
// process's standard output, writable only, strictly sequentially, with
// unknown capacity.
type PipeSource struct {
	w        io.Writer
	next     uint32
	released bool
}

// NewPipeSource wraps w (typically os.Stdout) as a write-only, sequential
// block sink.
func NewPipeSource(w io.Writer) *PipeSource {
	return &PipeSource{w: w}
}

func (s *PipeSource) ReadBlocks(lba uint32, count uint32, buf []byte) error {
	return isoerr.New(isoerr.Transport, "TRANSPORT.NOT_READABLE", "pipe-out source is not readable")
}

func (s *PipeSource) WriteBlocks(lba uint32, count uint32, buf []byte) error {
	if s.released {
		return isoerr.AssertFailure("pipe source used after release")
	}
	if lba != s.next {
		return isoerr.New(isoerr.State, isoerr.CodeIncompatibleWrite,
			fmt.Sprintf("pipe-out requires sequential writes: expected lba=%d, got %d", s.next, lba))
	}
	if err := checkCount(buf, count); err != nil {
		return err
	}
	n, err := s.w.Write(buf[:int(count)*SectorSize])
	if err != nil {
		return isoerr.Wrap(isoerr.Transport, "TRANSPORT.WRITE_FAILED", "pipe write", err)
	}
	if n != int(count)*SectorSize {
		return isoerr.New(isoerr.Transport, "TRANSPORT.WRITE_FAILED", "short write to pipe")
	}
	s.next += count
	return nil
}

func (s *PipeSource) ReadCapacity() Capacity { return Unknown() }

func (s *PipeSource) Role() Role { return RolePipeOut }

func (s *PipeSource) Caps() Capabilities {
	return Capabilities{StartAdr: false, RandomAccessReadable: false, Exclusive: true}
}

func (s *PipeSource) TruncateTo(blocks uint32) error { return nil }

func (s *PipeSource) Release() error {
	s.released = true
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

package writer

import (
	"io"
	"os"

	"github.com/google/renameio"
	"github.com/orcaman/writerseeker"

	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/isoerr"
	"github.com/rstms/isoburn/pkg/severity"
)

// headerBlocks is the size of the LBA 0 emulated-TOC header copy, per
// spec §6's persisted-state layout (32 blocks, 64 KiB).
const headerBlocks = 32

// StageHeader captures a 64 KiB copy of the first session's header area
// from source into an in-memory seekable buffer, for later commit with
// WriteHeader. Staging before committing lets the caller retain the
// original session-0 bytes even if subsequent writes touch the same
// region in a later session.
func StageHeader(source blocksource.Source, firstSessionStartLBA uint32) (*writerseeker.WriterSeeker, error) {
	ws := &writerseeker.WriterSeeker{}
	var buf [headerBlocks * blocksource.SectorSize]byte
	if err := source.ReadBlocks(firstSessionStartLBA, headerBlocks, buf[:]); err != nil {
		return nil, isoerr.Wrap(isoerr.Transport, isoerr.CodeDataSourceMishap, "staging emul-toc header", err)
	}
	if _, err := ws.Write(buf[:]); err != nil {
		return nil, isoerr.Wrap(isoerr.Transport, isoerr.CodeOutOfMemory, "buffering emul-toc header", err)
	}
	return ws, nil
}

// WriteHeader commits a staged header copy to LBA 0..31 of the backend,
// per spec §4.7's "emul-toc header" step: skipped entirely when plan's
// EmulTOC flag is off, and only applicable for a session that is not the
// first (msc2 not overridden).
func WriteHeader(source blocksource.Source, plan *Plan, staged *writerseeker.WriterSeeker) error {
	if !plan.EmulTOC || staged == nil {
		return nil
	}
	var buf [headerBlocks * blocksource.SectorSize]byte
	if _, err := io.ReadFull(staged.Reader(), buf[:]); err != nil {
		return isoerr.Wrap(isoerr.Transport, isoerr.CodeDataSourceMishap, "reading staged header", err)
	}
	if err := source.WriteBlocks(0, headerBlocks, buf[:]); err != nil {
		return isoerr.Wrap(isoerr.Transport, isoerr.CodeOutOfRange, "writing emul-toc header to LBA 0", err)
	}
	return nil
}

// TruncateAfterWrite truncates a regular-file backend to plan's resulting
// nwa, per spec §4.7's truncate step. Unlike the source it is grounded on,
// which discards the truncate system call's error (spec §9's third open
// question), this surfaces failure as at least a WARNING.
func TruncateAfterWrite(path string, nwaBlocks uint32) *isoerr.Error {
	if err := os.Truncate(path, int64(nwaBlocks)*blocksource.SectorSize); err != nil {
		return isoerr.Wrap(isoerr.Transport, isoerr.CodeOutOfRange, "truncate after write", err).
			WithSeverity(severity.WARNING)
	}
	return nil
}

// ReplaceFileAtomically rewrites path's content atomically using
// renameio, for the case where the emul-toc header must be written as a
// wholesale file replacement rather than an in-place write (e.g. when the
// backend is a plain regular file opened read-only elsewhere and cannot
// be reopened for a partial write).
func ReplaceFileAtomically(path string, content []byte) error {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return isoerr.Wrap(isoerr.Transport, isoerr.CodeOutOfMemory, "creating temp file for atomic replace", err)
	}
	defer t.Cleanup()

	if _, err := t.Write(content); err != nil {
		return isoerr.Wrap(isoerr.Transport, isoerr.CodeOutOfRange, "writing atomic replacement content", err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return isoerr.Wrap(isoerr.Transport, isoerr.CodeOutOfRange, "committing atomic replacement", err)
	}
	return nil
}

package session

import (
	"fmt"
	"io"
	"os"

	"github.com/rstms/isoburn/pkg/nodetree"
	"github.com/rstms/isoburn/pkg/writer"
)

// sessionContentSource implements writer.ContentSource for a Commit: file
// content carried over from the loaded image is read through the session's
// displaced cache reader at its recorded Extents, exactly like
// imageContentOpener; content a prior Sync staged from disk (new or
// overwritten files, which clone with no Extents per cloneDiskNode) is
// opened directly from the host path Sync recorded for that ISO path.
type sessionContentSource struct {
	image      writer.ContentSource
	diskByPath map[string]string
}

func (c sessionContentSource) Open(n *nodetree.Node, isoPath string) (io.ReadCloser, error) {
	if len(n.Extents) > 0 {
		return c.image.Open(n, isoPath)
	}
	if path, ok := c.diskByPath[isoPath]; ok {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("session: opening staged disk content %s for %s: %w", path, isoPath, err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("session: no content source for %s (neither image extents nor staged disk path)", isoPath)
}

// imageContentSource adapts imageContentOpener's update.ContentOpener shape
// to writer.ContentSource, ignoring the isoPath argument since an
// image-origin node's own Extents already address its content.
type imageContentSource struct {
	reader interface {
		Open(n *nodetree.Node) (io.ReadCloser, error)
	}
}

func (c imageContentSource) Open(n *nodetree.Node, _ string) (io.ReadCloser, error) {
	return c.reader.Open(n)
}

// CommitOptions governs one Commit pass.
type CommitOptions struct {
	Serializer writer.TreeSerializer
	Overrides  writer.Overrides
	Backend    writer.BackendWriteTypeChecker
	// Alignment is the backend's write alignment in bytes, per spec §4.7;
	// 0 lets BuildPlan fall back to its own default.
	Alignment uint32
	// FirstSessionStartLBA is session 0's start, used to stage the
	// existing emul-toc header before overwriting it; ignored unless the
	// resulting plan calls for a header (multi-session, EmulTOC enabled).
	FirstSessionStartLBA uint32
}

// Commit serializes the session's current Node Tree and writes it through
// the session's Block Source, per spec §4.7's commit data flow. It resolves
// file content from the loaded image's Extents where available and from
// whatever a prior Sync staged from disk otherwise, via stagedDiskPaths.
func (s *Session) Commit(opts CommitOptions) (*writer.CommitResult, error) {
	if opts.Serializer == nil {
		opts.Serializer = writer.PlainSerializer{}
	}
	content := sessionContentSource{
		image:      imageContentSource{reader: s.imageContentOpener()},
		diskByPath: s.stagedDiskPaths,
	}
	return writer.Commit(s.Source, s.Classified, s.Tree, content, opts.Serializer, opts.Overrides, opts.Backend, opts.Alignment, opts.FirstSessionStartLBA, s.Path)
}

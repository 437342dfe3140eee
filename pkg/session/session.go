// Package session is the top-level entry point wiring the Medium
// Classifier (C3), Image Loader (C5, via pkg/treebuilder), Update Engine
// (C8), and Write Planner (C7) into the single open/diff/sync/commit
// lifecycle a caller (a CLI or another program) actually wants.
package session

import (
	"fmt"

	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/cache"
	"github.com/rstms/isoburn/pkg/exclude"
	"github.com/rstms/isoburn/pkg/loader"
	"github.com/rstms/isoburn/pkg/logging"
	"github.com/rstms/isoburn/pkg/medium"
	"github.com/rstms/isoburn/pkg/nodetree"
	"github.com/rstms/isoburn/pkg/toc"
	"github.com/rstms/isoburn/pkg/treebuilder"
	"github.com/rstms/isoburn/pkg/update"
)

// Session holds an opened medium's classification and its loaded Node
// Tree, plus whatever the tree builder found while reading it.
type Session struct {
	Path       string
	Source     blocksource.Source
	Classified *medium.ClassifiedMedium
	Tree       *nodetree.Tree
	Found      *loader.FoundExtensions
	Logger     *logging.Logger

	// reader re-reads image content at the same displaced addressing the
	// tree builder used, independent of the cache loader.Load builds and
	// discards internally once the tree is assembled.
	reader *cache.ReaderAt

	// stagedDiskPaths maps an ISO full path to the host file Sync staged
	// its content from, for nodes a commit must read from disk rather than
	// from the loaded image's Extents. Populated by Sync, consumed by
	// Commit.
	stagedDiskPaths map[string]string
}

// Open classifies the medium at path and loads its last session's Node
// Tree, per spec §4.3 and §4.5. realTOC is nil for regular image files and
// block devices that cannot report a real table of contents themselves;
// pass one obtained from an actual optical drive when available.
func Open(path string, profile int, realTOC *toc.TOC, cflags medium.Flags, ropts loader.ReadOptions, logger *logging.Logger) (*Session, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	src, err := blocksource.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: opening %s: %w", path, err)
	}

	cm, err := medium.Classify(src, profile, realTOC, cflags)
	if err != nil {
		_ = src.Release()
		return nil, fmt.Errorf("session: classifying %s: %w", path, err)
	}

	builder := treebuilder.New(logger)
	tree, found, err := loader.Load(src, cm, nil, builder, ropts)
	if err != nil {
		_ = src.Release()
		return nil, fmt.Errorf("session: loading %s: %w", path, err)
	}

	reader, err := contentReader(src, cm, ropts)
	if err != nil {
		_ = src.Release()
		return nil, fmt.Errorf("session: opening content reader for %s: %w", path, err)
	}

	return &Session{Path: path, Source: src, Classified: cm, Tree: tree, Found: found, Logger: logger, reader: reader}, nil
}

// contentReader rebuilds the same displaced Tiled Cache the Image Loader
// used internally, so Diff/Sync/Extract can read file content from the
// session's image at the addresses recorded on its nodetree.Extents.
// loader.Load does not expose the cache it builds (it is discarded once the
// tree is assembled), so the session keeps an independent one over the same
// source and displacement instead of threading a new return value through
// the Image Loader's public signature.
func contentReader(src blocksource.Source, cm *medium.ClassifiedMedium, ropts loader.ReadOptions) (*cache.ReaderAt, error) {
	if cm == nil || cm.Status == medium.StatusBlank {
		return nil, nil
	}
	displacement := cache.Displacement{Value: ropts.Displacement, Sign: ropts.DisplacementSign}
	c, err := cache.New(src, displacement, ropts.CacheTiles, ropts.CacheTileBlocks)
	if err != nil {
		return nil, err
	}
	return cache.NewReaderAt(c), nil
}

// OpenBlank returns a Session with an empty tree, as if path named blank
// media, without touching any backing file. Useful for building a first
// session from a host directory with no prior image to reconcile against.
func OpenBlank(logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Session{Tree: nodetree.New(), Found: &loader.FoundExtensions{}, Logger: logger}
}

// Close releases the session's backing Block Source, if any.
func (s *Session) Close() error {
	if s.Source == nil {
		return nil
	}
	return s.Source.Release()
}

// DiffOptions governs one reconciliation pass between a host directory and
// this session's loaded image, per spec §4.8.
type DiffOptions struct {
	Walk    update.WalkOptions
	Compare update.CompareOptions
	Mode    update.Mode
}

// Diff walks diskRoot and the session's image tree in lockstep and reports
// what a Sync would do, without mutating the image tree.
func (s *Session) Diff(diskRoot string, opts DiffOptions) ([]update.Result, error) {
	diskTree, diskPaths, err := update.WalkDisk(diskRoot, opts.Walk)
	if err != nil {
		return nil, fmt.Errorf("session: walking %s: %w", diskRoot, err)
	}
	diskOpen := update.NewDiskOpener(diskPaths)
	imageOpen := s.imageContentOpener()

	engineOpts := update.Options{
		Mode:         opts.Mode,
		Compare:      opts.Compare,
		Excl:         opts.Walk.Excl,
		FollowLinks:  opts.Walk.FollowLinks,
		LinkHopLimit: opts.Walk.LinkHopLimit,
	}
	return update.Run(diskTree, s.Tree, diskOpen, imageOpen, engineOpts, true), nil
}

// Sync walks diskRoot against the session's image tree and applies the
// reconciliation policy matrix, mutating s.Tree in place. The caller is
// responsible for committing the resulting tree to the Write Planner.
func (s *Session) Sync(diskRoot string, opts DiffOptions) ([]update.Result, error) {
	diskTree, diskPaths, err := update.WalkDisk(diskRoot, opts.Walk)
	if err != nil {
		return nil, fmt.Errorf("session: walking %s: %w", diskRoot, err)
	}
	diskOpen := update.NewDiskOpener(diskPaths)
	imageOpen := s.imageContentOpener()

	engineOpts := update.Options{
		Mode:         opts.Mode,
		Compare:      opts.Compare,
		Excl:         opts.Walk.Excl,
		FollowLinks:  opts.Walk.FollowLinks,
		LinkHopLimit: opts.Walk.LinkHopLimit,
	}
	results := update.Run(diskTree, s.Tree, diskOpen, imageOpen, engineOpts, false)
	s.recordStagedDiskPaths(diskPaths)
	return results, nil
}

// recordStagedDiskPaths remembers, by ISO full path, the host file backing
// each disk-origin node Sync just walked. A disk-origin node's image-side
// clone carries no Extents (see update.cloneDiskNode), so a later Commit
// cannot read its content from the image; it reads from this map instead.
// The disk tree and the image tree share the same path shape under their
// respective roots, so a disk node's own FullPath is also its counterpart's
// path in the image tree once Sync has reconciled it in.
func (s *Session) recordStagedDiskPaths(diskPaths map[*nodetree.Node]string) {
	if s.stagedDiskPaths == nil {
		s.stagedDiskPaths = make(map[string]string, len(diskPaths))
	}
	for n, path := range diskPaths {
		if n.IsDir() {
			continue
		}
		s.stagedDiskPaths[n.FullPath()] = path
	}
}

// Extract pulls every file in the session's image tree out to destRoot, in
// LBA order, per spec §4.8's extraction pass.
func (s *Session) Extract(destRoot string) error {
	return update.ExtractLBASorted(s.Tree, destRoot, s.imageContentOpener())
}

// NoExclusions is a convenience zero-value exclusion set for callers that
// do not need §4.8's pattern-based skipping.
func NoExclusions() *exclude.Set { return nil }

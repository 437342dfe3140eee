package update

import (
	"sort"

	"github.com/rstms/isoburn/pkg/exclude"
	"github.com/rstms/isoburn/pkg/nodetree"
)

// Options governs one Run of the Update Engine, grounded on spec §4.8.
type Options struct {
	Mode         Mode
	Compare      CompareOptions
	Excl         *exclude.Set
	FollowLinks  bool
	LinkHopLimit int
}

// Result is one node pair's outcome, returned in traversal order.
type Result struct {
	Path   string
	Disk   *nodetree.Node
	Image  *nodetree.Node
	Mask   Mask
	Action Action
}

// Run walks diskTree and imageTree in lockstep by path and returns one
// Result per node encountered on either side. compareOnly mirrors spec
// §4.8's "compare mode is identical up to but excluding the action step":
// when true, each Result keeps the Action Decide chose, but no action is
// applied and no tree is mutated.
func Run(diskTree, imageTree *nodetree.Tree, diskOpen, imageOpen ContentOpener, opts Options, compareOnly bool) []Result {
	var results []Result
	visitLockstep(diskTree.Root(), imageTree.Root(), "/", diskOpen, imageOpen, opts, func(r Result) {
		results = append(results, r)
	})

	if compareOnly {
		return results
	}

	for _, r := range results {
		applyAction(diskTree, imageTree, r)
	}
	return results
}

func visitLockstep(disk, image *nodetree.Node, p string, diskOpen, imageOpen ContentOpener, opts Options, emit func(Result)) {
	names := unionChildNames(disk, image)
	for _, name := range names {
		childPath := joinISO(p, name)
		if opts.Excl != nil && opts.Excl.Excluded(childPath) {
			continue
		}
		var dChild, iChild *nodetree.Node
		if disk != nil {
			dChild, _ = disk.Child(name)
		}
		if image != nil {
			iChild, _ = image.Child(name)
		}

		m := Compare(dChild, iChild, diskOpen, imageOpen, opts.Compare)
		action := Decide(m, opts.Mode)
		emit(Result{Path: childPath, Disk: dChild, Image: iChild, Mask: m, Action: action})

		if dChild != nil && dChild.IsDir() && iChild != nil && iChild.IsDir() {
			visitLockstep(dChild, iChild, childPath, diskOpen, imageOpen, opts, emit)
		} else if dChild != nil && dChild.IsDir() && iChild == nil {
			visitLockstep(dChild, nil, childPath, diskOpen, imageOpen, opts, emit)
		} else if iChild != nil && iChild.IsDir() && dChild == nil {
			visitLockstep(nil, iChild, childPath, diskOpen, imageOpen, opts, emit)
		}
	}
}

func unionChildNames(disk, image *nodetree.Node) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(n *nodetree.Node) {
		if n == nil {
			return
		}
		for _, c := range n.Children() {
			if !seen[c.Name()] {
				seen[c.Name()] = true
				out = append(out, c.Name())
			}
		}
	}
	add(disk)
	add(image)
	sort.Strings(out)
	return out
}

// applyAction performs the tree mutation spec §4.8's policy matrix names
// for a single result. Hard-link fusion/split detection runs on overwrite
// and add-from-disk, matching the "before re-adding" ordering in §4.8.
func applyAction(diskTree, imageTree *nodetree.Tree, r Result) {
	parentPath := parentDirOf(r.Path)
	switch r.Action {
	case ActionDeleteImage:
		imageTree.Remove(r.Path, true)

	case ActionAddFromDisk, ActionDeleteAndReAdd, ActionOverwrite:
		if r.Action != ActionAddFromDisk {
			_ = imageTree.Remove(r.Path, true)
		}
		clone := cloneDiskNode(r.Disk)
		parent, err := imageTree.Lookup(parentPath)
		if err != nil {
			return
		}
		if err := imageTree.AddChild(parent, clone); err != nil {
			return
		}
		ResolveHardlinks(imageTree, diskTree, Plan{Disk: r.Disk, Image: r.Image}, clone)

	case ActionCopyAttrsOnly:
		if r.Image == nil {
			return
		}
		r.Image.Mode = r.Disk.Mode
		r.Image.UID = r.Disk.UID
		r.Image.GID = r.Disk.GID
		r.Image.MTime = r.Disk.MTime
		r.Image.ATime = r.Disk.ATime
		r.Image.CTime = r.Disk.CTime
		r.Image.ACL = r.Disk.ACL
		r.Image.Xattr = r.Disk.Xattr
	}
}

func cloneDiskNode(n *nodetree.Node) *nodetree.Node {
	switch n.Type {
	case nodetree.TypeDirectory:
		c := nodetree.NewDirectory(n.Name())
		c.Mode = n.Mode
		return c
	case nodetree.TypeSymlink:
		c := nodetree.NewSymlink(n.Name(), n.SymlinkTarget)
		c.Mode = n.Mode
		return c
	case nodetree.TypeFIFO:
		return nodetree.NewFIFO(n.Name())
	case nodetree.TypeSocket:
		return nodetree.NewSocket(n.Name())
	case nodetree.TypeDevice:
		c := nodetree.NewDevice(n.Name(), n.Mode, n.DevMajor, n.DevMinor)
		return c
	default:
		c := nodetree.NewFile(n.Name())
		c.Mode = n.Mode
		return c
	}
}

func parentDirOf(p string) string {
	if p == "/" {
		return "/"
	}
	i := len(p) - 1
	for i > 0 && p[i] != '/' {
		i--
	}
	if i == 0 {
		return "/"
	}
	return p[:i]
}

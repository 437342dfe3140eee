package update

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/rstms/isoburn/pkg/exclude"
	"github.com/rstms/isoburn/pkg/nodetree"
)

// WalkOptions governs how WalkDisk builds a tree from a host directory, per
// spec §4.8's "recursion and exclusion" paragraph.
type WalkOptions struct {
	Excl         *exclude.Set
	FollowLinks  bool
	LinkHopLimit int
}

// linkLimit returns the configured hop limit, defaulting to 40 (matching a
// typical PATH_MAX-derived bound) when unset.
func (o WalkOptions) linkLimit() int {
	if o.LinkHopLimit <= 0 {
		return 40
	}
	return o.LinkHopLimit
}

// WalkDisk walks the host directory rooted at root and returns a Tree whose
// nodes carry diskPath metadata (via diskPaths) for later content access by
// Compare and Extract. Symlink cycles are broken by tracking (dev, ino)
// pairs currently on the traversal stack, per spec §4.8.
func WalkDisk(root string, opts WalkOptions) (*nodetree.Tree, map[*nodetree.Node]string, error) {
	tree := nodetree.New()
	paths := make(map[*nodetree.Node]string)
	paths[tree.Root()] = root

	info, err := os.Lstat(root)
	if err != nil {
		return nil, nil, err
	}
	tree.Root().Mode = info.Mode().Perm()
	applyStat(tree.Root(), info)

	var stack []devIno
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		stack = append(stack, devIno{uint64(st.Dev), st.Ino})
	}

	if err := walkChildren(tree, tree.Root(), root, "/", opts, paths, stack, 0); err != nil {
		return nil, nil, err
	}
	return tree, paths, nil
}

type devIno struct {
	dev, ino uint64
}

func walkChildren(tree *nodetree.Tree, parent *nodetree.Node, diskDir, isoDir string, opts WalkOptions, paths map[*nodetree.Node]string, stack []devIno, depth int) error {
	entries, err := os.ReadDir(diskDir)
	if err != nil {
		return err
	}
	for _, ent := range entries {
		childDiskPath := filepath.Join(diskDir, ent.Name())
		childISOPath := joinISO(isoDir, ent.Name())

		if opts.Excl != nil && opts.Excl.Excluded(childISOPath) {
			continue
		}

		info, err := os.Lstat(childDiskPath)
		if err != nil {
			continue
		}

		node, recurse, newStack, err := buildNode(ent.Name(), childDiskPath, info, opts, stack, depth)
		if err != nil {
			continue
		}
		if err := tree.AddChild(parent, node); err != nil {
			continue
		}
		paths[node] = childDiskPath

		if recurse {
			if err := walkChildren(tree, node, childDiskPath, childISOPath, opts, paths, newStack, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildNode classifies one directory entry into a detached Node, following
// a symlink only when opts.FollowLinks is set, and reports whether the
// caller should recurse into it as a directory.
func buildNode(name, diskPath string, info os.FileInfo, opts WalkOptions, stack []devIno, depth int) (*nodetree.Node, bool, []devIno, error) {
	mode := info.Mode()

	switch {
	case mode&os.ModeSymlink != 0:
		target, err := os.Readlink(diskPath)
		if err != nil {
			return nil, false, stack, err
		}
		n := nodetree.NewSymlink(name, target)
		applyStat(n, info)
		if !opts.FollowLinks {
			return n, false, stack, nil
		}
		real, err := os.Stat(diskPath)
		if err != nil || !real.IsDir() {
			return n, false, stack, nil
		}
		di, onStack := statDevIno(real, stack)
		if onStack || depth >= opts.linkLimit() {
			return n, false, stack, nil
		}
		dirNode := nodetree.NewDirectory(name)
		applyStat(dirNode, real)
		return dirNode, true, append(stack, di), nil

	case mode.IsDir():
		n := nodetree.NewDirectory(name)
		applyStat(n, info)
		di, _ := statDevIno(info, stack)
		return n, true, append(stack, di), nil

	case mode&os.ModeNamedPipe != 0:
		n := nodetree.NewFIFO(name)
		applyStat(n, info)
		return n, false, stack, nil

	case mode&os.ModeSocket != 0:
		n := nodetree.NewSocket(name)
		applyStat(n, info)
		return n, false, stack, nil

	case mode&(os.ModeDevice|os.ModeCharDevice) != 0:
		major, minor := rdevMajorMinor(info)
		n := nodetree.NewDevice(name, mode&(os.ModeDevice|os.ModeCharDevice), major, minor)
		applyStat(n, info)
		return n, false, stack, nil

	default:
		n := nodetree.NewFile(name)
		applyStat(n, info)
		// Disk-side nodes carry no real image extents; a single synthetic
		// entry records the file's size so size comparisons work the same
		// way for both sides. Content is actually read via diskPaths.
		n.Extents = []nodetree.Extent{sizeExtent(info.Size())}
		return n, false, stack, nil
	}
}

// sizeExtent builds a synthetic single-extent record carrying size bytes,
// used to represent a disk file's size on the Node's Extents field without
// implying any real Block Source placement.
func sizeExtent(size int64) nodetree.Extent {
	if size == 0 {
		return nodetree.Extent{}
	}
	const blockSize = 2048
	blocks := uint32((size + blockSize - 1) / blockSize)
	last := uint32(size % blockSize)
	if last == 0 {
		last = blockSize
	}
	return nodetree.Extent{Blocks: blocks, LastBlockSize: last}
}

func joinISO(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

func applyStat(n *nodetree.Node, info os.FileInfo) {
	n.Mode = (n.Mode &^ os.ModePerm) | info.Mode().Perm()
	n.MTime = info.ModTime()
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		n.UID = st.Uid
		n.GID = st.Gid
		n.ATime = statATime(st)
		n.CTime = statCTime(st)
		n.RecordedDevIno = &nodetree.DevIno{Dev: uint64(st.Dev), Ino: st.Ino}
	}
}

func statDevIno(info os.FileInfo, stack []devIno) (devIno, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return devIno{}, false
	}
	di := devIno{uint64(st.Dev), st.Ino}
	for _, s := range stack {
		if s == di {
			return di, true
		}
	}
	return di, false
}

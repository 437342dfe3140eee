package update

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rstms/isoburn/pkg/nodetree"
)

// ExtractTarget pairs an image node with the destination path it extracts
// to and the LBA used to order reads, per spec §4.8's LBA-sorted
// extraction.
type ExtractTarget struct {
	Node     *nodetree.Node
	DestPath string
	LBA      uint32
}

// CollectExtractTargets performs the "no-op walk" spec §4.8 describes:
// gathering every destination node under image without reading content,
// so the caller can sort by LBA before doing any real I/O.
func CollectExtractTargets(image *nodetree.Tree, destRoot string) []ExtractTarget {
	var out []ExtractTarget
	var walk func(n *nodetree.Node, destPath string)
	walk = func(n *nodetree.Node, destPath string) {
		if !n.IsRoot() {
			lba := uint32(0)
			if len(n.Extents) > 0 {
				lba = n.Extents[0].StartLBA
			}
			out = append(out, ExtractTarget{Node: n, DestPath: destPath, LBA: lba})
		}
		for _, c := range n.Children() {
			walk(c, filepath.Join(destPath, c.Name()))
		}
	}
	walk(image.Root(), destRoot)
	return out
}

// ExtractLBASorted implements spec §4.8's LBA-sorted extraction: collect,
// sort by image LBA, create directories, then read content in sorted
// order, turning random-access reads into a near-sequential pattern.
func ExtractLBASorted(image *nodetree.Tree, destRoot string, opener ContentOpener) error {
	targets := CollectExtractTargets(image, destRoot)

	for _, t := range targets {
		if t.Node.IsDir() {
			if err := os.MkdirAll(t.DestPath, t.Node.Mode.Perm()|0700); err != nil {
				return err
			}
		}
	}

	sorted := make([]ExtractTarget, 0, len(targets))
	for _, t := range targets {
		if !t.Node.IsDir() {
			sorted = append(sorted, t)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].LBA < sorted[j].LBA })

	for _, t := range sorted {
		if err := extractOne(t, opener); err != nil {
			return err
		}
	}
	return nil
}

func extractOne(t ExtractTarget, opener ContentOpener) error {
	switch t.Node.Type {
	case nodetree.TypeSymlink:
		_ = os.Remove(t.DestPath)
		return os.Symlink(t.Node.SymlinkTarget, t.DestPath)
	case nodetree.TypeFIFO, nodetree.TypeSocket, nodetree.TypeDevice, nodetree.TypeBootPlaceholder:
		return nil
	default:
		src, err := opener.Open(t.Node)
		if err != nil {
			return err
		}
		defer src.Close()
		dst, err := os.OpenFile(t.DestPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, t.Node.Mode.Perm())
		if err != nil {
			return err
		}
		defer dst.Close()
		_, err = io.Copy(dst, src)
		return err
	}
}

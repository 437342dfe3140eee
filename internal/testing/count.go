package testing

import "github.com/rstms/isoburn/pkg/nodetree"

// GetFileAndFolderCounts walks a tree rooted at root and reports the
// number of directory and non-directory nodes beneath it (root itself is
// not counted).
func GetFileAndFolderCounts(root *nodetree.Node) (int, int) {
	var folderCount, fileCount int

	var walk func(n *nodetree.Node)
	walk = func(n *nodetree.Node) {
		if !n.IsRoot() {
			if n.IsDir() {
				folderCount++
			} else {
				fileCount++
			}
		}
		for _, child := range n.Children() {
			walk(child)
		}
	}

	walk(root)
	return folderCount, fileCount
}

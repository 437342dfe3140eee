package update

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstms/isoburn/pkg/nodetree"
)

type memOpener struct {
	content map[*nodetree.Node][]byte
}

func (m memOpener) Open(n *nodetree.Node) (io.ReadCloser, error) {
	b, ok := m.content[n]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func fileNode(name string, content []byte) *nodetree.Node {
	n := nodetree.NewFile(name)
	n.Extents = []nodetree.Extent{sizeExtent(int64(len(content)))}
	return n
}

func TestDiffMaskNames(t *testing.T) {
	var m Mask
	m.Set(MissingOnDisk)
	m.Set(ContentDiffers)
	require.Equal(t, []string{"missing-on-disk", "content-differs"}, m.Names())
}

func TestDecidePolicyMatrix(t *testing.T) {
	var missingDisk, missingImage, typeDiff, overwrite, attrOnly, equal Mask
	missingDisk.Set(MissingOnDisk)
	missingImage.Set(MissingInImage)
	typeDiff.Set(TypeDiffers)
	overwrite.Set(ContentDiffers)
	attrOnly.Set(PermissionBitsDiffer)
	attrOnly.Set(MTimeDiffers)

	require.Equal(t, ActionDeleteImage, Decide(missingDisk, Mode{}))
	require.Equal(t, ActionNothing, Decide(missingDisk, Mode{Merge: true}))
	require.Equal(t, ActionAddFromDisk, Decide(missingImage, Mode{}))
	require.Equal(t, ActionDeleteAndReAdd, Decide(typeDiff, Mode{}))
	require.Equal(t, ActionOverwrite, Decide(overwrite, Mode{}))
	require.Equal(t, ActionCopyAttrsOnly, Decide(attrOnly, Mode{}))
	require.Equal(t, ActionNothing, Decide(equal, Mode{}))
}

func TestCompareContentDiffersByChunk(t *testing.T) {
	disk := fileNode("a", []byte("hello world"))
	image := fileNode("a", []byte("hello there"))
	opener := memOpener{content: map[*nodetree.Node][]byte{
		disk:  []byte("hello world"),
		image: []byte("hello there"),
	}}
	m := Compare(disk, image, opener, opener, CompareOptions{})
	require.True(t, m.Has(ContentDiffers))
}

func TestCompareEqualContent(t *testing.T) {
	disk := fileNode("a", []byte("same"))
	image := fileNode("a", []byte("same"))
	opener := memOpener{content: map[*nodetree.Node][]byte{
		disk:  []byte("same"),
		image: []byte("same"),
	}}
	m := Compare(disk, image, opener, opener, CompareOptions{})
	require.False(t, m.Has(ContentDiffers))
	require.False(t, m.Has(SizeDiffers))
}

func TestCompareMissingSides(t *testing.T) {
	n := nodetree.NewFile("a")
	m := Compare(nil, n, memOpener{}, memOpener{}, CompareOptions{})
	require.True(t, m.Has(MissingOnDisk))

	m2 := Compare(n, nil, memOpener{}, memOpener{}, CompareOptions{})
	require.True(t, m2.Has(MissingInImage))
}

func TestExtractLBASorted(t *testing.T) {
	tree := nodetree.New()
	a := nodetree.NewFile("b")
	a.Extents = []nodetree.Extent{{StartLBA: 300}}
	b := nodetree.NewFile("a")
	b.Extents = []nodetree.Extent{{StartLBA: 100}}
	require.NoError(t, tree.AddChild(tree.Root(), a))
	require.NoError(t, tree.AddChild(tree.Root(), b))

	targets := CollectExtractTargets(tree, "/tmp/out")
	require.Len(t, targets, 2)

	dir := t.TempDir()
	opener := memOpener{content: map[*nodetree.Node][]byte{
		a: []byte("AAA"),
		b: []byte("BBB"),
	}}
	require.NoError(t, ExtractLBASorted(tree, dir, opener))

	gotA, err := os.ReadFile(filepath.Join(dir, "b"))
	require.NoError(t, err)
	require.Equal(t, "AAA", string(gotA))

	gotB, err := os.ReadFile(filepath.Join(dir, "a"))
	require.NoError(t, err)
	require.Equal(t, "BBB", string(gotB))
}

func TestWalkDiskBuildsTree(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("content"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.Symlink("file.txt", filepath.Join(dir, "link")))

	tree, paths, err := WalkDisk(dir, WalkOptions{})
	require.NoError(t, err)

	f, err := tree.Lookup("/file.txt")
	require.NoError(t, err)
	require.Equal(t, nodetree.TypeFile, f.Type)
	require.Equal(t, filepath.Join(dir, "file.txt"), paths[f])

	sub, err := tree.Lookup("/sub")
	require.NoError(t, err)
	require.True(t, sub.IsDir())

	link, err := tree.Lookup("/link")
	require.NoError(t, err)
	require.Equal(t, nodetree.TypeSymlink, link.Type)
	require.Equal(t, "file.txt", link.SymlinkTarget)
}

func TestRunLockstepAddFromDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("new"), 0644))

	diskTree, diskPaths, err := WalkDisk(dir, WalkOptions{})
	require.NoError(t, err)
	imageTree := nodetree.New()

	results := Run(diskTree, imageTree, NewDiskOpener(diskPaths), memOpener{}, Options{}, false)
	require.Len(t, results, 1)
	require.Equal(t, ActionAddFromDisk, results[0].Action)

	_, err = imageTree.Lookup("/new.txt")
	require.NoError(t, err)
}

func TestRunLockstepDeleteMissingOnDisk(t *testing.T) {
	diskTree := nodetree.New()
	imageTree := nodetree.New()
	stale := nodetree.NewFile("stale.txt")
	require.NoError(t, imageTree.AddChild(imageTree.Root(), stale))

	results := Run(diskTree, imageTree, memOpener{}, memOpener{}, Options{}, false)
	require.Len(t, results, 1)
	require.Equal(t, ActionDeleteImage, results[0].Action)

	_, err := imageTree.Lookup("/stale.txt")
	require.Error(t, err)
}

func TestResolveHardlinksFusion(t *testing.T) {
	diskTree := nodetree.New()
	di := nodetree.DevIno{Dev: 1, Ino: 42}
	a := nodetree.NewFile("a")
	a.RecordedDevIno = &di
	b := nodetree.NewFile("b")
	b.RecordedDevIno = &di
	require.NoError(t, diskTree.AddChild(diskTree.Root(), a))
	require.NoError(t, diskTree.AddChild(diskTree.Root(), b))

	imageTree := nodetree.New()
	newImageNode := nodetree.NewFile("b")
	require.NoError(t, imageTree.AddChild(imageTree.Root(), newImageNode))

	extra := ResolveHardlinks(imageTree, diskTree, Plan{Disk: b}, newImageNode)
	require.True(t, extra.Has(HardlinkFusion))
	require.NotNil(t, newImageNode.RecordedDevIno)
	require.Equal(t, di, *newImageNode.RecordedDevIno)
}

package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/cache"
	"github.com/rstms/isoburn/pkg/loader"
	"github.com/rstms/isoburn/pkg/logging"
	"github.com/rstms/isoburn/pkg/nodetree"
	"github.com/rstms/isoburn/pkg/treebuilder"
)

func TestSessionSyncThenCommitWritesStagedDiskContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello from disk"), 0644))

	s := &Session{
		Tree:   nodetree.New(),
		Found:  &loader.FoundExtensions{},
		Logger: logging.DefaultLogger(),
		Source: newMemSource(64),
	}

	results, err := s.Sync(dir, DiffOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Contains(t, s.stagedDiskPaths, "/hello.txt")

	result, err := s.Commit(CommitOptions{})
	require.NoError(t, err)
	require.True(t, result.Written > 0)

	src := s.Source.(*memSource)
	c, err := cache.New(src, cache.Displacement{}, 4, 8)
	require.NoError(t, err)
	reader := cache.NewReaderAt(c)

	built, _, err := treebuilder.New(nil).Build(reader, result.Plan.StartLBA, loader.ReadOptions{})
	require.NoError(t, err)

	file, ok := built.Root().Child("hello.txt")
	require.True(t, ok)
	require.Len(t, file.Extents, 1)

	content := readExtent(t, src, file.Extents[0])
	require.Equal(t, "hello from disk", content)
}

// readExtent reads a single-extent file's bytes directly off src, avoiding a
// second displaced cache for this one assertion.
func readExtent(t *testing.T, src *memSource, ext nodetree.Extent) string {
	t.Helper()
	n := int(ext.LastBlockSize)
	if n == 0 {
		n = int(ext.Blocks) * blocksource.SectorSize
	}
	buf := make([]byte, int(ext.Blocks)*blocksource.SectorSize)
	require.NoError(t, src.ReadBlocks(ext.StartLBA, ext.Blocks, buf))
	return string(buf[:n])
}

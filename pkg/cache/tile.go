// Package cache implements the tiled read cache (C2) that sits between the
// high-level image reader and a raw blocksource.Source: an LRU cache of N
// tiles of M blocks each, with displacement translation and per-tile error
// suppression so a single bad block on the medium does not repeatedly
// retry the same failing read.
package cache

import "github.com/rstms/isoburn/pkg/blocksource"

// tile is one cache slot: either empty, or holding tileBlocks worth of
// contiguous payload starting at an aligned LBA.
type tile struct {
	empty                bool
	baseLBA              uint32
	payload              []byte
	age                  int
	hits                 int
	hasLastError         bool
	lastErrorLBA         uint32
	hasLastAlignedError  bool
	lastAlignedErrorLBA  uint32
}

func newTile(tileBlocks uint32) *tile {
	return &tile{empty: true, payload: make([]byte, int(tileBlocks)*blocksource.SectorSize)}
}

func (t *tile) markEmpty() {
	t.empty = true
}

func (t *tile) recordAlignedError(aligned uint32) {
	t.hasLastAlignedError = true
	t.lastAlignedErrorLBA = aligned
}

func (t *tile) recordError(lba uint32) {
	t.hasLastError = true
	t.lastErrorLBA = lba
}

func (t *tile) matchesAlignedError(aligned uint32) bool {
	return t.hasLastAlignedError && t.lastAlignedErrorLBA == aligned
}

func (t *tile) matchesLastError(lba uint32) bool {
	return t.hasLastError && t.lastErrorLBA == lba
}

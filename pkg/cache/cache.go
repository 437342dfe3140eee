package cache

import (
	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/isoerr"
)

const (
	DefaultTileCount  = 32
	DefaultTileBlocks = 32

	// maxAge is the age-overflow cap named in the design notes; once the
	// running age counter reaches it every tile's age is rebased to keep
	// LRU comparisons well-formed.
	maxAge = 2000000000

	// maxCacheBlocks bounds total cache size at 1 GiB.
	maxCacheBlocks = (1 << 30) / blocksource.SectorSize
)

// Cache is the tiled read cache (C2): an LRU of tileCount tiles, each
// holding tileBlocks contiguous blocks, fronting a blocksource.Source with
// a fixed displacement and per-tile error suppression.
type Cache struct {
	source       blocksource.Source
	tiles        []*tile
	tileBlocks   uint32
	displacement Displacement
	currentAge   int
	detached     bool
}

// New builds a Cache over source. tileCount and tileBlocks default to 32
// and 32 when zero. tileBlocks must be a power of two.
func New(source blocksource.Source, displacement Displacement, tileCount, tileBlocks uint32) (*Cache, error) {
	if tileCount == 0 {
		tileCount = DefaultTileCount
	}
	if tileBlocks == 0 {
		tileBlocks = DefaultTileBlocks
	}
	if tileBlocks&(tileBlocks-1) != 0 {
		return nil, isoerr.New(isoerr.Programming, isoerr.CodeBadArgument, "tile_blocks must be a power of two")
	}
	if tileCount < 1 {
		return nil, isoerr.New(isoerr.Programming, isoerr.CodeBadArgument, "tile count must be >= 1")
	}
	if uint64(tileCount)*uint64(tileBlocks) > maxCacheBlocks {
		return nil, isoerr.New(isoerr.Programming, isoerr.CodeBadArgument, "requested cache exceeds 1 GiB limit")
	}

	tiles := make([]*tile, tileCount)
	for i := range tiles {
		tiles[i] = newTile(tileBlocks)
	}
	return &Cache{
		source:       source,
		tiles:        tiles,
		tileBlocks:   tileBlocks,
		displacement: displacement,
		currentAge:   1,
	}, nil
}

// Detach releases the backing source; subsequent ReadBlock calls fail with
// ASSERT_FAILURE. This supports releasing the drive while higher layers
// may still hold a reference to the cache.
func (c *Cache) Detach() {
	c.detached = true
	c.source = nil
}

func (c *Cache) bumpAge() int {
	c.currentAge++
	if c.currentAge >= maxAge {
		for _, t := range c.tiles {
			t.age = 0
		}
		c.currentAge = 1
	}
	return c.currentAge
}

// ReadBlock implements the six-step tiled-read algorithm.
func (c *Cache) ReadBlock(lba uint32, buf []byte) error {
	if c.detached {
		return isoerr.AssertFailure("cache read after detach")
	}
	if len(buf) < blocksource.SectorSize {
		return isoerr.New(isoerr.Programming, isoerr.CodeBadArgument, "read_block buffer smaller than one sector")
	}

	physical, err := c.displacement.Apply(lba)
	if err != nil {
		return err
	}

	aligned := physical &^ (c.tileBlocks - 1)

	for _, t := range c.tiles {
		if !t.empty && t.baseLBA == aligned {
			t.hits++
			t.age = c.bumpAge()
			off := int(physical-aligned) * blocksource.SectorSize
			copy(buf, t.payload[off:off+blocksource.SectorSize])
			return nil
		}
	}

	victim := c.chooseVictim()
	victim.markEmpty()

	if victim.matchesAlignedError(aligned) {
		return c.fallbackSingleRead(victim, physical, buf)
	}

	if err := c.source.ReadBlocks(aligned, c.tileBlocks, victim.payload); err != nil {
		victim.recordAlignedError(aligned)
		return c.fallbackSingleRead(victim, physical, buf)
	}

	victim.empty = false
	victim.baseLBA = aligned
	victim.hits = 1
	victim.age = c.bumpAge()
	off := int(physical-aligned) * blocksource.SectorSize
	copy(buf, victim.payload[off:off+blocksource.SectorSize])
	return nil
}

// fallbackSingleRead is taken when a tile-sized read is known or found to
// fail: it retries just the one requested block, unless that exact block
// already failed last time, and reports DATA_SOURCE_MISHAP on failure.
func (c *Cache) fallbackSingleRead(victim *tile, physical uint32, buf []byte) error {
	if victim.matchesLastError(physical) {
		victim.recordError(physical)
		return isoerr.DataSourceMishap(physical, nil)
	}
	if err := c.source.ReadBlocks(physical, 1, buf[:blocksource.SectorSize]); err != nil {
		victim.recordError(physical)
		return isoerr.DataSourceMishap(physical, err)
	}
	return nil
}

// chooseVictim picks the first empty tile, else the tile with the lowest
// age.
func (c *Cache) chooseVictim() *tile {
	for _, t := range c.tiles {
		if t.empty {
			return t
		}
	}
	victim := c.tiles[0]
	for _, t := range c.tiles[1:] {
		if t.age < victim.age {
			victim = t
		}
	}
	return victim
}

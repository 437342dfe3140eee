package main

import (
	"github.com/rstms/isoburn/pkg/loader"
	"github.com/rstms/isoburn/pkg/update"
)

// defaultReadOptions mirrors libisoburn's usual defaults: Rock Ridge and
// Joliet both honored if present, Joliet preferred for display names when
// both are present, and the Tiled Cache sized the same way pkg/cache
// defaults to on its own.
func defaultReadOptions() loader.ReadOptions {
	return loader.ReadOptions{
		PreferJoliet:    true,
		CacheTiles:      32,
		CacheTileBlocks: 32,
	}
}

// defaultWalkOptions governs how a host directory is walked for diff/sync:
// symlinks are reported as symlinks rather than followed, matching
// xorriso's default (-follow off).
func defaultWalkOptions() update.WalkOptions {
	return update.WalkOptions{
		FollowLinks:  false,
		LinkHopLimit: 40,
	}
}

func defaultCompareOptions() update.CompareOptions {
	return update.CompareOptions{MD5QuickMode: false}
}

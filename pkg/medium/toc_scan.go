package medium

import (
	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/toc"
)

// maxSessionGapBlocks bounds how far emulate_toc will scan forward looking
// for the next session header before giving up, per spec §4.3's read-only
// scan gap limit of 65536 blocks (reused here for the overwriteable chain
// scan too, since nothing in the spec gives it a separate bound).
const maxSessionGapBlocks = 65536

func alignUp32(v uint32) uint32 {
	return (v + 31) &^ 31
}

// scanSessionChain implements emulate_toc: starting at headerBlocks,
// repeatedly finds the next session header - first trying the expected
// 32-block-aligned cursor, else its 16-block fallback (to accommodate
// growisofs alignment), else stepping the cursor forward by 32 blocks at a
// time up to maxSessionGapBlocks - and records one TOC entry per
// recognized header, advancing past it by its own (32-block-rounded)
// length.
func scanSessionChain(source blocksource.Source, headerBlocks uint32) ([]toc.Entry, error) {
	capacityBlocks, known := source.ReadCapacity().Blocks()
	if !known {
		capacityBlocks = 0
	}

	var entries []toc.Entry
	cursor := headerBlocks
	session := 1
	for {
		startLBA, length, found, err := probeNextSession(source, cursor, capacityBlocks)
		if err != nil {
			return entries, err
		}
		if !found {
			break
		}
		entries = append(entries, toc.Entry{
			Session:  session,
			Track:    1,
			StartLBA: startLBA,
			Blocks:   length,
		})
		session++
		cursor = startLBA + alignUp32(length)
	}
	return entries, nil
}

func probeNextSession(source blocksource.Source, start, capacityBlocks uint32) (uint32, uint32, bool, error) {
	cursor := start
	var scanned uint32
	var buf [blocksource.SectorSize]byte

	for scanned <= maxSessionGapBlocks {
		if capacityBlocks > 0 && cursor >= capacityBlocks {
			return 0, 0, false, nil
		}
		if err := source.ReadBlocks(cursor, 1, buf[:]); err == nil && recognizePVD(buf[:]) {
			return cursor, volumeSpaceSize(buf[:]), true, nil
		}

		fallback := cursor + 16
		if capacityBlocks == 0 || fallback < capacityBlocks {
			if err := source.ReadBlocks(fallback, 1, buf[:]); err == nil && recognizePVD(buf[:]) {
				return fallback, volumeSpaceSize(buf[:]), true, nil
			}
		}

		cursor += 32
		scanned += 32
	}
	return 0, 0, false, nil
}

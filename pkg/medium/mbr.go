package medium

import "encoding/binary"

// mbrPartitionEntrySize is the byte size of one of the four MBR partition
// table entries at bytes 446..509.
const mbrPartitionEntrySize = 16

// recognizedMBROffset implements spec §6's MBR embedded-offset heuristic:
// a single partition entry aligned to 2 KiB boundaries that reaches image
// end is credible evidence the image was written with an embedded
// partition table ahead of the ISO 9660 data. Returns the offset in blocks
// and true if a credible entry was found, within the offset<=480 blocks
// acceptance bound (spec §8 property 6).
func recognizedMBROffset(header []byte, imageBlocks uint32) (uint32, bool) {
	if len(header) < 512 {
		return 0, false
	}
	if header[510] != 0x55 || header[511] != 0xAA {
		return 0, false
	}

	for i := 0; i < 4; i++ {
		off := 446 + i*mbrPartitionEntrySize
		entry := header[off : off+mbrPartitionEntrySize]

		status := entry[0]
		if status != 0x00 && status != 0x80 {
			continue
		}
		chsStart := entry[1:4]
		if chsStart[0] == 0 && chsStart[1] == 0 && chsStart[2] == 0 {
			continue
		}
		lbaStart := binary.LittleEndian.Uint32(entry[8:12])
		lbaSize := binary.LittleEndian.Uint32(entry[12:16])

		if lbaStart%4 != 0 || lbaSize%4 != 0 {
			continue
		}
		if lbaSize < 72 {
			continue
		}
		if lbaStart+lbaSize != imageBlocks {
			continue
		}
		if lbaStart > 480 {
			continue
		}
		return lbaStart, true
	}
	return 0, false
}

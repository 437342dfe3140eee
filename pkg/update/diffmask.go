// Package update implements the Update Engine (C8): recursive disk<->image
// comparison and reconciliation, with hard-link awareness, grounded on
// xorriso's cmp_update.c.
package update

// DiffBit names one bit of the 32-bit difference mask spec §4.8 defines by
// name rather than by position.
type DiffBit uint32

const (
	MissingOnDisk DiffBit = 1 << iota
	MissingInImage
	PermissionBitsDiffer
	TypeDiffers
	UIDDiffers
	GIDDiffers
	RdevDiffers
	SizeDiffers
	MTimeDiffers
	ATimeDiffers
	CTimeDiffers
	DiskOpenFailed
	ImageOpenFailed
	DiskEOFEarly
	ImageEOFEarly
	ContentDiffers
	SymlinkPointsToExistingDirInImage
	FileIsSplitChunks
	SplitChunksIncomplete
	ACLDiffers
	XattrDiffers
	DevInoMismatch
	DevInoMissingFromImage
	ImageNodeNewerThanRecordedEpoch
	HardlinkSplit
	HardlinkFusion
)

// Mask is the accumulated set of DiffBit observed for one node pair.
type Mask uint32

func (m Mask) Has(bit DiffBit) bool { return m&Mask(bit) != 0 }
func (m *Mask) Set(bit DiffBit)     { *m |= Mask(bit) }

// bitNames is used by Mask.String for human-readable reporting, per spec
// §4.8's "emits human-readable differences on the result channel, one per
// bit set".
var bitNames = []struct {
	bit  DiffBit
	name string
}{
	{MissingOnDisk, "missing-on-disk"},
	{MissingInImage, "missing-in-image"},
	{PermissionBitsDiffer, "permission-bits-differ"},
	{TypeDiffers, "type-differs"},
	{UIDDiffers, "uid-differs"},
	{GIDDiffers, "gid-differs"},
	{RdevDiffers, "rdev-differs"},
	{SizeDiffers, "size-differs"},
	{MTimeDiffers, "mtime-differs"},
	{ATimeDiffers, "atime-differs"},
	{CTimeDiffers, "ctime-differs"},
	{DiskOpenFailed, "disk-open-failed"},
	{ImageOpenFailed, "image-open-failed"},
	{DiskEOFEarly, "disk-eof-early"},
	{ImageEOFEarly, "image-eof-early"},
	{ContentDiffers, "content-differs"},
	{SymlinkPointsToExistingDirInImage, "symlink-on-disk-points-to-dir-that-exists-in-image"},
	{FileIsSplitChunks, "file-is-split-chunks"},
	{SplitChunksIncomplete, "split-chunks-incomplete"},
	{ACLDiffers, "acl-differs"},
	{XattrDiffers, "xattr-differs"},
	{DevInoMismatch, "dev-ino-mismatch"},
	{DevInoMissingFromImage, "dev-ino-missing-from-image"},
	{ImageNodeNewerThanRecordedEpoch, "image-node-newer-than-recorded-epoch"},
	{HardlinkSplit, "hardlink-split"},
	{HardlinkFusion, "hardlink-fusion"},
}

// Names returns the human-readable names of every bit set in m, in the
// canonical order above.
func (m Mask) Names() []string {
	var out []string
	for _, e := range bitNames {
		if m.Has(e.bit) {
			out = append(out, e.name)
		}
	}
	return out
}

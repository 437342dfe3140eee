package medium

// Flags are the classify-time behavior switches named in spec §4.3. This
// is an explicit option struct, not an opaque bitfield, per the REDESIGN
// FLAGS in §9.
type Flags struct {
	PretendBlankOnOverwriteable       bool
	ProbeROMBySuperblockScan          bool
	SuppressOverwriteableTOCEmulation bool
	IgnoreExternalACL                 bool
	IgnoreExternalXattr               bool
	PretendROM                        bool
	ScanWithoutLBA0Header             bool
}

// headerBlocks returns the default or zero header size used as the
// emulate_toc scan starting cursor.
func (f Flags) headerBlocks() uint32 {
	if f.ScanWithoutLBA0Header {
		return 0
	}
	return 32
}

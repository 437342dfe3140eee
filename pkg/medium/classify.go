package medium

import (
	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/isoerr"
	"github.com/rstms/isoburn/pkg/toc"
)

// ClassifiedMedium is the classify() result named in spec §4.3 step 5:
// profile, role, random-access flag, fabricated status (if any), emulated
// TOC (if any), nwa, zero_nwa, and recognized partition offset.
type ClassifiedMedium struct {
	Profile         int
	Role            blocksource.Role
	RandomAccess    bool
	Status          Status
	Fabricated      bool
	TOC             *toc.TOC
	NWA             uint32
	ZeroNWA         uint32
	MinStartByte    int64
	PartitionOffset uint32
	HasPartition    bool
	HeaderBlocks    uint32

	// FabricatedMSC1 is the single-shot override resolved in DESIGN.md's
	// Open Question 2: set only when the caller demanded pretend-blank, an
	// emulated session was recognized as msc1 on a read-only backend, or an
	// emulated erase (erase.go) returned a blank medium;
	// consumed and cleared by the Image Loader on its next Load.
	FabricatedMSC1 *uint32
}

// readOnly approximates "not read-only" as the presence of the start-adr
// write capability, since blocksource.Source models no separate read-only
// bit: every Source that is writable at all exposes StartAdr.
func readOnly(caps blocksource.Capabilities) bool {
	return !caps.StartAdr
}

// Classify implements the §4.3 algorithm. realTOC is the TOC reported
// directly by a real optical backend, or nil when the backend cannot
// report one (regular files, block devices, and emulation-only drives).
func Classify(source blocksource.Source, profile int, realTOC *toc.TOC, flags Flags) (*ClassifiedMedium, error) {
	role := source.Role()
	caps := source.Caps()

	randomAccess := caps.StartAdr || role == blocksource.RoleRegularFile

	cm := &ClassifiedMedium{
		Profile:      profile,
		Role:         role,
		RandomAccess: randomAccess,
		HeaderBlocks: flags.headerBlocks(),
		ZeroNWA:      flags.headerBlocks(),
	}

	if randomAccess && !readOnly(caps) {
		return classifyRandomAccessWritable(source, profile, flags, cm)
	}
	return classifyReadOnly(source, profile, realTOC, flags, cm)
}

func classifyRandomAccessWritable(source blocksource.Source, profile int, flags Flags, cm *ClassifiedMedium) (*ClassifiedMedium, error) {
	var buf [32 * blocksource.SectorSize]byte

	intermediateDVDRW := profile == ProfileIntermediateDVDRW
	if err := source.ReadBlocks(0, 32, buf[:]); err != nil {
		// A failed header read on otherwise-writable media still permits
		// blank/first-session treatment; fall through with an all-zero
		// buffer (detected below as blank).
	}

	if intermediateDVDRW && allZero(buf[:]) {
		cm.MinStartByte = 0
		cm.ZeroNWA = 0
	}

	if flags.PretendBlankOnOverwriteable && cm.Role != blocksource.RolePipeOut {
		cm.Status = StatusBlank
		cm.Fabricated = true
		cm.NWA = cm.ZeroNWA
		msc1 := cm.ZeroNWA
		cm.FabricatedMSC1 = &msc1
		return cm, nil
	}

	switch {
	case allZero(buf[:]):
		cm.Status = StatusBlank
		cm.Fabricated = true
		cm.NWA = cm.ZeroNWA
	case recognizePVD(buf[32768:34816]):
		cm.Status = StatusAppendable
		cm.Fabricated = true
		cm.NWA = volumeSpaceSize(buf[32768:34816])
	default:
		cm.Status = StatusClosed
		cm.Fabricated = true
	}

	if offset, ok := recognizedMBROffset(buf[:512], cm.NWA); ok {
		cm.PartitionOffset = offset
		cm.HasPartition = true
		cm.HeaderBlocks += offset
	}

	if !flags.SuppressOverwriteableTOCEmulation {
		entries, err := scanSessionChain(source, cm.HeaderBlocks)
		if err != nil {
			// A scan error skips only the TOC-emulation aspect: the
			// classification so far is returned without a TOC, and the
			// error is not reported to the caller.
			return cm, nil
		}
		if len(entries) > 0 {
			cm.TOC = toc.New(entries)
		}
	}

	return cm, nil
}

func classifyReadOnly(source blocksource.Source, profile int, realTOC *toc.TOC, flags Flags, cm *ClassifiedMedium) (*ClassifiedMedium, error) {
	capBlocks, known := source.ReadCapacity().Blocks()
	if known && capBlocks == 0 {
		cm.Status = StatusEmpty
		return cm, nil
	}

	tracks := 0
	if realTOC != nil {
		tracks = len(realTOC.Entries())
	}

	if tracks >= 2 {
		cm.Status = StatusClosed
		return cm, nil
	}

	entries, err := scanSessionChain(source, cm.HeaderBlocks)
	if err != nil || len(entries) == 0 {
		if profile != ProfileCDR && flags.ProbeROMBySuperblockScan {
			entries, err = scanAtCoarseResolution(source)
			if err != nil {
				return cm, isoerr.DiscUnsuitable("superblock scan failed")
			}
		}
	}
	if len(entries) > 0 {
		cm.TOC = toc.New(entries)
		msc1 := entries[0].StartLBA
		cm.FabricatedMSC1 = &msc1
	}
	cm.Status = StatusClosed
	return cm, nil
}

// scanAtCoarseResolution is the 16-block-resolution fallback scan used on
// read-only, non-CD-R media when the ordinary header chain is not found,
// bounded by the 65536-block gap limit.
func scanAtCoarseResolution(source blocksource.Source) ([]toc.Entry, error) {
	startLBA, length, found, err := probeNextSession(source, 0, 0)
	if err != nil || !found {
		return nil, err
	}
	return []toc.Entry{{Session: 1, Track: 1, StartLBA: startLBA, Blocks: length}}, nil
}

func allZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

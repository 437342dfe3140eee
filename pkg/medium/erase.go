package medium

import (
	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/isoerr"
)

// EraseMode selects how EmulateErase invalidates the existing image on a
// random-access backend in place of issuing a real blank command.
type EraseMode int

const (
	// EraseZeroFirst32 overwrites LBA 0..31 with zero bytes.
	EraseZeroFirst32 EraseMode = iota
	// ErasePatchSignature invalidates just the PVD signature, rewriting
	// "CD001" to "CDXX1" so recognizePVD subsequently fails.
	ErasePatchSignature
)

// EmulateErase performs the disc-erase emulation named in spec §4.3: on a
// random-access backend there is no real blank command, so the classifier
// either zeroes the first 32 blocks or patches the PVD signature to make
// the existing image unrecognizable, then reports the medium as
// fabricated-blank.
func EmulateErase(source blocksource.Source, mode EraseMode) (*ClassifiedMedium, error) {
	caps := source.Caps()
	if !caps.StartAdr {
		return nil, isoerr.New(isoerr.State, isoerr.CodeIncompatibleWrite,
			"disc-erase emulation requires a random-access-writable backend")
	}

	switch mode {
	case EraseZeroFirst32:
		var zero [32 * blocksource.SectorSize]byte
		if err := source.WriteBlocks(0, 32, zero[:]); err != nil {
			return nil, isoerr.Wrap(isoerr.Transport, isoerr.CodeOutOfRange, "zeroing header blocks", err)
		}
	case ErasePatchSignature:
		var buf [blocksource.SectorSize]byte
		if err := source.ReadBlocks(16, 1, buf[:]); err != nil {
			return nil, isoerr.Wrap(isoerr.Transport, isoerr.CodeDataSourceMishap, "reading PVD to patch", err)
		}
		if recognizePVD(buf[:]) {
			buf[3] = 'X'
			buf[4] = 'X'
			if err := source.WriteBlocks(16, 1, buf[:]); err != nil {
				return nil, isoerr.Wrap(isoerr.Transport, isoerr.CodeOutOfRange, "patching PVD signature", err)
			}
		}
	}

	msc1 := uint32(0)
	return &ClassifiedMedium{
		Role:           source.Role(),
		RandomAccess:   true,
		Status:         StatusBlank,
		Fabricated:     true,
		FabricatedMSC1: &msc1,
	}, nil
}

// Package writer implements the Write Planner (C7): deciding write type,
// start address, padding, alignment, and emulated-TOC header placement
// before a Node Tree is serialized and written through a Block Source.
package writer

import (
	"fmt"

	"github.com/rstms/isoburn/pkg/isoerr"
	"github.com/rstms/isoburn/pkg/medium"
	"github.com/rstms/isoburn/pkg/severity"
)

// WriteType mirrors the backend write-mode selector named in spec §4.7.
type WriteType int

const (
	WriteAuto WriteType = iota
	WriteTAO
	WriteSAO
)

func (w WriteType) String() string {
	switch w {
	case WriteAuto:
		return "auto"
	case WriteTAO:
		return "tao"
	case WriteSAO:
		return "sao"
	default:
		return fmt.Sprintf("writetype(%d)", int(w))
	}
}

// Overrides are the explicit user-supplied overrides spec §4.7 lists,
// never an opaque bitfield per the REDESIGN FLAGS in §9.
type Overrides struct {
	ExplicitStartByte *int64
	WriteType         WriteType
	PreferTAO         bool
	Padding           uint32
	StreamRecording   bool
	FSSizeBlocks      *uint32
	Truncate          bool
	EmulTOC           bool
}

// Plan is the Write Planner's decision: everything the serializer and
// Block Source need to actually perform the commit.
type Plan struct {
	StartLBA     uint32
	WriteType    WriteType
	Padding      uint32
	Truncate     bool
	EmulTOC      bool
	MultiSession bool
	ZeroNWA      uint32
}

const defaultAlignment = 32 // blocks, i.e. 64 KiB

// BackendWriteTypeChecker lets the planner verify an explicit write-type
// override against what the backend actually accepts, per spec §4.7's
// "verify the backend pre-check accepts it" step.
type BackendWriteTypeChecker interface {
	AcceptsWriteType(wt WriteType) bool
	AutoSelectWriteType() WriteType
}

// BuildPlan builds a Write Plan from a classified medium, the current nwa, and
// explicit overrides, implementing spec §4.7's decision list in order.
func BuildPlan(cm *medium.ClassifiedMedium, currentNWA uint32, overrides Overrides, backend BackendWriteTypeChecker, alignmentBytes uint32) (*Plan, error) {
	plan := &Plan{
		Padding:  overrides.Padding,
		Truncate: overrides.Truncate,
		EmulTOC:  overrides.EmulTOC,
		ZeroNWA:  cm.ZeroNWA,
	}

	if cm.Profile == medium.ProfileIntermediateDVDRW && cm.Status == medium.StatusBlank {
		if currentNWA > cm.ZeroNWA {
			return nil, isoerr.New(isoerr.State, isoerr.CodeDiscUnsuitable,
				"intermediate DVD-RW: nwa exceeds zero_nwa; deformat and reformat the medium").
				WithSeverity(severity.FAILURE)
		}
	}

	startLBA, zeroNWA, err := resolveStartAddress(cm, currentNWA, overrides, alignmentBytes)
	if err != nil {
		return nil, err
	}
	plan.StartLBA = startLBA
	plan.ZeroNWA = zeroNWA

	wt, err := resolveWriteType(overrides, backend)
	if err != nil {
		return nil, err
	}
	plan.WriteType = wt

	// On emulated-multi-session media the backend is never told this is a
	// multi-session write, per spec §4.7.
	plan.MultiSession = false

	return plan, nil
}

func resolveStartAddress(cm *medium.ClassifiedMedium, currentNWA uint32, overrides Overrides, alignmentBytes uint32) (uint32, uint32, error) {
	zeroNWA := cm.ZeroNWA

	if overrides.ExplicitStartByte != nil {
		startAlignment := int64(alignmentBytes)
		if startAlignment <= 0 {
			startAlignment = 2048
		}
		rounded := roundUp64(*overrides.ExplicitStartByte, startAlignment)
		blocks := uint32(rounded / 2048)

		if blocks < zeroNWA {
			zeroNWA = 0
		}

		if (defaultAlignment*2048)%startAlignment == 0 {
			blocks = alignUp(blocks, defaultAlignment)
		}
		return blocks, zeroNWA, nil
	}

	if cm.RandomAccess {
		// Intermediate DVD-RW forces min-start-byte=0/zero_nwa=0 (spec
		// §4.3's classify step); the max(zero_nwa, 32) floor below does not
		// apply to that case.
		intermediateDVDRWBlank := cm.Profile == medium.ProfileIntermediateDVDRW && cm.Status == medium.StatusBlank
		if intermediateDVDRWBlank {
			return currentNWA, zeroNWA, nil
		}

		// Spec invariant: on overwriteable media without an explicit
		// override, start LBA is max(zero_nwa, 32) at minimum — enforced
		// here independently of whatever currentNWA the caller passed in,
		// rather than trusting classify's nwa to already reflect it.
		floor := zeroNWA
		if floor < defaultAlignment {
			floor = defaultAlignment
		}
		start := currentNWA
		if start < floor {
			start = floor
		}
		return start, zeroNWA, nil
	}

	return currentNWA, zeroNWA, nil
}

func resolveWriteType(overrides Overrides, backend BackendWriteTypeChecker) (WriteType, error) {
	if overrides.WriteType != WriteAuto {
		if backend != nil && !backend.AcceptsWriteType(overrides.WriteType) {
			return 0, isoerr.New(isoerr.State, isoerr.CodeIncompatibleWrite, "backend rejects the requested write type")
		}
		return overrides.WriteType, nil
	}
	if backend != nil {
		return backend.AutoSelectWriteType(), nil
	}
	return WriteTAO, nil
}

func roundUp64(v, align int64) int64 {
	if align <= 0 {
		return v
	}
	return ((v + align - 1) / align) * align
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) / align * align
}

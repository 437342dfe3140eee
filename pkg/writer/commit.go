package writer

import (
	"github.com/orcaman/writerseeker"

	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/isoerr"
	"github.com/rstms/isoburn/pkg/medium"
	"github.com/rstms/isoburn/pkg/nodetree"
	"github.com/rstms/isoburn/pkg/severity"
)

// CommitResult is what a completed commit produced: the plan that was
// executed and the number of blocks actually written at plan.StartLBA.
type CommitResult struct {
	Plan    *Plan
	Written uint32
}

// Commit drives spec §4.7's full commit data flow against a single Block
// Source: build the Write Plan, stage the existing session-0 header (when
// the plan calls for one), hand the tree to the Tree Serializer, write the
// resulting bytes through source at the plan's start LBA, commit the header
// copy, and truncate a regular-file backend to the new size.
// firstSessionStartLBA is the session-0 start to stage the header from; it
// is ignored when plan.EmulTOC is false. backendPath is the backend's path
// on disk for the truncate step, empty for backends that are not plain
// files (e.g. a drive, where plan.Truncate is never set).
func Commit(source blocksource.Source, cm *medium.ClassifiedMedium, tree *nodetree.Tree, content ContentSource, serializer TreeSerializer, overrides Overrides, backend BackendWriteTypeChecker, alignmentBytes uint32, firstSessionStartLBA uint32, backendPath string) (*CommitResult, error) {
	if cm == nil {
		// A blank session (session.OpenBlank) has no classification at all;
		// BuildPlan's decision list still applies, just against an
		// unwritten, single-session medium.
		cm = &medium.ClassifiedMedium{}
	}

	plan, err := BuildPlan(cm, cm.NWA, overrides, backend, alignmentBytes)
	if err != nil {
		return nil, err
	}

	staged, err := stageHeaderIfNeeded(source, plan, firstSessionStartLBA)
	if err != nil {
		return nil, err
	}

	data, err := serializer.Serialize(tree, plan.StartLBA, content)
	if err != nil {
		return nil, err
	}
	if len(data)%blocksource.SectorSize != 0 {
		return nil, isoerr.New(isoerr.State, isoerr.CodeOutOfRange, "writer: serialized tree is not a whole number of blocks")
	}
	blocks := uint32(len(data) / blocksource.SectorSize)

	if blocks > 0 {
		if err := source.WriteBlocks(plan.StartLBA, blocks, data); err != nil {
			return nil, isoerr.Wrap(isoerr.Transport, isoerr.CodeOutOfRange, "writer: writing serialized session", err)
		}
	}

	if err := WriteHeader(source, plan, staged); err != nil {
		return nil, err
	}

	if plan.Truncate && backendPath != "" {
		if ierr := TruncateAfterWrite(backendPath, plan.StartLBA+blocks); ierr != nil {
			if severity.Compare(ierr.Severity, severity.FAILURE) >= 0 {
				return nil, ierr
			}
		}
	}

	return &CommitResult{Plan: plan, Written: blocks}, nil
}

// stageHeaderIfNeeded wraps StageHeader with plan's EmulTOC gate, so Commit
// can unconditionally pass its result to WriteHeader (which applies the
// same gate again and no-ops on a nil staged buffer).
func stageHeaderIfNeeded(source blocksource.Source, plan *Plan, firstSessionStartLBA uint32) (*writerseeker.WriterSeeker, error) {
	if !plan.EmulTOC {
		return nil, nil
	}
	return StageHeader(source, firstSessionStartLBA)
}

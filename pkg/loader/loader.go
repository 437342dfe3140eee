package loader

import (
	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/cache"
	"github.com/rstms/isoburn/pkg/isoerr"
	"github.com/rstms/isoburn/pkg/medium"
	"github.com/rstms/isoburn/pkg/nodetree"
)

// TreeBuilder is the external collaborator (explicitly out of scope per
// spec §1) that turns a byte-addressed reader positioned at a session
// start into a Node Tree. The ISO 9660/Rock Ridge/Joliet/AAIP byte-level
// codecs under pkg/iso9660 implement this via pkg/treebuilder.
type TreeBuilder interface {
	Build(r *cache.ReaderAt, startBlock uint32, opts ReadOptions) (*nodetree.Tree, *FoundExtensions, error)
}

// PendingChangesChecker reports whether a prior Node Tree obtained from
// this drive has uncommitted mutations, per spec §4.5 step 1.
type PendingChangesChecker interface {
	ChangesPending() bool
}

// Load implements the Image Loader algorithm (spec §4.5). source may be
// nil to request a fresh empty root image. cm is the classifier's result
// for source; it may be nil when source is nil.
func Load(source blocksource.Source, cm *medium.ClassifiedMedium, pending PendingChangesChecker, builder TreeBuilder, opts ReadOptions) (*nodetree.Tree, *FoundExtensions, error) {
	if pending != nil && pending.ChangesPending() {
		return nil, nil, isoerr.ChangesPending()
	}

	if source == nil || (cm != nil && cm.Status == medium.StatusBlank) || opts.PretendBlank {
		return nodetree.New(), &FoundExtensions{}, nil
	}

	if cm == nil {
		return nil, nil, isoerr.DiscUnsuitable("no classified medium for a non-nil source")
	}
	if cm.Status != medium.StatusAppendable && cm.Status != medium.StatusClosed {
		return nil, nil, isoerr.DiscUnsuitable("medium is neither appendable nor closed")
	}

	msc1, err := resolveMSC1(cm, opts)
	if err != nil {
		return nil, nil, err
	}

	displacement := cache.Displacement{Value: opts.Displacement, Sign: opts.DisplacementSign}
	physicalMSC1, err := displacement.Apply(msc1)
	if err != nil {
		return nil, nil, err
	}

	c, err := cache.New(source, displacement, opts.CacheTiles, opts.CacheTileBlocks)
	if err != nil {
		return nil, nil, err
	}

	tree, found, err := builder.Build(cache.NewReaderAt(c), physicalMSC1, opts)
	if err != nil {
		c.Detach()
		return nil, nil, err
	}
	return tree, found, nil
}

// resolveMSC1 consumes the classifier's single-shot fabricated-msc1
// override if present, clearing it, else falls back to the last TOC
// entry's start LBA (spec §4.5 step 4, "auto: last session in TOC").
func resolveMSC1(cm *medium.ClassifiedMedium, opts ReadOptions) (uint32, error) {
	if cm.FabricatedMSC1 != nil {
		msc1 := *cm.FabricatedMSC1
		cm.FabricatedMSC1 = nil
		return msc1, nil
	}
	if cm.TOC != nil {
		last := cm.TOC.LastSession()
		if len(last) > 0 {
			return last[len(last)-1].StartLBA, nil
		}
	}
	return 0, isoerr.DiscUnsuitable("no session start address available to load")
}

package update

import (
	"github.com/rstms/isoburn/pkg/nodetree"
)

// Action is the reconciliation decision spec §4.8's policy matrix assigns
// to one node pair.
type Action int

const (
	ActionNothing Action = iota
	ActionDeleteImage
	ActionAddFromDisk
	ActionDeleteAndReAdd
	ActionReportOnly
	ActionOverwrite
	ActionCopyAttrsOnly
)

func (a Action) String() string {
	switch a {
	case ActionNothing:
		return "nothing"
	case ActionDeleteImage:
		return "delete-image"
	case ActionAddFromDisk:
		return "add-from-disk"
	case ActionDeleteAndReAdd:
		return "delete-and-re-add"
	case ActionReportOnly:
		return "report-only"
	case ActionOverwrite:
		return "overwrite"
	case ActionCopyAttrsOnly:
		return "copy-attrs-only"
	default:
		return "unknown"
	}
}

// Mode distinguishes plain update from update-merge, per spec §4.8's
// "(unless update-merge mode: only mark visited)" note.
type Mode struct {
	Merge bool
}

var attrOnlyBits = Mask(0).
	set(PermissionBitsDiffer).
	set(UIDDiffers).
	set(GIDDiffers).
	set(MTimeDiffers).
	set(ATimeDiffers).
	set(CTimeDiffers).
	set(ACLDiffers).
	set(XattrDiffers).
	set(DevInoMissingFromImage)

func (m Mask) set(bit DiffBit) Mask { m.Set(bit); return m }

var overwriteBits = Mask(0).
	set(ContentDiffers).
	set(SizeDiffers).
	set(ImageOpenFailed).
	set(ImageEOFEarly)

// Decide maps an observed Mask to an Action, per spec §4.8's reconciliation
// policy matrix, evaluated top to bottom.
func Decide(m Mask, mode Mode) Action {
	switch {
	case m.Has(MissingOnDisk):
		if mode.Merge {
			return ActionNothing
		}
		return ActionDeleteImage
	case m.Has(MissingInImage):
		return ActionAddFromDisk
	case m.Has(TypeDiffers) || m.Has(RdevDiffers):
		return ActionDeleteAndReAdd
	case m.Has(DiskOpenFailed):
		return ActionReportOnly
	case m&overwriteBits != 0:
		return ActionOverwrite
	case m != 0 && m&^attrOnlyBits == 0:
		return ActionCopyAttrsOnly
	default:
		return ActionNothing
	}
}

// Plan is one reconciliation step: the action to take plus the hard-link
// fusion/split bookkeeping it requires.
type Plan struct {
	DiskPath  string
	ImagePath string
	Disk      *nodetree.Node
	Image     *nodetree.Node
	Mask      Mask
	Action    Action
}

// ResolveHardlinks applies spec §4.8's hard-link handling: on overwrite, if
// the disk file has sibling inodes already represented in the image, the
// new image node shares content with them (fusion); if an image node had
// siblings but the disk file no longer does, those siblings are split off
// via Tree.Clone rather than kept shared.
//
// newImageNode is the freshly added (or about-to-be-added) image-side node
// standing in for p.Disk; it must already be attached to imageTree.
func ResolveHardlinks(imageTree *nodetree.Tree, diskTree *nodetree.Tree, p Plan, newImageNode *nodetree.Node) Mask {
	var extra Mask

	diskSiblings := diskTree.HardlinkSiblings(p.Disk)
	if len(diskSiblings) > 0 && p.Disk.RecordedDevIno != nil {
		newImageNode.RecordedDevIno = p.Disk.RecordedDevIno
		extra.Set(HardlinkFusion)
	}

	if p.Image != nil {
		if oldSiblings := imageTree.HardlinkSiblings(p.Image); len(oldSiblings) > 0 && len(diskSiblings) == 0 {
			for _, sib := range oldSiblings {
				origPath := sib.FullPath()
				clonePath := origPath + ".split-tmp"
				cloned, err := imageTree.Clone(origPath, clonePath)
				if err != nil {
					continue
				}
				cloned.RecordedDevIno = nil
				_ = imageTree.Remove(origPath, false)
				_ = imageTree.Rename(clonePath, origPath)
			}
			extra.Set(HardlinkSplit)
		}
	}

	return extra
}

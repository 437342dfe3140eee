package cache

import "github.com/rstms/isoburn/pkg/isoerr"

// Displacement is the per-session LBA translation fabricated by the medium
// classifier for multi-session media: positive when the backing source's
// blocks are shifted forward of the logical addresses the image believes
// in, negative when shifted back, zero for a fresh or single-session medium.
type Displacement struct {
	Value uint32
	Sign  int // -1, 0, +1
}

// Apply translates a logical LBA into the backing source's physical LBA,
// reporting DISPLACE_ROLLOVER if the translation would wrap past the
// uint32 address space.
func (d Displacement) Apply(lba uint32) (uint32, error) {
	switch d.Sign {
	case 0:
		return lba, nil
	case 1:
		out := lba + d.Value
		if out < lba {
			return 0, isoerr.DisplaceRollover(lba, d.Value, d.Sign)
		}
		return out, nil
	case -1:
		if d.Value > lba {
			return 0, isoerr.DisplaceRollover(lba, d.Value, d.Sign)
		}
		return lba - d.Value, nil
	default:
		return 0, isoerr.AssertFailure("invalid displacement sign")
	}
}

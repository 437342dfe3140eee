package treebuilder

import (
	"fmt"

	"github.com/rstms/isoburn/pkg/cache"
	"github.com/rstms/isoburn/pkg/consts"
	"github.com/rstms/isoburn/pkg/iso9660/descriptor"
)

const sectorSize = consts.ISO9660_SECTOR_SIZE

// maxVolumeDescriptors bounds the System Area scan; a real volume descriptor
// set terminates well before this, so hitting the cap means the Terminator
// descriptor is missing or corrupt.
const maxVolumeDescriptors = 64

// readDescriptorSet scans the volume descriptor set starting at the session
// start's System Area (16 sectors) and classifies each sector by its type
// byte, per ECMA-119 8.1.
func readDescriptorSet(r *cache.ReaderAt, startBlock uint32) (*descriptor.VolumeDescriptorSet, error) {
	set := &descriptor.VolumeDescriptorSet{}
	for i := 0; i < maxVolumeDescriptors; i++ {
		var buf [sectorSize]byte
		off := int64(startBlock+16+uint32(i)) * sectorSize
		if _, err := r.ReadAt(buf[:], off); err != nil {
			return nil, fmt.Errorf("treebuilder: reading volume descriptor %d: %w", i, err)
		}

		switch descriptor.VolumeDescriptorType(buf[0]) {
		case descriptor.TYPE_BOOT_RECORD:
			boot := new(descriptor.BootRecordDescriptor)
			if err := boot.Unmarshal(buf); err != nil {
				return nil, fmt.Errorf("treebuilder: boot record descriptor: %w", err)
			}
			set.Boot = boot

		case descriptor.TYPE_PRIMARY_DESCRIPTOR:
			pvd := new(descriptor.PrimaryVolumeDescriptor)
			if err := pvd.Unmarshal(buf); err != nil {
				return nil, fmt.Errorf("treebuilder: primary volume descriptor: %w", err)
			}
			set.Primary = pvd

		case descriptor.TYPE_SUPPLEMENTARY_DESCRIPTOR:
			svd := new(descriptor.SupplementaryVolumeDescriptor)
			if err := svd.Unmarshal(buf); err != nil {
				return nil, fmt.Errorf("treebuilder: supplementary volume descriptor: %w", err)
			}
			set.Supplementary = append(set.Supplementary, svd)

		case descriptor.TYPE_PARTITION_DESCRIPTOR:
			part := new(descriptor.VolumePartitionDescriptor)
			if err := part.Unmarshal(buf); err != nil {
				return nil, fmt.Errorf("treebuilder: volume partition descriptor: %w", err)
			}
			set.Partition = append(set.Partition, part)

		case descriptor.TYPE_TERMINATOR_DESCRIPTOR:
			term := descriptor.NewVolumeDescriptorSetTerminator()
			if err := term.Unmarshal(buf); err != nil {
				return nil, fmt.Errorf("treebuilder: volume descriptor set terminator: %w", err)
			}
			set.Terminator = term
			return set, nil

		default:
			// Reserved descriptor type: not needed to build the tree.
		}
	}
	return nil, fmt.Errorf("treebuilder: no volume descriptor set terminator found within %d sectors", maxVolumeDescriptors)
}

// jolietSVD returns the first Supplementary Volume Descriptor carrying a
// recognized Joliet escape sequence, or nil.
func jolietSVD(set *descriptor.VolumeDescriptorSet) *descriptor.SupplementaryVolumeDescriptor {
	for _, svd := range set.Supplementary {
		if svd.HasJoliet() {
			return svd
		}
	}
	return nil
}

// iso1999SVD returns the ISO 9660:1999 "Enhanced Volume Descriptor", a
// Supplementary Volume Descriptor with version 2 and no Joliet escape
// sequence, or nil if none is present.
func iso1999SVD(set *descriptor.VolumeDescriptorSet) *descriptor.SupplementaryVolumeDescriptor {
	for _, svd := range set.Supplementary {
		if svd.VolumeDescriptorVersion == 2 && !svd.HasJoliet() {
			return svd
		}
	}
	return nil
}

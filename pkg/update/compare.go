package update

import (
	"bytes"
	"crypto/md5"
	"io"
	"os"
	"time"

	"github.com/rstms/isoburn/pkg/nodetree"
)

const contentChunkSize = 32 * 1024

// CompareOptions governs the comparison rules of spec §4.8.
type CompareOptions struct {
	MD5QuickMode bool
	Epoch        time.Time // zero means "no epoch bound": dev-ino fast path never applies
}

// ContentOpener lets Compare read a node's bytes without committing to a
// particular storage backend: the disk side opens a real file, the image
// side opens through the loader's Block Source-backed reader.
type ContentOpener interface {
	Open(n *nodetree.Node) (io.ReadCloser, error)
}

// diskOpener implements ContentOpener against real files, using the
// diskPaths map WalkDisk produced.
type diskOpener struct {
	paths map[*nodetree.Node]string
}

func (d diskOpener) Open(n *nodetree.Node) (io.ReadCloser, error) {
	p, ok := d.paths[n]
	if !ok {
		return nil, os.ErrNotExist
	}
	return os.Open(p)
}

// NewDiskOpener wraps the path map returned by WalkDisk as a ContentOpener.
func NewDiskOpener(paths map[*nodetree.Node]string) ContentOpener {
	return diskOpener{paths: paths}
}

// Compare classifies one (disk, image) node pair into a Mask, per spec
// §4.8's comparison rules. Either node may be nil (missing-on-disk /
// missing-in-image); with both nil the result is MissingOnDisk.
func Compare(disk, image *nodetree.Node, diskOpen, imageOpen ContentOpener, opts CompareOptions) Mask {
	var m Mask

	if disk == nil {
		m.Set(MissingOnDisk)
		return m
	}
	if image == nil {
		m.Set(MissingInImage)
		return m
	}

	if disk.Type != image.Type {
		m.Set(TypeDiffers)
		return m
	}

	if disk.Mode.Perm() != image.Mode.Perm() {
		m.Set(PermissionBitsDiffer)
	}
	if disk.UID != image.UID {
		m.Set(UIDDiffers)
	}
	if disk.GID != image.GID {
		m.Set(GIDDiffers)
	}
	if disk.Type == nodetree.TypeDevice && (disk.DevMajor != image.DevMajor || disk.DevMinor != image.DevMinor) {
		m.Set(RdevDiffers)
	}
	if !disk.MTime.Equal(image.MTime) {
		m.Set(MTimeDiffers)
	}
	if !disk.ATime.IsZero() && !image.ATime.IsZero() && !disk.ATime.Equal(image.ATime) {
		m.Set(ATimeDiffers)
	}
	if !disk.CTime.IsZero() && !image.CTime.IsZero() && !disk.CTime.Equal(image.CTime) {
		m.Set(CTimeDiffers)
	}
	if !aclsEqual(disk.ACL, image.ACL) {
		m.Set(ACLDiffers)
	}
	if !xattrEqual(disk.Xattr, image.Xattr) {
		m.Set(XattrDiffers)
	}

	if disk.Type == nodetree.TypeSymlink {
		if disk.SymlinkTarget != image.SymlinkTarget {
			m.Set(ContentDiffers)
		}
		return m
	}

	if disk.Type == nodetree.TypeDirectory {
		return m
	}

	if disk.Type != nodetree.TypeFile {
		return m
	}

	if diskSize(disk) != imageSize(image) {
		m.Set(SizeDiffers)
	}

	compareDevIno(disk, image, &m, opts)
	if m.Has(DevInoMismatch) || m.Has(DevInoMissingFromImage) || m.Has(ImageNodeNewerThanRecordedEpoch) {
		return compareContent(disk, image, diskOpen, imageOpen, opts, m)
	}

	// dev-ino fast path: both sides carry stable dev/ino that match, sizes
	// and mtimes already confirmed equal above, and the image node's
	// timestamps are within the epoch bound.
	if disk.RecordedDevIno != nil && image.RecordedDevIno != nil &&
		*disk.RecordedDevIno == *image.RecordedDevIno &&
		diskSize(disk) == imageSize(image) &&
		!m.Has(MTimeDiffers) &&
		withinEpoch(image, opts.Epoch) {
		return m
	}

	return compareContent(disk, image, diskOpen, imageOpen, opts, m)
}

func compareDevIno(disk, image *nodetree.Node, m *Mask, opts CompareOptions) {
	if disk.RecordedDevIno == nil {
		return
	}
	if image.RecordedDevIno == nil {
		m.Set(DevInoMissingFromImage)
		return
	}
	if *disk.RecordedDevIno != *image.RecordedDevIno {
		m.Set(DevInoMismatch)
	}
	if !opts.Epoch.IsZero() && !withinEpoch(image, opts.Epoch) {
		m.Set(ImageNodeNewerThanRecordedEpoch)
	}
}

func withinEpoch(image *nodetree.Node, epoch time.Time) bool {
	if epoch.IsZero() {
		return false
	}
	return !image.MTime.After(epoch) && !image.ATime.After(epoch) && !image.CTime.After(epoch)
}

func diskSize(n *nodetree.Node) uint64 {
	var total uint64
	for _, e := range n.Extents {
		total += e.ByteLength(2048)
	}
	return total
}

func imageSize(n *nodetree.Node) uint64 { return diskSize(n) }

// compareContent performs the byte- or MD5-level comparison step, setting
// size-differs/content-differs/eof bits as appropriate.
func compareContent(disk, image *nodetree.Node, diskOpen, imageOpen ContentOpener, opts CompareOptions, m Mask) Mask {
	if len(disk.Extents) > 1 {
		m.Set(FileIsSplitChunks)
	}

	dr, err := diskOpen.Open(disk)
	if err != nil {
		m.Set(DiskOpenFailed)
		return m
	}
	defer dr.Close()

	ir, err := imageOpen.Open(image)
	if err != nil {
		m.Set(ImageOpenFailed)
		return m
	}
	defer ir.Close()

	if opts.MD5QuickMode && image.MD5 != nil {
		h := md5.New()
		if _, err := io.Copy(h, dr); err != nil {
			m.Set(DiskEOFEarly)
			return m
		}
		var got [16]byte
		copy(got[:], h.Sum(nil))
		if got != *image.MD5 {
			m.Set(ContentDiffers)
		}
		return m
	}

	return compareChunks(dr, ir, m)
}

func compareChunks(dr, ir io.Reader, m Mask) Mask {
	bufA := make([]byte, contentChunkSize)
	bufB := make([]byte, contentChunkSize)
	for {
		na, erra := io.ReadFull(dr, bufA)
		nb, errb := io.ReadFull(ir, bufB)

		if erra != nil && erra != io.EOF && erra != io.ErrUnexpectedEOF {
			m.Set(DiskEOFEarly)
			return m
		}
		if errb != nil && errb != io.EOF && errb != io.ErrUnexpectedEOF {
			m.Set(ImageEOFEarly)
			return m
		}

		aDone := erra == io.EOF || erra == io.ErrUnexpectedEOF
		bDone := errb == io.EOF || errb == io.ErrUnexpectedEOF

		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			m.Set(ContentDiffers)
		}

		switch {
		case aDone && bDone:
			return m
		case aDone && !bDone:
			m.Set(DiskEOFEarly)
			return m
		case !aDone && bDone:
			m.Set(ImageEOFEarly)
			return m
		}
	}
}

func aclsEqual(a, b []nodetree.ACLEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func xattrEqual(a, b map[string][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || !bytes.Equal(v, ov) {
			return false
		}
	}
	return true
}

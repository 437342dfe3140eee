// Package treebuilder adapts the byte-level ISO 9660 / Rock Ridge / Joliet
// codecs under pkg/iso9660 into a pkg/nodetree.Tree, implementing
// pkg/loader.TreeBuilder. It is the external collaborator the Image Loader
// algorithm calls out to once it has picked a session and opened a Tiled
// Cache over it.
package treebuilder

import (
	"crypto/md5"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rstms/isoburn/pkg/cache"
	"github.com/rstms/isoburn/pkg/iso9660/directory"
	"github.com/rstms/isoburn/pkg/iso9660/extensions"
	"github.com/rstms/isoburn/pkg/iso9660/xattr"
	"github.com/rstms/isoburn/pkg/loader"
	"github.com/rstms/isoburn/pkg/logging"
	"github.com/rstms/isoburn/pkg/nodetree"
)

// Builder walks a session's volume descriptor set and directory hierarchy
// and assembles the result into a Node Tree.
type Builder struct {
	Logger *logging.Logger
}

// New returns a Builder. A nil logger falls back to logging.DefaultLogger.
func New(logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Builder{Logger: logger}
}

// Build implements loader.TreeBuilder.
func (b *Builder) Build(r *cache.ReaderAt, startBlock uint32, opts loader.ReadOptions) (*nodetree.Tree, *loader.FoundExtensions, error) {
	set, err := readDescriptorSet(r, startBlock)
	if err != nil {
		return nil, nil, err
	}
	if set.Primary == nil {
		return nil, nil, fmt.Errorf("treebuilder: volume descriptor set has no primary volume descriptor")
	}

	joliet := jolietSVD(set)
	usingJoliet := opts.PreferJoliet && !opts.NoJoliet && joliet != nil

	iso1999 := iso1999SVD(set)
	usingISO1999 := !usingJoliet && !opts.NoISO1999 && iso1999 != nil

	rootRecord := set.Primary.RootDirectory()
	switch {
	case usingJoliet:
		rootRecord = joliet.RootDirectory()
	case usingISO1999:
		rootRecord = iso1999.RootDirectory()
	}
	if rootRecord == nil {
		return nil, nil, fmt.Errorf("treebuilder: selected volume descriptor has no root directory record")
	}

	st := &walkState{r: r, opts: opts}
	tree := nodetree.New()
	if err := st.populateDir(tree, tree.Root(), rootRecord); err != nil {
		return nil, nil, err
	}
	st.computeChecksums(tree.Root())

	found := &loader.FoundExtensions{
		RockRidge: st.foundRockRidge,
		Joliet:    joliet != nil,
		ISO1999:   usingISO1999,
		ElTorito:  set.Boot != nil,
		ImageSize: set.Primary.VolumeSpaceSize,
	}
	return tree, found, nil
}

// walkState threads the cache reader, read options, and found-extension
// bookkeeping through the recursive directory walk.
type walkState struct {
	r              *cache.ReaderAt
	opts           loader.ReadOptions
	foundRockRidge bool
}

// populateDir reads dr's extent, decodes its directory records, and attaches
// the corresponding nodes under parent, recursing into subdirectories.
func (st *walkState) populateDir(tree *nodetree.Tree, parent *nodetree.Node, dr *directory.DirectoryRecord) error {
	buf := make([]byte, dr.DataLength)
	if len(buf) > 0 {
		if _, err := st.r.ReadAt(buf, int64(dr.LocationOfExtent)*sectorSize); err != nil {
			return fmt.Errorf("treebuilder: reading directory extent at LBA %d: %w", dr.LocationOfExtent, err)
		}
	}

	records, err := parseDirectoryRecords(buf, dr.Joliet)
	if err != nil {
		return fmt.Errorf("treebuilder: directory %q: %w", parent.FullPath(), err)
	}

	for _, rec := range records {
		if rec.IsSpecial() {
			continue
		}
		st.decodeRockRidge(rec)

		child, err := st.buildNode(rec)
		if err != nil {
			return err
		}

		if err := tree.AddChild(parent, child); err != nil {
			// A file split across multiple directory records (the
			// MultiExtent bit) reappears here under the same name; fold its
			// extent into the node already attached instead of failing.
			if existing, ok := parent.Child(child.Name()); ok && existing.Type == nodetree.TypeFile && child.Type == nodetree.TypeFile {
				existing.Extents = append(existing.Extents, child.Extents...)
				continue
			}
			return fmt.Errorf("treebuilder: attaching %q under %q: %w", child.Name(), parent.FullPath(), err)
		}

		if child.IsDir() {
			if err := st.populateDir(tree, child, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeRockRidge fills rec.RockRidge from its System Use area; record.go's
// own Unmarshal leaves System Use raw, so this is a separate pass.
func (st *walkState) decodeRockRidge(rec *directory.DirectoryRecord) {
	if st.opts.NoRockRidge || len(rec.SystemUse) == 0 {
		return
	}
	rr, err := extensions.UnmarshalRockRidge(rec.SystemUse)
	if err != nil || rr == nil || !rr.HasRockRidge() {
		return
	}
	rec.RockRidge = rr
	st.foundRockRidge = true
}

// buildNode classifies one directory record into the Node type it
// represents and applies its POSIX-ish attributes.
func (st *walkState) buildNode(rec *directory.DirectoryRecord) (*nodetree.Node, error) {
	rrEnabled := !st.opts.NoRockRidge
	name := st.decodeCharset(rec.GetBestName(rrEnabled))
	perm := rec.GetPermissions(rrEnabled)

	var n *nodetree.Node
	switch {
	case rrEnabled && rec.RockRidge != nil && rec.RockRidge.SymlinkTarget != nil:
		n = nodetree.NewSymlink(name, *rec.RockRidge.SymlinkTarget)

	case rec.IsDirectory():
		n = nodetree.NewDirectory(name)

	case perm&os.ModeNamedPipe != 0:
		n = nodetree.NewFIFO(name)

	case perm&os.ModeSocket != 0:
		n = nodetree.NewSocket(name)

	case perm&(os.ModeDevice|os.ModeCharDevice) != 0:
		var major, minor uint32
		if rrEnabled && rec.RockRidge != nil && rec.RockRidge.Major != nil && rec.RockRidge.Minor != nil {
			major, minor = *rec.RockRidge.Major, *rec.RockRidge.Minor
		}
		n = nodetree.NewDevice(name, perm, major, minor)

	default:
		n = nodetree.NewFile(name)
		if rec.DataLength > 0 || rec.LocationOfExtent != 0 {
			n.Extents = []nodetree.Extent{extentFor(rec)}
		}
	}

	st.applyAttrs(n, rec, perm)
	return n, nil
}

// extentFor converts a directory record's (LBA, length) pair into a single
// Extent. Blocks is rounded up since DataLength need not be block-aligned.
func extentFor(rec *directory.DirectoryRecord) nodetree.Extent {
	const blockSize = sectorSize
	if rec.DataLength == 0 {
		return nodetree.Extent{StartLBA: rec.LocationOfExtent}
	}
	blocks := (rec.DataLength + blockSize - 1) / blockSize
	last := rec.DataLength - (blocks-1)*blockSize
	return nodetree.Extent{StartLBA: rec.LocationOfExtent, Blocks: blocks, LastBlockSize: last}
}

// applyAttrs copies ownership, timestamps, and permission bits from a
// directory record onto n. Device nodes keep the block/char type bit
// embedded in Mode (see nodetree.NewDevice); every other type stores
// permission bits only.
func (st *walkState) applyAttrs(n *nodetree.Node, rec *directory.DirectoryRecord, perm os.FileMode) {
	rrEnabled := !st.opts.NoRockRidge

	rrHasPerm := rrEnabled && rec.RockRidge != nil && rec.RockRidge.Permissions != nil
	if !rrHasPerm {
		def := st.opts.DefaultFileMode
		if n.IsDir() {
			def = st.opts.DefaultDirMode
		}
		if def != 0 {
			perm = os.FileMode(def) & os.ModePerm
		}
	}

	if n.Type == nodetree.TypeDevice {
		n.Mode = (n.Mode &^ os.ModePerm) | (perm & os.ModePerm)
	} else {
		n.Mode = perm & os.ModePerm
	}

	if uid, gid := rec.GetOwnership(rrEnabled); uid != nil || gid != nil {
		if uid != nil {
			n.UID = *uid
		} else {
			n.UID = st.opts.DefaultUID
		}
		if gid != nil {
			n.GID = *gid
		} else {
			n.GID = st.opts.DefaultGID
		}
	} else {
		n.UID, n.GID = st.opts.DefaultUID, st.opts.DefaultGID
	}

	creation, modification := rec.GetTimestamps(rrEnabled)
	n.Birth = creation
	n.MTime = modification
	n.CTime = rec.RecordingDateAndTime
	n.ATime = modification
	if rrEnabled && rec.RockRidge != nil && rec.RockRidge.AccessTime != nil {
		n.ATime = *rec.RockRidge.AccessTime
	}

	if rec.FileFlags.Hidden {
		n.Hidden |= nodetree.HiddenISO
	}

	if rrEnabled && !st.opts.NoAAIP && !st.opts.NoInode &&
		rec.RockRidge != nil && rec.RockRidge.FileSerialNumber != nil {
		n.RecordedDevIno = &nodetree.DevIno{Dev: 0, Ino: *rec.RockRidge.FileSerialNumber}
	}

	if ear := st.loadExtendedAttributeRecord(rec); ear != nil {
		if n.Xattr == nil {
			n.Xattr = make(map[string][]byte)
		}
		if len(ear.ApplicationUse) > 0 {
			n.Xattr["iso9660.xar.application_use"] = ear.ApplicationUse
		}
	}
}

// loadExtendedAttributeRecord reads and decodes the classic ISO 9660
// Extended Attribute Record recorded immediately before rec's own extent,
// when rec.ExtendedAttributeRecordLength says one is present.
func (st *walkState) loadExtendedAttributeRecord(rec *directory.DirectoryRecord) *xattr.ExtendedAttributeRecord {
	if st.opts.NoExtendedAttrs || rec.ExtendedAttributeRecordLength == 0 {
		return nil
	}
	blocks := uint32(rec.ExtendedAttributeRecordLength)
	if blocks > rec.LocationOfExtent {
		return nil
	}
	buf := make([]byte, int(blocks)*sectorSize)
	if _, err := st.r.ReadAt(buf, int64(rec.LocationOfExtent-blocks)*sectorSize); err != nil {
		return nil
	}
	ear := &xattr.ExtendedAttributeRecord{}
	if err := ear.Unmarshal(buf); err != nil {
		return nil
	}
	return ear
}

// decodeCharset applies the configured input-charset handling to a name
// decoded straight off the disc: widen Latin-1 bytes to their matching
// Unicode code points when asked to, explicitly or via auto-detection, and
// pass everything else through unchanged.
func (st *walkState) decodeCharset(name string) string {
	if st.opts.AutoInputCharset {
		if utf8.ValidString(name) {
			return name
		}
		return latin1ToUTF8(name)
	}
	switch strings.ToUpper(st.opts.InputCharset) {
	case "ISO-8859-1", "ISO8859-1", "LATIN1":
		return latin1ToUTF8(name)
	default:
		return name
	}
}

func latin1ToUTF8(s string) string {
	runes := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		runes[i] = rune(s[i])
	}
	return string(runes)
}

// computeChecksums walks the tree populating MD5 over each file's extents,
// per ReadOptions.NoMD5 (0=compute, 1 and 2=skip; the distinction between
// "skip" and "skip and clear" only matters for a recorded checksum the
// loader itself never writes here).
func (st *walkState) computeChecksums(n *nodetree.Node) {
	if st.opts.NoMD5 == 0 && n.Type == nodetree.TypeFile {
		n.MD5 = st.fileMD5(n)
	}
	for _, c := range n.Children() {
		st.computeChecksums(c)
	}
}

func (st *walkState) fileMD5(n *nodetree.Node) *[16]byte {
	if len(n.Extents) == 0 {
		return nil
	}
	h := md5.New()
	for _, e := range n.Extents {
		length := e.ByteLength(sectorSize)
		if length == 0 {
			continue
		}
		buf := make([]byte, length)
		if _, err := st.r.ReadAt(buf, int64(e.StartLBA)*sectorSize); err != nil {
			return nil
		}
		h.Write(buf)
	}
	var sum [16]byte
	copy(sum[:], h.Sum(nil))
	return &sum
}

// parseDirectoryRecords decodes the sequence of directory records packed
// into a directory's extent, skipping the zero-length padding bytes that
// fill out the tail of each 2048-byte sector.
func parseDirectoryRecords(buf []byte, joliet bool) ([]*directory.DirectoryRecord, error) {
	var records []*directory.DirectoryRecord
	offset := 0
	for offset < len(buf) {
		sectorEnd := ((offset / sectorSize) + 1) * sectorSize
		if sectorEnd > len(buf) {
			sectorEnd = len(buf)
		}
		if buf[offset] == 0 {
			offset = sectorEnd
			continue
		}

		length := int(buf[offset])
		if offset+length > sectorEnd {
			return nil, fmt.Errorf("directory record at offset %d crosses a sector boundary", offset)
		}

		dr := &directory.DirectoryRecord{Joliet: joliet}
		if err := dr.Unmarshal(buf[offset : offset+length]); err != nil {
			return nil, fmt.Errorf("unmarshaling directory record at offset %d: %w", offset, err)
		}
		records = append(records, dr)
		offset += length
	}
	return records, nil
}

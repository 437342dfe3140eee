package writer

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/rstms/isoburn/pkg/blocksource"
	"github.com/rstms/isoburn/pkg/consts"
	"github.com/rstms/isoburn/pkg/iso9660/descriptor"
	"github.com/rstms/isoburn/pkg/iso9660/directory"
	"github.com/rstms/isoburn/pkg/isoerr"
	"github.com/rstms/isoburn/pkg/nodetree"
)

// ContentSource supplies the bytes backing a file node during
// serialization: the session's own cached reader for extents carried over
// unchanged, or a host path for content a Sync staged from disk. isoPath is
// the node's full path in the tree being serialized, the same join key
// Session.Sync records staged disk content under.
type ContentSource interface {
	Open(n *nodetree.Node, isoPath string) (io.ReadCloser, error)
}

// TreeSerializer is the external collaborator spec §4.7's commit data flow
// names ("Tree Serializer (external) produces a byte stream"): turning a
// Node Tree into the raw bytes of a new ISO 9660 session starting at
// startLBA. PlainSerializer below is a reference implementation grounded on
// the same pkg/iso9660 codecs the tree builder decodes with; a caller with
// richer requirements (Rock Ridge/Joliet/AAIP output, multi-extent files)
// supplies its own.
type TreeSerializer interface {
	Serialize(tree *nodetree.Tree, startLBA uint32, content ContentSource) ([]byte, error)
}

// PlainSerializer is a reference TreeSerializer producing an unadorned ISO
// 9660 session: Primary Volume Descriptor, Terminator, type-L and type-M
// path tables, directory extents, and file extents. It does not emit Rock
// Ridge, Joliet, or AAIP system-use data - those byte-level encoders are
// themselves out of this core's scope per spec §1 - and serializes only
// TypeDirectory and TypeFile nodes; symlinks, devices, FIFOs, and sockets
// are omitted, since representing them losslessly needs the Rock Ridge
// "SL"/"PN" system-use fields this serializer does not write.
type PlainSerializer struct {
	VolumeIdentifier string
	Now              time.Time
}

type dirLayout struct {
	node     *nodetree.Node
	path     string
	ptIndex  uint16 // 1-based index into the path table
	ptParent uint16
	entries  []*nodetree.Node // supported children, in placement order
	lba      uint32
	blocks   uint32
}

type fileLayout struct {
	node   *nodetree.Node
	path   string
	data   []byte
	lba    uint32
	blocks uint32
}

// Serialize implements TreeSerializer.
func (p PlainSerializer) Serialize(tree *nodetree.Tree, startLBA uint32, content ContentSource) ([]byte, error) {
	root := tree.Root()
	stamp := p.Now
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}

	dirs := collectDirs(root, "/")
	byNode := make(map[*nodetree.Node]*dirLayout, len(dirs))
	for i, d := range dirs {
		d.ptIndex = uint16(i + 1)
		byNode[d.node] = d
	}
	for _, d := range dirs {
		if d.node.Parent() == nil {
			d.ptParent = 1
		} else {
			parent, ok := byNode[d.node.Parent()]
			if !ok {
				return nil, isoerr.New(isoerr.State, isoerr.CodeOutOfRange, "serializer: directory parent not in layout")
			}
			d.ptParent = parent.ptIndex
		}
	}

	// Directory record byte length does not depend on the value of the
	// LocationOfExtent/DataLength fields, only their presence, so sizes can
	// be computed before any LBA is assigned.
	for _, d := range dirs {
		size, err := directoryExtentSize(d)
		if err != nil {
			return nil, err
		}
		d.blocks = blocksFor(size)
	}

	files, err := collectFiles(root, "/", content)
	if err != nil {
		return nil, err
	}
	filesByNode := make(map[*nodetree.Node]*fileLayout, len(files))
	for _, f := range files {
		f.blocks = blocksFor(uint32(len(f.data)))
		filesByNode[f.node] = f
	}

	ptSize := pathTableSize(dirs)
	ptBlocks := blocksFor(ptSize)

	lba := startLBA + 2 + 2*ptBlocks
	for _, d := range dirs {
		d.lba = lba
		lba += d.blocks
	}
	for _, f := range files {
		f.lba = lba
		lba += f.blocks
	}
	totalBlocks := lba - startLBA

	out := make([]byte, int(totalBlocks)*blocksource.SectorSize)
	put := func(off int64, b []byte) { copy(out[off:], b) }

	rootLayout := byNode[root]
	rootRecord := directoryRecord(root, "\x00", rootLayout.lba, rootLayout.blocks*blocksource.SectorSize, stamp)

	pvd := &descriptor.PrimaryVolumeDescriptor{
		VolumeDescriptorHeader: descriptor.VolumeDescriptorHeader{
			VolumeDescriptorType:    descriptor.TYPE_PRIMARY_DESCRIPTOR,
			StandardIdentifier:      consts.ISO9660_STD_IDENTIFIER,
			VolumeDescriptorVersion: consts.ISO9660_VOLUME_DESC_VERSION,
		},
		PrimaryVolumeDescriptorBody: descriptor.PrimaryVolumeDescriptorBody{
			SystemIdentifier:              "",
			VolumeIdentifier:              p.VolumeIdentifier,
			VolumeSpaceSize:               startLBA + totalBlocks,
			VolumeSetSize:                 1,
			VolumeSequenceNumber:          1,
			LogicalBlockSize:              blocksource.SectorSize,
			PathTableSize:                 ptSize,
			LocationOfTypeLPathTable:      startLBA + 2,
			LocationOfTypeMPathTable:      startLBA + 2 + ptBlocks,
			RootDirectoryRecord:           rootRecord,
			FileStructureVersion:          1,
			VolumeCreationDateAndTime:     stamp,
			VolumeModificationDateAndTime: stamp,
		},
	}
	pvdBytes, err := pvd.Marshal()
	if err != nil {
		return nil, isoerr.Wrap(isoerr.State, isoerr.CodeOutOfRange, "serializer: marshaling primary volume descriptor", err)
	}
	put(0, pvdBytes[:])

	term := descriptor.NewVolumeDescriptorSetTerminator()
	termBytes, err := term.Marshal()
	if err != nil {
		return nil, isoerr.Wrap(isoerr.State, isoerr.CodeOutOfRange, "serializer: marshaling terminator", err)
	}
	put(blocksource.SectorSize, termBytes[:])

	lTable, mTable := buildPathTables(dirs)
	put(int64(2)*blocksource.SectorSize, lTable)
	put(int64(2+ptBlocks)*blocksource.SectorSize, mTable)

	for _, d := range dirs {
		buf, err := directoryExtentBytes(d, byNode, filesByNode, stamp)
		if err != nil {
			return nil, err
		}
		put(int64(d.lba-startLBA)*blocksource.SectorSize, buf)
	}
	for _, f := range files {
		put(int64(f.lba-startLBA)*blocksource.SectorSize, f.data)
	}

	return out, nil
}

func blocksFor(size uint32) uint32 {
	return (size + blocksource.SectorSize - 1) / blocksource.SectorSize
}

// collectDirs walks the tree depth-first, returning every directory node
// (including root) paired with its full ISO path.
func collectDirs(n *nodetree.Node, path string) []*dirLayout {
	var out []*dirLayout
	d := &dirLayout{node: n, path: path}
	for _, c := range n.SortedChildren() {
		if !supportedType(c) {
			continue
		}
		d.entries = append(d.entries, c)
	}
	out = append(out, d)
	for _, c := range d.entries {
		if c.IsDir() {
			childPath := path
			if childPath != "/" {
				childPath += "/"
			}
			childPath += c.Name()
			out = append(out, collectDirs(c, childPath)...)
		}
	}
	return out
}

func collectFiles(n *nodetree.Node, path string, content ContentSource) ([]*fileLayout, error) {
	var out []*fileLayout
	for _, c := range n.SortedChildren() {
		if !supportedType(c) {
			continue
		}
		childPath := path
		if childPath != "/" {
			childPath += "/"
		}
		childPath += c.Name()
		if c.IsDir() {
			sub, err := collectFiles(c, childPath, content)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		r, err := content.Open(c, childPath)
		if err != nil {
			return nil, isoerr.Wrap(isoerr.Transport, isoerr.CodeDataSourceMishap, fmt.Sprintf("serializer: opening content for %s", childPath), err)
		}
		data, err := io.ReadAll(r)
		_ = r.Close()
		if err != nil {
			return nil, isoerr.Wrap(isoerr.Transport, isoerr.CodeDataSourceMishap, fmt.Sprintf("serializer: reading content for %s", childPath), err)
		}
		out = append(out, &fileLayout{node: c, path: childPath, data: data})
	}
	return out, nil
}

func supportedType(n *nodetree.Node) bool {
	return n.Type == nodetree.TypeFile || n.Type == nodetree.TypeDirectory
}

func directoryRecord(n *nodetree.Node, ident string, lba, size uint32, stamp time.Time) *directory.DirectoryRecord {
	return &directory.DirectoryRecord{
		LocationOfExtent:     lba,
		DataLength:           size,
		RecordingDateAndTime: stamp,
		FileFlags:            directory.FileFlags{Directory: n.IsDir()},
		FileIdentifier:       ident,
	}
}

// directoryExtentSize computes the byte length a directory's "."/".."/child
// records occupy; Serialize rounds it up to whole sectors with blocksFor.
// The numeric fields used as placeholders here (lba/size of 0) do not change
// any record's marshaled length.
func directoryExtentSize(d *dirLayout) (uint32, error) {
	self := directoryRecord(d.node, "\x00", 0, 0, time.Time{})
	parent := directoryRecord(d.node, "\x01", 0, 0, time.Time{})
	total := 0
	for _, rec := range []*directory.DirectoryRecord{self, parent} {
		b, err := rec.Marshal()
		if err != nil {
			return 0, isoerr.Wrap(isoerr.State, isoerr.CodeOutOfRange, "serializer: marshaling '.'/'..' record", err)
		}
		total += len(b)
	}
	for _, c := range d.entries {
		rec := directoryRecord(c, c.Name(), 0, 0, time.Time{})
		b, err := rec.Marshal()
		if err != nil {
			return 0, isoerr.Wrap(isoerr.State, isoerr.CodeOutOfRange, fmt.Sprintf("serializer: marshaling record for %q", c.Name()), err)
		}
		total += len(b)
	}
	return uint32(total), nil
}

// directoryExtentBytes builds the final, sector-padded content of one
// directory's extent, now that every node's LBA is known.
func directoryExtentBytes(d *dirLayout, byNode map[*nodetree.Node]*dirLayout, filesByNode map[*nodetree.Node]*fileLayout, stamp time.Time) ([]byte, error) {
	parentLayout := d
	if p := d.node.Parent(); p != nil {
		parentLayout = byNode[p]
	}

	var buf []byte
	self := directoryRecord(d.node, "\x00", d.lba, d.blocks*blocksource.SectorSize, stamp)
	parent := directoryRecord(d.node, "\x01", parentLayout.lba, parentLayout.blocks*blocksource.SectorSize, stamp)
	for _, rec := range []*directory.DirectoryRecord{self, parent} {
		b, err := rec.Marshal()
		if err != nil {
			return nil, isoerr.Wrap(isoerr.State, isoerr.CodeOutOfRange, "serializer: marshaling '.'/'..' record", err)
		}
		buf = append(buf, b...)
	}

	for _, c := range d.entries {
		var lba, size uint32
		if c.IsDir() {
			cl := byNode[c]
			lba, size = cl.lba, cl.blocks*blocksource.SectorSize
		} else {
			fl := filesByNode[c]
			lba, size = fl.lba, uint32(len(fl.data))
		}
		rec := directoryRecord(c, c.Name(), lba, size, stamp)
		b, err := rec.Marshal()
		if err != nil {
			return nil, isoerr.Wrap(isoerr.State, isoerr.CodeOutOfRange, fmt.Sprintf("serializer: marshaling record for %q", c.Name()), err)
		}
		buf = append(buf, b...)
	}

	padded := make([]byte, d.blocks*blocksource.SectorSize)
	copy(padded, buf)
	return padded, nil
}

// pathTableSize returns the byte length of one path table occurrence
// (identical for both byte orders).
func pathTableSize(dirs []*dirLayout) uint32 {
	var total uint32
	for _, d := range dirs {
		total += pathTableRecordSize(d)
	}
	return total
}

func pathTableRecordSize(d *dirLayout) uint32 {
	ident := "\x00"
	if d.node.Parent() != nil {
		ident = d.node.Name()
	}
	idLen := len(ident)
	size := 8 + idLen
	if idLen%2 != 0 {
		size++
	}
	return uint32(size)
}

// buildPathTables builds the type-L (little-endian) and type-M (big-endian)
// path table occurrences directly, rather than through
// pkg/iso9660/pathtable.PathTableRecord.Marshal: that type's byte-order
// selector is an unexported field set only by its own package's reader
// constructor, so a writer outside pkg/iso9660/pathtable cannot select
// little-endian encoding through it.
func buildPathTables(dirs []*dirLayout) (little, big []byte) {
	for _, d := range dirs {
		ident := "\x00"
		if d.node.Parent() != nil {
			ident = d.node.Name()
		}
		idBytes := []byte(ident)
		recLen := 8 + len(idBytes)
		if len(idBytes)%2 != 0 {
			recLen++
		}

		lRec := make([]byte, recLen)
		lRec[0] = byte(len(idBytes))
		lRec[1] = 0
		binary.LittleEndian.PutUint32(lRec[2:6], d.lba)
		binary.LittleEndian.PutUint16(lRec[6:8], d.ptParent)
		copy(lRec[8:], idBytes)
		little = append(little, lRec...)

		mRec := make([]byte, recLen)
		mRec[0] = byte(len(idBytes))
		mRec[1] = 0
		binary.BigEndian.PutUint32(mRec[2:6], d.lba)
		binary.BigEndian.PutUint16(mRec[6:8], d.ptParent)
		copy(mRec[8:], idBytes)
		big = append(big, mRec...)
	}
	return little, big
}

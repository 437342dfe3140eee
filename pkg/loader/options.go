// Package loader implements the Image Loader (C5): picking a session from
// a classified medium, building a Tiled Cache with that session's
// displacement, and invoking an external tree builder to produce a Node
// Tree.
package loader

// ReadOptions is the one-to-one mapping of spec §4.5's read-options field
// list. An explicit option struct, never an opaque bitfield, per the
// REDESIGN FLAGS in §9.
type ReadOptions struct {
	NoRockRidge       bool
	NoJoliet          bool
	NoISO1999         bool
	NoAAIP            bool
	NoExtendedAttrs   bool
	NoInode           bool
	NoMD5             int // 0=compute, 1=skip, 2=skip and clear recorded
	PreferJoliet      bool
	DefaultUID        uint32
	DefaultGID        uint32
	DefaultFileMode   uint32
	DefaultDirMode    uint32
	InputCharset      string
	AutoInputCharset  bool
	CacheTiles        uint32
	CacheTileBlocks   uint32
	Displacement      uint32
	DisplacementSign  int // -1, 0, +1
	PretendBlank      bool
}

// FoundExtensions records which extension sets the tree builder actually
// located while reading, per spec §4.5 step 7 ("record ... which extension
// sets were actually found").
type FoundExtensions struct {
	RockRidge bool
	Joliet    bool
	ISO1999   bool
	ElTorito  bool
	ImageSize uint32
}

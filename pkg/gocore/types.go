// Package pkg implements the table, memo, and index engine for the
// dBase-family file formats (DBF/DBT/FPT/CDX). It has no global state:
// every handle returned by this package owns its own file descriptors
// and buffers exclusively.
package pkg

import "time"

// FieldKind is the closed set of field types the codec understands.
// A byte outside this set decodes to Unknown rather than failing, so
// that callers can round-trip records containing field types this
// engine does not interpret.
type FieldKind byte

const (
	KindCharacter FieldKind = 'C'
	KindNumeric   FieldKind = 'N'
	KindDate      FieldKind = 'D'
	KindLogical   FieldKind = 'L'
	KindMemo      FieldKind = 'M'
	KindInteger   FieldKind = 'I'
	KindDateTime  FieldKind = 'T'
	KindUnknown   FieldKind = 0
)

// Value is the decoded form of one field within one record. Exactly
// one of the typed fields is meaningful, selected by Kind; Raw always
// holds the undecoded bytes for Unknown and is otherwise nil.
type Value struct {
	Kind     FieldKind
	Text     string
	Number   string // decimal text, sign and Decimals digits preserved
	Decimals uint8
	Date     time.Time // y/m/d only, UTC midnight
	Bool     bool
	MemoRef  MemoReference
	Int      int64
	Stamp    time.Time
	Null     bool
	Raw      []byte // Unknown kind only
}

// FieldDescriptor mirrors one 32-byte field descriptor record
// following the table header.
type FieldDescriptor struct {
	Name     string
	Kind     FieldKind
	Length   uint8
	Decimals uint8
	Offset   uint32 // computed: byte offset within a record, delete flag included
}

// TableHeader mirrors the fixed 32-byte table header.
type TableHeader struct {
	VersionFlag  byte
	LastUpdate   time.Time // y/m/d from header bytes 1-3
	RecordCount  uint32
	HeaderLength uint16
	RecordLength uint16
	LanguageDriver byte // preserved uninterpreted, never decoded
}

// HasMemo reports whether VersionFlag identifies a memo-capable
// dialect per the accepted version set.
func (h TableHeader) HasMemo() bool {
	switch h.VersionFlag {
	case 0x83, 0x8B, 0xF5:
		return true
	default:
		return false
	}
}

// acceptedVersionFlags is the full set of version_flag bytes this
// engine opens without error.
var acceptedVersionFlags = map[byte]bool{
	0x02: true, 0x03: true, 0x04: true, 0x05: true, 0x07: true,
	0x30: true, 0x31: true, 0x83: true, 0x8B: true, 0x8E: true, 0xF5: true,
}

// Record is one decoded row: the raw bytes backing it (offset-addressable
// per FieldDescriptor.Offset) plus its deleted flag and record number.
type Record struct {
	RecNo   uint32
	Deleted bool
	Raw     []byte
}

// MemoReference names a memo block by number; 0 denotes no memo content.
type MemoReference struct {
	BlockNo uint32
}

// IsZero reports whether the reference points at no content.
func (m MemoReference) IsZero() bool { return m.BlockNo == 0 }

// MemoHeader mirrors the fixed memo-file header.
type MemoHeader struct {
	NextFreeBlock uint32
	BlockSize     uint16
	Dialect       MemoDialect
}

// MemoDialect distinguishes the two memo-block addressing conventions
// named in the wire format.
type MemoDialect byte

const (
	MemoDialectIII MemoDialect = iota
	MemoDialectIV
)

// IndexHeader mirrors the fixed CDX file/tag header.
type IndexHeader struct {
	RootBlock      uint32
	FreeBlockList  uint32
	KeyLength      uint16
	IndexOptions   byte
	SignatureByte  byte
	KeyExpression  string
	ForExpression  string
	Unique         bool
	Descending     bool
}

// nodeAttribute bits within a CDX page's attribute field. A page with
// both bits set is a one-page index (root doubling as leaf); a page
// with neither bit set is an interior branch node.
const (
	attrRoot = 0x01
	attrLeaf = 0x02
)

// IndexNode is one parsed CDX page.
type IndexNode struct {
	BlockNo     uint32
	IsLeaf      bool
	IsRoot      bool
	NumKeys     uint16
	LeftSibling int32
	Keys        []IndexKey
}

// IndexKey is one key slot within an IndexNode: the key bytes, the
// record number it addresses (leaf), and the child block it precedes
// (branch).
type IndexKey struct {
	KeyBytes []byte
	RecNo    uint32
	Child    uint32
}

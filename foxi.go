// Package foxi provides a Go interface to dBase-family table, memo,
// and compound index files (DBF/DBT/FPT/CDX).
//
// Basic usage:
//
//	f := &foxi.Foxi{}
//	err := f.Open("data.dbf")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer f.Close()
//
//	f.MustFirst()
//	for !f.EOF() {
//		name := f.FieldByName("NAME").MustAsString()
//		fmt.Println(name)
//		f.MustNext()
//	}
package foxi

import (
	"strings"
	"time"
)

// Foxi represents a connection to a table file plus, when the table
// has memo fields or a production index, the attached memo and index
// files. Each Foxi instance owns its underlying handles exclusively;
// nothing about it is shared through package state.
type Foxi struct {
	path    string
	table   *tableHandle
	fields  *Fields
	recNo   int
	atBof   bool
	atEof   bool
	indexes *Indexes
}

// Open establishes a connection to the specified table file. If the
// table has memo fields, its default memo file (the table path with
// its extension replaced by ".dbt") is opened automatically when
// present.
func (f *Foxi) Open(filename string) error {
	return f.open(filename, false)
}

// Close closes the table (and any attached memo/index) and releases
// the underlying file descriptors. After Close, the Foxi instance can
// be reused by calling Open with a new filename.
func (f *Foxi) Close() error {
	return f.close()
}

// Active reports whether the table connection is open.
func (f *Foxi) Active() bool {
	return f.table != nil
}

// Header returns the table's header metadata.
func (f *Foxi) Header() Header {
	return f.header()
}

// Fields returns the field collection for the table's schema.
func (f *Foxi) Fields() *Fields {
	return f.fields
}

// FieldCount returns the number of fields in the table's schema.
func (f *Foxi) FieldCount() int {
	if f.fields == nil {
		return 0
	}
	return f.fields.Count()
}

// Field returns the field at the given zero-based index, bound to the
// current record.
func (f *Foxi) Field(index int) Field {
	if f.fields == nil {
		return nil
	}
	return f.fields.ByIndex(index)
}

// FieldByName returns the field with the given name (case-insensitive),
// bound to the current record.
func (f *Foxi) FieldByName(name string) Field {
	if f.fields == nil {
		return nil
	}
	return f.fields.ByName(name)
}

// Goto moves to the specified 1-indexed record number.
func (f *Foxi) Goto(recordNumber int) error {
	return f.goTo(recordNumber)
}

// First moves to the first record.
func (f *Foxi) First() error { return f.goTo(1) }

// Last moves to the last record.
func (f *Foxi) Last() error { return f.goTo(int(f.header().RecordCount())) }

// Next advances by one record.
func (f *Foxi) Next() error { return f.Skip(1) }

// Previous moves back by one record.
func (f *Foxi) Previous() error { return f.Skip(-1) }

// Skip moves by count records (negative moves backward).
func (f *Foxi) Skip(count int) error {
	return f.goTo(f.recNo + count)
}

// Position returns the current 1-indexed record number.
func (f *Foxi) Position() int { return f.recNo }

// EOF reports whether the cursor has advanced past the last record.
func (f *Foxi) EOF() bool { return f.atEof }

// BOF reports whether the cursor sits before the first record.
func (f *Foxi) BOF() bool { return f.atBof }

// Deleted reports whether the current record is marked deleted.
func (f *Foxi) Deleted() bool {
	return f.deleted()
}

// Delete marks the current record deleted.
func (f *Foxi) Delete() error {
	return f.delete()
}

// Recall undeletes the current record.
func (f *Foxi) Recall() error {
	return f.recall()
}

// Indexes returns the lazily-loaded index collection for this table.
func (f *Foxi) Indexes() *Indexes {
	return f.indexes
}

// ==========================================================================
// MUST VARIANTS - panic instead of returning errors
// ==========================================================================

func (f *Foxi) MustOpen(filename string) {
	if err := f.Open(filename); err != nil {
		panic(err)
	}
}

func (f *Foxi) MustGoto(recordNumber int) {
	if err := f.Goto(recordNumber); err != nil {
		panic(err)
	}
}

func (f *Foxi) MustFirst() {
	if err := f.First(); err != nil {
		panic(err)
	}
}

func (f *Foxi) MustLast() {
	if err := f.Last(); err != nil {
		panic(err)
	}
}

func (f *Foxi) MustNext() {
	if err := f.Next(); err != nil {
		panic(err)
	}
}

func (f *Foxi) MustPrevious() {
	if err := f.Previous(); err != nil {
		panic(err)
	}
}

func (f *Foxi) MustSkip(count int) {
	if err := f.Skip(count); err != nil {
		panic(err)
	}
}

func (f *Foxi) MustDelete() {
	if err := f.Delete(); err != nil {
		panic(err)
	}
}

func (f *Foxi) MustRecall() {
	if err := f.Recall(); err != nil {
		panic(err)
	}
}

// Header contains metadata about a table file.
type Header struct {
	recordCount  uint
	lastUpdated  time.Time
	hasIndex     bool
	hasMemo      bool
	languageByte byte
}

func (h Header) RecordCount() uint      { return h.recordCount }
func (h Header) LastUpdated() time.Time { return h.lastUpdated }
func (h Header) HasIndex() bool         { return h.hasIndex }
func (h Header) HasMemo() bool          { return h.hasMemo }

// LanguageDriver returns the header's raw language-driver byte,
// preserved but never interpreted by this package.
func (h Header) LanguageDriver() byte { return h.languageByte }

// Field exposes both a field's schema metadata and its value within
// the current record.
type Field interface {
	Value() (interface{}, error)
	AsString() (string, error)
	AsInt() (int, error)
	AsFloat() (float64, error)
	AsBool() (bool, error)
	AsTime() (time.Time, error)
	IsNull() (bool, error)

	MustValue() interface{}
	MustAsString() string
	MustAsInt() int
	MustAsFloat() float64
	MustAsBool() bool
	MustAsTime() time.Time
	MustIsNull() bool

	Name() string
	Type() FieldType
	Size() uint8
	Decimals() uint8
}

// Fields is the field collection for a table's schema, bound to
// whichever record the owning Foxi is currently positioned at.
type Fields struct {
	fields  []Field
	indices map[string]int
}

func (fs *Fields) Count() int { return len(fs.fields) }

func (fs *Fields) ByIndex(index int) Field {
	if index < 0 || index >= len(fs.fields) {
		return nil
	}
	return fs.fields[index]
}

func (fs *Fields) ByName(name string) Field {
	idx, ok := fs.indices[strings.ToUpper(name)]
	if !ok {
		return nil
	}
	return fs.ByIndex(idx)
}

// FieldType is the closed set of field types this package interprets,
// plus Unknown for anything else: a byte outside this set round-trips
// as opaque bytes rather than failing.
type FieldType int

const (
	FTUnknown FieldType = iota
	FTCharacter
	FTNumeric
	FTDate
	FTLogical
	FTMemo
	FTInteger
	FTDateTime
)

func (ft FieldType) String() string {
	switch ft {
	case FTCharacter:
		return "C"
	case FTNumeric:
		return "N"
	case FTDate:
		return "D"
	case FTLogical:
		return "L"
	case FTMemo:
		return "M"
	case FTInteger:
		return "I"
	case FTDateTime:
		return "T"
	default:
		return "?"
	}
}

// =========================================================================
// INDEX SUPPORT
// =========================================================================

// Indexes provides lazy-loaded access to the table's production index.
type Indexes struct {
	foxi   *Foxi
	loaded bool
	tags   []Tag
}

func (idx *Indexes) Load() error {
	return idx.load()
}

func (idx *Indexes) Count() int {
	if !idx.loaded {
		_ = idx.Load()
	}
	return len(idx.tags)
}

func (idx *Indexes) Loaded() bool { return idx.loaded }

func (idx *Indexes) Tags() []Tag {
	if !idx.loaded {
		_ = idx.Load()
	}
	return idx.tags
}

func (idx *Indexes) TagByName(name string) Tag {
	for _, t := range idx.Tags() {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

func (idx *Indexes) MustLoad() {
	if err := idx.Load(); err != nil {
		panic(err)
	}
}

// Tag represents one compound-index key expression over the table.
type Tag interface {
	Name() string
	Expression() string
	Filter() string
	KeyLength() int
	IsUnique() bool
	IsDescending() bool

	Seek(value string) (SeekResult, error)
	SeekRange(low, high string) ([]int, error)

	MustSeek(value string) SeekResult
}

// SeekResult is the outcome of a Seek.
type SeekResult int

const (
	SeekSuccess SeekResult = iota
	SeekAfter
	SeekEOF
)

func (sr SeekResult) String() string {
	switch sr {
	case SeekSuccess:
		return "success"
	case SeekAfter:
		return "after"
	case SeekEOF:
		return "eof"
	default:
		return "unknown"
	}
}

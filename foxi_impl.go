package foxi

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pkg "github.com/mkfoss/foxi/pkg/gocore"
)

// tableHandle bundles the engine-level table handle with its
// optionally-attached memo coordinator. It is the only place this
// package holds onto pkg.Table/pkg.Coordinator state.
type tableHandle struct {
	core  *pkg.Table
	coord *pkg.Coordinator
}

func (f *Foxi) open(filename string, _ bool) error {
	core, err := pkg.OpenTable(filename, false)
	if err != nil {
		return err
	}
	coord, err := pkg.AttachMemo(core, pkg.MemoModeAuto, 512, pkg.MemoDialectIII)
	if err != nil {
		core.Close()
		return err
	}
	f.table = &tableHandle{core: core, coord: coord}
	f.path = filename
	f.buildFields()
	f.indexes = &Indexes{foxi: f}
	f.recNo = 0
	f.atBof = true
	f.atEof = core.Header().RecordCount == 0
	return nil
}

func (f *Foxi) close() error {
	if f.table == nil {
		return nil
	}
	var err error
	if cErr := f.table.coord.Close(); cErr != nil {
		err = cErr
	}
	if tErr := f.table.core.Close(); tErr != nil && err == nil {
		err = tErr
	}
	f.table = nil
	f.fields = nil
	f.indexes = nil
	return err
}

func (f *Foxi) productionIndexPath() string {
	ext := ""
	if i := strings.LastIndex(f.path, "."); i >= 0 {
		ext = f.path[i:]
	}
	return strings.TrimSuffix(f.path, ext) + ".cdx"
}

func (f *Foxi) header() Header {
	h := f.table.core.Header()
	_, err := os.Stat(f.productionIndexPath())
	return Header{
		recordCount:  uint(h.RecordCount),
		lastUpdated:  h.LastUpdate,
		hasIndex:     err == nil,
		hasMemo:      f.table.coord.Memo != nil,
		languageByte: h.LanguageDriver,
	}
}

func (f *Foxi) goTo(recNo int) error {
	count := int(f.table.core.Header().RecordCount)
	if recNo < 1 {
		f.recNo = 0
		f.atBof = true
		f.atEof = count == 0
		return nil
	}
	if recNo > count {
		f.recNo = count + 1
		f.atBof = false
		f.atEof = true
		return nil
	}
	f.recNo = recNo
	f.atBof = false
	f.atEof = false
	return nil
}

func (f *Foxi) currentRecord() (pkg.Record, error) {
	return f.table.core.ReadRecord(uint32(f.recNo))
}

func (f *Foxi) deleted() bool {
	rec, err := f.currentRecord()
	if err != nil {
		return false
	}
	return rec.Deleted
}

func (f *Foxi) delete() error {
	return f.table.core.MarkDeleted(uint32(f.recNo))
}

func (f *Foxi) recall() error {
	return f.table.core.UndeleteRecord(uint32(f.recNo))
}

func (f *Foxi) buildFields() {
	descs := f.table.core.Fields()
	fs := &Fields{
		fields:  make([]Field, len(descs)),
		indices: make(map[string]int, len(descs)),
	}
	for i, fd := range descs {
		fs.fields[i] = &fieldImpl{foxi: f, fd: fd}
		fs.indices[strings.ToUpper(fd.Name)] = i
	}
	f.fields = fs
}

func toFieldType(k pkg.FieldKind) FieldType {
	switch k {
	case pkg.KindCharacter:
		return FTCharacter
	case pkg.KindNumeric:
		return FTNumeric
	case pkg.KindDate:
		return FTDate
	case pkg.KindLogical:
		return FTLogical
	case pkg.KindMemo:
		return FTMemo
	case pkg.KindInteger:
		return FTInteger
	case pkg.KindDateTime:
		return FTDateTime
	default:
		return FTUnknown
	}
}

// fieldImpl implements Field by decoding the bound field's bytes out
// of whatever record foxi is currently positioned at, on every call —
// it caches nothing, so navigating foxi is always reflected.
type fieldImpl struct {
	foxi *Foxi
	fd   pkg.FieldDescriptor
}

func (fi *fieldImpl) raw() ([]byte, error) {
	rec, err := fi.foxi.currentRecord()
	if err != nil {
		return nil, err
	}
	start := fi.fd.Offset - 1
	end := start + uint32(fi.fd.Length)
	if end > uint32(len(rec.Raw)) {
		return nil, fmt.Errorf("field %s extends past record length", fi.fd.Name)
	}
	return rec.Raw[start:end], nil
}

func (fi *fieldImpl) decode() (pkg.Value, error) {
	raw, err := fi.raw()
	if err != nil {
		return pkg.Value{}, err
	}
	return pkg.DecodeField(fi.fd.Kind, fi.fd.Name, raw, fi.fd.Decimals)
}

func (fi *fieldImpl) Value() (interface{}, error) {
	v, err := fi.decode()
	if err != nil {
		return nil, err
	}
	switch v.Kind {
	case pkg.KindCharacter:
		return v.Text, nil
	case pkg.KindNumeric:
		return v.Number, nil
	case pkg.KindDate:
		return v.Date, nil
	case pkg.KindLogical:
		return v.Bool, nil
	case pkg.KindMemo:
		return fi.foxi.table.coord.ResolveMemoText(v)
	case pkg.KindInteger:
		return v.Int, nil
	case pkg.KindDateTime:
		return v.Stamp, nil
	default:
		return v.Raw, nil
	}
}

func (fi *fieldImpl) AsString() (string, error) {
	val, err := fi.Value()
	if err != nil {
		return "", err
	}
	if s, ok := val.(string); ok {
		return s, nil
	}
	return "", nil
}

func (fi *fieldImpl) AsInt() (int, error) {
	v, err := fi.decode()
	if err != nil {
		return 0, err
	}
	if v.Kind == pkg.KindInteger {
		return int(v.Int), nil
	}
	if v.Kind == pkg.KindNumeric {
		f, err := strconv.ParseFloat(v.Number, 64)
		return int(f), err
	}
	return 0, nil
}

func (fi *fieldImpl) AsFloat() (float64, error) {
	v, err := fi.decode()
	if err != nil {
		return 0, err
	}
	if v.Kind == pkg.KindNumeric {
		return strconv.ParseFloat(v.Number, 64)
	}
	return 0, nil
}

func (fi *fieldImpl) AsBool() (bool, error) {
	v, err := fi.decode()
	if err != nil {
		return false, err
	}
	return v.Bool, nil
}

func (fi *fieldImpl) AsTime() (time.Time, error) {
	v, err := fi.decode()
	if err != nil {
		return time.Time{}, err
	}
	if v.Kind == pkg.KindDateTime {
		return v.Stamp, nil
	}
	return v.Date, nil
}

func (fi *fieldImpl) IsNull() (bool, error) {
	v, err := fi.decode()
	if err != nil {
		return false, err
	}
	return v.Null, nil
}

func (fi *fieldImpl) MustValue() interface{} {
	v, err := fi.Value()
	if err != nil {
		panic(err)
	}
	return v
}

func (fi *fieldImpl) MustAsString() string {
	v, err := fi.AsString()
	if err != nil {
		panic(err)
	}
	return v
}

func (fi *fieldImpl) MustAsInt() int {
	v, err := fi.AsInt()
	if err != nil {
		panic(err)
	}
	return v
}

func (fi *fieldImpl) MustAsFloat() float64 {
	v, err := fi.AsFloat()
	if err != nil {
		panic(err)
	}
	return v
}

func (fi *fieldImpl) MustAsBool() bool {
	v, err := fi.AsBool()
	if err != nil {
		panic(err)
	}
	return v
}

func (fi *fieldImpl) MustAsTime() time.Time {
	v, err := fi.AsTime()
	if err != nil {
		panic(err)
	}
	return v
}

func (fi *fieldImpl) MustIsNull() bool {
	v, err := fi.IsNull()
	if err != nil {
		panic(err)
	}
	return v
}

func (fi *fieldImpl) Name() string     { return fi.fd.Name }
func (fi *fieldImpl) Type() FieldType  { return toFieldType(fi.fd.Kind) }
func (fi *fieldImpl) Size() uint8      { return fi.fd.Length }
func (fi *fieldImpl) Decimals() uint8  { return fi.fd.Decimals }

// =========================================================================
// Index support
// =========================================================================

func (idx *Indexes) load() error {
	path := idx.foxi.productionIndexPath()
	if _, err := os.Stat(path); err != nil {
		idx.loaded = true
		return nil
	}
	ix, err := pkg.OpenIndex(path)
	if err != nil {
		return err
	}
	idx.tags = []Tag{&tagImpl{ix: ix}}
	idx.loaded = true
	return nil
}

type tagImpl struct {
	ix *pkg.Index
}

func (t *tagImpl) Name() string         { return t.ix.Header().KeyExpression }
func (t *tagImpl) Expression() string   { return t.ix.Header().KeyExpression }
func (t *tagImpl) Filter() string       { return t.ix.Header().ForExpression }
func (t *tagImpl) KeyLength() int       { return int(t.ix.Header().KeyLength) }
func (t *tagImpl) IsUnique() bool       { return t.ix.Header().Unique }
func (t *tagImpl) IsDescending() bool   { return t.ix.Header().Descending }

func (t *tagImpl) paddedKey(value string) []byte {
	keyLen := int(t.ix.Header().KeyLength)
	buf := make([]byte, keyLen)
	n := copy(buf, value)
	for i := n; i < keyLen; i++ {
		buf[i] = ' '
	}
	return buf
}

func (t *tagImpl) Seek(value string) (SeekResult, error) {
	res, err := t.ix.SearchKey(t.paddedKey(value))
	if err != nil {
		return SeekEOF, err
	}
	if res.Found {
		return SeekSuccess, nil
	}
	if res.After {
		return SeekEOF, nil
	}
	return SeekAfter, nil
}

func (t *tagImpl) SeekRange(low, high string) ([]int, error) {
	recNos, err := t.ix.SearchRange(t.paddedKey(low), t.paddedKey(high))
	if err != nil {
		return nil, err
	}
	out := make([]int, len(recNos))
	for i, r := range recNos {
		out[i] = int(r)
	}
	return out, nil
}

func (t *tagImpl) MustSeek(value string) SeekResult {
	res, err := t.Seek(value)
	if err != nil {
		panic(err)
	}
	return res
}

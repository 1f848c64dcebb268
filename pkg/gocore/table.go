package pkg

import (
	"os"
	"strings"
	"time"
)

// Table is a handle over one table (DBF) file. It owns its file
// descriptor exclusively; nothing about it is shared through package
// state, so two Tables opened on the same path are fully independent.
type Table struct {
	file    *posFile
	header  TableHeader
	fields  []FieldDescriptor
	path    string
	metrics *tableMetrics
	closed  bool
}

// CreateTable creates a new table file with the given schema,
// validating field definitions per the wire format (name non-empty
// and at most 10 bytes, a recognized kind, nonzero length) before any
// bytes are written.
func CreateTable(path string, fields []FieldDescriptor, versionFlag byte) (*Table, error) {
	for _, fd := range fields {
		if fd.Name == "" || len(fd.Name) > 10 {
			return nil, fieldErr(ErrInvalidFieldDescriptor, fd.Name, nil, "field name must be 1-10 bytes")
		}
		if fd.Length == 0 {
			return nil, fieldErr(ErrInvalidFieldDescriptor, fd.Name, nil, "field length must be nonzero")
		}
		switch fd.Kind {
		case KindCharacter, KindNumeric, KindDate, KindLogical, KindMemo, KindInteger, KindDateTime:
		default:
			return nil, fieldErr(ErrInvalidFieldDescriptor, fd.Name, []byte{byte(fd.Kind)}, "field type %q is not a recognized kind", byte(fd.Kind))
		}
	}
	laidOut := make([]FieldDescriptor, len(fields))
	offset := uint32(1)
	for i, fd := range fields {
		fd.Offset = offset
		offset += uint32(fd.Length)
		laidOut[i] = fd
	}

	pf, err := createPosFile(path)
	if err != nil {
		return nil, err
	}

	h := TableHeader{
		VersionFlag:  versionFlag,
		LastUpdate:   time.Now().UTC(),
		RecordCount:  0,
		HeaderLength: headerLenFor(len(laidOut)),
		RecordLength: recordLenFor(laidOut),
	}

	if err := pf.WriteAt(emitHeader(h), 0); err != nil {
		pf.Close()
		return nil, err
	}
	if err := pf.WriteAt(emitFieldDescriptors(laidOut), tableHeaderLen); err != nil {
		pf.Close()
		return nil, err
	}

	t := &Table{file: pf, header: h, fields: laidOut, path: path, metrics: tableMetricsFor(path)}
	return t, nil
}

// OpenTable opens an existing table file, parsing and validating its
// header and field descriptors.
func OpenTable(path string, readOnly bool) (*Table, error) {
	pf, err := openPosFile(path, readOnly)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, pf.Size())
	if err := pf.ReadAt(buf, 0); err != nil {
		pf.Close()
		return nil, err
	}
	h, err := parseHeader(buf)
	if err != nil {
		pf.Close()
		return nil, err
	}
	fields, err := parseFieldDescriptors(buf)
	if err != nil {
		pf.Close()
		return nil, err
	}
	return &Table{file: pf, header: h, fields: fields, path: path, metrics: tableMetricsFor(path)}, nil
}

// Close releases the table's file descriptor. Subsequent calls are a
// no-op.
func (t *Table) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.file.Close()
}

// Header returns a copy of the parsed table header.
func (t *Table) Header() TableHeader { return t.header }

// Fields returns the parsed field descriptors in on-disk order.
func (t *Table) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, len(t.fields))
	copy(out, t.fields)
	return out
}

// Field looks up a field descriptor by name, case-insensitively.
func (t *Table) Field(name string) (FieldDescriptor, bool) {
	for _, fd := range t.fields {
		if strings.EqualFold(fd.Name, name) {
			return fd, true
		}
	}
	return FieldDescriptor{}, false
}

// HasMemoFields reports whether any field descriptor is of Memo kind,
// the trigger condition the Memo Coordinator uses to require a memo
// file.
func (t *Table) HasMemoFields() bool {
	for _, fd := range t.fields {
		if fd.Kind == KindMemo {
			return true
		}
	}
	return false
}

// DefaultMemoPath derives the memo-file path for this table by
// substituting the table's extension with ".dbt", per the external
// interface convention.
func (t *Table) DefaultMemoPath() string {
	ext := extOf(t.path)
	return t.path[:len(t.path)-len(ext)] + ".dbt"
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == os.PathSeparator {
			break
		}
	}
	return ""
}

func (t *Table) recordOffset(recNo uint32) int64 {
	return int64(t.header.HeaderLength) + int64(recNo-1)*int64(t.header.RecordLength)
}

package pkg

import (
	"encoding/binary"
	"strings"
	"time"
)

const (
	tableHeaderLen      = 32
	fieldDescriptorLen  = 32
	headerTerminator    = 0x0D
)

// parseHeader decodes the fixed 32-byte table header. The version
// flag is validated against the accepted set named by the wire
// format. Apart from it, only the last-update date, record count,
// header and record lengths, and the LanguageDriver byte (kept
// uninterpreted) are read; the remaining header bytes are not
// retained, and emitHeader writes them as zero.
func parseHeader(buf []byte) (TableHeader, error) {
	if len(buf) < tableHeaderLen {
		return TableHeader{}, newErr(ErrInvalidHeader, "table header truncated: got %d bytes, need %d", len(buf), tableHeaderLen)
	}
	version := buf[0]
	if !acceptedVersionFlags[version] {
		return TableHeader{}, fieldErr(ErrUnsupportedVersion, "", []byte{version}, "unsupported version_flag 0x%02X", version)
	}
	// The year byte counts years since 1900 (124 is 2024), the inverse
	// of emitHeader.
	year := int(buf[1]) + 1900
	h := TableHeader{
		VersionFlag:    version,
		LastUpdate:     time.Date(year, time.Month(buf[2]), int(buf[3]), 0, 0, 0, 0, time.UTC),
		RecordCount:    binary.LittleEndian.Uint32(buf[4:8]),
		HeaderLength:   binary.LittleEndian.Uint16(buf[8:10]),
		RecordLength:   binary.LittleEndian.Uint16(buf[10:12]),
		LanguageDriver: buf[29],
	}
	return h, nil
}

// emitHeader encodes a TableHeader back into its fixed 32-byte form.
func emitHeader(h TableHeader) []byte {
	buf := make([]byte, tableHeaderLen)
	buf[0] = h.VersionFlag
	y := h.LastUpdate.Year()
	if y >= 1900 {
		y -= 1900
	}
	buf[1] = byte(y)
	buf[2] = byte(h.LastUpdate.Month())
	buf[3] = byte(h.LastUpdate.Day())
	binary.LittleEndian.PutUint32(buf[4:8], h.RecordCount)
	binary.LittleEndian.PutUint16(buf[8:10], h.HeaderLength)
	binary.LittleEndian.PutUint16(buf[10:12], h.RecordLength)
	buf[29] = h.LanguageDriver
	return buf
}

// parseFieldDescriptors reads descriptors starting at offset 32 until
// the 0x0D terminator, computing each field's byte Offset within a
// record (the delete flag occupies offset 0).
func parseFieldDescriptors(buf []byte) ([]FieldDescriptor, error) {
	var fields []FieldDescriptor
	offset := uint32(1)
	pos := tableHeaderLen
	for {
		if pos >= len(buf) {
			return nil, newErr(ErrInvalidHeader, "field descriptor array ran past buffer without a terminator")
		}
		if buf[pos] == headerTerminator {
			break
		}
		if pos+fieldDescriptorLen > len(buf) {
			return nil, newErr(ErrInvalidFieldDescriptor, "field descriptor truncated at byte %d", pos)
		}
		d := buf[pos : pos+fieldDescriptorLen]
		name := strings.TrimRight(string(bytesUntilNUL(d[0:11])), " ")
		fd := FieldDescriptor{
			Name:     name,
			Kind:     FieldKind(d[11]),
			Length:   d[16],
			Decimals: d[17],
			Offset:   offset,
		}
		if fd.Name == "" {
			return nil, fieldErr(ErrInvalidFieldDescriptor, "", d, "field descriptor at byte %d has an empty name", pos)
		}
		fields = append(fields, fd)
		offset += uint32(fd.Length)
		pos += fieldDescriptorLen
	}
	return fields, nil
}

// emitFieldDescriptors encodes field descriptors followed by the
// terminator byte.
func emitFieldDescriptors(fields []FieldDescriptor) []byte {
	buf := make([]byte, 0, len(fields)*fieldDescriptorLen+1)
	for _, fd := range fields {
		d := make([]byte, fieldDescriptorLen)
		copy(d[0:11], fd.Name)
		d[11] = byte(fd.Kind)
		d[16] = fd.Length
		d[17] = fd.Decimals
		buf = append(buf, d...)
	}
	buf = append(buf, headerTerminator)
	return buf
}

func bytesUntilNUL(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

// headerLenFor returns the on-disk header length for a field count:
// the 32-byte fixed header, one 32-byte descriptor per field, and the
// terminator byte.
func headerLenFor(numFields int) uint16 {
	return uint16(tableHeaderLen + numFields*fieldDescriptorLen + 1)
}

// recordLenFor returns the on-disk record length: one delete-flag
// byte plus the sum of field lengths.
func recordLenFor(fields []FieldDescriptor) uint16 {
	total := uint16(1)
	for _, fd := range fields {
		total += uint16(fd.Length)
	}
	return total
}

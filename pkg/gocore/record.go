package pkg

import "time"

// ReadRecord reads the record at recNo (1-based). RecNo 0 or past
// RecordCount is ErrRecordOutOfRange.
func (t *Table) ReadRecord(recNo uint32) (Record, error) {
	if recNo == 0 || recNo > t.header.RecordCount {
		return Record{}, newErr(ErrRecordOutOfRange, "record %d out of range (count %d)", recNo, t.header.RecordCount)
	}
	buf := make([]byte, t.header.RecordLength)
	if err := t.file.ReadAt(buf, t.recordOffset(recNo)); err != nil {
		return Record{}, err
	}
	return Record{RecNo: recNo, Deleted: buf[0] == '*', Raw: buf[1:]}, nil
}

// AppendRecord writes raw (which must be exactly RecordLength-1 bytes,
// the delete flag excluded) as a new record and updates the header's
// record count. Header updates are always written after the payload
// write, so a crash mid-append leaves the count one behind rather
// than pointing at unwritten data.
func (t *Table) AppendRecord(raw []byte) (uint32, error) {
	if uint16(len(raw))+1 != t.header.RecordLength {
		return 0, newErr(ErrInvalidFieldDescriptor, "record payload is %d bytes, expected %d", len(raw), t.header.RecordLength-1)
	}
	recNo := t.header.RecordCount + 1
	buf := make([]byte, t.header.RecordLength)
	buf[0] = ' '
	copy(buf[1:], raw)
	if err := t.file.WriteAt(buf, t.recordOffset(recNo)); err != nil {
		return 0, err
	}
	t.header.RecordCount = recNo
	t.header.LastUpdate = time.Now().UTC()
	if err := t.writeHeader(); err != nil {
		return 0, err
	}
	t.metrics.recordsAppended.Inc()
	return recNo, nil
}

// UpdateRecord overwrites the field payload of an existing record,
// leaving its delete flag untouched.
func (t *Table) UpdateRecord(recNo uint32, raw []byte) error {
	if recNo == 0 || recNo > t.header.RecordCount {
		return newErr(ErrRecordOutOfRange, "record %d out of range (count %d)", recNo, t.header.RecordCount)
	}
	if uint16(len(raw))+1 != t.header.RecordLength {
		return newErr(ErrInvalidFieldDescriptor, "record payload is %d bytes, expected %d", len(raw), t.header.RecordLength-1)
	}
	if err := t.file.WriteAt(raw, t.recordOffset(recNo)+1); err != nil {
		return err
	}
	t.header.LastUpdate = time.Now().UTC()
	return t.writeHeader()
}

// MarkDeleted sets the tombstone byte for recNo.
func (t *Table) MarkDeleted(recNo uint32) error {
	return t.setDeleteFlag(recNo, '*')
}

// UndeleteRecord clears the tombstone byte for recNo. Calling it on a
// record that is not deleted is a no-op success, matching the
// idempotence property expected of delete/undelete.
func (t *Table) UndeleteRecord(recNo uint32) error {
	return t.setDeleteFlag(recNo, ' ')
}

func (t *Table) setDeleteFlag(recNo uint32, flag byte) error {
	if recNo == 0 || recNo > t.header.RecordCount {
		return newErr(ErrRecordOutOfRange, "record %d out of range (count %d)", recNo, t.header.RecordCount)
	}
	if err := t.file.WriteAt([]byte{flag}, t.recordOffset(recNo)); err != nil {
		return err
	}
	if flag == '*' {
		t.metrics.recordsDeleted.Inc()
	}
	return nil
}

// BatchDeleteRange marks every record in [from, to] (inclusive,
// 1-based) deleted.
func (t *Table) BatchDeleteRange(from, to uint32) error {
	if from == 0 || to > t.header.RecordCount || from > to {
		return newErr(ErrRecordOutOfRange, "invalid range [%d,%d] (count %d)", from, to, t.header.RecordCount)
	}
	for r := from; r <= to; r++ {
		if err := t.MarkDeleted(r); err != nil {
			return err
		}
	}
	return nil
}

// StreamRecords calls fn once per record in ascending RecNo order,
// including deleted records, stopping early if fn returns false or an
// error. It is restartable: a fresh call always begins at record 1 and
// reflects whatever RecordCount the header currently reports.
func (t *Table) StreamRecords(fn func(Record) (bool, error)) error {
	for r := uint32(1); r <= t.header.RecordCount; r++ {
		rec, err := t.ReadRecord(r)
		if err != nil {
			return err
		}
		cont, err := fn(rec)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// RecordStatistics reports active and deleted record counts via a
// full scan.
type RecordStatistics struct {
	Active  uint32
	Deleted uint32
}

func (t *Table) RecordStatistics() (RecordStatistics, error) {
	var stats RecordStatistics
	err := t.StreamRecords(func(r Record) (bool, error) {
		if r.Deleted {
			stats.Deleted++
		} else {
			stats.Active++
		}
		return true, nil
	})
	return stats, err
}

// Pack rewrites the table omitting deleted records and truncates the
// file to the new length, renumbering the surviving records
// contiguously starting at 1.
func (t *Table) Pack() error {
	write := uint32(0)
	for read := uint32(1); read <= t.header.RecordCount; read++ {
		rec, err := t.ReadRecord(read)
		if err != nil {
			return err
		}
		if rec.Deleted {
			continue
		}
		write++
		if write != read {
			buf := make([]byte, t.header.RecordLength)
			buf[0] = ' '
			copy(buf[1:], rec.Raw)
			if err := t.file.WriteAt(buf, t.recordOffset(write)); err != nil {
				return err
			}
		}
	}
	t.header.RecordCount = write
	t.header.LastUpdate = time.Now().UTC()
	if err := t.writeHeader(); err != nil {
		return err
	}
	newSize := t.recordOffset(write + 1)
	return t.file.Truncate(newSize)
}

func (t *Table) writeHeader() error {
	return t.file.WriteAt(emitHeader(t.header), 0)
}

// Flush forces buffered writes to stable storage.
func (t *Table) Flush() error { return t.file.Sync() }

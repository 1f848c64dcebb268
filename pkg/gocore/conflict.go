package pkg

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is a cheap digest of a table's (record_count,
// last_update, file_size) triple, used to detect whether another
// handle has modified the file since this one last observed it.
type Fingerprint uint64

// CaptureFingerprint computes t's current fingerprint from the record
// count and last-update date in the on-disk header and the on-disk
// file size, so a change written through another handle shows up in
// it. If the header cannot be read or parsed, the handle's in-memory
// header values are used instead.
func (t *Table) CaptureFingerprint() Fingerprint {
	h := t.header
	hdr := make([]byte, tableHeaderLen)
	if err := t.file.ReadAt(hdr, 0); err == nil {
		if disk, err := parseHeader(hdr); err == nil {
			h = disk
		}
	}
	size := t.file.Size()
	if info, err := t.file.f.Stat(); err == nil {
		size = info.Size()
	}
	var buf [16]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.RecordCount)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(h.LastUpdate.Unix()))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(size))
	return Fingerprint(xxhash.Sum64(buf[:]))
}

// RefreshHandleState re-reads the header from disk, updating the
// handle's in-memory record count and last-update time to match what
// is currently on disk.
func (t *Table) RefreshHandleState() error {
	buf := make([]byte, tableHeaderLen)
	if err := t.file.ReadAt(buf, 0); err != nil {
		return err
	}
	h, err := parseHeader(buf)
	if err != nil {
		return err
	}
	t.header.RecordCount = h.RecordCount
	t.header.LastUpdate = h.LastUpdate
	info, statErr := t.file.f.Stat()
	if statErr == nil {
		t.file.size = info.Size()
	}
	return nil
}

// WithConflictCheck runs fn only if t's current fingerprint still
// matches expected; otherwise it returns ErrConflictDetected without
// calling fn.
func WithConflictCheck(t *Table, expected Fingerprint, fn func() error) error {
	if t.CaptureFingerprint() != expected {
		return newErr(ErrConflictDetected, "table %s changed since fingerprint was captured", t.path)
	}
	return fn()
}

// WithConflictCheckAndRetry retries fn up to maxRetries times,
// refreshing the handle and recapturing the fingerprint between
// attempts, as long as each attempt fails specifically with
// ErrConflictDetected. Any other error from fn is returned
// immediately.
func WithConflictCheckAndRetry(t *Table, expected Fingerprint, fn func() error, maxRetries int) error {
	for attempt := 0; ; attempt++ {
		err := WithConflictCheck(t, expected, fn)
		if err == nil {
			return nil
		}
		if !ErrConflictDetected.Is(err) || attempt >= maxRetries {
			return err
		}
		if refreshErr := t.RefreshHandleState(); refreshErr != nil {
			return refreshErr
		}
		expected = t.CaptureFingerprint()
	}
}

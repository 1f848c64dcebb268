package pkg

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintStableAcrossNoChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	tbl, err := CreateTable(path, sampleFields(), 0x03)
	require.NoError(t, err)
	defer tbl.Close()

	fp1 := tbl.CaptureFingerprint()
	fp2 := tbl.CaptureFingerprint()
	require.Equal(t, fp1, fp2)
}

func TestFingerprintChangesAfterAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	tbl, err := CreateTable(path, sampleFields(), 0x03)
	require.NoError(t, err)
	defer tbl.Close()

	before := tbl.CaptureFingerprint()
	_, err = tbl.AppendRecord(encodeSampleRecord(t, "ALICE", 30))
	require.NoError(t, err)
	after := tbl.CaptureFingerprint()

	require.NotEqual(t, before, after)
}

func TestWithConflictCheckSucceedsWhenUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	tbl, err := CreateTable(path, sampleFields(), 0x03)
	require.NoError(t, err)
	defer tbl.Close()

	expected := tbl.CaptureFingerprint()
	ran := false
	err = WithConflictCheck(tbl, expected, func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
}

func TestWithConflictCheckFailsWhenChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	tbl, err := CreateTable(path, sampleFields(), 0x03)
	require.NoError(t, err)
	defer tbl.Close()

	expected := tbl.CaptureFingerprint()
	_, err = tbl.AppendRecord(encodeSampleRecord(t, "BOB", 40))
	require.NoError(t, err)

	ran := false
	err = WithConflictCheck(tbl, expected, func() error {
		ran = true
		return nil
	})
	require.Error(t, err)
	require.False(t, ran)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, ErrConflictDetected, fe.Kind)
}

func TestWithConflictCheckAndRetrySucceedsAfterRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	tbl, err := CreateTable(path, sampleFields(), 0x03)
	require.NoError(t, err)
	defer tbl.Close()

	stale := tbl.CaptureFingerprint()
	_, err = tbl.AppendRecord(encodeSampleRecord(t, "BOB", 40))
	require.NoError(t, err)

	attempts := 0
	err = WithConflictCheckAndRetry(tbl, stale, func() error {
		attempts++
		return nil
	}, 3)
	require.NoError(t, err)
	require.Equal(t, 1, attempts)
}

func TestWithConflictCheckAndRetryReturnsImmediatelyWithZeroRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	tbl, err := CreateTable(path, sampleFields(), 0x03)
	require.NoError(t, err)
	defer tbl.Close()

	stale := tbl.CaptureFingerprint()
	_, err = tbl.AppendRecord(encodeSampleRecord(t, "BOB", 40))
	require.NoError(t, err)

	ran := false
	err = WithConflictCheckAndRetry(tbl, stale, func() error {
		ran = true
		return nil
	}, 0)
	require.Error(t, err)
	require.False(t, ran)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, ErrConflictDetected, fe.Kind)
}

func TestWithConflictCheckAndRetryPropagatesNonConflictError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	tbl, err := CreateTable(path, sampleFields(), 0x03)
	require.NoError(t, err)
	defer tbl.Close()

	expected := tbl.CaptureFingerprint()
	err = WithConflictCheckAndRetry(tbl, expected, func() error {
		return newErr(ErrIO, "unrelated failure")
	}, 3)
	require.Error(t, err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, ErrIO, fe.Kind)
}

func TestRefreshHandleStateReloadsRecordCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	tbl, err := CreateTable(path, sampleFields(), 0x03)
	require.NoError(t, err)
	defer tbl.Close()

	_, err = tbl.AppendRecord(encodeSampleRecord(t, "ALICE", 30))
	require.NoError(t, err)

	tbl.header.RecordCount = 0 // simulate a stale in-memory view
	require.NoError(t, tbl.RefreshHandleState())
	require.EqualValues(t, 1, tbl.header.RecordCount)
}

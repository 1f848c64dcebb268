package pkg

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleFields() []FieldDescriptor {
	return []FieldDescriptor{
		{Name: "NAME", Kind: KindCharacter, Length: 10},
		{Name: "AGE", Kind: KindNumeric, Length: 3},
	}
}

func encodeSampleRecord(t *testing.T, name string, age int) []byte {
	t.Helper()
	nameBuf, err := EncodeField(Value{Kind: KindCharacter, Text: name}, "NAME", 10, 0)
	require.NoError(t, err)
	ageBuf, err := EncodeField(Value{Kind: KindNumeric, Number: itoaPad(age)}, "AGE", 3, 0)
	require.NoError(t, err)
	return append(nameBuf, ageBuf...)
}

func itoaPad(n int) string {
	s := ""
	for n > 0 {
		s = string(rune('0'+n%10)) + s
		n /= 10
	}
	if s == "" {
		s = "0"
	}
	return s
}

func TestCreateOpenTableRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	tbl, err := CreateTable(path, sampleFields(), 0x03)
	require.NoError(t, err)
	require.NoError(t, tbl.Close())

	reopened, err := OpenTable(path, false)
	require.NoError(t, err)
	defer reopened.Close()

	require.Len(t, reopened.Fields(), 2)
	require.EqualValues(t, 0, reopened.Header().RecordCount)
}

func TestAppendAndReadRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	tbl, err := CreateTable(path, sampleFields(), 0x03)
	require.NoError(t, err)
	defer tbl.Close()

	recNo, err := tbl.AppendRecord(encodeSampleRecord(t, "ALICE", 30))
	require.NoError(t, err)
	require.EqualValues(t, 1, recNo)
	require.EqualValues(t, 1, tbl.Header().RecordCount)

	rec, err := tbl.ReadRecord(1)
	require.NoError(t, err)
	require.False(t, rec.Deleted)

	fd, ok := tbl.Field("name")
	require.True(t, ok)
	v, err := DecodeField(fd.Kind, fd.Name, rec.Raw[fd.Offset-1:fd.Offset-1+uint32(fd.Length)], fd.Decimals)
	require.NoError(t, err)
	require.Equal(t, "ALICE", v.Text)
}

func TestRecordCountMonotonicAcrossAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	tbl, err := CreateTable(path, sampleFields(), 0x03)
	require.NoError(t, err)
	defer tbl.Close()

	for i := 0; i < 5; i++ {
		before := tbl.Header().RecordCount
		_, err := tbl.AppendRecord(encodeSampleRecord(t, "X", i))
		require.NoError(t, err)
		require.Greater(t, tbl.Header().RecordCount, before)
	}
	require.EqualValues(t, 5, tbl.Header().RecordCount)
}

func TestDeleteUndeleteIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	tbl, err := CreateTable(path, sampleFields(), 0x03)
	require.NoError(t, err)
	defer tbl.Close()

	_, err = tbl.AppendRecord(encodeSampleRecord(t, "BOB", 22))
	require.NoError(t, err)

	require.NoError(t, tbl.MarkDeleted(1))
	require.NoError(t, tbl.MarkDeleted(1)) // idempotent
	rec, err := tbl.ReadRecord(1)
	require.NoError(t, err)
	require.True(t, rec.Deleted)

	require.NoError(t, tbl.UndeleteRecord(1))
	require.NoError(t, tbl.UndeleteRecord(1)) // idempotent
	rec, err = tbl.ReadRecord(1)
	require.NoError(t, err)
	require.False(t, rec.Deleted)
}

func TestPackPreservesLiveData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	tbl, err := CreateTable(path, sampleFields(), 0x03)
	require.NoError(t, err)
	defer tbl.Close()

	names := []string{"ALICE", "BOB", "CAROL"}
	for i, n := range names {
		_, err := tbl.AppendRecord(encodeSampleRecord(t, n, 20+i))
		require.NoError(t, err)
	}
	require.NoError(t, tbl.MarkDeleted(2))
	require.NoError(t, tbl.Pack())

	require.EqualValues(t, 2, tbl.Header().RecordCount)
	var surviving []string
	err = tbl.StreamRecords(func(r Record) (bool, error) {
		v, decErr := DecodeField(KindCharacter, "NAME", r.Raw[0:10], 0)
		require.NoError(t, decErr)
		surviving = append(surviving, v.Text)
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"ALICE", "CAROL"}, surviving)
}

func TestBatchDeleteRangeAndStatistics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")
	tbl, err := CreateTable(path, sampleFields(), 0x03)
	require.NoError(t, err)
	defer tbl.Close()

	for i := 0; i < 4; i++ {
		_, err := tbl.AppendRecord(encodeSampleRecord(t, "X", i))
		require.NoError(t, err)
	}
	require.NoError(t, tbl.BatchDeleteRange(1, 2))

	stats, err := tbl.RecordStatistics()
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.Active)
	require.EqualValues(t, 2, stats.Deleted)
}

func TestCreateTableRejectsInvalidField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.dbf")
	_, err := CreateTable(path, []FieldDescriptor{{Name: "", Kind: KindCharacter, Length: 5}}, 0x03)
	require.Error(t, err)
}

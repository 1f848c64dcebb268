package pkg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := TableHeader{
		VersionFlag:    0x03,
		LastUpdate:     time.Date(2024, time.May, 9, 0, 0, 0, 0, time.UTC),
		RecordCount:    7,
		HeaderLength:   97,
		RecordLength:   21,
		LanguageDriver: 0x4D,
	}
	buf := emitHeader(h)
	require.Len(t, buf, tableHeaderLen)

	got, err := parseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h.VersionFlag, got.VersionFlag)
	require.Equal(t, h.RecordCount, got.RecordCount)
	require.Equal(t, h.HeaderLength, got.HeaderLength)
	require.Equal(t, h.RecordLength, got.RecordLength)
	require.Equal(t, h.LanguageDriver, got.LanguageDriver)
	require.True(t, h.LastUpdate.Equal(got.LastUpdate))
}

func TestAcceptedVersionFlags(t *testing.T) {
	for v := range acceptedVersionFlags {
		buf := emitHeader(TableHeader{VersionFlag: v})
		_, err := parseHeader(buf)
		require.NoError(t, err, "version 0x%02X should be accepted", v)
	}
	buf := emitHeader(TableHeader{VersionFlag: 0x99})
	_, err := parseHeader(buf)
	require.Error(t, err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, ErrUnsupportedVersion, fe.Kind)
}

func TestFieldDescriptorRoundTrip(t *testing.T) {
	fields := []FieldDescriptor{
		{Name: "NAME", Kind: KindCharacter, Length: 20},
		{Name: "AGE", Kind: KindNumeric, Length: 3},
		{Name: "NOTES", Kind: KindMemo, Length: 10},
	}
	buf := append(make([]byte, tableHeaderLen), emitFieldDescriptors(fields)...)

	got, err := parseFieldDescriptors(buf)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "NAME", got[0].Name)
	require.EqualValues(t, 1, got[0].Offset)
	require.Equal(t, "AGE", got[1].Name)
	require.EqualValues(t, 21, got[1].Offset)
	require.Equal(t, "NOTES", got[2].Name)
	require.Equal(t, KindMemo, got[2].Kind)
}

func TestRecordLenFor(t *testing.T) {
	fields := []FieldDescriptor{{Length: 10}, {Length: 5}}
	require.EqualValues(t, 16, recordLenFor(fields))
}

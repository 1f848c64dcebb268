package pkg

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoordinatorAutoModeWithoutMemoFile(t *testing.T) {
	dir := t.TempDir()
	fields := []FieldDescriptor{
		{Name: "TITLE", Kind: KindCharacter, Length: 10},
		{Name: "NOTES", Kind: KindMemo, Length: 10},
	}
	path := filepath.Join(dir, "docs.dbf")
	tbl, err := CreateTable(path, fields, 0x83)
	require.NoError(t, err)
	defer tbl.Close()

	coord, err := AttachMemo(tbl, MemoModeAuto, 512, MemoDialectIII)
	require.NoError(t, err)
	require.Nil(t, coord.Memo)

	_, err = coord.WriteMemoText("will fail, no memo file")
	require.Error(t, err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, ErrMemoFileRequired, fe.Kind)
}

func TestCoordinatorRequiredModeCreatesMemoFile(t *testing.T) {
	dir := t.TempDir()
	fields := []FieldDescriptor{
		{Name: "TITLE", Kind: KindCharacter, Length: 10},
		{Name: "NOTES", Kind: KindMemo, Length: 10},
	}
	path := filepath.Join(dir, "docs.dbf")
	tbl, err := CreateTable(path, fields, 0x83)
	require.NoError(t, err)
	defer tbl.Close()

	coord, err := AttachMemo(tbl, MemoModeRequired, 512, MemoDialectIII)
	require.NoError(t, err)
	defer coord.Close()
	require.NotNil(t, coord.Memo)

	val, err := coord.WriteMemoText("a long note goes here")
	require.NoError(t, err)

	text, err := coord.ResolveMemoText(val)
	require.NoError(t, err)
	require.Equal(t, "a long note goes here", text)
}

func TestCoordinatorDisabledModeNeverOpensMemo(t *testing.T) {
	dir := t.TempDir()
	fields := []FieldDescriptor{
		{Name: "NOTES", Kind: KindMemo, Length: 10},
	}
	path := filepath.Join(dir, "docs.dbf")
	tbl, err := CreateTable(path, fields, 0x83)
	require.NoError(t, err)
	defer tbl.Close()

	_, err = CreateMemoFile(tbl.DefaultMemoPath(), 512, MemoDialectIII)
	require.NoError(t, err)

	coord, err := AttachMemo(tbl, MemoModeDisabled, 512, MemoDialectIII)
	require.NoError(t, err)
	require.Nil(t, coord.Memo)
}

func TestDefaultMemoPathSubstitutesDbtExtension(t *testing.T) {
	tbl := &Table{path: "/data/customers.dbf"}
	require.Equal(t, "/data/customers.dbt", tbl.DefaultMemoPath())
}

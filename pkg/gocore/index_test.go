package pkg

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildFixtureIndex writes a minimal single-page CDX file: a header
// page followed by one leaf node holding keys in ascending order.
// This is test scaffolding only, not a public API — the engine never
// builds index files, only reads pre-built ones.
func buildFixtureIndex(t *testing.T, path string, keys []string, recNos []uint32) {
	t.Helper()
	keyLen := uint16(len(keys[0]))
	h := IndexHeader{
		RootBlock:     1,
		KeyLength:     keyLen,
		KeyExpression: "NAME",
		SignatureByte: 0x01,
	}
	node := &IndexNode{BlockNo: 1, IsLeaf: true, IsRoot: true, NumKeys: uint16(len(keys))}
	for i, k := range keys {
		node.Keys = append(node.Keys, IndexKey{KeyBytes: []byte(k), RecNo: recNos[i]})
	}

	buf := append(emitIndexHeader(h), emitIndexNode(node, keyLen)...)
	require.NoError(t, os.WriteFile(path, buf, 0644))
}

func TestIndexSearchKeyExactMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "name.cdx")
	buildFixtureIndex(t, path, []string{"ALICE", "BOBBY", "CAROL"}, []uint32{1, 2, 3})

	ix, err := OpenIndex(path)
	require.NoError(t, err)
	defer ix.Close()

	res, err := ix.SearchKey([]byte("BOBBY"))
	require.NoError(t, err)
	require.True(t, res.Found)
	require.EqualValues(t, 2, res.RecNo)
}

func TestIndexSearchKeyMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "name.cdx")
	buildFixtureIndex(t, path, []string{"ALICE", "CAROL"}, []uint32{1, 2})

	ix, err := OpenIndex(path)
	require.NoError(t, err)
	defer ix.Close()

	res, err := ix.SearchKey([]byte("BOBBY"))
	require.NoError(t, err)
	require.False(t, res.Found)
}

func TestIndexSearchRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "name.cdx")
	buildFixtureIndex(t, path, []string{"AAAAA", "BBBBB", "CCCCC", "DDDDD"}, []uint32{1, 2, 3, 4})

	ix, err := OpenIndex(path)
	require.NoError(t, err)
	defer ix.Close()

	recNos, err := ix.SearchRange([]byte("BBBBB"), []byte("CCCCC"))
	require.NoError(t, err)
	require.ElementsMatch(t, []uint32{2, 3}, recNos)
}

func TestIndexPageCacheHitsOnRepeatRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "name.cdx")
	buildFixtureIndex(t, path, []string{"ALICE"}, []uint32{1})

	ix, err := OpenIndex(path)
	require.NoError(t, err)
	defer ix.Close()

	first, err := ix.ReadNode(1)
	require.NoError(t, err)
	second, err := ix.ReadNode(1)
	require.NoError(t, err)
	// A hit returns the cached node itself; a miss would parse a new one.
	require.Same(t, first, second)

	node, ok := ix.cache.Get(uint32(1))
	require.True(t, ok)
	require.EqualValues(t, 1, node.BlockNo)
}

func TestRootAndLeafBitsBothSetBehavesAsLeaf(t *testing.T) {
	buf := make([]byte, indexPageSize)
	// attributes (u16 @ 0) = root|leaf, key_count (u16 @ 2) = 0
	binary.LittleEndian.PutUint16(buf[0:2], attrRoot|attrLeaf)
	node, err := parseIndexNode(1, buf, 4)
	require.NoError(t, err)
	require.True(t, node.IsLeaf)
	require.True(t, node.IsRoot)
}

// TestParseIndexNodeMatchesWireLayout constructs a page by hand at the
// exact byte offsets the format specifies, independent of
// emitIndexNode, so a regression in the page layout itself would fail
// this test even if emit and parse regressed together.
func TestParseIndexNodeMatchesWireLayout(t *testing.T) {
	const keyLen = uint16(5)
	buf := make([]byte, indexPageSize)

	// attributes @ 0 (u16): leaf-only, not root.
	binary.LittleEndian.PutUint16(buf[0:2], attrLeaf)
	// key_count @ 2 (u16): two keys.
	binary.LittleEndian.PutUint16(buf[2:4], 2)
	// left_sibling @ 4 (i32): no left sibling.
	binary.LittleEndian.PutUint32(buf[4:8], 0)
	// bytes 8:20 are reserved/unused.

	// First key slot begins at byte 20: 5 key bytes + 4-byte record number.
	pos := 20
	copy(buf[pos:pos+5], "ALPHA")
	binary.LittleEndian.PutUint32(buf[pos+5:pos+9], 7)
	pos += 9
	copy(buf[pos:pos+5], "OMEGA")
	binary.LittleEndian.PutUint32(buf[pos+5:pos+9], 9)

	node, err := parseIndexNode(3, buf, keyLen)
	require.NoError(t, err)
	require.False(t, node.IsRoot)
	require.True(t, node.IsLeaf)
	require.EqualValues(t, 2, node.NumKeys)
	require.Len(t, node.Keys, 2)
	require.Equal(t, "ALPHA", string(node.Keys[0].KeyBytes))
	require.EqualValues(t, 7, node.Keys[0].RecNo)
	require.Equal(t, "OMEGA", string(node.Keys[1].KeyBytes))
	require.EqualValues(t, 9, node.Keys[1].RecNo)
}

func TestParseIndexNodeBranchRoleFromRawBytes(t *testing.T) {
	buf := make([]byte, indexPageSize)
	// attributes @ 0: neither root nor leaf bit set -> interior branch.
	binary.LittleEndian.PutUint16(buf[0:2], 0)
	binary.LittleEndian.PutUint16(buf[2:4], 1)
	pos := 20
	copy(buf[pos:pos+5], "MID12")
	binary.LittleEndian.PutUint32(buf[pos+5:pos+9], 42)

	node, err := parseIndexNode(5, buf, 5)
	require.NoError(t, err)
	require.False(t, node.IsLeaf)
	require.False(t, node.IsRoot)
	require.EqualValues(t, 42, node.Keys[0].Child)
}

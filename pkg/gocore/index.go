package pkg

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/swiss"
)

// indexPageSize is the fixed page size for both the header page and
// every B-tree node page in a compound index file.
const indexPageSize = 512

const (
	keyExprOffset = 32
	keyExprLen    = 220
	forExprOffset = 256
	forExprLen    = 220
)

const (
	indexOptUnique     = 0x01
	indexOptDescending = 0x02
)

// Index is a handle over one compound B-tree index file. It owns its
// file descriptor exclusively and keeps a small, bounded, private page
// cache — nothing here is shared across Index handles opened on the
// same path.
type Index struct {
	file       *posFile
	header     IndexHeader
	path       string
	cache      *swiss.Map[uint32, *IndexNode]
	cacheOrder []uint32
	cacheCap   int
	metrics    *indexMetrics
	closed     bool
}

const defaultPageCacheCap = 64

// OpenIndex opens an existing compound index file and parses its
// fixed 512-byte header.
func OpenIndex(path string) (*Index, error) {
	pf, err := openPosFile(path, false)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, indexPageSize)
	if err := pf.ReadAt(buf, 0); err != nil {
		pf.Close()
		return nil, err
	}
	h, err := parseIndexHeader(buf)
	if err != nil {
		pf.Close()
		return nil, err
	}
	return &Index{
		file:     pf,
		header:   h,
		path:     path,
		cache:    swiss.New[uint32, *IndexNode](defaultPageCacheCap),
		cacheCap: defaultPageCacheCap,
		metrics:  indexMetricsFor(path),
	}, nil
}

func (ix *Index) Close() error {
	if ix.closed {
		return nil
	}
	ix.closed = true
	return ix.file.Close()
}

func (ix *Index) Header() IndexHeader { return ix.header }

func parseIndexHeader(buf []byte) (IndexHeader, error) {
	if len(buf) < indexPageSize {
		return IndexHeader{}, newErr(ErrInvalidHeader, "index header truncated: got %d bytes, need %d", len(buf), indexPageSize)
	}
	opts := buf[10]
	h := IndexHeader{
		RootBlock:     binary.LittleEndian.Uint32(buf[0:4]),
		FreeBlockList: binary.LittleEndian.Uint32(buf[4:8]),
		KeyLength:     binary.LittleEndian.Uint16(buf[8:10]),
		IndexOptions:  opts,
		SignatureByte: buf[11],
		KeyExpression: trimNUL(buf[keyExprOffset : keyExprOffset+keyExprLen]),
		ForExpression: trimNUL(buf[forExprOffset : forExprOffset+forExprLen]),
		Unique:        opts&indexOptUnique != 0,
		Descending:    opts&indexOptDescending != 0,
	}
	return h, nil
}

func emitIndexHeader(h IndexHeader) []byte {
	buf := make([]byte, indexPageSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.RootBlock)
	binary.LittleEndian.PutUint32(buf[4:8], h.FreeBlockList)
	binary.LittleEndian.PutUint16(buf[8:10], h.KeyLength)
	var opts byte
	if h.Unique {
		opts |= indexOptUnique
	}
	if h.Descending {
		opts |= indexOptDescending
	}
	buf[10] = opts
	buf[11] = h.SignatureByte
	copy(buf[keyExprOffset:keyExprOffset+keyExprLen], h.KeyExpression)
	copy(buf[forExprOffset:forExprOffset+forExprLen], h.ForExpression)
	return buf
}

func trimNUL(b []byte) string {
	return string(bytesUntilNUL(b))
}

// entryWidth is the on-disk width of one key slot: the key bytes
// followed by a 4-byte record number (leaf) or child block pointer
// (branch).
func entryWidth(keyLen uint16) int { return int(keyLen) + 4 }

// nodePageHeaderLen is the fixed size of a CDX page header: u16
// attributes, u16 key_count, i32 left_sibling, then reserved bytes out
// to byte 20, where the first key slot begins.
const nodePageHeaderLen = 20

// ReadNode reads and parses the page at blockNo, consulting the
// handle-private page cache first.
func (ix *Index) ReadNode(blockNo uint32) (*IndexNode, error) {
	if node, ok := ix.cache.Get(blockNo); ok {
		ix.metrics.cacheHits.Inc()
		return node, nil
	}
	ix.metrics.cacheMisses.Inc()
	buf := make([]byte, indexPageSize)
	if err := ix.file.ReadAt(buf, int64(blockNo)*indexPageSize); err != nil {
		return nil, err
	}
	node, err := parseIndexNode(blockNo, buf, ix.header.KeyLength)
	if err != nil {
		return nil, err
	}
	ix.cachePut(blockNo, node)
	return node, nil
}

func (ix *Index) cachePut(blockNo uint32, node *IndexNode) {
	if ix.cache.Len() >= ix.cacheCap {
		if len(ix.cacheOrder) > 0 {
			oldest := ix.cacheOrder[0]
			ix.cacheOrder = ix.cacheOrder[1:]
			ix.cache.Delete(oldest)
		}
	}
	ix.cache.Put(blockNo, node)
	ix.cacheOrder = append(ix.cacheOrder, blockNo)
}

func parseIndexNode(blockNo uint32, buf []byte, keyLen uint16) (*IndexNode, error) {
	if len(buf) < indexPageSize {
		return nil, newErr(ErrIndexCorrupt, "index page %d truncated", blockNo)
	}
	attr := binary.LittleEndian.Uint16(buf[0:2])
	numKeys := binary.LittleEndian.Uint16(buf[2:4])
	leftSibling := int32(binary.LittleEndian.Uint32(buf[4:8]))

	// Role derivation per the attribute bits, in precedence order:
	// root+leaf both set (a single-page index) behaves as a leaf even
	// though the root bit is also set; root alone is a non-leaf root
	// (branch); leaf alone is an ordinary leaf; neither bit is an
	// interior branch node.
	var isLeaf, isRoot bool
	switch {
	case attr&0x03 == 0x03:
		isLeaf = true
		isRoot = true
	case attr&attrRoot != 0:
		isRoot = true
	case attr&attrLeaf != 0:
		isLeaf = true
	}

	width := entryWidth(keyLen)
	node := &IndexNode{BlockNo: blockNo, IsLeaf: isLeaf, IsRoot: isRoot, NumKeys: numKeys, LeftSibling: leftSibling}
	pos := nodePageHeaderLen
	for i := uint16(0); i < numKeys; i++ {
		if pos+width > len(buf) {
			return nil, newErr(ErrIndexCorrupt, "index page %d key %d runs past page boundary", blockNo, i)
		}
		entry := buf[pos : pos+width]
		key := make([]byte, keyLen)
		copy(key, entry[:keyLen])
		trailer := binary.LittleEndian.Uint32(entry[keyLen:])
		k := IndexKey{KeyBytes: key}
		if isLeaf {
			k.RecNo = trailer
		} else {
			k.Child = trailer
		}
		node.Keys = append(node.Keys, k)
		pos += width
	}
	return node, nil
}

func emitIndexNode(node *IndexNode, keyLen uint16) []byte {
	buf := make([]byte, indexPageSize)
	var attr uint16
	if node.IsRoot {
		attr |= attrRoot
	}
	if node.IsLeaf {
		attr |= attrLeaf
	}
	binary.LittleEndian.PutUint16(buf[0:2], attr)
	binary.LittleEndian.PutUint16(buf[2:4], node.NumKeys)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(node.LeftSibling))
	width := entryWidth(keyLen)
	pos := nodePageHeaderLen
	for _, k := range node.Keys {
		copy(buf[pos:pos+int(keyLen)], k.KeyBytes)
		trailer := k.RecNo
		if !node.IsLeaf {
			trailer = k.Child
		}
		binary.LittleEndian.PutUint32(buf[pos+int(keyLen):pos+width], trailer)
		pos += width
	}
	return buf
}

// SearchResult is the outcome of a key search.
type SearchResult struct {
	Found bool
	RecNo uint32
	// After is true when Found is false but the search descended to a
	// leaf position immediately after which the key would belong.
	After bool
}

// SearchKey performs an exact-match search for key starting from the
// root, descending through branch nodes by comparing key bytes.
func (ix *Index) SearchKey(key []byte) (SearchResult, error) {
	node, err := ix.ReadNode(ix.header.RootBlock)
	if err != nil {
		return SearchResult{}, err
	}
	for {
		idx, exact := locate(node, key, ix.header.Descending)
		if node.IsLeaf {
			if exact && idx < len(node.Keys) {
				return SearchResult{Found: true, RecNo: node.Keys[idx].RecNo}, nil
			}
			return SearchResult{Found: false, After: idx >= len(node.Keys)}, nil
		}
		if idx >= len(node.Keys) {
			idx = len(node.Keys) - 1
		}
		child := node.Keys[idx].Child
		node, err = ix.ReadNode(child)
		if err != nil {
			return SearchResult{}, err
		}
	}
}

// locate finds the insertion point of key within node.Keys under the
// node's sort order, and whether that slot is an exact match.
func locate(node *IndexNode, key []byte, descending bool) (int, bool) {
	for i, k := range node.Keys {
		c := bytes.Compare(key, k.KeyBytes)
		if descending {
			c = -c
		}
		if c == 0 {
			return i, true
		}
		if c < 0 {
			return i, false
		}
	}
	return len(node.Keys), false
}

// SearchRange returns record numbers for every leaf key within
// [lowKey, highKey] inclusive. It is a best-effort, simplified
// traversal: rather than following a right-sibling chain, it
// re-descends from the root for the first key on or after lowKey,
// then continues by repeating the descent for successive candidate
// keys, stopping once a descended key exceeds highKey or no further
// key exists. This trades some efficiency for not needing sibling
// pointers in the node layout.
func (ix *Index) SearchRange(lowKey, highKey []byte) ([]uint32, error) {
	var recNos []uint32
	cursor := lowKey
	for {
		node, err := ix.descendTo(cursor)
		if err != nil {
			return nil, err
		}
		idx, _ := locate(node, cursor, ix.header.Descending)
		advanced := false
		for i := idx; i < len(node.Keys); i++ {
			k := node.Keys[i]
			cmp := bytes.Compare(k.KeyBytes, highKey)
			if ix.header.Descending {
				cmp = -cmp
			}
			if cmp > 0 {
				return recNos, nil
			}
			recNos = append(recNos, k.RecNo)
			cursor = nextKey(k.KeyBytes)
			advanced = true
		}
		if !advanced {
			return recNos, nil
		}
	}
}

func (ix *Index) descendTo(key []byte) (*IndexNode, error) {
	node, err := ix.ReadNode(ix.header.RootBlock)
	if err != nil {
		return nil, err
	}
	for !node.IsLeaf {
		idx, _ := locate(node, key, ix.header.Descending)
		if idx >= len(node.Keys) {
			idx = len(node.Keys) - 1
		}
		node, err = ix.ReadNode(node.Keys[idx].Child)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

// nextKey returns the lexicographically-next byte string after key,
// used to advance the range-search cursor past an already-visited key.
func nextKey(key []byte) []byte {
	next := make([]byte, len(key)+1)
	copy(next, key)
	return next
}

package pkg

import (
	"bytes"
	"encoding/binary"
	"sort"
)

const memoHeaderSize = 512

const (
	minMemoBlockSize = 512
	maxMemoBlockSize = 65536
)

var memoTerminator = []byte{0x1A, 0x1A}

// MemoFile is a handle over one memo (DBT/FPT) file. Memo content is
// stored as payload bytes followed by a two-byte 0x1A 0x1A terminator
// and zero-padded to the next block boundary; there is no
// length-prefixed block header.
type MemoFile struct {
	file    *posFile
	header  MemoHeader
	path    string
	metrics *memoMetrics
	closed  bool
}

// packMemoHeader/unpackMemoHeader lay out the 512-byte memo header.
// next_block is always a little-endian u32 at offset 0 in both
// dialects; they differ only in where block_size sits: dialect iii
// places it at offset 10 (after 4+2 opaque bytes), dialect iv at
// offset 4. All multi-byte integers are little-endian regardless of
// dialect.
func packMemoHeader(h MemoHeader) []byte {
	buf := make([]byte, memoHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.NextFreeBlock)
	if h.Dialect == MemoDialectIV {
		binary.LittleEndian.PutUint16(buf[4:6], h.BlockSize)
	} else {
		binary.LittleEndian.PutUint16(buf[10:12], h.BlockSize)
	}
	return buf
}

func unpackMemoHeader(buf []byte, dialect MemoDialect) (MemoHeader, error) {
	if len(buf) < memoHeaderSize {
		return MemoHeader{}, newErr(ErrInvalidHeader, "memo header truncated: got %d bytes, need %d", len(buf), memoHeaderSize)
	}
	h := MemoHeader{
		NextFreeBlock: binary.LittleEndian.Uint32(buf[0:4]),
		Dialect:       dialect,
	}
	if dialect == MemoDialectIV {
		h.BlockSize = binary.LittleEndian.Uint16(buf[4:6])
	} else {
		h.BlockSize = binary.LittleEndian.Uint16(buf[10:12])
	}
	if h.BlockSize < minMemoBlockSize || int(h.BlockSize) > maxMemoBlockSize {
		return MemoHeader{}, newErr(ErrInvalidBlockSize, "memo header declares block size %d outside [%d, %d]", h.BlockSize, minMemoBlockSize, maxMemoBlockSize)
	}
	return h, nil
}

// CreateMemoFile creates a new memo file with the given block size
// and addressing dialect. The first usable block is 1; block 0 is the
// header block.
func CreateMemoFile(path string, blockSize uint16, dialect MemoDialect) (*MemoFile, error) {
	if blockSize < minMemoBlockSize || int(blockSize) > maxMemoBlockSize {
		return nil, newErr(ErrInvalidBlockSize, "memo block size %d outside [%d, %d]", blockSize, minMemoBlockSize, maxMemoBlockSize)
	}
	pf, err := createPosFile(path)
	if err != nil {
		return nil, err
	}
	h := MemoHeader{NextFreeBlock: 1, BlockSize: blockSize, Dialect: dialect}
	if err := pf.WriteAt(packMemoHeader(h), 0); err != nil {
		pf.Close()
		return nil, err
	}
	if err := pf.Truncate(int64(blockSize)); err != nil {
		pf.Close()
		return nil, err
	}
	return &MemoFile{file: pf, header: h, path: path, metrics: memoMetricsFor(path)}, nil
}

// OpenMemoFile opens an existing memo file, parsing its header under
// the given dialect.
func OpenMemoFile(path string, dialect MemoDialect) (*MemoFile, error) {
	pf, err := openPosFile(path, false)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, memoHeaderSize)
	if err := pf.ReadAt(buf, 0); err != nil {
		pf.Close()
		return nil, err
	}
	h, err := unpackMemoHeader(buf, dialect)
	if err != nil {
		pf.Close()
		return nil, err
	}
	return &MemoFile{file: pf, header: h, path: path, metrics: memoMetricsFor(path)}, nil
}

func (m *MemoFile) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.file.Close()
}

func (m *MemoFile) Header() MemoHeader { return m.header }

func (m *MemoFile) blockOffset(blockNo uint32) int64 {
	return int64(blockNo) * int64(m.header.BlockSize)
}

// WriteMemo allocates the next free block and writes content into it,
// terminated by 0x1A 0x1A and zero-padded to the block boundary.
// Content that does not fit in one block (len(content) >
// block_size-2) is rejected rather than silently truncated or split
// across blocks.
func (m *MemoFile) WriteMemo(content []byte) (MemoReference, error) {
	capacity := int(m.header.BlockSize) - len(memoTerminator)
	if len(content) > capacity {
		return MemoReference{}, newErr(ErrMemoContentTooLarge, "memo content is %d bytes, exceeds one-block capacity %d", len(content), capacity)
	}
	blockNo := m.header.NextFreeBlock
	buf := make([]byte, m.header.BlockSize)
	n := copy(buf, content)
	copy(buf[n:], memoTerminator)
	if err := m.file.WriteAt(buf, m.blockOffset(blockNo)); err != nil {
		return MemoReference{}, err
	}
	m.header.NextFreeBlock++
	if err := m.file.WriteAt(packMemoHeader(m.header), 0); err != nil {
		return MemoReference{}, err
	}
	m.metrics.blocksAllocated.Inc()
	return MemoReference{BlockNo: blockNo}, nil
}

// blockAllocated reports whether blockNo names a block this file has
// handed out: block 0 is the header, never a content block.
func (m *MemoFile) blockAllocated(blockNo uint32) bool {
	return blockNo != 0 && blockNo < m.header.NextFreeBlock
}

// UpdateMemo overwrites an already-allocated block in place with new
// content, preserving its block number. It fails with
// ErrBlockNotAllocated if blockNo is 0 or not less than the current
// allocation cursor.
func (m *MemoFile) UpdateMemo(blockNo uint32, content []byte) error {
	if !m.blockAllocated(blockNo) {
		return newErr(ErrBlockNotAllocated, "memo block %d is not allocated (next free %d)", blockNo, m.header.NextFreeBlock)
	}
	capacity := int(m.header.BlockSize) - len(memoTerminator)
	if len(content) > capacity {
		return newErr(ErrMemoContentTooLarge, "memo content is %d bytes, exceeds one-block capacity %d", len(content), capacity)
	}
	buf := make([]byte, m.header.BlockSize)
	n := copy(buf, content)
	copy(buf[n:], memoTerminator)
	return m.file.WriteAt(buf, m.blockOffset(blockNo))
}

// DeleteMemo overwrites the block with zero bytes. The block number
// remains allocated; read_memo of a deleted block yields the empty
// string since a zero-filled block has no terminator and trims to
// nothing.
func (m *MemoFile) DeleteMemo(blockNo uint32) error {
	if !m.blockAllocated(blockNo) {
		return newErr(ErrBlockNotAllocated, "memo block %d is not allocated (next free %d)", blockNo, m.header.NextFreeBlock)
	}
	buf := make([]byte, m.header.BlockSize)
	return m.file.WriteAt(buf, m.blockOffset(blockNo))
}

// ReadMemo preads the block addressed by ref. Content runs from byte 0
// up to the first occurrence of the 0x1A 0x1A terminator; if no
// terminator is found (e.g. a deleted, zero-filled block), trailing
// zero bytes are trimmed and the remainder is returned.
func (m *MemoFile) ReadMemo(ref MemoReference) ([]byte, error) {
	if ref.IsZero() {
		return nil, nil
	}
	if !m.blockAllocated(ref.BlockNo) {
		return nil, fieldErr(ErrMemoBlockCorrupt, "", nil, "memo block %d is beyond the allocated extent (next free %d)", ref.BlockNo, m.header.NextFreeBlock)
	}
	buf := make([]byte, m.header.BlockSize)
	if err := m.file.ReadAt(buf, m.blockOffset(ref.BlockNo)); err != nil {
		return nil, err
	}
	if idx := bytes.Index(buf, memoTerminator); idx >= 0 {
		return buf[:idx], nil
	}
	return bytes.TrimRight(buf, "\x00"), nil
}

// FragmentationReport summarizes live vs. dead block usage.
type FragmentationReport struct {
	TotalBlocks uint32
	LiveBlocks  uint32
	DeadBlocks  uint32
	DeadRatio   float64
}

// AnalyzeFragmentation reports how many allocated blocks are no
// longer referenced by liveRefs, the set of memo references a caller
// has gathered by scanning its own table's memo fields. The memo
// engine has no registry of tables, so it cannot discover this set
// itself.
func (m *MemoFile) AnalyzeFragmentation(liveRefs []MemoReference) FragmentationReport {
	total := m.header.NextFreeBlock - 1
	live := make(map[uint32]bool, len(liveRefs))
	for _, r := range liveRefs {
		if !r.IsZero() {
			live[r.BlockNo] = true
		}
	}
	report := FragmentationReport{TotalBlocks: total, LiveBlocks: uint32(len(live))}
	report.DeadBlocks = total - report.LiveBlocks
	if total > 0 {
		report.DeadRatio = float64(report.DeadBlocks) / float64(total)
	}
	return report
}

// CompactMemoFile rewrites the memo file keeping only the blocks named
// by liveRefs, renumbering them contiguously from block 1 in ascending
// order of their old block numbers, and returns the old-to-new block
// mapping so the caller can update its own table's memo field
// references. It never touches a table itself: the memo engine holds
// no reference to one.
func (m *MemoFile) CompactMemoFile(liveRefs []MemoReference) (map[uint32]uint32, error) {
	remap := make(map[uint32]uint32, len(liveRefs))
	// Blocks are moved in place toward the front, so they are visited in
	// ascending order: a block is never overwritten before it is read.
	ordered := append([]MemoReference(nil), liveRefs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].BlockNo < ordered[j].BlockNo })
	next := uint32(1)
	for _, ref := range ordered {
		if ref.IsZero() {
			continue
		}
		if _, ok := remap[ref.BlockNo]; ok {
			continue
		}
		content, err := m.ReadMemo(ref)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, m.header.BlockSize)
		n := copy(buf, content)
		copy(buf[n:], memoTerminator)
		if err := m.file.WriteAt(buf, m.blockOffset(next)); err != nil {
			return nil, err
		}
		remap[ref.BlockNo] = next
		next++
	}
	freed := m.header.NextFreeBlock - next
	m.header.NextFreeBlock = next
	if err := m.file.WriteAt(packMemoHeader(m.header), 0); err != nil {
		return nil, err
	}
	if err := m.file.Truncate(m.blockOffset(next)); err != nil {
		return nil, err
	}
	for i := uint32(0); i < freed; i++ {
		m.metrics.blocksFreed.Inc()
	}
	return remap, nil
}

func (m *MemoFile) Flush() error { return m.file.Sync() }

package hbase

import "encoding/binary"

// IndexEntry is one sparse index entry: the first encoded cell key in a
// block, plus the block's location within the file.
type IndexEntry struct {
	Key         []byte
	BlockOffset uint64
	BlockSize   uint32
}

// Index is a StoreFile's sparse block index: a sorted list of
// IndexEntry, binary-searchable to find the block that may hold a given
// key. This is what backs SubScanner.NextIndexedKey.
type Index struct {
	Entries []IndexEntry
	MinKey  []byte
	MaxKey  []byte
	NumKeys uint64
}

// IndexBuilder accumulates block boundaries while a StoreFile is being
// written.
type IndexBuilder struct {
	entries []IndexEntry
	minKey  []byte
	maxKey  []byte
	numKeys uint64
}

func NewIndexBuilder() *IndexBuilder {
	return &IndexBuilder{entries: make([]IndexEntry, 0, 256)}
}

// Add records one completed block's boundary keys and location.
func (ib *IndexBuilder) Add(firstKey, lastKey []byte, offset uint64, size uint32, keysInBlock int) {
	if ib.minKey == nil {
		ib.minKey = append([]byte(nil), firstKey...)
	}
	ib.maxKey = append([]byte(nil), lastKey...)
	ib.numKeys += uint64(keysInBlock)
	ib.entries = append(ib.entries, IndexEntry{
		Key:         append([]byte(nil), firstKey...),
		BlockOffset: offset,
		BlockSize:   size,
	})
}

func (ib *IndexBuilder) Build() *Index {
	return &Index{Entries: ib.entries, MinKey: ib.minKey, MaxKey: ib.maxKey, NumKeys: ib.numKeys}
}

// Search returns the index of the block that may contain key (the last
// entry whose Key is <= key), or -1 if key is out of the file's range.
func (idx *Index) Search(key []byte) int {
	if len(idx.Entries) == 0 {
		return -1
	}
	if compareEncodedKeys(key, idx.MinKey) < 0 {
		return -1
	}
	if compareEncodedKeys(key, idx.MaxKey) > 0 {
		return -1
	}
	lo, hi := 0, len(idx.Entries)-1
	result := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if compareEncodedKeys(idx.Entries[mid].Key, key) <= 0 {
			result = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return result
}

// NextIndexedKey returns the key at blockIdx+1, the hint
// StoreFileScanner.NextIndexedKey surfaces for the seek-vs-skip
// heuristic; ok is false past the last block.
func (idx *Index) NextIndexedKey(blockIdx int) (Cell, bool) {
	if blockIdx+1 >= len(idx.Entries) {
		return Cell{}, false
	}
	cell, _, err := DecodeCellKey(idx.Entries[blockIdx+1].Key)
	if err != nil {
		return Cell{}, false
	}
	return cell, true
}

func (idx *Index) Serialize() []byte {
	size := 8 + 4 + len(idx.MinKey) + 4 + len(idx.MaxKey) + 4
	for _, e := range idx.Entries {
		size += 4 + len(e.Key) + 8 + 4
	}
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint64(buf, idx.NumKeys)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(idx.MinKey)))
	buf = append(buf, idx.MinKey...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(idx.MaxKey)))
	buf = append(buf, idx.MaxKey...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(idx.Entries)))
	for _, e := range idx.Entries {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Key)))
		buf = append(buf, e.Key...)
		buf = binary.LittleEndian.AppendUint64(buf, e.BlockOffset)
		buf = binary.LittleEndian.AppendUint32(buf, e.BlockSize)
	}
	return buf
}

func DeserializeIndex(data []byte) (*Index, error) {
	if len(data) < 8 {
		return nil, ErrCorrupt
	}
	idx := &Index{}
	pos := 0
	idx.NumKeys = binary.LittleEndian.Uint64(data[pos:])
	pos += 8

	readBytes := func() ([]byte, error) {
		if pos+4 > len(data) {
			return nil, ErrCorrupt
		}
		n := binary.LittleEndian.Uint32(data[pos:])
		pos += 4
		if pos+int(n) > len(data) {
			return nil, ErrCorrupt
		}
		v := make([]byte, n)
		copy(v, data[pos:pos+int(n)])
		pos += int(n)
		return v, nil
	}

	var err error
	if idx.MinKey, err = readBytes(); err != nil {
		return nil, err
	}
	if idx.MaxKey, err = readBytes(); err != nil {
		return nil, err
	}

	if pos+4 > len(data) {
		return nil, ErrCorrupt
	}
	numEntries := binary.LittleEndian.Uint32(data[pos:])
	pos += 4

	idx.Entries = make([]IndexEntry, 0, numEntries)
	for i := uint32(0); i < numEntries; i++ {
		key, err := readBytes()
		if err != nil {
			return nil, err
		}
		if pos+12 > len(data) {
			return nil, ErrCorrupt
		}
		offset := binary.LittleEndian.Uint64(data[pos:])
		pos += 8
		size := binary.LittleEndian.Uint32(data[pos:])
		pos += 4
		idx.Entries = append(idx.Entries, IndexEntry{Key: key, BlockOffset: offset, BlockSize: size})
	}
	return idx, nil
}

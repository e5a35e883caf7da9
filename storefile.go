package hbase

import (
	"encoding/binary"
	"os"
	"time"
)

// StoreFileMagic/Version identify and version the on-disk format.
const (
	StoreFileMagic   uint64 = 0x53544f52_00000001 // "STOR" + version 1
	StoreFileVersion uint32 = 1
)

// StoreFileFooterSize is the fixed footer size at the end of every file.
const StoreFileFooterSize = 72

// StoreFileFooter is the fixed-size trailer every StoreFile carries.
type StoreFileFooter struct {
	BloomOffset      uint64
	BloomSize        uint32
	RowColBloomOffset uint64
	RowColBloomSize   uint32
	IndexOffset      uint64
	IndexSize        uint32
	MetaOffset       uint64
	MetaSize         uint32
	NumDataBlocks    uint32
	NumKeys          uint64
	FileSize         uint64
	Magic            uint64
}

// StoreFileMeta carries the bookkeeping a compactor and the scanner
// construction paths need without reading any data block.
type StoreFileMeta struct {
	Level         int
	MinSequence   uint64
	MaxSequence   uint64
	NumTombstones uint64
	CreatedAt     int64
	MinTimestamp  int64
	MaxTimestamp  int64
}

// StoreFile is one immutable, sorted, on-disk cell file: exactly the
// "sorted immutable file" half of the merge scan.
type StoreFile struct {
	ID          uint32
	Path        string
	Level       int
	Footer      StoreFileFooter
	Meta        StoreFileMeta
	Index       *Index
	BloomFilter *BloomFilter
	RowColBloom *RowColBloomFilter
	MinKey      []byte // encoded
	MaxKey      []byte // encoded

	file     *os.File
	fileSize int64
}

// OpenStoreFile opens an existing file, reading its footer/index/bloom
// eagerly (data blocks stay on disk until a scanner requests one).
func OpenStoreFile(id uint32, path string) (*StoreFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	fileSize := stat.Size()
	if fileSize < StoreFileFooterSize {
		file.Close()
		return nil, ErrCorrupt
	}

	footerBuf := make([]byte, StoreFileFooterSize)
	if _, err := file.ReadAt(footerBuf, fileSize-StoreFileFooterSize); err != nil {
		file.Close()
		return nil, err
	}
	footer := parseStoreFileFooter(footerBuf)
	if footer.Magic != StoreFileMagic {
		file.Close()
		return nil, ErrCorrupt
	}

	var bf *BloomFilter
	if footer.BloomSize > 0 {
		buf := make([]byte, footer.BloomSize)
		if _, err := file.ReadAt(buf, int64(footer.BloomOffset)); err != nil {
			file.Close()
			return nil, err
		}
		if bf, err = DeserializeBloomFilter(buf); err != nil {
			file.Close()
			return nil, err
		}
	}

	var rcbf *RowColBloomFilter
	if footer.RowColBloomSize > 0 {
		buf := make([]byte, footer.RowColBloomSize)
		if _, err := file.ReadAt(buf, int64(footer.RowColBloomOffset)); err != nil {
			file.Close()
			return nil, err
		}
		if rcbf, err = DeserializeRowColBloomFilter(buf); err != nil {
			file.Close()
			return nil, err
		}
	}

	indexBuf := make([]byte, footer.IndexSize)
	if _, err := file.ReadAt(indexBuf, int64(footer.IndexOffset)); err != nil {
		file.Close()
		return nil, err
	}
	index, err := DeserializeIndex(indexBuf)
	if err != nil {
		file.Close()
		return nil, err
	}

	metaBuf := make([]byte, footer.MetaSize)
	if _, err := file.ReadAt(metaBuf, int64(footer.MetaOffset)); err != nil {
		file.Close()
		return nil, err
	}
	meta, err := deserializeStoreFileMeta(metaBuf)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &StoreFile{
		ID:          id,
		Path:        path,
		Level:       meta.Level,
		Footer:      footer,
		Meta:        meta,
		Index:       index,
		BloomFilter: bf,
		RowColBloom: rcbf,
		MinKey:      index.MinKey,
		MaxKey:      index.MaxKey,
		file:        file,
		fileSize:    fileSize,
	}, nil
}

// Close releases the file's OS handle.
func (sf *StoreFile) Close() error {
	if sf.file == nil {
		return nil
	}
	return sf.file.Close()
}

// readBlock reads and decodes the block at idx, bypassing the cache —
// used by streaming-mode scanners which intentionally avoid caching so a
// long sequential scan cannot evict hot random-access blocks.
func (sf *StoreFile) readBlock(idx int, verify bool) (*Block, error) {
	if idx < 0 || idx >= len(sf.Index.Entries) {
		return nil, ErrCorrupt
	}
	e := sf.Index.Entries[idx]
	buf := make([]byte, e.BlockSize)
	if _, err := sf.file.ReadAt(buf, int64(e.BlockOffset)); err != nil {
		return nil, err
	}
	return DecodeBlock(buf, verify)
}

func parseStoreFileFooter(buf []byte) StoreFileFooter {
	return StoreFileFooter{
		BloomOffset:       binary.LittleEndian.Uint64(buf[0:]),
		BloomSize:         binary.LittleEndian.Uint32(buf[8:]),
		RowColBloomOffset: binary.LittleEndian.Uint64(buf[12:]),
		RowColBloomSize:   binary.LittleEndian.Uint32(buf[20:]),
		IndexOffset:       binary.LittleEndian.Uint64(buf[24:]),
		IndexSize:         binary.LittleEndian.Uint32(buf[32:]),
		MetaOffset:        binary.LittleEndian.Uint64(buf[36:]),
		MetaSize:          binary.LittleEndian.Uint32(buf[44:]),
		NumDataBlocks:     binary.LittleEndian.Uint32(buf[48:]),
		NumKeys:           binary.LittleEndian.Uint64(buf[52:]),
		FileSize:          binary.LittleEndian.Uint64(buf[60:]),
		Magic:             binary.LittleEndian.Uint64(buf[64:]),
	}
}

func (f StoreFileFooter) serialize() []byte {
	buf := make([]byte, StoreFileFooterSize)
	binary.LittleEndian.PutUint64(buf[0:], f.BloomOffset)
	binary.LittleEndian.PutUint32(buf[8:], f.BloomSize)
	binary.LittleEndian.PutUint64(buf[12:], f.RowColBloomOffset)
	binary.LittleEndian.PutUint32(buf[20:], f.RowColBloomSize)
	binary.LittleEndian.PutUint64(buf[24:], f.IndexOffset)
	binary.LittleEndian.PutUint32(buf[32:], f.IndexSize)
	binary.LittleEndian.PutUint64(buf[36:], f.MetaOffset)
	binary.LittleEndian.PutUint32(buf[44:], f.MetaSize)
	binary.LittleEndian.PutUint32(buf[48:], f.NumDataBlocks)
	binary.LittleEndian.PutUint64(buf[52:], f.NumKeys)
	binary.LittleEndian.PutUint64(buf[60:], f.FileSize)
	binary.LittleEndian.PutUint64(buf[64:], f.Magic)
	return buf
}

func deserializeStoreFileMeta(buf []byte) (StoreFileMeta, error) {
	if len(buf) < 48 {
		return StoreFileMeta{}, ErrCorrupt
	}
	return StoreFileMeta{
		Level:         int(int32(binary.LittleEndian.Uint32(buf[0:]))),
		MinSequence:   binary.LittleEndian.Uint64(buf[8:]),
		MaxSequence:   binary.LittleEndian.Uint64(buf[16:]),
		NumTombstones: binary.LittleEndian.Uint64(buf[24:]),
		CreatedAt:     int64(binary.LittleEndian.Uint64(buf[32:])),
		MinTimestamp:  int64(binary.LittleEndian.Uint64(buf[40:])),
		MaxTimestamp:  int64(binary.LittleEndian.Uint64(buf[48:])),
	}, nil
}

func (m StoreFileMeta) serialize() []byte {
	buf := make([]byte, 56)
	binary.LittleEndian.PutUint32(buf[0:], uint32(int32(m.Level)))
	binary.LittleEndian.PutUint64(buf[8:], m.MinSequence)
	binary.LittleEndian.PutUint64(buf[16:], m.MaxSequence)
	binary.LittleEndian.PutUint64(buf[24:], m.NumTombstones)
	binary.LittleEndian.PutUint64(buf[32:], uint64(m.CreatedAt))
	binary.LittleEndian.PutUint64(buf[40:], uint64(m.MinTimestamp))
	binary.LittleEndian.PutUint64(buf[48:], uint64(m.MaxTimestamp))
	return buf
}

// WriteStoreFile writes cells (which must already be sorted in
// DefaultComparator order) to a new StoreFile at path. level is
// caller-supplied since a flush and a compaction derive it differently;
// Meta.MinSequence and Meta.MaxSequence are taken from the cells' own
// sequence numbers.
func WriteStoreFile(path string, id uint32, level int, cells []Cell, opts Options) (*StoreFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	ib := NewIndexBuilder()
	builder := newBlockBuilder(opts.BlockSize)

	var bloom *BloomFilter
	var rcbloom *RowColBloomFilter
	if !opts.DisableBloom && len(cells) > 0 {
		bloom = NewBloomFilter(uint(len(cells)), opts.BloomFPRate)
		rcbloom = NewRowColBloomFilter(uint(len(cells)), opts.BloomFPRate)
	}

	meta := StoreFileMeta{Level: level, CreatedAt: time.Now().UnixMilli(), MinSequence: ^uint64(0)}

	var offset int64
	var numTombstones uint64
	var firstKeyInBlock []byte
	var lastKeyInBlock []byte
	keysInBlock := 0

	flush := func() error {
		if builder.Count() == 0 {
			return nil
		}
		data, err := builder.Build(blockTypeData, opts.CompressionType, opts.CompressionLevel)
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			return err
		}
		ib.Add(firstKeyInBlock, lastKeyInBlock, uint64(offset), uint32(len(data)), keysInBlock)
		offset += int64(len(data))
		builder.Reset()
		firstKeyInBlock = nil
		keysInBlock = 0
		return nil
	}

	for _, c := range cells {
		if bloom != nil {
			bloom.Add(c.Row)
			rcbloom.Add(c.Row, c.Qualifier)
		}
		if c.IsTombstone() {
			numTombstones++
		}
		if c.Sequence < meta.MinSequence {
			meta.MinSequence = c.Sequence
		}
		if c.Sequence > meta.MaxSequence {
			meta.MaxSequence = c.Sequence
		}
		if meta.MinTimestamp == 0 || c.Timestamp < meta.MinTimestamp {
			meta.MinTimestamp = c.Timestamp
		}
		if c.Timestamp > meta.MaxTimestamp {
			meta.MaxTimestamp = c.Timestamp
		}

		key := EncodeCellKey(c)
		value := EncodeCellValue(c)
		if firstKeyInBlock == nil {
			firstKeyInBlock = key
		}
		if !builder.Add(key, value) {
			if err := flush(); err != nil {
				f.Close()
				return nil, err
			}
			firstKeyInBlock = key
			builder.Add(key, value)
		}
		lastKeyInBlock = key
		keysInBlock++
	}
	if err := flush(); err != nil {
		f.Close()
		return nil, err
	}
	if len(cells) == 0 {
		meta.MinSequence = 0
	}

	idx := ib.Build()

	footer := StoreFileFooter{Magic: StoreFileMagic, NumDataBlocks: uint32(len(idx.Entries)), NumKeys: idx.NumKeys}

	indexBuf := idx.Serialize()
	footer.IndexOffset = uint64(offset)
	footer.IndexSize = uint32(len(indexBuf))
	if _, err := f.Write(indexBuf); err != nil {
		f.Close()
		return nil, err
	}
	offset += int64(len(indexBuf))

	if bloom != nil {
		bloomBuf, err := bloom.Serialize()
		if err != nil {
			f.Close()
			return nil, err
		}
		footer.BloomOffset = uint64(offset)
		footer.BloomSize = uint32(len(bloomBuf))
		if _, err := f.Write(bloomBuf); err != nil {
			f.Close()
			return nil, err
		}
		offset += int64(len(bloomBuf))

		rcBuf, err := rcbloom.Serialize()
		if err != nil {
			f.Close()
			return nil, err
		}
		footer.RowColBloomOffset = uint64(offset)
		footer.RowColBloomSize = uint32(len(rcBuf))
		if _, err := f.Write(rcBuf); err != nil {
			f.Close()
			return nil, err
		}
		offset += int64(len(rcBuf))
	}

	meta.NumTombstones = numTombstones
	metaBuf := meta.serialize()
	footer.MetaOffset = uint64(offset)
	footer.MetaSize = uint32(len(metaBuf))
	if _, err := f.Write(metaBuf); err != nil {
		f.Close()
		return nil, err
	}
	offset += int64(len(metaBuf))

	footer.FileSize = uint64(offset) + StoreFileFooterSize
	if _, err := f.Write(footer.serialize()); err != nil {
		f.Close()
		return nil, err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return nil, err
	}
	f.Close()

	return OpenStoreFile(id, path)
}

package hbase

import (
	"encoding/binary"
	"hash/crc32"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/minio/minlz"
)

// Pooled zstd decoder, reused across block decodes.
var zstdDecoderPool = sync.Pool{
	New: func() interface{} {
		decoder, _ := zstd.NewReader(nil)
		return decoder
	},
}

// Size-classed decompression buffer pools, same rationale as the block
// cache's entry pooling: avoid per-block allocation on the hot scan path.
var decompressPools = [5]sync.Pool{
	{New: func() interface{} { return make([]byte, 0, 4*1024) }},
	{New: func() interface{} { return make([]byte, 0, 16*1024) }},
	{New: func() interface{} { return make([]byte, 0, 64*1024) }},
	{New: func() interface{} { return make([]byte, 0, 256*1024) }},
	{New: func() interface{} { return make([]byte, 0, 1024*1024) }},
}

var decompressPoolSizes = [5]int{4 * 1024, 16 * 1024, 64 * 1024, 256 * 1024, 1024 * 1024}

// maxBlockSize guards against a malformed block footer claiming an
// enormous uncompressed size.
const maxBlockSize = 64 * 1024 * 1024

func getDecompressBuffer(size int) []byte {
	for i, poolSize := range decompressPoolSizes {
		if size <= poolSize {
			buf := decompressPools[i].Get().([]byte)
			return buf[:0]
		}
	}
	return make([]byte, 0, size)
}

func putDecompressBuffer(buf []byte) {
	c := cap(buf)
	for i, poolSize := range decompressPoolSizes {
		if c == poolSize {
			decompressPools[i].Put(buf[:0])
			return
		}
	}
}

// Channel-based zstd encoder pools: a channel (unlike sync.Pool) is not
// cleared by the GC under memory pressure, which matters here since a
// zstd encoder at higher levels is expensive to rebuild.
var zstdEncoderPools [5]chan *zstd.Encoder

func init() {
	const poolSize = 4
	for i := 0; i <= 4; i++ {
		zstdEncoderPools[i] = make(chan *zstd.Encoder, poolSize)
	}
}

func getEncoder(level int) *zstd.Encoder {
	level = clampLevel(level)
	select {
	case enc := <-zstdEncoderPools[level]:
		return enc
	default:
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		return enc
	}
}

func putEncoder(level int, enc *zstd.Encoder) {
	level = clampLevel(level)
	select {
	case zstdEncoderPools[level] <- enc:
	default:
		enc.Close()
	}
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 4 {
		return 4
	}
	return level
}

const (
	blockTypeData  uint8 = 1
	blockTypeIndex uint8 = 2
	blockTypeBloom uint8 = 3
	blockTypeMeta  uint8 = 4
)

// blockFooterSize: checksum(4) + uncompressed_size(4) + compressed_size(4) + compression_type(1).
const blockFooterSize = 13

const (
	compressionTypeZstd   uint8 = 0
	compressionTypeSnappy uint8 = 1
	compressionTypeNone   uint8 = 2
	compressionTypeMinLZ  uint8 = 3
)

// BlockEntry is one stored cell within a block: Key is the
// EncodeCellKey-encoded coordinate, Value the EncodeCellValue-encoded
// payload.
type BlockEntry struct {
	Key   []byte
	Value []byte
}

// Block is a decompressed data block. Its Entries slice references the
// block's own decompressed buffer; call Release when the caller is done
// reading from it so the buffer can return to the pool.
type Block struct {
	Type    uint8
	Entries []BlockEntry
	buffer  []byte
	pooled  bool
}

// Release returns the block's buffer to the pool.
func (b *Block) Release() {
	if b.buffer != nil {
		if b.pooled {
			putDecompressBuffer(b.buffer)
		}
		b.buffer = nil
		b.Entries = nil
	}
}

// blockBuilder accumulates cells and produces a compressed block.
type blockBuilder struct {
	entries   []BlockEntry
	size      int
	blockSize int

	arena       []byte
	arenaOffset int

	buildBuf    []byte
	compressBuf []byte
}

func newBlockBuilder(blockSize int) *blockBuilder {
	return &blockBuilder{
		entries:     make([]BlockEntry, 0, 64),
		blockSize:   blockSize,
		arena:       make([]byte, blockSize*2),
		buildBuf:    make([]byte, 0, blockSize+1024),
		compressBuf: make([]byte, 0, snappy.MaxEncodedLen(blockSize+1024)),
	}
}

// Add appends one cell's encoded key/value to the block being built.
// Returns false if the block is already at capacity.
func (b *blockBuilder) Add(key, value []byte) bool {
	entrySize := 4 + len(key) + 4 + len(value)
	if b.size > 0 && b.size+entrySize > b.blockSize {
		return false
	}
	valueCopy := b.arenaAlloc(len(value))
	copy(valueCopy, value)
	b.entries = append(b.entries, BlockEntry{Key: key, Value: valueCopy})
	b.size += entrySize
	return true
}

func (b *blockBuilder) arenaAlloc(size int) []byte {
	if b.arenaOffset+size > len(b.arena) {
		newSize := len(b.arena) * 2
		if newSize < b.arenaOffset+size {
			newSize = b.arenaOffset + size
		}
		newArena := make([]byte, newSize)
		copy(newArena, b.arena[:b.arenaOffset])
		b.arena = newArena
	}
	result := b.arena[b.arenaOffset : b.arenaOffset+size]
	b.arenaOffset += size
	return result
}

// Build serializes and compresses the block with the builder's
// configured compression.
func (b *blockBuilder) Build(blockType uint8, compressionType CompressionType, compressionLevel int) ([]byte, error) {
	buf := b.buildBuf[:0]
	buf = append(buf, blockType)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(b.entries)))
	for _, entry := range b.entries {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(entry.Key)))
		buf = append(buf, entry.Key...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(entry.Value)))
		buf = append(buf, entry.Value...)
	}
	b.buildBuf = buf
	uncompressedSize := len(buf)

	var compressed []byte
	var compType uint8

	switch compressionType {
	case CompressionSnappy:
		maxLen := snappy.MaxEncodedLen(len(buf))
		if cap(b.compressBuf) < maxLen {
			b.compressBuf = make([]byte, 0, maxLen)
		}
		compressed = snappy.Encode(b.compressBuf[:maxLen], buf)
		compType = compressionTypeSnappy
	case CompressionNone:
		if cap(b.compressBuf) < len(buf) {
			b.compressBuf = make([]byte, len(buf))
		}
		compressed = b.compressBuf[:len(buf)]
		copy(compressed, buf)
		compType = compressionTypeNone
	case CompressionMinLZ:
		level := minlz.LevelFastest
		if compressionLevel >= 3 {
			level = minlz.LevelSmallest
		} else if compressionLevel >= 2 {
			level = minlz.LevelBalanced
		}
		var err error
		compressed, err = minlz.Encode(b.compressBuf[:0], buf, level)
		if err != nil {
			return nil, err
		}
		if cap(compressed) > cap(b.compressBuf) {
			b.compressBuf = compressed[:0]
		}
		compType = compressionTypeMinLZ
	default:
		encoder := getEncoder(compressionLevel)
		if cap(b.compressBuf) < len(buf) {
			b.compressBuf = make([]byte, 0, len(buf))
		}
		compressed = encoder.EncodeAll(buf, b.compressBuf[:0])
		putEncoder(compressionLevel, encoder)
		compType = compressionTypeZstd
	}

	checksum := crc32.ChecksumIEEE(compressed)
	footer := make([]byte, blockFooterSize)
	binary.LittleEndian.PutUint32(footer[0:], checksum)
	binary.LittleEndian.PutUint32(footer[4:], uint32(uncompressedSize))
	binary.LittleEndian.PutUint32(footer[8:], uint32(len(compressed)))
	footer[12] = compType

	return append(compressed, footer...), nil
}

func (b *blockBuilder) Reset() {
	b.entries = b.entries[:0]
	b.size = 0
	b.arenaOffset = 0
}

func (b *blockBuilder) Count() int { return len(b.entries) }
func (b *blockBuilder) Size() int  { return b.size }

func (b *blockBuilder) FirstKey() []byte {
	if len(b.entries) == 0 {
		return nil
	}
	return b.entries[0].Key
}

type blockFooter struct {
	checksum         uint32
	uncompressedSize uint32
	compressedSize   uint32
	compType         uint8
	compressed       []byte
}

// DecodeBlock decompresses and parses a block. The returned Block
// references its own decompressed buffer; call Release when done.
func DecodeBlock(data []byte, verifyChecksum bool) (*Block, error) {
	footer, err := parseBlockFooter(data, verifyChecksum)
	if err != nil {
		return nil, err
	}
	decompressed, pooled, err := decompressBlockData(footer)
	if err != nil {
		return nil, err
	}
	return parseBlockContents(decompressed, pooled)
}

func parseBlockFooter(data []byte, verifyChecksum bool) (*blockFooter, error) {
	if len(data) < blockFooterSize {
		return nil, ErrCorrupt
	}
	footer := data[len(data)-blockFooterSize:]
	f := &blockFooter{
		checksum:         binary.LittleEndian.Uint32(footer[0:]),
		uncompressedSize: binary.LittleEndian.Uint32(footer[4:]),
		compressedSize:   binary.LittleEndian.Uint32(footer[8:]),
		compType:         footer[12],
		compressed:       data[:len(data)-blockFooterSize],
	}
	if uint32(len(f.compressed)) != f.compressedSize {
		return nil, ErrCorrupt
	}
	if f.compType > compressionTypeMinLZ {
		return nil, ErrCorrupt
	}
	if verifyChecksum && crc32.ChecksumIEEE(f.compressed) != f.checksum {
		return nil, ErrChecksumMismatch
	}
	if f.uncompressedSize > maxBlockSize {
		return nil, ErrCorrupt
	}
	return f, nil
}

func decompressBlockData(f *blockFooter) (decompressed []byte, pooled bool, err error) {
	buf := getDecompressBuffer(int(f.uncompressedSize))
	pooled = true
	switch f.compType {
	case compressionTypeSnappy:
		decompressed, pooled, err = decompressSnappy(f, buf)
	case compressionTypeNone:
		decompressed = buf[:len(f.compressed)]
		copy(decompressed, f.compressed)
	case compressionTypeMinLZ:
		decompressed, pooled, err = decompressMinLZ(f, buf)
	default:
		decompressed, pooled, err = decompressZstd(f, buf)
	}
	if err != nil {
		putDecompressBuffer(buf)
	}
	return decompressed, pooled, err
}

func decompressSnappy(f *blockFooter, buf []byte) ([]byte, bool, error) {
	decodedLen, err := snappy.DecodedLen(f.compressed)
	if err != nil {
		return nil, true, err
	}
	if decodedLen != int(f.uncompressedSize) {
		return nil, true, ErrCorrupt
	}
	buf = buf[:f.uncompressedSize]
	decompressed, err := snappy.Decode(buf, f.compressed)
	if err != nil {
		return nil, true, err
	}
	pooled := !(len(decompressed) > 0 && len(buf) > 0 && &decompressed[0] != &buf[0])
	if !pooled {
		putDecompressBuffer(buf)
	}
	return decompressed, pooled, nil
}

func decompressZstd(f *blockFooter, buf []byte) ([]byte, bool, error) {
	decoder := zstdDecoderPool.Get().(*zstd.Decoder)
	decompressed, err := decoder.DecodeAll(f.compressed, buf)
	zstdDecoderPool.Put(decoder)
	if err != nil {
		return nil, true, err
	}
	pooled := !(len(decompressed) > 0 && len(buf) > 0 && &decompressed[0] != &buf[0])
	if !pooled {
		putDecompressBuffer(buf)
	}
	return decompressed, pooled, nil
}

func decompressMinLZ(f *blockFooter, buf []byte) ([]byte, bool, error) {
	decodedLen, err := minlz.DecodedLen(f.compressed)
	if err != nil {
		return nil, true, err
	}
	if decodedLen != int(f.uncompressedSize) {
		return nil, true, ErrCorrupt
	}
	buf = buf[:f.uncompressedSize]
	decompressed, err := minlz.Decode(buf, f.compressed)
	if err != nil {
		return nil, true, err
	}
	pooled := !(len(decompressed) > 0 && len(buf) > 0 && &decompressed[0] != &buf[0])
	if !pooled {
		putDecompressBuffer(buf)
	}
	return decompressed, pooled, nil
}

func parseBlockContents(decompressed []byte, pooled bool) (*Block, error) {
	if len(decompressed) < 3 {
		releaseIfPooled(decompressed, pooled)
		return nil, ErrCorrupt
	}
	blockType := decompressed[0]
	numEntries := binary.LittleEndian.Uint16(decompressed[1:])
	entries := make([]BlockEntry, numEntries)
	pos := 3
	for i := uint16(0); i < numEntries; i++ {
		var err error
		pos, err = parseBlockEntry(decompressed, pos, &entries[i])
		if err != nil {
			releaseIfPooled(decompressed, pooled)
			return nil, err
		}
	}
	return &Block{Type: blockType, Entries: entries, buffer: decompressed, pooled: pooled}, nil
}

func parseBlockEntry(data []byte, pos int, entry *BlockEntry) (int, error) {
	if pos+4 > len(data) {
		return 0, ErrCorrupt
	}
	keyLen := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	if pos+keyLen+4 > len(data) {
		return 0, ErrCorrupt
	}
	entry.Key = data[pos : pos+keyLen]
	pos += keyLen

	valLen := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	if pos+valLen > len(data) {
		return 0, ErrCorrupt
	}
	entry.Value = data[pos : pos+valLen]
	pos += valLen
	return pos, nil
}

func releaseIfPooled(buf []byte, pooled bool) {
	if pooled {
		putDecompressBuffer(buf)
	}
}

// searchBlock returns the index of the entry exactly matching key's
// encoded coordinate, or -1.
func searchBlock(block *Block, key []byte) int {
	lo, hi := 0, len(block.Entries)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		cmp := compareEncodedKeys(block.Entries[mid].Key, key)
		if cmp == 0 {
			return mid
		} else if cmp < 0 {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return -1
}

package hbase

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func testCells(n int) []Cell {
	cells := make([]Cell, 0, n)
	for i := 0; i < n; i++ {
		row := []byte(fmt.Sprintf("row%04d", i))
		cells = append(cells, PutCell(row, []byte("cf"), []byte("q"), int64(i), []byte(fmt.Sprintf("val%04d", i))))
	}
	return cells
}

func writeTestStoreFile(t *testing.T, cells []Cell, opts Options) *StoreFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sf")
	sf, err := WriteStoreFile(path, 1, 0, cells, opts)
	if err != nil {
		t.Fatalf("WriteStoreFile failed: %v", err)
	}
	t.Cleanup(func() { sf.Close() })
	return sf
}

func TestWriteOpenStoreFileRoundtrip(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	opts.BlockSize = 256 // force multiple blocks for 200 small cells
	cells := testCells(200)

	sf := writeTestStoreFile(t, cells, opts)

	if sf.Footer.Magic != StoreFileMagic {
		t.Errorf("magic = %x, want %x", sf.Footer.Magic, StoreFileMagic)
	}
	if sf.Footer.NumKeys != uint64(len(cells)) {
		t.Errorf("NumKeys = %d, want %d", sf.Footer.NumKeys, len(cells))
	}
	if sf.Footer.NumDataBlocks < 2 {
		t.Errorf("expected multiple data blocks with a small block size, got %d", sf.Footer.NumDataBlocks)
	}
	if sf.Index == nil || len(sf.Index.Entries) != int(sf.Footer.NumDataBlocks) {
		t.Fatalf("index entries mismatch: %+v", sf.Index)
	}
	if sf.BloomFilter == nil || sf.RowColBloom == nil {
		t.Error("bloom filters should be populated by default")
	}

	reopened, err := OpenStoreFile(1, sf.Path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if reopened.Footer.NumKeys != sf.Footer.NumKeys {
		t.Errorf("reopened NumKeys = %d, want %d", reopened.Footer.NumKeys, sf.Footer.NumKeys)
	}
	if reopened.Meta.MaxSequence != sf.Meta.MaxSequence {
		t.Errorf("reopened MaxSequence = %d, want %d", reopened.Meta.MaxSequence, sf.Meta.MaxSequence)
	}
}

func TestWriteStoreFileMetaTracksSequenceAndTimestamp(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	cells := []Cell{
		PutCell([]byte("a"), []byte("cf"), []byte("q"), 1000, []byte("v1")),
		PutCell([]byte("b"), []byte("cf"), []byte("q"), 2000, []byte("v2")),
		DeleteColumnCell([]byte("c"), []byte("cf"), []byte("q"), 3000),
	}
	cells[0].Sequence = 5
	cells[1].Sequence = 9
	cells[2].Sequence = 3

	sf := writeTestStoreFile(t, cells, opts)

	if sf.Meta.MinSequence != 3 {
		t.Errorf("MinSequence = %d, want 3", sf.Meta.MinSequence)
	}
	if sf.Meta.MaxSequence != 9 {
		t.Errorf("MaxSequence = %d, want 9", sf.Meta.MaxSequence)
	}
	if sf.Meta.MinTimestamp != 1000 {
		t.Errorf("MinTimestamp = %d, want 1000", sf.Meta.MinTimestamp)
	}
	if sf.Meta.MaxTimestamp != 3000 {
		t.Errorf("MaxTimestamp = %d, want 3000", sf.Meta.MaxTimestamp)
	}
	if sf.Meta.NumTombstones != 1 {
		t.Errorf("NumTombstones = %d, want 1", sf.Meta.NumTombstones)
	}
	if sf.Meta.Level != 0 {
		t.Errorf("Level = %d, want 0", sf.Meta.Level)
	}
}

func TestWriteStoreFileEmpty(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	sf := writeTestStoreFile(t, nil, opts)

	if sf.Footer.NumKeys != 0 {
		t.Errorf("NumKeys = %d, want 0", sf.Footer.NumKeys)
	}
	if sf.Meta.MinSequence != 0 {
		t.Errorf("MinSequence on empty file = %d, want 0", sf.Meta.MinSequence)
	}
	if sf.BloomFilter != nil {
		t.Error("no bloom filter should be built for an empty file")
	}
}

func TestWriteStoreFileDisableBloom(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	opts.DisableBloom = true
	sf := writeTestStoreFile(t, testCells(10), opts)

	if sf.BloomFilter != nil || sf.RowColBloom != nil {
		t.Error("bloom filters should be nil when DisableBloom is set")
	}
	if sf.Footer.BloomSize != 0 || sf.Footer.RowColBloomSize != 0 {
		t.Error("footer bloom sizes should be zero when DisableBloom is set")
	}
}

func TestOpenStoreFileTooSmall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.sf")
	opts := DefaultOptions(t.TempDir())
	sf := writeTestStoreFile(t, testCells(5), opts)
	sf.Close()

	// Write a too-small file at a fresh path to trigger the size check.
	if err := os.WriteFile(path, make([]byte, 10), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if _, err := OpenStoreFile(2, path); err != ErrCorrupt {
		t.Errorf("expected ErrCorrupt for a too-small file, got %v", err)
	}
}

func TestStoreFileMinMaxKey(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	cells := testCells(50)
	sf := writeTestStoreFile(t, cells, opts)

	wantMin := EncodeCellKey(cells[0])
	wantMax := EncodeCellKey(cells[len(cells)-1])
	if string(sf.MinKey) != string(wantMin) {
		t.Error("MinKey does not match the first written cell's encoded key")
	}
	if string(sf.MaxKey) != string(wantMax) {
		t.Error("MaxKey does not match the last written cell's encoded key")
	}
}

func TestStoreFileReadBlockOutOfRange(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	sf := writeTestStoreFile(t, testCells(10), opts)

	if _, err := sf.readBlock(-1, true); err != ErrCorrupt {
		t.Errorf("negative index: got %v, want ErrCorrupt", err)
	}
	if _, err := sf.readBlock(len(sf.Index.Entries), true); err != ErrCorrupt {
		t.Errorf("out of range index: got %v, want ErrCorrupt", err)
	}
}

package hbase

import (
	"path/filepath"
	"testing"
)

func newTestStoreFile(t *testing.T, n int, blockSize int) *StoreFile {
	t.Helper()
	opts := DefaultOptions(t.TempDir())
	opts.BlockSize = blockSize
	path := filepath.Join(t.TempDir(), "sf")
	sf, err := WriteStoreFile(path, 1, 0, testCells(n), opts)
	if err != nil {
		t.Fatalf("WriteStoreFile failed: %v", err)
	}
	t.Cleanup(func() { sf.Close() })
	return sf
}

func TestFileScannerOpenAtFirstEntry(t *testing.T) {
	sf := newTestStoreFile(t, 20, 256)
	sc, err := openStoreFileScannerAt(sf, nil, DefaultComparator, true, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer sc.Close()

	cell, ok := sc.Peek()
	if !ok {
		t.Fatal("expected a current cell right after opening")
	}
	if string(cell.Row) != "row0000" {
		t.Errorf("first row = %q, want row0000", cell.Row)
	}
}

func TestFileScannerAdvanceAcrossBlocks(t *testing.T) {
	sf := newTestStoreFile(t, 30, 128) // small block size forces several blocks
	sc, err := openStoreFileScannerAt(sf, nil, DefaultComparator, true, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer sc.Close()

	count := 0
	for {
		if _, ok := sc.Peek(); !ok {
			break
		}
		count++
		if err := sc.Advance(); err != nil {
			t.Fatalf("advance failed: %v", err)
		}
	}
	if count != 30 {
		t.Errorf("scanned %d cells, want 30", count)
	}
}

func TestFileScannerSeek(t *testing.T) {
	sf := newTestStoreFile(t, 50, 256)
	sc, err := openStoreFileScannerAt(sf, nil, DefaultComparator, true, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer sc.Close()

	if err := sc.Seek(Cell{Row: []byte("row0025"), Type: CellTypePut}); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	cell, ok := sc.Peek()
	if !ok || string(cell.Row) != "row0025" {
		t.Fatalf("peek after seek = %+v, ok=%v, want row0025", cell, ok)
	}
}

func TestFileScannerSeekPastEnd(t *testing.T) {
	sf := newTestStoreFile(t, 10, 256)
	sc, err := openStoreFileScannerAt(sf, nil, DefaultComparator, true, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer sc.Close()

	if err := sc.Seek(Cell{Row: []byte("zzzz"), Type: CellTypePut}); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	if _, ok := sc.Peek(); ok {
		t.Error("seeking past the last key should leave no current cell")
	}
}

func TestFileScannerRequestSeekBloomShortCircuit(t *testing.T) {
	sf := newTestStoreFile(t, 20, 256)
	sc, err := openStoreFileScannerAt(sf, nil, DefaultComparator, true, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer sc.Close()

	if err := sc.RequestSeek(Cell{Row: []byte("not-a-real-row"), Type: CellTypePut}, true, true); err != nil {
		t.Fatalf("request seek failed: %v", err)
	}
	if _, ok := sc.Peek(); ok {
		t.Error("bloom filter should have proven the row absent")
	}
}

func TestFileScannerNextIndexedKey(t *testing.T) {
	sf := newTestStoreFile(t, 40, 128)
	sc, err := openStoreFileScannerAt(sf, nil, DefaultComparator, true, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer sc.Close()

	if len(sf.Index.Entries) < 2 {
		t.Skip("test needs multiple blocks")
	}
	next, ok := sc.NextIndexedKey()
	if !ok {
		t.Fatal("expected a next indexed key after the first block")
	}
	if len(next.Row) == 0 {
		t.Error("next indexed key should carry a row")
	}
}

func TestFileScannerShouldUseTimeRangeAndTTL(t *testing.T) {
	sf := newTestStoreFile(t, 10, 256)
	sc, err := openStoreFileScannerAt(sf, nil, DefaultComparator, true, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer sc.Close()

	spec := DefaultScanSpec()
	if !sc.ShouldUse(spec, 0) {
		t.Error("file should be usable under an unbounded time range and no TTL cutoff")
	}
	if sc.ShouldUse(spec, sf.Meta.MaxTimestamp+1) {
		t.Error("a TTL cutoff past the file's max timestamp should exclude it")
	}

	spec.TimeRange = TimeRange{Min: sf.Meta.MaxTimestamp + 1000}
	if sc.ShouldUse(spec, 0) {
		t.Error("a time range starting after the file's max timestamp should exclude it")
	}
}

func TestFileScannerCloseReleasesStreamBlock(t *testing.T) {
	sf := newTestStoreFile(t, 10, 256)
	sc, err := openStoreFileScannerAt(sf, nil, DefaultComparator, true, true)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := sc.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := sc.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got: %v", err)
	}
}

func TestFileScannerEmptyFile(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	path := filepath.Join(t.TempDir(), "empty.sf")
	sf, err := WriteStoreFile(path, 1, 0, nil, opts)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	defer sf.Close()

	sc, err := openStoreFileScannerAt(sf, nil, DefaultComparator, true, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer sc.Close()
	if _, ok := sc.Peek(); ok {
		t.Error("an empty file's scanner should have no current cell")
	}
}

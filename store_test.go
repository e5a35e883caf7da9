package hbase

import (
	"fmt"
	"math"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	opts := DefaultOptions(t.TempDir())
	opts.CompactionInterval = 0 // deterministic tests drive Compact() explicitly
	store, err := Open(opts.Dir, opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func putRow(t *testing.T, store *Store, row, value string) {
	t.Helper()
	if err := store.Put(PutCell([]byte(row), []byte("cf"), []byte("q"), 1, []byte(value))); err != nil {
		t.Fatalf("put failed: %v", err)
	}
}

func scanAll(t *testing.T, store *Store, spec *ScanSpec) []Cell {
	t.Helper()
	scanner, err := NewUserScan(store, spec, store.ScanInfo(), math.MaxUint64)
	if err != nil {
		t.Fatalf("scan setup failed: %v", err)
	}
	defer scanner.Close()

	var all []Cell
	var batch []Cell
	ctx := &ScanProgress{}
	for {
		more, err := scanner.Next(&batch, ctx)
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		all = append(all, batch...)
		batch = batch[:0]
		if !more {
			break
		}
	}
	return all
}

func TestStoreOpenIsEmpty(t *testing.T) {
	store := openTestStore(t)
	if store.StorefilesCount() != 0 {
		t.Errorf("fresh store should have no files, got %d", store.StorefilesCount())
	}
	cells := scanAll(t, store, DefaultScanSpec())
	if len(cells) != 0 {
		t.Errorf("fresh store scan returned %d cells, want 0", len(cells))
	}
}

func TestStorePutScanFromMemstore(t *testing.T) {
	store := openTestStore(t)
	putRow(t, store, "a", "va")
	putRow(t, store, "c", "vc")
	putRow(t, store, "b", "vb")

	cells := scanAll(t, store, DefaultScanSpec())
	if len(cells) != 3 {
		t.Fatalf("got %d cells, want 3", len(cells))
	}
	want := []string{"a", "b", "c"}
	for i, c := range cells {
		if string(c.Row) != want[i] {
			t.Errorf("cells[%d].Row = %q, want %q", i, c.Row, want[i])
		}
	}
}

func TestStoreFlushMovesCellsToDisk(t *testing.T) {
	store := openTestStore(t)
	putRow(t, store, "a", "va")
	putRow(t, store, "b", "vb")

	if err := store.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if store.StorefilesCount() != 1 {
		t.Fatalf("expected 1 store file after flush, got %d", store.StorefilesCount())
	}

	cells := scanAll(t, store, DefaultScanSpec())
	if len(cells) != 2 {
		t.Fatalf("got %d cells after flush, want 2", len(cells))
	}
}

func TestStoreFlushEmptyMemstoreIsNoop(t *testing.T) {
	store := openTestStore(t)
	if err := store.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if store.StorefilesCount() != 0 {
		t.Errorf("flushing an empty memstore should not create a file, got %d", store.StorefilesCount())
	}
}

func TestStoreScanMergesMemstoreAndFiles(t *testing.T) {
	store := openTestStore(t)
	putRow(t, store, "a", "va")
	putRow(t, store, "b", "vb")
	if err := store.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	putRow(t, store, "c", "vc")

	cells := scanAll(t, store, DefaultScanSpec())
	if len(cells) != 3 {
		t.Fatalf("got %d cells merging memstore+file, want 3", len(cells))
	}
	want := []string{"a", "b", "c"}
	for i, c := range cells {
		if string(c.Row) != want[i] {
			t.Errorf("cells[%d].Row = %q, want %q", i, c.Row, want[i])
		}
	}
}

func TestStoreCompactMergesFiles(t *testing.T) {
	store := openTestStore(t)
	for i := 0; i < 3; i++ {
		putRow(t, store, fmt.Sprintf("row%d", i), fmt.Sprintf("v%d", i))
		if err := store.Flush(); err != nil {
			t.Fatalf("flush %d failed: %v", i, err)
		}
	}
	if store.StorefilesCount() != 3 {
		t.Fatalf("expected 3 files before compaction, got %d", store.StorefilesCount())
	}

	if err := store.Compact(); err != nil {
		t.Fatalf("compact failed: %v", err)
	}
	if store.StorefilesCount() != 1 {
		t.Fatalf("expected 1 file after compaction, got %d", store.StorefilesCount())
	}

	cells := scanAll(t, store, DefaultScanSpec())
	if len(cells) != 3 {
		t.Fatalf("got %d cells after compaction, want 3", len(cells))
	}
}

func TestStoreCompactSingleFileIsNoop(t *testing.T) {
	store := openTestStore(t)
	putRow(t, store, "a", "va")
	if err := store.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if err := store.Compact(); err != nil {
		t.Fatalf("compact failed: %v", err)
	}
	if store.StorefilesCount() != 1 {
		t.Errorf("compacting a single file should be a no-op, got %d files", store.StorefilesCount())
	}
}

func TestStoreScanRowRange(t *testing.T) {
	store := openTestStore(t)
	for _, row := range []string{"a", "b", "c", "d", "e"} {
		putRow(t, store, row, "v-"+row)
	}

	spec := DefaultScanSpec()
	spec.StartRow = []byte("b")
	spec.StopRow = []byte("d")
	cells := scanAll(t, store, spec)

	want := []string{"b", "c"}
	if len(cells) != len(want) {
		t.Fatalf("got %d cells, want %d", len(cells), len(want))
	}
	for i, c := range cells {
		if string(c.Row) != want[i] {
			t.Errorf("cells[%d].Row = %q, want %q", i, c.Row, want[i])
		}
	}
}

func TestStoreDeleteColumnHidesOlderVersion(t *testing.T) {
	store := openTestStore(t)
	if err := store.Put(PutCell([]byte("a"), []byte("cf"), []byte("q"), 100, []byte("v1"))); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Put(DeleteColumnCell([]byte("a"), []byte("cf"), []byte("q"), 200)); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	cells := scanAll(t, store, DefaultScanSpec())
	if len(cells) != 0 {
		t.Fatalf("delete marker should hide the put, got %d cells: %+v", len(cells), cells)
	}
}

func TestStorePutAfterCloseFails(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	store, err := Open(opts.Dir, opts)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := store.Put(PutCell([]byte("a"), []byte("cf"), []byte("q"), 1, []byte("v"))); err != ErrStoreClosed {
		t.Errorf("put after close = %v, want ErrStoreClosed", err)
	}
}

func TestStoreOpenSameDirTwiceFails(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions(dir)
	store, err := Open(dir, opts)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	defer store.Close()

	if _, err := Open(dir, opts); err != ErrStoreLocked {
		t.Errorf("second open = %v, want ErrStoreLocked", err)
	}
}

func TestStoreReopenLoadsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions(dir)

	store, err := Open(dir, opts)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	putRow(t, store, "a", "va")
	if err := store.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := Open(dir, opts)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if reopened.StorefilesCount() != 1 {
		t.Fatalf("reopened store should see 1 file, got %d", reopened.StorefilesCount())
	}
	cells := scanAll(t, reopened, DefaultScanSpec())
	if len(cells) != 1 || string(cells[0].Row) != "a" {
		t.Errorf("reopened scan = %+v, want [a]", cells)
	}
}

package hbase

import "testing"

func TestMergeHeapPeekReturnsSmallest(t *testing.T) {
	a := memScanner(t, PutCell([]byte("c"), []byte("cf"), []byte("q"), 1, []byte("vc")))
	b := memScanner(t, PutCell([]byte("a"), []byte("cf"), []byte("q"), 1, []byte("va")))
	c := memScanner(t, PutCell([]byte("b"), []byte("cf"), []byte("q"), 1, []byte("vb")))

	h := NewMergeHeap(DefaultComparator, []SubScanner{a, b, c})
	cell, ok := h.Peek()
	if !ok || string(cell.Row) != "a" {
		t.Fatalf("peek = %+v, ok=%v, want row a", cell, ok)
	}
}

func TestMergeHeapAdvanceOrdersAllEntries(t *testing.T) {
	a := memScanner(t,
		PutCell([]byte("a"), []byte("cf"), []byte("q"), 1, []byte("va")),
		PutCell([]byte("d"), []byte("cf"), []byte("q"), 1, []byte("vd")),
	)
	b := memScanner(t,
		PutCell([]byte("b"), []byte("cf"), []byte("q"), 1, []byte("vb")),
		PutCell([]byte("c"), []byte("cf"), []byte("q"), 1, []byte("vc")),
	)

	h := NewMergeHeap(DefaultComparator, []SubScanner{a, b})

	var rows []string
	for {
		cell, ok := h.Peek()
		if !ok {
			break
		}
		rows = append(rows, string(cell.Row))
		if err := h.Advance(); err != nil {
			t.Fatalf("advance failed: %v", err)
		}
	}

	want := []string{"a", "b", "c", "d"}
	if len(rows) != len(want) {
		t.Fatalf("got %v, want %v", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("rows[%d] = %q, want %q", i, rows[i], want[i])
		}
	}
}

func TestMergeHeapSeekSkipsEntriesBeforeKey(t *testing.T) {
	a := memScanner(t,
		PutCell([]byte("a"), []byte("cf"), []byte("q"), 1, []byte("va")),
		PutCell([]byte("c"), []byte("cf"), []byte("q"), 1, []byte("vc")),
	)
	b := memScanner(t, PutCell([]byte("b"), []byte("cf"), []byte("q"), 1, []byte("vb")))

	h := NewMergeHeap(DefaultComparator, []SubScanner{a, b})
	if err := h.Seek(Cell{Row: []byte("c")}); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	cell, ok := h.Peek()
	if !ok || string(cell.Row) != "c" {
		t.Fatalf("peek after seek = %+v, ok=%v, want row c", cell, ok)
	}
}

func TestMergeHeapSeekExhaustsScanner(t *testing.T) {
	a := memScanner(t, PutCell([]byte("a"), []byte("cf"), []byte("q"), 1, []byte("va")))
	h := NewMergeHeap(DefaultComparator, []SubScanner{a})

	if err := h.Seek(Cell{Row: []byte("z")}); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	if _, ok := h.Peek(); ok {
		t.Error("seeking past the only scanner's data should empty the heap")
	}
	if h.Len() != 0 {
		t.Errorf("heap length = %d, want 0", h.Len())
	}
}

func TestMergeHeapEmpty(t *testing.T) {
	h := NewMergeHeap(DefaultComparator, nil)
	if _, ok := h.Peek(); ok {
		t.Error("empty heap should have no current cell")
	}
	if err := h.Advance(); err != nil {
		t.Errorf("advancing an empty heap should be a no-op, got %v", err)
	}
}

func TestMergeHeapScanners(t *testing.T) {
	a := memScanner(t, PutCell([]byte("a"), []byte("cf"), []byte("q"), 1, []byte("va")))
	b := memScanner(t, PutCell([]byte("b"), []byte("cf"), []byte("q"), 1, []byte("vb")))
	h := NewMergeHeap(DefaultComparator, []SubScanner{a, b})

	if got := len(h.Scanners()); got != 2 {
		t.Errorf("Scanners() returned %d entries, want 2", got)
	}
}

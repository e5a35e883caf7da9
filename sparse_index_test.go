package hbase

import (
	"bytes"
	"testing"
)

func rowKey(row string) []byte {
	return EncodeCellKey(Cell{Row: []byte(row), Type: CellTypePut})
}

func buildTestIndex() *Index {
	b := NewIndexBuilder()
	b.Add(rowKey("apple"), rowKey("banana"), 0, 100, 2)
	b.Add(rowKey("cherry"), rowKey("date"), 100, 100, 2)
	b.Add(rowKey("elderberry"), rowKey("fig"), 200, 100, 2)
	return b.Build()
}

func TestIndexSearch(t *testing.T) {
	idx := buildTestIndex()

	tests := []struct {
		key  string
		want int
	}{
		{"apple", 0},
		{"avocado", 0},
		{"cherry", 1},
		{"cucumber", 1},
		{"elderberry", 2},
		{"grape", -1},
	}
	for _, tt := range tests {
		got := idx.Search(rowKey(tt.key))
		if got != tt.want {
			t.Errorf("Search(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}

	if got := idx.Search(rowKey("aardvark")); got != -1 {
		t.Errorf("Search before range should be -1, got %d", got)
	}
}

func TestIndexNextIndexedKey(t *testing.T) {
	idx := buildTestIndex()

	cell, ok := idx.NextIndexedKey(0)
	if !ok {
		t.Fatal("expected a next indexed key after block 0")
	}
	if !bytes.Equal(cell.Row, []byte("cherry")) {
		t.Errorf("next indexed key row = %q, want cherry", cell.Row)
	}

	if _, ok := idx.NextIndexedKey(2); ok {
		t.Error("no next indexed key should exist past the last block")
	}
}

func TestIndexSerializeRoundtrip(t *testing.T) {
	idx := buildTestIndex()
	data := idx.Serialize()

	got, err := DeserializeIndex(data)
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}
	if got.NumKeys != idx.NumKeys {
		t.Errorf("NumKeys = %d, want %d", got.NumKeys, idx.NumKeys)
	}
	if !bytes.Equal(got.MinKey, idx.MinKey) || !bytes.Equal(got.MaxKey, idx.MaxKey) {
		t.Error("min/max key mismatch after roundtrip")
	}
	if len(got.Entries) != len(idx.Entries) {
		t.Fatalf("got %d entries, want %d", len(got.Entries), len(idx.Entries))
	}
	for i, e := range idx.Entries {
		if !bytes.Equal(got.Entries[i].Key, e.Key) {
			t.Errorf("entry %d key mismatch", i)
		}
		if got.Entries[i].BlockOffset != e.BlockOffset || got.Entries[i].BlockSize != e.BlockSize {
			t.Errorf("entry %d location mismatch", i)
		}
	}
}

func TestIndexSearchEmpty(t *testing.T) {
	idx := &Index{}
	if got := idx.Search(rowKey("anything")); got != -1 {
		t.Errorf("Search on empty index = %d, want -1", got)
	}
}

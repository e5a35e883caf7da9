package hbase

import "testing"

func TestMemstoreAddAndIterate(t *testing.T) {
	ms := NewMemstore(DefaultComparator)

	ms.Add(PutCell([]byte("b"), []byte("cf"), []byte("q"), 100, []byte("v-b")))
	ms.Add(PutCell([]byte("a"), []byte("cf"), []byte("q"), 100, []byte("v-a")))
	ms.Add(PutCell([]byte("c"), []byte("cf"), []byte("q"), 100, []byte("v-c")))

	if ms.Count() != 3 {
		t.Fatalf("count = %d, want 3", ms.Count())
	}

	it := ms.Iterator()
	defer it.Close()

	var rows []string
	for it.Next() {
		rows = append(rows, string(it.Cell().Row))
	}
	want := []string{"a", "b", "c"}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("rows[%d] = %q, want %q", i, rows[i], want[i])
		}
	}
}

func TestMemstoreNeverOverwrites(t *testing.T) {
	ms := NewMemstore(DefaultComparator)

	c1 := PutCell([]byte("a"), []byte("cf"), []byte("q"), 100, []byte("first"))
	c1.Sequence = 1
	c2 := PutCell([]byte("a"), []byte("cf"), []byte("q"), 100, []byte("second"))
	c2.Sequence = 2

	ms.Add(c1)
	ms.Add(c2)

	if ms.Count() != 2 {
		t.Fatalf("count = %d, want 2 (both versions retained)", ms.Count())
	}

	it := ms.Iterator()
	defer it.Close()

	var values []string
	for it.Next() {
		values = append(values, string(it.Cell().Value))
	}
	if len(values) != 2 {
		t.Fatalf("got %d values, want 2", len(values))
	}
	// Newer sequence sorts first under the comparator.
	if values[0] != "second" || values[1] != "first" {
		t.Errorf("values = %v, want [second, first]", values)
	}
}

func TestMemstoreSeek(t *testing.T) {
	ms := NewMemstore(DefaultComparator)
	for _, row := range []string{"a", "c", "e", "g"} {
		ms.Add(PutCell([]byte(row), []byte("cf"), []byte("q"), 1, []byte(row)))
	}

	it := ms.Iterator()
	defer it.Close()

	if !it.Seek(Cell{Row: []byte("d")}) {
		t.Fatal("seek should find a cell at or after d")
	}
	if string(it.Cell().Row) != "e" {
		t.Errorf("seek(d) landed on %q, want e", it.Cell().Row)
	}

	if it.Seek(Cell{Row: []byte("z")}) {
		t.Error("seek past the end should report no cell")
	}
}

func TestMemstoreMinSequence(t *testing.T) {
	ms := NewMemstore(DefaultComparator)
	if ms.MinSequence() != 0 {
		t.Errorf("empty memstore min sequence = %d, want 0", ms.MinSequence())
	}

	c := PutCell([]byte("a"), []byte("cf"), []byte("q"), 1, []byte("v"))
	c.Sequence = 7
	ms.Add(c)

	if ms.MinSequence() != 7 {
		t.Errorf("min sequence = %d, want 7", ms.MinSequence())
	}
}

func TestMemstoreSize(t *testing.T) {
	ms := NewMemstore(DefaultComparator)
	if ms.Size() != 0 {
		t.Errorf("empty memstore size = %d, want 0", ms.Size())
	}
	ms.Add(PutCell([]byte("a"), []byte("cf"), []byte("q"), 1, []byte("value")))
	if ms.Size() <= 0 {
		t.Error("size should increase after an add")
	}
}

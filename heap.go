package hbase

// MergeHeap is a binary min-heap of SubScanners ordered by their current
// Peek()'d cell under a Comparator. It owns the cursors, not copies of
// their cells, so advancing the top re-peeks its owner in place — the
// same hand-rolled push/pop/up/down shape as the teacher's entryHeap in
// merge.go, generalized from an Entry-keyed heap to a SubScanner-keyed
// one.
type MergeHeap struct {
	cmp     Comparator
	entries []heapItem
}

type heapItem struct {
	scanner SubScanner
	cell    Cell
}

// NewMergeHeap builds a heap from scanners that are already positioned
// (Peek-able); exhausted scanners are dropped rather than inserted.
func NewMergeHeap(cmp Comparator, scanners []SubScanner) *MergeHeap {
	h := &MergeHeap{cmp: cmp}
	for _, s := range scanners {
		if cell, ok := s.Peek(); ok {
			h.entries = append(h.entries, heapItem{scanner: s, cell: cell})
		}
	}
	h.init()
	return h
}

func (h *MergeHeap) Len() int { return len(h.entries) }

func (h *MergeHeap) less(i, j int) bool {
	return h.cmp.Compare(h.entries[i].cell, h.entries[j].cell) < 0
}

func (h *MergeHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.less(j, i) {
			break
		}
		h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
		j = i
	}
}

func (h *MergeHeap) down(i, n int) {
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.less(j2, j1) {
			j = j2
		}
		if !h.less(j, i) {
			break
		}
		h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
		i = j
	}
}

func (h *MergeHeap) init() {
	n := len(h.entries)
	for i := n/2 - 1; i >= 0; i-- {
		h.down(i, n)
	}
}

func (h *MergeHeap) push(it heapItem) {
	h.entries = append(h.entries, it)
	h.up(len(h.entries) - 1)
}

// popTop removes and returns the current top entry without re-peeking its
// scanner; the caller is expected to advance/seek it and push it back
// only if it is still live.
func (h *MergeHeap) popTop() heapItem {
	old := h.entries
	n := len(old) - 1
	old[0], old[n] = old[n], old[0]
	h.down(0, n)
	it := old[n]
	h.entries = old[:n]
	return it
}

// reinsert re-peeks scanner and, if it still has a cell, pushes it back
// onto the heap; otherwise the scanner is dropped (not closed — ownership
// of closing belongs to the caller, per the delayed-close lifecycle).
func (h *MergeHeap) reinsert(s SubScanner) {
	if cell, ok := s.Peek(); ok {
		h.push(heapItem{scanner: s, cell: cell})
	}
}

// Peek returns the cell at the top of the heap.
func (h *MergeHeap) Peek() (Cell, bool) {
	if len(h.entries) == 0 {
		return Cell{}, false
	}
	return h.entries[0].cell, true
}

// Advance discards the top's current cell and re-seats the heap.
func (h *MergeHeap) Advance() error {
	if len(h.entries) == 0 {
		return nil
	}
	it := h.popTop()
	if err := it.scanner.Advance(); err != nil {
		return err
	}
	h.reinsert(it.scanner)
	return nil
}

// Seek repositions the top scanner (and any others that sort before key)
// to key, restoring heap order.
func (h *MergeHeap) Seek(key Cell) error {
	return h.reseekAll(key, false)
}

// Reseek behaves like Seek but is only correct when key is known to be
// >= every scanner's current position.
func (h *MergeHeap) Reseek(key Cell) error {
	return h.reseekAll(key, true)
}

func (h *MergeHeap) reseekAll(key Cell, isReseek bool) error {
	var rest []heapItem
	for len(h.entries) > 0 {
		it := h.popTop()
		if h.cmp.Compare(it.cell, key) >= 0 {
			rest = append(rest, it)
			continue
		}
		var err error
		if isReseek {
			err = it.scanner.Reseek(key)
		} else {
			err = it.scanner.Seek(key)
		}
		if err != nil {
			return err
		}
		if cell, ok := it.scanner.Peek(); ok {
			rest = append(rest, heapItem{scanner: it.scanner, cell: cell})
		}
	}
	for _, it := range rest {
		h.push(it)
	}
	return nil
}

// RequestSeek forwards a deferred seek to the current top and reseats it.
func (h *MergeHeap) RequestSeek(key Cell, forward, useBloom bool) error {
	if len(h.entries) == 0 {
		return nil
	}
	it := h.popTop()
	if err := it.scanner.RequestSeek(key, forward, useBloom); err != nil {
		return err
	}
	h.reinsert(it.scanner)
	return nil
}

// NextIndexedKey delegates to the current top.
func (h *MergeHeap) NextIndexedKey() (Cell, bool) {
	if len(h.entries) == 0 {
		return Cell{}, false
	}
	return h.entries[0].scanner.NextIndexedKey()
}

// Shipped broadcasts a shipped notification to every member scanner that
// implements an optional Shipper interface.
func (h *MergeHeap) Shipped() error {
	for _, it := range h.entries {
		if s, ok := it.scanner.(Shipper); ok {
			if err := s.Shipped(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Scanners returns the live member scanners, in no particular order.
func (h *MergeHeap) Scanners() []SubScanner {
	out := make([]SubScanner, 0, len(h.entries))
	for _, it := range h.entries {
		out = append(out, it.scanner)
	}
	return out
}

// Shipper is implemented by SubScanners that need to release block
// references at a ship boundary (file scanners holding cached blocks).
type Shipper interface {
	Shipped() error
}

package hbase

// SubScanner is a cursor over one source of cells — one store file or one
// memstore segment — that the MergeHeap merges across.
type SubScanner interface {
	// Peek returns the current cell without consuming it. ok is false
	// once the source is exhausted.
	Peek() (Cell, bool)

	// Advance discards the current cell and moves to the next.
	Advance() error

	// Seek positions at the first cell >= key. It always moves forward;
	// calling it with a key behind the current position is legal but
	// wasteful (use Reseek when key is already known to be ahead).
	Seek(key Cell) error

	// Reseek behaves like Seek but the caller guarantees key is not
	// behind the current position, which lets some implementations skip
	// re-deriving the search start point.
	Reseek(key Cell) error

	// RequestSeek is a deferred seek: when useBloom is true and the
	// implementation holds a bloom filter, it may prove the seek target
	// cannot exist without performing any I/O, turning this into a no-op
	// that simply exhausts the scanner.
	RequestSeek(key Cell, forward, useBloom bool) error

	// NextIndexedKey returns the key of the next sparse-index entry past
	// the current block. ok is false for memstore scanners and for the
	// final block of a file.
	NextIndexedKey() (Cell, bool)

	// IsFileScanner distinguishes on-disk sources from the in-memory
	// memstore, since only the former carry a sparse index/bloom filter.
	IsFileScanner() bool

	// ShouldUse reports whether this source can contribute any cell to
	// scan, consulting time range, TTL cutoff, and (for file scanners)
	// bloom filters.
	ShouldUse(scan *ScanSpec, ttlCutoff int64) bool

	Close() error
}

package hbase

// MatchCode directs the StoreScanner's main loop: whether to keep a
// cell, and where to move the heap afterward.
type MatchCode uint8

const (
	MatchInclude MatchCode = iota
	MatchIncludeAndSeekNextCol
	MatchIncludeAndSeekNextRow
	MatchSkip
	MatchSeekNextCol
	MatchSeekNextRow
	MatchSeekNextUsingHint
	MatchDone
	MatchDoneScan
)

// MatchPolicy classifies cells for one row at a time. It is re-armed via
// SetToNewRow whenever the scanner moves to a new row and queried once
// per candidate cell via Match.
type MatchPolicy interface {
	SetToNewRow(firstCell Cell)
	Match(c Cell) (MatchCode, error)

	CurrentRow() ([]byte, bool)
	ClearCurrentRow()

	// GetKeyForNextColumn returns the smallest possible key for the
	// column after c's, used to seek past cells MatchSeekNextCol skips.
	GetKeyForNextColumn(c Cell) Cell

	// GetNextKeyHint returns the key a SEEK_NEXT_USING_HINT dispatch
	// should seek to, when the policy can name one precisely (e.g. a
	// column-set scan knows the next wanted qualifier even though the
	// current cell's qualifier isn't it).
	GetNextKeyHint(c Cell) (Cell, bool)

	// CompareKeyForNextRow/Column tell the seek-vs-skip heuristic how a
	// file's next sparse-index key relates to the key the match policy
	// would seek to for the next row/column.
	CompareKeyForNextRow(indexedKey, c Cell) int
	CompareKeyForNextColumn(indexedKey, c Cell) int

	// MoreRowsMayExistAfter reports whether rows past c's row could still
	// satisfy the scan (false once the stop row has been passed).
	MoreRowsMayExistAfter(c Cell) bool

	BeforeShipped()

	StartKey() Cell
	IsUserScan() bool
}

package hbase

import "bytes"

// CompactionPolicy is the MatchPolicy a compaction scan uses: it keeps
// whatever a reader holding a read point at or below smallestReadPoint
// might still need, and optionally drops tombstones inside
// [dropDeletesFromRow, dropDeletesToRow) once nothing can need them.
type CompactionPolicy struct {
	cmp               Comparator
	smallestReadPoint uint64
	maxVersions       int
	minVersions       int
	ttlCutoff         int64

	dropDeletes       bool
	dropFromRow       []byte
	dropToRow         []byte

	tracker *columnTracker
	row     []byte
	haveRow bool
}

// NewCompactionPolicy builds the policy a minor/major compaction scan
// uses. dropFromRow/dropToRow are ignored unless dropDeletes is true.
func NewCompactionPolicy(cmp Comparator, smallestReadPoint uint64, maxVersions, minVersions int, ttlCutoff int64, dropDeletes bool, dropFromRow, dropToRow []byte) *CompactionPolicy {
	return &CompactionPolicy{
		cmp:               cmp,
		smallestReadPoint:  smallestReadPoint,
		maxVersions:       maxVersions,
		minVersions:       minVersions,
		ttlCutoff:         ttlCutoff,
		dropDeletes:       dropDeletes,
		dropFromRow:       dropFromRow,
		dropToRow:         dropToRow,
		tracker:           newColumnTracker(cmp, maxVersions, minVersions, nil),
	}
}

func (p *CompactionPolicy) IsUserScan() bool { return false }
func (p *CompactionPolicy) StartKey() Cell   { return Cell{} }
func (p *CompactionPolicy) BeforeShipped()   {}

func (p *CompactionPolicy) SetToNewRow(c Cell) {
	p.tracker.reset()
	p.row = append(p.row[:0], c.Row...)
	p.haveRow = true
}

func (p *CompactionPolicy) CurrentRow() ([]byte, bool) { return p.row, p.haveRow }
func (p *CompactionPolicy) ClearCurrentRow()            { p.haveRow = false }

func (p *CompactionPolicy) inDropRange(row []byte) bool {
	if !p.dropDeletes {
		return false
	}
	if len(p.dropFromRow) > 0 && bytes.Compare(row, p.dropFromRow) < 0 {
		return false
	}
	if len(p.dropToRow) > 0 && bytes.Compare(row, p.dropToRow) >= 0 {
		return false
	}
	return true
}

func (p *CompactionPolicy) Match(c Cell) (MatchCode, error) {
	if !bytes.Equal(c.Row, p.row) {
		return MatchDone, nil
	}

	// A cell still visible to an in-flight reader's read point must
	// never be compacted away, regardless of tombstones or version caps.
	if c.Sequence > p.smallestReadPoint {
		return MatchInclude, nil
	}

	if c.IsTombstone() {
		p.tracker.observeDelete(c)
		if p.inDropRange(c.Row) {
			return MatchSkip, nil
		}
		return MatchInclude, nil
	}

	if p.tracker.isShadowed(c) {
		return MatchSkip, nil
	}

	if c.Timestamp < p.ttlCutoff {
		return MatchSeekNextCol, nil
	}

	keep, seenEnough := p.tracker.checkVersions(c)
	if !keep {
		return MatchSeekNextCol, nil
	}
	if seenEnough {
		return MatchIncludeAndSeekNextCol, nil
	}
	return MatchInclude, nil
}

func (p *CompactionPolicy) GetKeyForNextColumn(c Cell) Cell {
	return Cell{Row: c.Row, Family: c.Family, Qualifier: nextQualifier(c.Qualifier), Timestamp: maxTimestamp, Type: CellTypePut}
}

func (p *CompactionPolicy) GetNextKeyHint(c Cell) (Cell, bool) { return Cell{}, false }

func (p *CompactionPolicy) CompareKeyForNextRow(indexedKey, c Cell) int {
	return bytes.Compare(indexedKey.Row, nextRow(c.Row))
}

func (p *CompactionPolicy) CompareKeyForNextColumn(indexedKey, c Cell) int {
	hint := p.GetKeyForNextColumn(c)
	if bytes.Equal(indexedKey.Row, hint.Row) {
		return bytes.Compare(indexedKey.Qualifier, hint.Qualifier)
	}
	return bytes.Compare(indexedKey.Row, hint.Row)
}

func (p *CompactionPolicy) MoreRowsMayExistAfter(c Cell) bool { return true }

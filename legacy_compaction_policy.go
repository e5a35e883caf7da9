package hbase

import "bytes"

// LegacyCompactionPolicy is used when a compaction scan is also asked to
// honor a user filter, explicit row bounds, an explicit column set, or a
// bounded time range — cases the plain CompactionPolicy does not handle
// because ordinary compactions never carry them. It shares the same
// columnTracker shadowing logic as UserScanPolicy but, unlike
// UserScanPolicy, treats TTL expiry as soft: MinVersions-protected cells
// are kept even past the TTL cutoff without requiring MinVersions to be
// the hard gate UserScanPolicy uses.
type LegacyCompactionPolicy struct {
	cmp               Comparator
	smallestReadPoint uint64
	scan              *ScanSpec
	ttlCutoff         int64
	minVersions       int
	tracker           *columnTracker
	row               []byte
	haveRow           bool
}

// NewLegacyCompactionPolicy builds the fallback policy for a constrained
// compaction scan.
func NewLegacyCompactionPolicy(cmp Comparator, smallestReadPoint uint64, scan *ScanSpec, ttlCutoff int64, maxVersions, minVersions int) *LegacyCompactionPolicy {
	return &LegacyCompactionPolicy{
		cmp:               cmp,
		smallestReadPoint: smallestReadPoint,
		scan:              scan,
		ttlCutoff:         ttlCutoff,
		minVersions:       minVersions,
		tracker:           newColumnTracker(cmp, maxVersions, minVersions, scan.Columns),
	}
}

func (p *LegacyCompactionPolicy) IsUserScan() bool { return false }
func (p *LegacyCompactionPolicy) StartKey() Cell   { return Cell{Row: p.scan.StartRow} }
func (p *LegacyCompactionPolicy) BeforeShipped()   {}

func (p *LegacyCompactionPolicy) SetToNewRow(c Cell) {
	p.tracker.reset()
	p.row = append(p.row[:0], c.Row...)
	p.haveRow = true
}

func (p *LegacyCompactionPolicy) CurrentRow() ([]byte, bool) { return p.row, p.haveRow }
func (p *LegacyCompactionPolicy) ClearCurrentRow()            { p.haveRow = false }

func (p *LegacyCompactionPolicy) Match(c Cell) (MatchCode, error) {
	if !bytes.Equal(c.Row, p.row) {
		if !p.MoreRowsMayExistAfter(c) {
			return MatchDoneScan, nil
		}
		return MatchDone, nil
	}

	if c.Sequence > p.smallestReadPoint {
		return MatchInclude, nil
	}

	if c.IsTombstone() {
		p.tracker.observeDelete(c)
		return MatchInclude, nil
	}

	if p.tracker.isShadowed(c) {
		return MatchSkip, nil
	}

	if !p.scan.TimeRange.Within(c.Timestamp) {
		return MatchSkip, nil
	}

	if p.minVersions == 0 && c.Timestamp < p.ttlCutoff {
		return MatchSeekNextCol, nil
	}

	if !p.tracker.wantsColumn(c) {
		return MatchSeekNextCol, nil
	}

	keep, seenEnough := p.tracker.checkVersions(c)
	if !keep {
		return MatchSeekNextCol, nil
	}

	if p.scan.Filter != nil {
		_, filterKeep, err := p.scan.Filter.TransformCell(c)
		if err != nil {
			return MatchDone, err
		}
		if !filterKeep {
			if seenEnough {
				return MatchSeekNextCol, nil
			}
			return MatchSkip, nil
		}
	}

	if seenEnough {
		return MatchIncludeAndSeekNextCol, nil
	}
	return MatchInclude, nil
}

func (p *LegacyCompactionPolicy) GetKeyForNextColumn(c Cell) Cell {
	return Cell{Row: c.Row, Family: c.Family, Qualifier: nextQualifier(c.Qualifier), Timestamp: maxTimestamp, Type: CellTypePut}
}

func (p *LegacyCompactionPolicy) GetNextKeyHint(c Cell) (Cell, bool) { return Cell{}, false }

func (p *LegacyCompactionPolicy) CompareKeyForNextRow(indexedKey, c Cell) int {
	return bytes.Compare(indexedKey.Row, nextRow(c.Row))
}

func (p *LegacyCompactionPolicy) CompareKeyForNextColumn(indexedKey, c Cell) int {
	hint := p.GetKeyForNextColumn(c)
	if bytes.Equal(indexedKey.Row, hint.Row) {
		return bytes.Compare(indexedKey.Qualifier, hint.Qualifier)
	}
	return bytes.Compare(indexedKey.Row, hint.Row)
}

func (p *LegacyCompactionPolicy) MoreRowsMayExistAfter(c Cell) bool {
	if len(p.scan.StopRow) == 0 {
		return true
	}
	cmp := bytes.Compare(c.Row, p.scan.StopRow)
	if p.scan.StopInclusive {
		return cmp <= 0
	}
	return cmp < 0
}

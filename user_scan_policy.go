package hbase

import "bytes"

// UserScanPolicy is the MatchPolicy used by ordinary (non-compaction)
// scans: it applies the time range, explicit column set, filter, version
// limit, TTL cutoff, and delete-shadowing visible to a regular reader.
type UserScanPolicy struct {
	scan       *ScanSpec
	info       *ScanInfo
	ttlCutoff  int64
	readPoint  uint64
	tracker    *columnTracker
	row        []byte
	haveRow    bool
	stopRow    []byte
	stopIncl   bool
	startKey   Cell
}

// NewUserScanPolicy builds the policy a user-facing StoreScanner uses,
// deriving its version/TTL/column configuration from scan and info.
// readPoint is the MVCC watermark this scan is bound to: cells written
// with a sequence past it are invisible, as if they had not happened yet
// from this reader's point of view.
func NewUserScanPolicy(scan *ScanSpec, info *ScanInfo, now int64, readPoint uint64) *UserScanPolicy {
	maxVersions := scan.MaxVersions
	if maxVersions <= 0 {
		maxVersions = info.MaxVersions
	}
	startKey := Cell{Row: scan.StartRow}
	return &UserScanPolicy{
		scan:      scan,
		info:      info,
		ttlCutoff: info.ttlCutoff(now),
		readPoint: readPoint,
		tracker:   newColumnTracker(info.Comparator, maxVersions, info.MinVersions, scan.Columns),
		stopRow:   scan.StopRow,
		stopIncl:  scan.StopInclusive,
		startKey:  startKey,
	}
}

func (p *UserScanPolicy) IsUserScan() bool { return true }
func (p *UserScanPolicy) StartKey() Cell   { return p.startKey }

func (p *UserScanPolicy) SetToNewRow(c Cell) {
	p.tracker.reset()
	p.row = append(p.row[:0], c.Row...)
	p.haveRow = true
}

func (p *UserScanPolicy) CurrentRow() ([]byte, bool) { return p.row, p.haveRow }
func (p *UserScanPolicy) ClearCurrentRow()            { p.haveRow = false }

func (p *UserScanPolicy) BeforeShipped() {}

func (p *UserScanPolicy) Match(c Cell) (MatchCode, error) {
	if !bytes.Equal(c.Row, p.row) {
		// Caller moves rows by calling SetToNewRow first; reaching here
		// with a mismatched row is the scanner asking "are we done".
		if !p.MoreRowsMayExistAfter(c) {
			return MatchDoneScan, nil
		}
		return MatchDone, nil
	}

	// A write with a sequence past this scan's read point has not happened
	// yet from the reader's perspective: skip it without letting it
	// shadow earlier versions, count against MaxVersions, or register as
	// a tombstone.
	if c.Sequence > p.readPoint {
		return MatchSkip, nil
	}

	if c.IsTombstone() {
		p.tracker.observeDelete(c)
		if p.scan.Raw {
			return MatchInclude, nil
		}
		return MatchSkip, nil
	}

	if !p.scan.Raw && p.tracker.isShadowed(c) {
		return MatchSkip, nil
	}

	if !p.scan.TimeRange.Within(c.Timestamp) {
		return MatchSkip, nil
	}

	if c.Timestamp < p.ttlCutoff {
		return MatchSeekNextCol, nil
	}

	if !p.tracker.wantsColumn(c) {
		if hint, ok := p.GetNextKeyHint(c); ok {
			_ = hint
			return MatchSeekNextUsingHint, nil
		}
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

func (p *UserScanPolicy) GetKeyForNextColumn(c Cell) Cell {
	return Cell{Row: c.Row, Family: c.Family, Qualifier: nextQualifier(c.Qualifier), Timestamp: maxTimestamp, Type: CellTypePut}
}

func (p *UserScanPolicy) GetNextKeyHint(c Cell) (Cell, bool) {
	if len(p.scan.Columns) == 0 {
		return Cell{}, false
	}
	var best *Column
	for i := range p.scan.Columns {
		col := &p.scan.Columns[i]
		if bytes.Compare(col.Qualifier, c.Qualifier) > 0 {
			if best == nil || bytes.Compare(col.Qualifier, best.Qualifier) < 0 {
				best = col
			}
		}
	}
	if best == nil {
		return Cell{}, false
	}
	return Cell{Row: c.Row, Family: c.Family, Qualifier: best.Qualifier, Timestamp: maxTimestamp, Type: CellTypePut}, true
}

func (p *UserScanPolicy) CompareKeyForNextRow(indexedKey, c Cell) int {
	next := nextRow(c.Row)
	return bytes.Compare(indexedKey.Row, next)
}

func (p *UserScanPolicy) CompareKeyForNextColumn(indexedKey, c Cell) int {
	hint := p.GetKeyForNextColumn(c)
	if bytes.Equal(indexedKey.Row, hint.Row) {
		return bytes.Compare(indexedKey.Qualifier, hint.Qualifier)
	}
	return bytes.Compare(indexedKey.Row, hint.Row)
}

func (p *UserScanPolicy) MoreRowsMayExistAfter(c Cell) bool {
	if len(p.stopRow) == 0 {
		return true
	}
	cmp := bytes.Compare(c.Row, p.stopRow)
	if p.stopIncl {
		return cmp <= 0
	}
	return cmp < 0
}

const maxTimestamp = 1<<63 - 1

func nextQualifier(q []byte) []byte {
	out := make([]byte, len(q)+1)
	copy(out, q)
	return out
}

func nextRow(row []byte) []byte {
	out := make([]byte, len(row)+1)
	copy(out, row)
	return out
}

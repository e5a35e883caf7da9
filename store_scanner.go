package hbase

import (
	"bytes"
	"context"
	"log"
	"sync"
)

// StoreScanner is the merge-scan core: it drives a MergeHeap of
// SubScanners through a MatchPolicy, applying seek-vs-skip optimization,
// absorbing memstore flushes, and switching file scanners from
// positional to streaming reads on long scans.
type StoreScanner struct {
	store    ScannerStore
	scanInfo *ScanInfo
	scan     *ScanSpec
	matcher  MatchPolicy
	comp     Comparator

	heap *MergeHeap

	readPoint         uint64
	readType          ReadType
	isCompaction      bool
	cacheBlocks       bool
	explicitColumns   bool
	useRowColBloom    bool
	parallelSeeker    *ParallelSeeker

	currentScanners []SubScanner

	flushLock                 sync.Mutex
	flushed                   bool
	flushedStoreFiles         []*StoreFile
	memStoreScannersAfterFlush []SubScanner

	scannersForDelayedClose []SubScanner

	lastTop    Cell
	haveTop    bool
	closing    bool
	closed     bool

	// rowCount is count_per_row: it carries over across Next() calls that
	// pause mid-row under a BETWEEN_CELLS limit, so resuming does not
	// re-arm the match policy (and so restart version counting) partway
	// through a row it already started counting.
	rowCount int

	cellsSinceHeartbeat int
	bytesReadSinceStart int64
	kvsScanned          uint64
}

// NewUserScan builds a StoreScanner for a caller-facing scan (Get or
// Scan). It selects, seeks, and heaps the store's current scanners and
// registers for flush notifications so a concurrent flush does not
// invalidate the scan mid-flight.
func NewUserScan(store ScannerStore, scan *ScanSpec, scanInfo *ScanInfo, readPoint uint64) (*StoreScanner, error) {
	if err := scan.Validate(); err != nil {
		return nil, newScanError(KindInvalidScan, err)
	}

	readType := deriveReadType(scan, scanInfo)
	explicitColumns := scan.NumExplicitColumns() > 0
	useRowColBloom := scan.NumExplicitColumns() > 1 || (!scan.Get && scan.NumExplicitColumns() == 1)

	ss := &StoreScanner{
		store:           store,
		scanInfo:        scanInfo,
		scan:            scan,
		comp:            store.Comparator(),
		readPoint:       readPoint,
		readType:        readType,
		cacheBlocks:     scan.CacheBlocks,
		explicitColumns: explicitColumns,
		useRowColBloom:  useRowColBloom,
	}
	ss.matcher = NewUserScanPolicy(scan, scanInfo, nowMillis(), readPoint)

	if scanInfo.ParallelSeekEnable && store.StorefilesCount() > 1 {
		ss.parallelSeeker = NewParallelSeeker(NewPoolExecutor(4, store.StorefilesCount()))
	}

	scanners, err := store.GetScanners(scan.CacheBlocks, readType == ReadTypePread, false, ss.matcher, scan.StartRow, scan.StartInclusive, scan.StopRow, scan.StopInclusive, readPoint)
	if err != nil {
		return nil, wrapIO(err)
	}

	if err := ss.initScanners(scanners); err != nil {
		return nil, err
	}

	store.AddChangedReaderObserver(ss)
	return ss, nil
}

// NewCompactionScan builds a StoreScanner over a caller-supplied file
// set for a compaction, using CompactionPolicy or LegacyCompactionPolicy
// depending on whether the scan carries a filter, explicit rows/columns,
// or a bounded time range.
func NewCompactionScan(store ScannerStore, scanInfo *ScanInfo, files []*StoreFile, scan *ScanSpec, smallestReadPoint uint64, dropDeletes bool, dropFromRow, dropToRow []byte) (*StoreScanner, error) {
	comp := store.Comparator()
	ttl := scanInfo.ttlCutoff(nowMillis())

	var matcher MatchPolicy
	if scan != nil && (scan.Filter != nil || len(scan.StartRow) > 0 || len(scan.StopRow) > 0 || len(scan.Columns) > 0 || scan.TimeRange != allTime) {
		matcher = NewLegacyCompactionPolicy(comp, smallestReadPoint, scan, ttl, scanInfo.MaxVersions, scanInfo.MinVersions)
	} else {
		matcher = NewCompactionPolicy(comp, smallestReadPoint, scanInfo.MaxVersions, scanInfo.MinVersions, ttl, dropDeletes, dropFromRow, dropToRow)
	}

	ss := &StoreScanner{
		store:        store,
		scanInfo:     scanInfo,
		scan:         DefaultScanSpec(),
		comp:         comp,
		matcher:      matcher,
		readType:     ReadTypeStream,
		isCompaction: true,
		cacheBlocks:  false,
	}

	scanners, err := store.GetScannersForFiles(files, false, false, false, true, matcher, nil, nil, ^uint64(0))
	if err != nil {
		return nil, wrapIO(err)
	}
	if err := ss.initScanners(scanners); err != nil {
		return nil, err
	}
	return ss, nil
}

// newTestScanner builds a StoreScanner directly from prebuilt
// SubScanners, bypassing a Store entirely; used by tests exercising the
// merge loop in isolation.
func newTestScanner(comp Comparator, scanners []SubScanner, scan *ScanSpec, scanInfo *ScanInfo, readPoint uint64) (*StoreScanner, error) {
	ss := &StoreScanner{
		store:    nil,
		scanInfo: scanInfo,
		scan:     scan,
		comp:     comp,
		readPoint: readPoint,
		readType: ReadTypePread,
	}
	ss.matcher = NewUserScanPolicy(scan, scanInfo, nowMillis(), readPoint)
	if err := ss.initScanners(scanners); err != nil {
		return nil, err
	}
	return ss, nil
}

func (ss *StoreScanner) initScanners(scanners []SubScanner) error {
	kept, err := (SubScannerSelector{}).Select(scanners, ss.scan, ss.scanInfo.ttlCutoff(nowMillis()), false, false)
	if err != nil {
		return wrapIO(err)
	}
	if ss.parallelSeeker != nil && len(kept) > 1 {
		if err := ss.parallelSeeker.Seek(context.Background(), kept, ss.matcher.StartKey()); err != nil {
			return err
		}
	}
	ss.currentScanners = kept
	ss.heap = NewMergeHeap(ss.comp, kept)
	return nil
}

func deriveReadType(scan *ScanSpec, info *ScanInfo) ReadType {
	if scan.Get {
		return ReadTypePread
	}
	if scan.ReadType != ReadTypeDefault {
		return scan.ReadType
	}
	return ReadTypePread
}

// Peek returns the cell the next Advance/Next would produce, without
// consuming it.
func (ss *StoreScanner) Peek() (Cell, bool) {
	if ss.closed {
		return Cell{}, false
	}
	return ss.heap.Peek()
}

// Seek positions the scanner at the first cell >= key.
func (ss *StoreScanner) Seek(key Cell) (bool, error) {
	if ss.closed {
		return false, ErrScannerClosed
	}
	if err := ss.checkReseek(); err != nil {
		return false, err
	}
	if err := ss.heap.Seek(key); err != nil {
		return false, wrapIO(err)
	}
	c, ok := ss.heap.Peek()
	if ok {
		ss.matcher.SetToNewRow(c)
	}
	return ok, nil
}

// Reseek is like Seek but key is known not to be behind the current
// position.
func (ss *StoreScanner) Reseek(key Cell) (bool, error) {
	if ss.closed {
		return false, ErrScannerClosed
	}
	if err := ss.checkReseek(); err != nil {
		return false, err
	}
	if err := ss.heap.Reseek(key); err != nil {
		return false, wrapIO(err)
	}
	c, ok := ss.heap.Peek()
	if ok {
		ss.matcher.SetToNewRow(c)
	}
	return ok, nil
}

// GetReadPoint returns the MVCC read point this scanner is bound to.
func (ss *StoreScanner) GetReadPoint() uint64 { return ss.readPoint }

// GetEstimatedNumberOfKvsScanned returns how many cells this scanner has
// examined (including skipped ones), for metrics/diagnostics.
func (ss *StoreScanner) GetEstimatedNumberOfKvsScanned() uint64 { return ss.kvsScanned }

// Next fills out with cells for the current row (bounded by
// scan.StoreLimit/StoreOffset) and advances past it, or spans multiple
// Next calls when ctx's limits stop it first.
func (ss *StoreScanner) Next(out *[]Cell, ctx *ScanProgress) (bool, error) {
	if ss.closed {
		return false, ErrScannerClosed
	}
	if ctx == nil {
		ctx = &ScanProgress{}
	}
	ctx.reset()

	if err := ss.checkFlushed(); err != nil {
		return false, err
	}

	cell, ok := ss.heap.Peek()
	if !ok {
		return false, nil
	}
	if _, haveRow := ss.matcher.CurrentRow(); !ctx.hasLimit(BetweenCells) || !haveRow {
		ss.rowCount = 0
		ss.matcher.SetToNewRow(cell)
	}

	var prev Cell
	havePrev := false
	for {
		cell, ok := ss.heap.Peek()
		if !ok {
			ss.matcher.ClearCurrentRow()
			return len(*out) > 0, nil
		}
		debugAssert(!havePrev || ss.comp.Compare(prev, cell) <= 0, "scan order violated: heap top sorts before the previous cell")
		prev, havePrev = cell, true

		ss.kvsScanned++
		ss.bytesReadSinceStart += int64(len(cell.Row) + len(cell.Family) + len(cell.Qualifier) + len(cell.Value))
		ss.cellsSinceHeartbeat++
		if ss.cellsSinceHeartbeat >= ss.scanInfo.CellsPerHeartbeatCheck {
			ss.cellsSinceHeartbeat = 0
			if ctx.timeLimitReached() {
				return true, nil
			}
		}

		if int64(len(cell.Row))+int64(len(cell.Family))+int64(len(cell.Qualifier)) > ss.scanInfo.MaxRowSize {
			return false, newScanError(KindRowTooBig, ErrRowTooBig)
		}

		code, err := ss.matcher.Match(cell)
		if err != nil {
			return false, err
		}

		switch code {
		case MatchInclude, MatchIncludeAndSeekNextCol, MatchIncludeAndSeekNextRow:
			ss.rowCount++

			if ss.scan.StoreLimit >= 0 && ss.rowCount > ss.scan.StoreLimit+ss.scan.StoreOffset {
				if !ss.matcher.MoreRowsMayExistAfter(cell) {
					ss.matcher.ClearCurrentRow()
					return len(*out) > 0, nil
				}
				ss.matcher.ClearCurrentRow()
				if err := ss.forceSeekToNextRow(cell); err != nil {
					return false, err
				}
				continue
			}

			if ss.rowCount > ss.scan.StoreOffset {
				*out = append(*out, cell)
				ctx.noteEmitted(cell)
			}
			if code == MatchInclude {
				if err := ss.heap.Advance(); err != nil {
					return false, wrapIO(err)
				}
			} else if code == MatchIncludeAndSeekNextCol {
				if err := ss.seekOrSkipToNextColumn(cell); err != nil {
					return false, err
				}
			} else {
				if err := ss.seekOrSkipToNextRow(cell); err != nil {
					return false, err
				}
			}

			if ctx.batchLimitReached(BetweenCells) || ctx.sizeLimitReached(BetweenCells) {
				return true, nil
			}

		case MatchSkip:
			if err := ss.heap.Advance(); err != nil {
				return false, wrapIO(err)
			}

		case MatchSeekNextCol:
			if err := ss.seekOrSkipToNextColumn(cell); err != nil {
				return false, err
			}

		case MatchSeekNextRow:
			if err := ss.seekOrSkipToNextRow(cell); err != nil {
				return false, err
			}

		case MatchSeekNextUsingHint:
			hint, ok := ss.matcher.GetNextKeyHint(cell)
			if !ok {
				if err := ss.heap.Advance(); err != nil {
					return false, wrapIO(err)
				}
				break
			}
			if err := ss.heap.Seek(hint); err != nil {
				return false, wrapIO(err)
			}

		case MatchDone:
			ss.matcher.ClearCurrentRow()
			if ss.scan.Get {
				// A Get only ever wants its one row; there is nothing to
				// stay positioned for, so short-circuit straight to
				// NoMoreValues (the cells already placed in *out this call
				// are still returned to the caller) instead of leaving the
				// scanner armed for a row that will never come.
				return false, nil
			}
			if ctx.batchLimitReached(BetweenRows) || ctx.sizeLimitReached(BetweenRows) {
				return true, nil
			}
			return len(*out) > 0, nil

		case MatchDoneScan:
			ss.matcher.ClearCurrentRow()
			return false, nil
		}
	}
}

// seekOrSkipToNextColumn implements the seek-vs-skip decision for moving
// past the current column: if the next sparse-index entry is already
// past where we'd seek to, a cheap linear skip (Advance) is at least as
// fast as an actual seek and avoids the seek's block-load cost.
func (ss *StoreScanner) seekOrSkipToNextColumn(cell Cell) error {
	if ss.trySkipToNextColumn(cell) {
		return wrapIO(ss.heap.Advance())
	}
	target := ss.matcher.GetKeyForNextColumn(cell)
	return wrapIO(ss.heap.Seek(target))
}

// seekOrSkipToNextRow is the row-scoped analogue of
// seekOrSkipToNextColumn. A Get never benefits from skipping toward a
// next row it will never visit, so it always hard-seeks (which, with no
// further row to land on, simply exhausts the heap).
func (ss *StoreScanner) seekOrSkipToNextRow(cell Cell) error {
	if !ss.scan.Get && ss.trySkipToNextRow(cell) {
		return wrapIO(ss.heap.Advance())
	}
	target := Cell{Row: nextRow(cell.Row)}
	return wrapIO(ss.heap.Seek(target))
}

// forceSeekToNextRow always issues a real SEEK to the next row, never a
// skip: used when storeLimit+storeOffset has been exceeded mid-row, where
// the spec requires a hard seek regardless of what trySkipToNextRow would
// otherwise allow.
func (ss *StoreScanner) forceSeekToNextRow(cell Cell) error {
	target := Cell{Row: nextRow(cell.Row)}
	return wrapIO(ss.heap.Seek(target))
}

// trySkipToNextRow reports whether a plain Advance is safe in place of a
// Seek to the next row: true when the current top's next sparse-index
// key is already known to sort at or past the next row, so seeking there
// would not skip any additional blocks a linear advance wouldn't also
// pass through.
func (ss *StoreScanner) trySkipToNextRow(cell Cell) bool {
	indexed, ok := ss.heap.NextIndexedKey()
	if !ok {
		return false
	}
	return ss.matcher.CompareKeyForNextRow(indexed, cell) >= 0
}

// trySkipToNextColumn is the column-scoped analogue: when the next
// indexed key is unknown (no ok), the caller must SEEK, since we cannot
// prove a skip is safe.
func (ss *StoreScanner) trySkipToNextColumn(cell Cell) bool {
	indexed, ok := ss.heap.NextIndexedKey()
	if !ok {
		return false
	}
	return ss.matcher.CompareKeyForNextColumn(indexed, cell) >= 0
}

func (ss *StoreScanner) checkReseek() error {
	return ss.checkFlushed()
}

// checkFlushed reads the flushed flag without synchronization, matching
// the original: a torn read here can at worst delay noticing a flush by
// one Next() call, never corrupt state, since reopenAfterFlush itself
// takes flushLock.
func (ss *StoreScanner) checkFlushed() error {
	if !ss.flushed {
		return nil
	}
	if ss.closing {
		return nil
	}
	return ss.reopenAfterFlush()
}

// UpdateReaders implements ChangedReaderObserver: it is called from the
// flush goroutine and only records the pending change under flushLock;
// the scanning goroutine applies it lazily via checkFlushed so a flush
// never blocks on however far through a row the scan currently is.
func (ss *StoreScanner) UpdateReaders(newFiles []*StoreFile, memstoreScanners []SubScanner) error {
	ss.flushLock.Lock()
	defer ss.flushLock.Unlock()
	if ss.closing {
		for _, s := range memstoreScanners {
			_ = s.Close()
		}
		return nil
	}
	ss.flushedStoreFiles = append(ss.flushedStoreFiles, newFiles...)
	ss.memStoreScannersAfterFlush = append(ss.memStoreScannersAfterFlush, memstoreScanners...)
	ss.flushed = true
	return nil
}

// reopenAfterFlush rebuilds the heap over the newly flushed files plus
// the fresh memstore scanners, reseeking to lastTop so the scan resumes
// exactly where it left off. It retires the tail of currentScanners that
// were memstore scanners (their data now lives in the flushed files) and
// re-arms the match policy only when the row actually changed.
func (ss *StoreScanner) reopenAfterFlush() error {
	ss.flushLock.Lock()
	newFiles := ss.flushedStoreFiles
	memScanners := ss.memStoreScannersAfterFlush
	ss.flushedStoreFiles = nil
	ss.memStoreScannersAfterFlush = nil
	ss.flushed = false
	ss.flushLock.Unlock()

	lastTop, hadTop := ss.heap.Peek()

	var fileScanners []SubScanner
	if ss.store != nil && len(newFiles) > 0 {
		var err error
		fileScanners, err = ss.store.GetScannersForFiles(newFiles, ss.cacheBlocks, false, ss.readType == ReadTypePread, ss.isCompaction, ss.matcher, nil, nil, ss.readPoint)
		if err != nil {
			return wrapIO(err)
		}
	}

	kept := make([]SubScanner, 0, len(ss.currentScanners))
	for _, s := range ss.currentScanners {
		if !s.IsFileScanner() {
			ss.scannersForDelayedClose = append(ss.scannersForDelayedClose, s)
			continue
		}
		kept = append(kept, s)
	}
	// Fresh memstore scanners arrive unpositioned; seek them to the resume
	// point so the heap built below includes them.
	for _, s := range memScanners {
		if err := s.Seek(lastTop); err != nil {
			return wrapIO(err)
		}
	}
	kept = append(kept, memScanners...)
	kept = append(kept, fileScanners...)
	ss.currentScanners = kept

	selected, err := (SubScannerSelector{}).Select(kept, ss.scan, ss.scanInfo.ttlCutoff(nowMillis()), false, false)
	if err != nil {
		return wrapIO(err)
	}
	ss.currentScanners = selected
	ss.heap = NewMergeHeap(ss.comp, selected)

	if hadTop {
		if err := ss.heap.Seek(lastTop); err != nil {
			return wrapIO(err)
		}
		if cell, ok := ss.heap.Peek(); ok && !bytes.Equal(cell.Row, lastTop.Row) {
			ss.matcher.SetToNewRow(cell)
		}
	}
	return nil
}

// Shipped is called by the caller between batches of returned cells; it
// deep-copies the last-seen cell (so blocks can be safely released),
// notifies the match policy, closes anything queued for delayed close,
// and considers switching from pread to streaming reads.
func (ss *StoreScanner) Shipped() error {
	if c, ok := ss.heap.Peek(); ok {
		ss.lastTop = cloneCell(c)
		ss.haveTop = true
	}
	ss.matcher.BeforeShipped()

	for _, s := range ss.scannersForDelayedClose {
		_ = s.Close()
	}
	ss.scannersForDelayedClose = ss.scannersForDelayedClose[:0]

	if err := ss.heap.Shipped(); err != nil {
		return wrapIO(err)
	}

	ss.trySwitchToStreamRead()
	return nil
}

// trySwitchToStreamRead is best-effort: on failure it logs and continues
// in the current read mode rather than failing the scan, since a scan
// that already has a working heap should never be aborted over an
// optimization.
func (ss *StoreScanner) trySwitchToStreamRead() {
	if ss.readType != ReadTypePread || ss.store == nil {
		return
	}
	if ss.bytesReadSinceStart < ss.scanInfo.PreadMaxBytes {
		return
	}

	lastTop, hadTop := ss.heap.Peek()
	if !hadTop {
		return
	}

	var memKeep []SubScanner
	var toClose []SubScanner
	for _, s := range ss.currentScanners {
		if !s.IsFileScanner() {
			memKeep = append(memKeep, s)
			continue
		}
		if _, ok := s.Peek(); ok {
			toClose = append(toClose, s)
		} else {
			toClose = append(toClose, s)
		}
	}

	files := ss.store.Storefiles()
	fresh, err := ss.store.GetScannersForFiles(files, ss.cacheBlocks, false, false, ss.isCompaction, ss.matcher, nil, nil, ss.readPoint)
	if err != nil {
		log.Printf("[scan] stream switch failed, staying in pread mode: %v", err)
		return
	}

	combined := append(memKeep, fresh...)
	if err := ss.heap.Seek(lastTop); err != nil {
		log.Printf("[scan] stream switch reseat failed, staying in pread mode: %v", err)
		for _, s := range fresh {
			_ = s.Close()
		}
		return
	}
	newHeap := NewMergeHeap(ss.comp, combined)
	if err := newHeap.Seek(lastTop); err != nil {
		log.Printf("[scan] stream switch reseat failed, staying in pread mode: %v", err)
		for _, s := range fresh {
			_ = s.Close()
		}
		return
	}

	ss.heap = newHeap
	ss.currentScanners = combined
	ss.readType = ReadTypeStream
	for _, s := range toClose {
		_ = s.Close()
	}
}

func cloneCell(c Cell) Cell {
	out := c
	out.Row = append([]byte(nil), c.Row...)
	out.Family = append([]byte(nil), c.Family...)
	out.Qualifier = append([]byte(nil), c.Qualifier...)
	if c.Value != nil {
		out.Value = append([]byte(nil), c.Value...)
	}
	return out
}

// Close releases every scanner this StoreScanner owns and deregisters
// from flush notifications.
func (ss *StoreScanner) Close() error {
	if ss.closed {
		return nil
	}
	ss.closing = true
	ss.closed = true

	if ss.store != nil {
		ss.store.DeleteChangedReaderObserver(ss)
	}

	var firstErr error
	for _, s := range ss.currentScanners {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, s := range ss.scannersForDelayedClose {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	ss.flushLock.Lock()
	for _, s := range ss.memStoreScannersAfterFlush {
		_ = s.Close()
	}
	ss.memStoreScannersAfterFlush = nil
	ss.flushLock.Unlock()

	return firstErr
}

package hbase

// ChangedReaderObserver is notified when a Store's file set changes
// (flush, compaction) so a live StoreScanner can absorb the change at
// its next safe point instead of reading through a stale file list.
type ChangedReaderObserver interface {
	// UpdateReaders is called with the newly-added store files and the
	// memstore SubScanners that should replace the observer's current
	// memstore scanner (the memstore segment being flushed is frozen
	// into those files and must not be read from twice).
	UpdateReaders(newFiles []*StoreFile, memstoreScanners []SubScanner) error
}

// ScannerStore is the collaborator a StoreScanner is built against: it
// knows how to produce SubScanners over a row range and to report the
// file set backing the column family.
type ScannerStore interface {
	Comparator() Comparator
	ScanInfo() *ScanInfo

	// GetScanners returns one SubScanner per store file plus one for the
	// live memstore, already positioned for [startRow, stopRow) under
	// readPoint visibility.
	GetScanners(cacheBlocks, usePread, isCompaction bool, matchHint MatchPolicy, startRow []byte, incStart bool, stopRow []byte, incStop bool, readPoint uint64) ([]SubScanner, error)

	// GetScannersForFiles is the same as GetScanners but restricted to a
	// caller-supplied file set (used by reopenAfterFlush/stream switch,
	// which already know exactly which files they want scanners over).
	GetScannersForFiles(files []*StoreFile, cacheBlocks, get, usePread, isCompaction bool, matchHint MatchPolicy, startRow, stopRow []byte, readPoint uint64) ([]SubScanner, error)

	StorefilesCount() int
	Storefiles() []*StoreFile

	AddChangedReaderObserver(ChangedReaderObserver)
	DeleteChangedReaderObserver(ChangedReaderObserver)
}

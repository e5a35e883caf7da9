package hbase

// StoreFileScanner is a SubScanner cursor over one StoreFile's data
// blocks, switching between cached random-access reads (pread) and
// uncached sequential reads (stream) per the scanner's current ReadType.
type StoreFileScanner struct {
	file  *StoreFile
	cache *blockCache
	comp  Comparator

	verifyChecksums bool
	stream          bool

	blockIdx int
	block    *Block
	entryIdx int

	cur     Cell
	haveCur bool
	exhausted bool
	closed  bool
}

// NewStoreFileScanner builds a scanner over file. stream selects whether
// blocks bypass the shared cache (trySwitchToStreamRead flips this on an
// already-open scanner by replacing it, see Store.GetScannersForFiles).
func NewStoreFileScanner(file *StoreFile, cache *blockCache, comp Comparator, verifyChecksums, stream bool) *StoreFileScanner {
	return &StoreFileScanner{
		file:            file,
		cache:           cache,
		comp:            comp,
		verifyChecksums: verifyChecksums,
		stream:          stream,
		blockIdx:        -1,
	}
}

func (s *StoreFileScanner) IsFileScanner() bool { return true }

func (s *StoreFileScanner) Peek() (Cell, bool) {
	if !s.haveCur {
		return Cell{}, false
	}
	return s.cur, true
}

func (s *StoreFileScanner) Advance() error {
	if s.closed || !s.haveCur {
		return nil
	}
	s.entryIdx++
	return s.fillCurrent()
}

// Seek positions at the first cell >= key, searching the sparse index to
// find the candidate block and then the block itself for the entry.
func (s *StoreFileScanner) Seek(key Cell) error {
	encoded := EncodeCellKey(key)
	idx := s.file.Index.Search(encoded)
	if idx < 0 {
		if compareEncodedKeys(encoded, s.file.Index.MinKey) < 0 && len(s.file.Index.Entries) > 0 {
			idx = 0
		} else {
			s.haveCur = false
			s.exhausted = true
			return nil
		}
	}
	if err := s.loadBlock(idx); err != nil {
		return err
	}
	s.entryIdx = blockLowerBound(s.block, encoded)
	if s.entryIdx >= len(s.block.Entries) {
		// Key sorts after every entry in this block; advance to the next.
		if err := s.loadBlock(s.blockIdx + 1); err != nil {
			return err
		}
		s.entryIdx = 0
	}
	return s.fillCurrent()
}

// Reseek behaves like Seek; StoreFileScanner has no cheaper forward-only
// path worth maintaining over the binary search Seek already performs.
func (s *StoreFileScanner) Reseek(key Cell) error {
	return s.Seek(key)
}

// RequestSeek lets a bloom filter prove key's row (or row+qualifier, when
// key names a qualifier and the file carries a row-column filter) is
// absent without touching disk.
func (s *StoreFileScanner) RequestSeek(key Cell, forward bool, useBloom bool) error {
	if useBloom {
		if len(key.Qualifier) > 0 && s.file.RowColBloom != nil {
			if !s.file.RowColBloom.MayContain(key.Row, key.Qualifier) {
				s.haveCur = false
				s.exhausted = true
				return nil
			}
		} else if s.file.BloomFilter != nil {
			if !s.file.BloomFilter.MayContain(key.Row) {
				s.haveCur = false
				s.exhausted = true
				return nil
			}
		}
	}
	return s.Seek(key)
}

func (s *StoreFileScanner) NextIndexedKey() (Cell, bool) {
	if s.blockIdx < 0 {
		return Cell{}, false
	}
	return s.file.Index.NextIndexedKey(s.blockIdx)
}

// ShouldUse consults the file's cached min/max timestamps and the scan's
// time range and TTL cutoff to skip files that cannot contribute any
// cell, without opening a single block.
func (s *StoreFileScanner) ShouldUse(scan *ScanSpec, ttlCutoff int64) bool {
	if s.file.Meta.MaxTimestamp < ttlCutoff {
		return false
	}
	tr := scan.TimeRange
	if tr.Max <= s.file.Meta.MinTimestamp && !(tr.Max == 0 && tr.Min == 0) {
		return false
	}
	if tr.Min > s.file.Meta.MaxTimestamp {
		return false
	}
	return true
}

func (s *StoreFileScanner) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.block != nil {
		if s.stream {
			s.block.Release()
		}
		s.block = nil
	}
	return nil
}

// loadBlock fetches block idx, via the shared cache in pread mode or
// directly from disk in stream mode, and resets the entry cursor.
func (s *StoreFileScanner) loadBlock(idx int) error {
	if idx < 0 || idx >= len(s.file.Index.Entries) {
		s.block = nil
		s.blockIdx = idx
		return nil
	}
	if idx == s.blockIdx && s.block != nil {
		return nil
	}
	if s.block != nil && s.stream {
		s.block.Release()
	}

	if s.stream || s.cache == nil {
		block, err := s.file.readBlock(idx, s.verifyChecksums)
		if err != nil {
			return err
		}
		s.block = block
		s.blockIdx = idx
		return nil
	}

	key := cacheKey{FileID: s.file.ID, BlockOffset: s.file.Index.Entries[idx].BlockOffset}
	if cached, ok := s.cache.Get(key); ok {
		s.block = cached
		s.blockIdx = idx
		return nil
	}
	block, err := s.file.readBlock(idx, s.verifyChecksums)
	if err != nil {
		return err
	}
	s.cache.Put(key, block)
	s.block = block
	s.blockIdx = idx
	return nil
}

// fillCurrent decodes the entry at entryIdx into cur, rolling forward
// into subsequent blocks when the current block is exhausted.
func (s *StoreFileScanner) fillCurrent() error {
	for {
		if s.block == nil {
			s.haveCur = false
			s.exhausted = true
			return nil
		}
		if s.entryIdx < len(s.block.Entries) {
			entry := s.block.Entries[s.entryIdx]
			cell, _, err := DecodeCellKey(entry.Key)
			if err != nil {
				return err
			}
			kind, value, record, _, err := DecodeCellValue(entry.Value)
			if err != nil {
				return err
			}
			cell.ValKind = kind
			cell.Value = value
			cell.Record = record
			s.cur = cell
			s.haveCur = true
			return nil
		}
		if err := s.loadBlock(s.blockIdx + 1); err != nil {
			return err
		}
		s.entryIdx = 0
		if s.block == nil {
			s.haveCur = false
			s.exhausted = true
			return nil
		}
	}
}

// openStoreFileScannerAt builds a scanner already positioned at its first
// entry, the form every construction path in store_scanner.go wants.
func openStoreFileScannerAt(file *StoreFile, cache *blockCache, comp Comparator, verifyChecksums, stream bool) (*StoreFileScanner, error) {
	s := NewStoreFileScanner(file, cache, comp, verifyChecksums, stream)
	if len(file.Index.Entries) == 0 {
		s.exhausted = true
		return s, nil
	}
	if err := s.loadBlock(0); err != nil {
		return nil, err
	}
	s.entryIdx = 0
	if err := s.fillCurrent(); err != nil {
		return nil, err
	}
	return s, nil
}

// blockLowerBound returns the index of the first entry whose key is >=
// target, or len(block.Entries) if none qualifies.
func blockLowerBound(block *Block, target []byte) int {
	lo, hi := 0, len(block.Entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if compareEncodedKeys(block.Entries[mid].Key, target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

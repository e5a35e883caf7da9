package hbase

// SubScannerSelector filters a candidate list of SubScanners down to the
// ones that can possibly contribute a cell to scan, closing (and
// discarding) everything it rejects.
type SubScannerSelector struct{}

// Select applies ShouldUse to each candidate. Rejected scanners are
// closed here; the caller keeps ownership of (and must eventually close)
// whatever is returned.
func (SubScannerSelector) Select(candidates []SubScanner, scan *ScanSpec, ttlCutoff int64, memoryOnly, filesOnly bool) ([]SubScanner, error) {
	kept := make([]SubScanner, 0, len(candidates))
	var firstErr error
	for _, s := range candidates {
		if memoryOnly && s.IsFileScanner() {
			_ = s.Close()
			continue
		}
		if filesOnly && !s.IsFileScanner() {
			_ = s.Close()
			continue
		}
		if !s.ShouldUse(scan, ttlCutoff) {
			if err := s.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}
		kept = append(kept, s)
	}
	return kept, firstErr
}

package hbase

import "testing"

// fakeScanner is a minimal SubScanner double for exercising
// SubScannerSelector in isolation from real memstore/file scanners.
type fakeScanner struct {
	isFile    bool
	shouldUse bool
	closed    bool
}

func (f *fakeScanner) Peek() (Cell, bool)                           { return Cell{}, false }
func (f *fakeScanner) Advance() error                                { return nil }
func (f *fakeScanner) Seek(key Cell) error                           { return nil }
func (f *fakeScanner) Reseek(key Cell) error                         { return nil }
func (f *fakeScanner) RequestSeek(key Cell, forward, bloom bool) error { return nil }
func (f *fakeScanner) NextIndexedKey() (Cell, bool)                  { return Cell{}, false }
func (f *fakeScanner) IsFileScanner() bool                           { return f.isFile }
func (f *fakeScanner) ShouldUse(scan *ScanSpec, ttlCutoff int64) bool { return f.shouldUse }
func (f *fakeScanner) Close() error                                  { f.closed = true; return nil }

func TestSelectorDropsScannersThatShouldNotBeUsed(t *testing.T) {
	keep := &fakeScanner{shouldUse: true}
	drop := &fakeScanner{shouldUse: false}

	kept, err := (SubScannerSelector{}).Select([]SubScanner{keep, drop}, DefaultScanSpec(), 0, false, false)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(kept) != 1 || kept[0] != keep {
		t.Fatalf("kept = %v, want only the usable scanner", kept)
	}
	if !drop.closed {
		t.Error("rejected scanner should be closed")
	}
	if keep.closed {
		t.Error("kept scanner should not be closed")
	}
}

func TestSelectorMemoryOnlyDropsFileScanners(t *testing.T) {
	file := &fakeScanner{isFile: true, shouldUse: true}
	mem := &fakeScanner{isFile: false, shouldUse: true}

	kept, err := (SubScannerSelector{}).Select([]SubScanner{file, mem}, DefaultScanSpec(), 0, true, false)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(kept) != 1 || kept[0] != mem {
		t.Fatalf("kept = %v, want only the memstore scanner", kept)
	}
	if !file.closed {
		t.Error("file scanner should be closed under memoryOnly")
	}
}

func TestSelectorFilesOnlyDropsMemstoreScanners(t *testing.T) {
	file := &fakeScanner{isFile: true, shouldUse: true}
	mem := &fakeScanner{isFile: false, shouldUse: true}

	kept, err := (SubScannerSelector{}).Select([]SubScanner{file, mem}, DefaultScanSpec(), 0, false, true)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(kept) != 1 || kept[0] != file {
		t.Fatalf("kept = %v, want only the file scanner", kept)
	}
	if !mem.closed {
		t.Error("memstore scanner should be closed under filesOnly")
	}
}

func TestSelectorEmptyCandidates(t *testing.T) {
	kept, err := (SubScannerSelector{}).Select(nil, DefaultScanSpec(), 0, false, false)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(kept) != 0 {
		t.Errorf("kept = %v, want empty", kept)
	}
}

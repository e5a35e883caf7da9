package hbase

import "time"

// ScanInfo is the per-column-family policy the scanner consults: how long
// values live, how many versions are kept regardless of age, and the
// operational knobs that govern heartbeats and read-mode switching. It
// mirrors the teacher's Options/DefaultOptions layered-defaults idiom in
// options.go, narrowed to what a scan needs.
type ScanInfo struct {
	Comparator Comparator

	// TTLSeconds is the time-to-live for cells in this family; 0 means
	// cells never expire.
	TTLSeconds int64
	// MinVersions is kept regardless of TTL; MinVersions == 0 means TTL
	// is a hard cutoff.
	MinVersions int
	MaxVersions int

	// MaxRowSize bounds the bytes a single row's cells may occupy before
	// ErrRowTooBig aborts the row.
	MaxRowSize int64

	// CellsPerHeartbeatCheck is how many cells the main loop processes
	// between wall-clock deadline checks.
	CellsPerHeartbeatCheck int

	// PreadMaxBytes is the cumulative pread byte threshold past which a
	// long scan switches its file scanners to streaming reads.
	PreadMaxBytes int64

	// ParallelSeekEnable turns on concurrent seeking of file scanners
	// when a Store has more than one store file.
	ParallelSeekEnable bool

	// Debug is not read by the scanner: debugAssert checks (such as the
	// scan-order check in StoreScanner.Next) are gated by the
	// package-level Debug variable.
	Debug bool
}

// DefaultScanInfo returns the settings a typical column family uses,
// following the teacher's DefaultOptions() convention.
func DefaultScanInfo() *ScanInfo {
	return &ScanInfo{
		Comparator:             DefaultComparator,
		TTLSeconds:             0,
		MinVersions:            0,
		MaxVersions:            1,
		MaxRowSize:             32 * 1024 * 1024,
		CellsPerHeartbeatCheck: 10_000,
		PreadMaxBytes:          4 * 64 * 1024,
		ParallelSeekEnable:     false,
	}
}

// LowLatencyScanInfo checks wall-clock deadlines more often and switches
// to streaming sooner, trading some scan throughput for responsiveness
// under a caller-provided ScanProgress deadline.
func LowLatencyScanInfo() *ScanInfo {
	si := DefaultScanInfo()
	si.CellsPerHeartbeatCheck = 1_000
	si.PreadMaxBytes = 64 * 1024
	return si
}

// HighThroughputScanInfo enables parallel seeking and raises the pread
// budget, for batch scans over many store files where per-call latency
// does not matter.
func HighThroughputScanInfo() *ScanInfo {
	si := DefaultScanInfo()
	si.ParallelSeekEnable = true
	si.PreadMaxBytes = 16 * 1024 * 1024
	si.CellsPerHeartbeatCheck = 50_000
	return si
}

// ttlCutoff returns the oldest timestamp (in the same units as
// Cell.Timestamp, conventionally unix millis) that survives TTL
// expiration evaluated at "now", or MinInt64 when MinVersions protects
// every version regardless of age.
func (si *ScanInfo) ttlCutoff(now int64) int64 {
	if si.MinVersions > 0 || si.TTLSeconds <= 0 {
		return minInt64
	}
	return now - si.TTLSeconds*1000
}

const minInt64 = -1 << 63

// nowMillis is a package-level indirection so tests can freeze time
// without the package depending on a clock interface everywhere.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

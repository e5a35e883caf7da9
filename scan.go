package hbase

// ReadType selects how a StoreScanner's file scanners read their blocks.
type ReadType uint8

const (
	ReadTypeDefault ReadType = iota
	ReadTypePread
	ReadTypeStream
)

// TimeRange restricts a scan (or a column's visibility within it) to
// [Min, Max); Max == 0 means unbounded.
type TimeRange struct {
	Min int64
	Max int64
}

// Within reports whether ts falls inside the range.
func (tr TimeRange) Within(ts int64) bool {
	if tr.Min != 0 && ts < tr.Min {
		return false
	}
	if tr.Max != 0 && ts >= tr.Max {
		return false
	}
	return true
}

var allTime = TimeRange{}

// Column pins a scan to one family+qualifier pair.
type Column struct {
	Family    []byte
	Qualifier []byte
}

// ScanSpec is the immutable, caller-built description of one scan. It is
// the Go-native equivalent of a Scan/Get request: a plain struct built
// programmatically, not parsed off a wire protocol (no RPC layer is in
// scope here).
type ScanSpec struct {
	StartRow        []byte
	StopRow         []byte
	StartInclusive  bool
	StopInclusive   bool
	Columns         []Column // empty means "all columns"
	Filter          Filter
	TimeRange       TimeRange
	MaxVersions     int // 0 means "use ScanInfo.MaxVersions"
	StoreLimit      int // max cells returned per row; -1 = unlimited
	StoreOffset     int // cells skipped at the start of each row
	Raw             bool // expose delete markers instead of applying them
	ReadType        ReadType
	Get             bool // single-row fast path
	CacheBlocks     bool
}

// DefaultScanSpec returns a scan of the whole family, newest version
// only, no filter — the common case callers build on.
func DefaultScanSpec() *ScanSpec {
	return &ScanSpec{
		StartInclusive: true,
		StopInclusive:  false,
		StoreLimit:     -1,
		CacheBlocks:    true,
	}
}

// Validate checks the invariants a ScanSpec must hold before a
// StoreScanner can be built from it, mirroring the teacher's
// Options.Validate()-style layered config validation.
func (s *ScanSpec) Validate() error {
	if s.Raw && len(s.Columns) > 0 {
		return ErrInvalidScan
	}
	if s.StoreOffset < 0 {
		return newScanError(KindInvalidScan, errValue("storeOffset must be >= 0"))
	}
	return nil
}

// NumExplicitColumns returns how many (family, qualifier) pairs this scan
// names explicitly.
func (s *ScanSpec) NumExplicitColumns() int {
	return len(s.Columns)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func errValue(msg string) error { return simpleErr(msg) }

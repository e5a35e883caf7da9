package hbase

import "time"

// Options configures a Store: its on-disk layout, block compression and
// caching, bloom filter budget, and background flush/compaction cadence.
// Layered-defaults idiom (Options + DefaultOptions/LowMemoryOptions/
// HighThroughputOptions) carried over from how a column family's storage
// engine is normally configured in this codebase.
type Options struct {
	Dir string

	MemstoreSize   int64
	BlockCacheSize int64
	BlockSize      int

	CompressionType  CompressionType
	CompressionLevel int
	DisableBloom     bool
	BloomFPRate      float64

	VerifyChecksums bool

	FlushInterval      time.Duration
	CompactionInterval time.Duration

	ScanInfo *ScanInfo
}

// CompressionType selects a StoreFile block's compression codec.
type CompressionType int

const (
	CompressionZstd CompressionType = iota
	CompressionSnappy
	CompressionNone
	CompressionMinLZ
)

// DefaultOptions returns production-ready defaults for the given
// directory.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:                dir,
		MemstoreSize:       4 * 1024 * 1024,
		BlockCacheSize:     64 * 1024 * 1024,
		BlockSize:          16 * 1024,
		CompressionType:    CompressionZstd,
		CompressionLevel:   1,
		BloomFPRate:        0.01,
		VerifyChecksums:    true,
		FlushInterval:      30 * time.Second,
		CompactionInterval: time.Second,
		ScanInfo:           DefaultScanInfo(),
	}
}

// LowMemoryOptions trims caches and buffers for memory-constrained
// deployments.
func LowMemoryOptions(dir string) Options {
	opts := DefaultOptions(dir)
	opts.MemstoreSize = 512 * 1024
	opts.BlockCacheSize = 4 * 1024 * 1024
	opts.BlockSize = 4 * 1024
	opts.CompressionType = CompressionSnappy
	opts.ScanInfo = LowLatencyScanInfo()
	return opts
}

// HighThroughputOptions favors batch-scan throughput over memory
// footprint or write latency.
func HighThroughputOptions(dir string) Options {
	opts := DefaultOptions(dir)
	opts.MemstoreSize = 64 * 1024 * 1024
	opts.BlockCacheSize = 512 * 1024 * 1024
	opts.BlockSize = 64 * 1024
	opts.CompressionType = CompressionMinLZ
	opts.ScanInfo = HighThroughputScanInfo()
	return opts
}

// Validate checks the option invariants a Store relies on.
func (o *Options) Validate() error {
	if o.Dir == "" {
		return errValue("dir must be set")
	}
	if o.BlockSize <= 0 {
		return errValue("block size must be positive")
	}
	if o.BloomFPRate < 0 || o.BloomFPRate >= 1 {
		return errValue("bloom false-positive rate must be in [0, 1)")
	}
	if o.ScanInfo == nil {
		o.ScanInfo = DefaultScanInfo()
	}
	return nil
}

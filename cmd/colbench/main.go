package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/ivan-jiang/hbase"
)

func main() {
	numRows := flag.Int("rows", 1_000_000, "number of rows to write")
	colsPerRow := flag.Int("cols", 4, "columns per row")
	numScans := flag.Int("scans", 1000, "number of scans to perform per test")
	scanRows := flag.Int("scan-rows", 100, "rows covered by each scan")
	dataDir := flag.String("dir", "/tmp/colbench-store", "data directory")
	skipWrite := flag.Bool("skip-write", false, "skip write phase (use existing data)")
	skipCompact := flag.Bool("skip-compact", false, "skip compaction phase")
	memstoreSize := flag.Int64("memstore", 4*1024*1024, "memstore size in bytes")
	blockCacheSize := flag.Int64("cache", 64*1024*1024, "block cache size in bytes")
	flag.Parse()

	fmt.Println("=== Store Scanner Benchmark ===")
	fmt.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("GOMEMLIMIT: %d bytes\n", debug.SetMemoryLimit(-1))
	fmt.Printf("Rows: %d, columns/row: %d\n", *numRows, *colsPerRow)
	fmt.Printf("Memstore: %d MB, block cache: %d MB\n", *memstoreSize/1024/1024, *blockCacheSize/1024/1024)
	fmt.Printf("Data dir: %s\n\n", *dataDir)

	opts := hbase.DefaultOptions(*dataDir)
	opts.MemstoreSize = *memstoreSize
	opts.BlockCacheSize = *blockCacheSize

	if !*skipWrite {
		runWrite(*dataDir, opts, *numRows, *colsPerRow)
	}

	fmt.Println("\n=== SCAN BEFORE COMPACTION ===")
	runScans(*dataDir, opts, *numRows, *numScans, *scanRows)

	if !*skipCompact {
		runCompact(*dataDir, opts)
	}

	fmt.Println("\n=== SCAN AFTER COMPACTION ===")
	runScans(*dataDir, opts, *numRows, *numScans, *scanRows)

	fmt.Println("\n=== BENCHMARK COMPLETE ===")
}

func runWrite(dir string, opts hbase.Options, numRows, colsPerRow int) {
	fmt.Println("=== WRITE PHASE ===")
	os.RemoveAll(dir)

	store, err := hbase.Open(dir, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}

	batchSize := 100_000
	writeStart := time.Now()
	lastReport := writeStart
	written := 0

	for i := 0; i < numRows; i++ {
		row := []byte(fmt.Sprintf("row%012d", i))
		for c := 0; c < colsPerRow; c++ {
			qualifier := []byte(fmt.Sprintf("col%02d", c))
			value := []byte(fmt.Sprintf("val%012d-%02d", i, c))
			cell := hbase.PutCell(row, []byte("cf"), qualifier, time.Now().UnixMilli(), value)
			if err := store.Put(cell); err != nil {
				fmt.Fprintf(os.Stderr, "put failed at row %d: %v\n", i, err)
				os.Exit(1)
			}
			written++
		}

		if (i+1)%batchSize == 0 {
			elapsed := time.Since(lastReport)
			totalElapsed := time.Since(writeStart)
			rate := float64(batchSize*colsPerRow) / elapsed.Seconds()
			avgRate := float64(written) / totalElapsed.Seconds()
			pct := float64(i+1) / float64(numRows) * 100

			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			fmt.Printf("[%s] Rows: %d/%d (%.1f%%) | Batch: %.0f cells/s | Avg: %.0f cells/s | Heap: %dMB\n",
				totalElapsed.Truncate(time.Second), i+1, numRows, pct, rate, avgRate, m.HeapAlloc/1024/1024)

			lastReport = time.Now()
			if (i+1)%(10*batchSize) == 0 {
				runtime.GC()
				debug.FreeOSMemory()
			}
		}
	}

	fmt.Println("Flushing...")
	flushStart := time.Now()
	if err := store.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "flush failed: %v\n", err)
	}
	fmt.Printf("Flush completed in %v\n", time.Since(flushStart))

	writeDuration := time.Since(writeStart)
	fmt.Printf("\nWrite complete: %d cells in %v (%.0f cells/sec)\n",
		written, writeDuration, float64(written)/writeDuration.Seconds())

	printStoreFiles(store)
	store.Close()
}

func runCompact(dir string, opts hbase.Options) {
	fmt.Println("\n=== COMPACTION PHASE ===")

	store, err := hbase.Open(dir, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		return
	}

	start := time.Now()
	if err := store.Compact(); err != nil {
		fmt.Printf("compaction error: %v\n", err)
	}
	fmt.Printf("Compaction completed in %v\n", time.Since(start))

	printStoreFiles(store)
	store.Close()

	runtime.GC()
	debug.FreeOSMemory()
}

func runScans(dir string, opts hbase.Options, numRows, numScans, scanRows int) {
	cacheSizes := []struct {
		name string
		size int64
	}{
		{"0MB", 0},
		{"64MB", 64 * 1024 * 1024},
	}

	for _, cs := range cacheSizes {
		opts.BlockCacheSize = cs.size

		store, err := hbase.Open(dir, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
			continue
		}

		scanStart := time.Now()
		cellsScanned := int64(0)
		for i := 0; i < numScans; i++ {
			startIdx := rand.Intn(numRows)
			stopIdx := startIdx + scanRows
			if stopIdx > numRows {
				stopIdx = numRows
			}
			spec := hbase.DefaultScanSpec()
			spec.StartRow = []byte(fmt.Sprintf("row%012d", startIdx))
			spec.StopRow = []byte(fmt.Sprintf("row%012d", stopIdx))

			scanner, err := hbase.NewUserScan(store, spec, store.ScanInfo(), math.MaxUint64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "scan setup failed: %v\n", err)
				continue
			}
			var batch []hbase.Cell
			ctx := &hbase.ScanProgress{}
			for {
				more, err := scanner.Next(&batch, ctx)
				if err != nil {
					break
				}
				cellsScanned += int64(len(batch))
				batch = batch[:0]
				if !more {
					break
				}
			}
			scanner.Close()
		}
		scanDuration := time.Since(scanStart)
		scanRate := float64(numScans) / scanDuration.Seconds()

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		fmt.Printf("Cache %s: %d scans in %v (%.0f scans/s, %d cells) | Heap: %dMB\n",
			cs.name, numScans, scanDuration, scanRate, cellsScanned, m.HeapAlloc/1024/1024)

		store.Close()
	}
}

func printStoreFiles(store *hbase.Store) {
	files := store.Storefiles()
	byLevel := map[int]int{}
	for _, f := range files {
		byLevel[f.Level]++
	}
	for level, n := range byLevel {
		fmt.Printf("  L%d: %d files\n", level, n)
	}
}

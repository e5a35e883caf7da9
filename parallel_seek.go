package hbase

import (
	"context"
	"sync"
)

// ParallelSeeker seeks many file-backed SubScanners to the same key
// concurrently, since each seek is an independent block-index lookup (and
// possibly a disk read) with no shared state. Non-file SubScanners
// (memstore) are cheap in-memory seeks and are done inline rather than
// handed to the executor.
type ParallelSeeker struct {
	exec Executor
}

// NewParallelSeeker wraps exec; pass nil to always seek sequentially
// (equivalent to ScanInfo.ParallelSeekEnable == false).
func NewParallelSeeker(exec Executor) *ParallelSeeker {
	return &ParallelSeeker{exec: exec}
}

// Seek positions every scanner at key, in parallel across file scanners
// when the seeker has an executor, sequentially otherwise.
func (ps *ParallelSeeker) Seek(ctx context.Context, scanners []SubScanner, key Cell) error {
	if ps.exec == nil {
		return ps.seekSequential(scanners, key)
	}

	var fileFns []func() error
	for _, s := range scanners {
		if !s.IsFileScanner() {
			if err := s.Seek(key); err != nil {
				return wrapIO(err)
			}
			continue
		}
		s := s
		fileFns = append(fileFns, func() error { return s.Seek(key) })
	}
	if len(fileFns) == 0 {
		return nil
	}
	errs := make([]error, len(fileFns))
	var wg sync.WaitGroup
	wg.Add(len(fileFns))
	for i, fn := range fileFns {
		i, fn := i, fn
		ps.exec.Submit(func() {
			defer wg.Done()
			errs[i] = fn()
		})
	}
	wg.Wait()
	for _, err := range errs {
		if err == nil {
			continue
		}
		// A task error (e.g. a disk or bloom I/O failure inside a seek) is
		// an I/O failure; only the caller's own context being canceled or
		// timing out counts as an interruption.
		if ctx.Err() != nil {
			return newScanError(KindInterrupted, ctx.Err())
		}
		return newScanError(KindIO, err)
	}
	return nil
}

func (ps *ParallelSeeker) seekSequential(scanners []SubScanner, key Cell) error {
	for _, s := range scanners {
		if err := s.Seek(key); err != nil {
			return wrapIO(err)
		}
	}
	return nil
}

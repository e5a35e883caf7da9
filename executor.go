package hbase

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Executor runs a task asynchronously. ParallelSeeker submits one task
// per file-backed SubScanner to it.
type Executor interface {
	Submit(task func())
}

// poolExecutor is a small fixed-size goroutine pool, grounded on the
// teacher's channel-driven background-loop idiom in compaction.go/writer.go
// generalized from "one loop, one ticker" into "N workers, one queue".
type poolExecutor struct {
	tasks chan func()
	wg    sync.WaitGroup
}

// NewPoolExecutor starts n worker goroutines draining a task queue of the
// given buffer size.
func NewPoolExecutor(n, queueSize int) *poolExecutor {
	if n <= 0 {
		n = 1
	}
	e := &poolExecutor{tasks: make(chan func(), queueSize)}
	e.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer e.wg.Done()
			for task := range e.tasks {
				task()
			}
		}()
	}
	return e
}

func (e *poolExecutor) Submit(task func()) { e.tasks <- task }

// Close stops accepting new tasks and waits for workers to drain.
func (e *poolExecutor) Close() {
	close(e.tasks)
	e.wg.Wait()
}

// runParallel runs fns concurrently via an errgroup, returning the first
// error (if any). ParallelSeeker does not use it: it submits its seeks to
// its Executor and waits on a sync.WaitGroup.
func runParallel(ctx context.Context, fns []func() error) error {
	g, _ := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(fn)
	}
	return g.Wait()
}

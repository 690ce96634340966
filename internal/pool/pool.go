// Package pool provides a small work-stealing worker pool for the local
// compute bursts of the engine, batch share arithmetic and rejection
// sampling, plus a reader wrapper making one randomness source safe for
// the workers to share.
package pool

import (
	"io"
	"runtime"
	"sync"
	"sync/atomic"
)

// task asks a latent worker to evaluate one index of a batch, or to keep
// trying candidates until enough successes were found.
type task struct {
	search bool
	// remaining results still to be produced across all workers.
	ctr *int64
	i   int
	f   func(int) any
	out []any
}

func runSearch(out []any, done chan<- struct{}, f func(int) any, ctr *int64) {
	for atomic.LoadInt64(ctr) > 0 {
		res := f(0)
		if res == nil {
			continue
		}
		i := atomic.AddInt64(ctr, -1)
		if i < 0 {
			break
		}
		out[i] = res
		done <- struct{}{}
	}
}

func worker(tasks <-chan task, done chan<- struct{}) {
	for t := range tasks {
		if t.search {
			runSearch(t.out, done, t.f, t.ctr)
		} else {
			t.out[t.i] = t.f(t.i)
			atomic.AddInt64(t.ctr, -1)
			done <- struct{}{}
		}
	}
}

// Pool is a fixed set of workers shared by one computation thread. A nil
// *Pool is valid and runs everything on the calling goroutine, which keeps
// single-threaded deployments free of synchronization.
type Pool struct {
	tasks   chan task
	done    chan struct{}
	workers int
}

// NewPool starts count workers; count <= 0 uses the number of CPUs.
func NewPool(count int) *Pool {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	p := &Pool{
		tasks:   make(chan task),
		done:    make(chan struct{}),
		workers: count,
	}
	for i := 0; i < count; i++ {
		go worker(p.tasks, p.done)
	}
	return p
}

// TearDown releases the workers. The pool must not be used afterwards.
func (p *Pool) TearDown() {
	close(p.tasks)
}

// Parallelize evaluates f at 0..count-1 across the pool and returns the
// results in index order.
func Parallelize[T any](p *Pool, count int, f func(int) T) []T {
	out := make([]T, count)
	if p == nil {
		for i := range out {
			out[i] = f(i)
		}
		return out
	}

	boxed := make([]any, count)
	ctr := int64(count)
	sent := 0
	for sent < count {
		t := task{
			i:   sent,
			ctr: &ctr,
			f:   func(i int) any { return f(i) },
			out: boxed,
		}
		// Interleave draining completions so workers free up to accept
		// the remaining tasks.
		select {
		case p.tasks <- t:
			sent++
		case <-p.done:
		}
	}
	for atomic.LoadInt64(&ctr) > 0 {
		<-p.done
	}
	for i := range out {
		out[i] = boxed[i].(T)
	}
	return out
}

// Search tries candidates with f, which reports failure by returning nil,
// until count successes were collected.
func Search[T any](p *Pool, count int, f func() *T) []*T {
	out := make([]*T, count)
	if p == nil {
		for i := range out {
			for out[i] = nil; out[i] == nil; out[i] = f() {
			}
		}
		return out
	}

	boxed := make([]any, count)
	ctr := int64(count)
	t := task{
		search: true,
		ctr:    &ctr,
		// A typed nil boxed in an interface would defeat the failure
		// check, so map it to a plain nil here.
		f: func(int) any {
			if v := f(); v != nil {
				return v
			}
			return nil
		},
		out: boxed,
	}
	for i := 0; i < p.workers; i++ {
		p.tasks <- t
	}
	// Each slot's write happens before its done send, so receiving all
	// count completions makes every result visible here.
	for i := 0; i < count; i++ {
		<-p.done
	}
	for i := range out {
		out[i] = boxed[i].(*T)
	}
	return out
}

// LockedReader makes an io.Reader safe for concurrent reads. Which worker
// gets which bytes is raced, but no bytes are ever delivered twice.
type LockedReader struct {
	r io.Reader
	m sync.Mutex
}

// NewLockedReader wraps r. The zero mutex is ready to use.
func NewLockedReader(r io.Reader) *LockedReader {
	return &LockedReader{r: r}
}

func (l *LockedReader) Read(p []byte) (int, error) {
	l.m.Lock()
	defer l.m.Unlock()
	return l.r.Read(p)
}

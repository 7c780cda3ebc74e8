package parallel

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gogpu/slide/tile"
)

// DecodeFunc turns a live job into a decoded tile.
type DecodeFunc func(job tile.Job) (*tile.Tile, error)

// Result is the outcome of one job, published on WorkerPool.Results.
//
// Exactly one of the following holds: Stale is set (the job was superseded
// before a worker reached it and no read was made), Err is set (the decode
// failed), or Tile holds the decoded tile, whose ownership passes to the
// receiver.
type Result struct {
	Job   tile.Job
	Tile  *tile.Tile
	Err   error
	Stale bool
}

// WorkerPool is a fixed set of goroutines decoding jobs from a Queue.
//
// Workers compare each job's generation with the current generation before
// decoding it; superseded jobs are reported as stale without calling the
// decode function. A failing decode only affects its own job.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	// workers is the number of worker goroutines.
	workers int

	// queue is the shared job queue.
	queue *Queue

	// decode performs the region read and compositing.
	decode DecodeFunc

	// generation returns the current generation.
	generation func() uint64

	// results carries completions to the owner.
	results chan Result

	// done signals workers to stop publishing.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// running indicates whether the pool is accepting work.
	running atomic.Bool

	decoded atomic.Uint64
	stale   atomic.Uint64
	failed  atomic.Uint64
}

// NewWorkerPool starts a pool of workers reading from queue.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int, queue *Queue, decode DecodeFunc, generation func() uint64) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Room for a few completions per worker so workers rarely wait on the owner.
	buffer := workers * 4
	if buffer < 16 {
		buffer = 16
	}

	p := &WorkerPool{
		workers:    workers,
		queue:      queue,
		decode:     decode,
		generation: generation,
		results:    make(chan Result, buffer),
		done:       make(chan struct{}),
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

// worker is the main loop for each worker goroutine.
func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		job, ok := p.queue.Pop()
		if !ok {
			return
		}

		if job.Generation < p.generation() {
			p.stale.Add(1)
			p.publish(Result{Job: job, Stale: true})
			continue
		}

		t, err := p.run(job)
		if err != nil {
			p.failed.Add(1)
			p.publish(Result{Job: job, Err: err})
			continue
		}
		p.decoded.Add(1)
		p.publish(Result{Job: job, Tile: t})
	}
}

// run calls the decode function, converting a panic into an error so one
// bad tile cannot take the pool down.
func (p *WorkerPool) run(job tile.Job) (t *tile.Tile, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, fmt.Errorf("parallel: decode %s panicked: %v", job.ID, r)
		}
	}()
	t, err = p.decode(job)
	if err == nil && t == nil {
		err = fmt.Errorf("parallel: decode %s returned no tile", job.ID)
	}
	return t, err
}

// publish delivers r unless the pool is shutting down, in which case a
// decoded tile is released instead.
func (p *WorkerPool) publish(r Result) {
	select {
	case p.results <- r:
	case <-p.done:
		if r.Tile != nil {
			r.Tile.Release()
		}
	}
}

// Submit queues a job. It returns ErrShutdown after Close.
func (p *WorkerPool) Submit(job tile.Job) error {
	if !p.running.Load() {
		return ErrShutdown
	}
	return p.queue.Push(job)
}

// Results returns the completion channel. It is closed after Close once
// every worker has exited.
func (p *WorkerPool) Results() <-chan Result {
	return p.results
}

// Close shuts the pool down: new submissions are rejected, pending jobs
// are dropped and each worker finishes the decode it is running, if any,
// before exiting. Close returns the dropped jobs and is safe to call
// multiple times.
func (p *WorkerPool) Close() []tile.Job {
	if !p.running.CompareAndSwap(true, false) {
		return nil
	}

	close(p.done)
	dropped := p.queue.Close()
	p.wg.Wait()
	close(p.results)
	return dropped
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// Pending returns the number of queued jobs with priority prio.
func (p *WorkerPool) Pending(prio tile.Priority) int {
	return p.queue.LenPriority(prio)
}

// PoolStats holds worker pool counters.
type PoolStats struct {
	Decoded uint64
	Stale   uint64
	Failed  uint64
}

// Stats returns a snapshot of the pool counters.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Decoded: p.decoded.Load(),
		Stale:   p.stale.Load(),
		Failed:  p.failed.Load(),
	}
}

package parallel

import (
	"container/list"
	"errors"
	"sync"

	"github.com/gogpu/slide/tile"
)

// ErrShutdown is returned when work is submitted after Close.
var ErrShutdown = errors.New("parallel: shutdown in progress")

// Queue is a blocking priority queue of tile jobs.
//
// Jobs are served Visible first, then Prefetch; within a priority they are
// served in the order they were pushed. A tile has at most one queued job.
//
// Thread safety: Queue is safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	lanes  [tile.NumPriorities]*list.List
	index  map[tile.ID]*list.Element
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	q := &Queue{index: make(map[tile.ID]*list.Element)}
	q.cond = sync.NewCond(&q.mu)
	for i := range q.lanes {
		q.lanes[i] = list.New()
	}
	return q
}

// Push adds job to the queue. If a job for the same tile is already queued
// it is retargeted instead (see Retarget), so no duplicate is created.
func (q *Queue) Push(job tile.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrShutdown
	}
	if job.Priority >= tile.NumPriorities {
		job.Priority = tile.Prefetch
	}
	if _, ok := q.index[job.ID]; ok {
		q.retargetLocked(job.ID, job.Generation, job.Priority)
		return nil
	}
	q.index[job.ID] = q.lanes[job.Priority].PushBack(job)
	q.cond.Signal()
	return nil
}

// Pop removes and returns the next job, blocking while the queue is empty.
// It returns false once the queue is closed.
func (q *Queue) Pop() (tile.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && len(q.index) == 0 {
		q.cond.Wait()
	}
	if q.closed {
		return tile.Job{}, false
	}
	for _, lane := range q.lanes {
		if e := lane.Front(); e != nil {
			job := lane.Remove(e).(tile.Job)
			delete(q.index, job.ID)
			return job, true
		}
	}
	return tile.Job{}, false
}

// Retarget updates the queued job for id to generation and, if priority is
// more urgent than the job's current one, promotes it to the back of that
// lane. It reports whether a job for id was queued.
func (q *Queue) Retarget(id tile.ID, generation uint64, priority tile.Priority) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.retargetLocked(id, generation, priority)
}

func (q *Queue) retargetLocked(id tile.ID, generation uint64, priority tile.Priority) bool {
	e, ok := q.index[id]
	if !ok {
		return false
	}
	job := e.Value.(tile.Job)
	if generation > job.Generation {
		job.Generation = generation
	}
	if priority < job.Priority {
		q.lanes[job.Priority].Remove(e)
		job.Priority = priority
		q.index[id] = q.lanes[priority].PushBack(job)
		return true
	}
	e.Value = job
	return true
}

// Remove drops the queued job for id and reports whether there was one.
func (q *Queue) Remove(id tile.ID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.index[id]
	if !ok {
		return false
	}
	q.lanes[e.Value.(tile.Job).Priority].Remove(e)
	delete(q.index, id)
	return true
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.index)
}

// LenPriority returns the number of queued jobs with priority p.
func (q *Queue) LenPriority(p tile.Priority) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p >= tile.NumPriorities {
		return 0
	}
	return q.lanes[p].Len()
}

// Drain removes every queued job and returns them in service order.
func (q *Queue) Drain() []tile.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drainLocked()
}

// Close wakes all waiting consumers, rejects further pushes and returns the
// jobs that were still pending. Close is safe to call multiple times.
func (q *Queue) Close() []tile.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	pending := q.drainLocked()
	q.cond.Broadcast()
	return pending
}

func (q *Queue) drainLocked() []tile.Job {
	if len(q.index) == 0 {
		return nil
	}
	jobs := make([]tile.Job, 0, len(q.index))
	for _, lane := range q.lanes {
		for e := lane.Front(); e != nil; e = e.Next() {
			jobs = append(jobs, e.Value.(tile.Job))
		}
		lane.Init()
	}
	clear(q.index)
	return jobs
}

// Package parallel provides the concurrent half of the tile streaming
// pipeline: the shared job queue, the decode worker pool, pooled tile
// buffers and lock-free coverage bitmaps.
//
// Key features:
//
//   - Two-lane priority queue (visible before prefetch, FIFO within a lane)
//   - At most one queued job per tile; re-pushes retarget the queued job
//   - Generation-based cancellation: stale jobs are dropped without I/O
//   - Graceful shutdown: pending jobs are dropped, running decodes finish
//
// Thread safety: Queue, WorkerPool, BufferPool and Coverage are safe for
// concurrent use.
package parallel

package slide

import "github.com/gogpu/slide/tile"

// prefetchTarget is what the Prefetcher schedules against.
type prefetchTarget interface {
	// covered reports whether id is already needed or resident.
	covered(id tile.ID) bool

	// visibleBacklog returns the number of queued Visible jobs.
	visibleBacklog() int

	// prefetch queues a Prefetch job for id and reports whether a new job
	// was submitted.
	prefetch(id tile.ID) (bool, error)
}

// Prefetcher speculatively requests tiles the view is likely to need next:
// a ring around the visible tiles and, optionally, the same area one level
// coarser and one level finer.
//
// It only ever adds Prefetch jobs. It never retires tiles and never blocks,
// and it stands down entirely while too many Visible jobs are waiting.
type Prefetcher struct {
	grid     *tile.Grid
	margin   int
	adjacent bool
	backlog  int
}

// NewPrefetcher creates a prefetcher for grid.
func NewPrefetcher(grid *tile.Grid, margin int, adjacentLevels bool, backlog int) *Prefetcher {
	return &Prefetcher{
		grid:     grid,
		margin:   max(0, margin),
		adjacent: adjacentLevels,
		backlog:  max(0, backlog),
	}
}

// Candidates returns the tiles worth prefetching for fov, most useful
// first: the ring at the FOV level, then the coarser level, then the finer.
func (p *Prefetcher) Candidates(fov tile.FieldOfView) []tile.ID {
	ids := p.grid.Ring(fov, p.margin)
	if !p.adjacent {
		return ids
	}
	if fov.Level+1 < p.grid.NumLevels() {
		ids = append(ids, p.grid.Span(fov.Rect, fov.Level+1).IDs()...)
	}
	if fov.Level > 0 {
		ids = append(ids, p.grid.Span(fov.Rect, fov.Level-1).IDs()...)
	}
	return ids
}

// run submits prefetch jobs for fov and returns how many were new. It
// returns -1 when skipped because of the Visible backlog.
func (p *Prefetcher) run(fov tile.FieldOfView, t prefetchTarget) (int, error) {
	if t.visibleBacklog() > p.backlog {
		return -1, nil
	}
	n := 0
	for _, id := range p.Candidates(fov) {
		if t.covered(id) {
			continue
		}
		submitted, err := t.prefetch(id)
		if err != nil {
			return n, err
		}
		if submitted {
			n++
		}
	}
	return n, nil
}

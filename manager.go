package slide

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/gogpu/slide/internal/cache"
	"github.com/gogpu/slide/internal/parallel"
	"github.com/gogpu/slide/overlay"
	"github.com/gogpu/slide/source"
	"github.com/gogpu/slide/surface"
	"github.com/gogpu/slide/tile"
)

// Completion is the outcome of one tile job, delivered on the channel
// returned by Manager.Completions.
type Completion = parallel.Result

// Manager streams the tiles of one image into a cache and a surface.
//
// A Manager belongs to a single goroutine, the one driving the view. All
// methods must be called from it. Worker goroutines communicate with it only
// through the completion channel, which the owner drains with OnTileLoaded,
// Poll or Settle.
//
// A tile is attached to the surface when it is part of the current needed
// set or belongs to a bulk-loaded level. Tiles that arrive for a view that
// has since moved on are cached but not attached.
type Manager struct {
	cfg     Config
	src     source.ImageSource
	surf    surface.Surface
	grid    *tile.Grid
	log     *slog.Logger
	session string

	cache      *cache.Cache[tile.ID, *tile.Tile]
	queue      *parallel.Queue
	pool       *parallel.WorkerPool
	prefetcher *Prefetcher
	settings   atomic.Pointer[renderSettings]

	// generation is read by workers; everything else is owner-only.
	generation atomic.Uint64

	// epoch is the generation of the last Refresh or Clear. Tiles decoded
	// for an older generation carry outdated pixels.
	epoch uint64

	fov        tile.FieldOfView
	needed     map[tile.ID]struct{}
	neededList []tile.ID
	inflight   map[tile.ID]tile.Job
	attached   map[tile.ID]struct{}
	bulkLevels map[int]struct{}
	coverage   []*parallel.Coverage
	overview   int

	stats  counters
	closed bool
}

// NewManager creates a manager for src that attaches tiles to surf and
// starts its worker pool.
func NewManager(src source.ImageSource, surf surface.Surface, opts ...Option) (*Manager, error) {
	if src == nil || surf == nil {
		return nil, fmt.Errorf("%w: source and surface are required", ErrInvalidConfig)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.config.Retirement == "" {
		o.config.Retirement = RetireLazy
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	if err := o.overlay.Validate(); err != nil {
		return nil, err
	}
	if err := checkPlane(src, o.plane); err != nil {
		return nil, err
	}

	grid, err := source.NewGrid(src, o.config.TileSize)
	if err != nil {
		return nil, fmt.Errorf("slide: %w", err)
	}

	logger := o.logger
	if logger == nil {
		logger = Logger()
	}
	logger, session := sessionLogger(logger)

	m := &Manager{
		cfg:        o.config,
		src:        src,
		surf:       surf,
		grid:       grid,
		log:        logger,
		session:    session,
		queue:      parallel.NewQueue(),
		needed:     make(map[tile.ID]struct{}),
		inflight:   make(map[tile.ID]tile.Job),
		attached:   make(map[tile.ID]struct{}),
		bulkLevels: make(map[int]struct{}),
		coverage:   make([]*parallel.Coverage, grid.NumLevels()),
		overview:   source.OverviewLevel(src, grid.TileSize()),
	}
	for l := range m.coverage {
		m.coverage[l] = parallel.NewCoverage(grid.Columns(l), grid.Rows(l))
	}
	m.settings.Store(&renderSettings{
		channel: o.backgroundChannel,
		plane:   o.plane,
		overlay: o.overlay,
	})
	m.cache = cache.New[tile.ID, *tile.Tile](o.config.MaxCacheBytes, (*tile.Tile).Bytes, m.evicted)
	m.prefetcher = NewPrefetcher(grid, o.config.PrefetchMargin, o.config.PrefetchAdjacentLevels, o.config.PrefetchBacklog)

	dec := &decoder{
		src:      src,
		grid:     grid,
		buffers:  parallel.NewBufferPool(grid.TileSize()),
		settings: &m.settings,
		log:      logger,
	}
	m.pool = parallel.NewWorkerPool(o.config.Workers, m.queue, dec.decode, m.generation.Load)

	m.log.Info("slide: manager started",
		"levels", grid.NumLevels(),
		"tile_size", grid.TileSize(),
		"workers", m.pool.Workers(),
		"cache", humanize.IBytes(uint64(o.config.MaxCacheBytes)),
		"overview_level", m.overview)
	return m, nil
}

func checkPlane(src source.ImageSource, plane int) error {
	n := 1
	if pr, ok := src.(source.PlaneReader); ok {
		n = pr.NumberOfPlanes()
	}
	if plane < 0 || plane >= n {
		return fmt.Errorf("%w: plane %d of %d", source.ErrInvalidRegion, plane, n)
	}
	return nil
}

// Grid returns the tile grid of the image.
func (m *Manager) Grid() *tile.Grid { return m.grid }

// Session returns the id that tags this manager's log lines.
func (m *Manager) Session() string { return m.session }

// OverviewLevel returns the level Initialize loads.
func (m *Manager) OverviewLevel() int { return m.overview }

// LevelFor returns the level best suited to display at downsample.
func (m *Manager) LevelFor(downsample float64) int {
	return source.BestLevelForDownsample(m.src, downsample)
}

// Generation returns the current generation. It increases with every view
// change, Refresh and Clear.
func (m *Manager) Generation() uint64 { return m.generation.Load() }

// FieldOfView returns the last field of view.
func (m *Manager) FieldOfView() tile.FieldOfView { return m.fov }

// Completions returns the channel workers publish results on. Pass every
// value received to OnTileLoaded. The channel is closed by Close.
func (m *Manager) Completions() <-chan Completion { return m.pool.Results() }

// Initialize bulk-loads the overview level and waits for it. With
// PinOverview set the overview stays resident for the life of the manager.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := m.LoadAllTilesForLevel(ctx, m.overview); err != nil {
		return err
	}
	if !m.cfg.PinOverview {
		for _, id := range m.grid.LevelSpan(m.overview).IDs() {
			m.cache.Unpin(id)
		}
		delete(m.bulkLevels, m.overview)
	}
	st := m.cache.Stats()
	m.log.Info("slide: overview loaded",
		"level", m.overview,
		"tiles", m.grid.LevelSpan(m.overview).Len(),
		"pinned", humanize.IBytes(uint64(st.PinnedBytes)))
	return nil
}

// OnFieldOfViewChanged starts a new generation for fov. Resident tiles it
// needs are attached at once; queued or running jobs for them are moved to
// the new generation at Visible priority; the rest are submitted. Then the
// prefetcher runs.
func (m *Manager) OnFieldOfViewChanged(fov tile.FieldOfView) error {
	if m.closed {
		return ErrShutdown
	}
	if _, ok := m.grid.Level(fov.Level); !ok {
		return fmt.Errorf("slide: field of view: %w: %d", source.ErrInvalidLevel, fov.Level)
	}

	gen := m.generation.Add(1)
	ids := m.grid.Needed(fov)
	needed := make(map[tile.ID]struct{}, len(ids))
	for _, id := range ids {
		needed[id] = struct{}{}
	}
	m.fov, m.needed, m.neededList = fov, needed, ids

	for _, id := range ids {
		if err := m.request(id, tile.Visible); err != nil {
			return err
		}
	}
	if m.cfg.Retirement == RetireEager {
		m.retire()
	}
	m.log.Debug("slide: field of view changed",
		"generation", gen, "level", fov.Level, "needed", len(ids), "in_flight", len(m.inflight))

	return m.runPrefetch()
}

// request makes id available: attached from the cache, retargeted if a job
// is outstanding, or submitted.
func (m *Manager) request(id tile.ID, prio tile.Priority) error {
	if t, ok := m.cache.Get(id); ok {
		if m.wanted(id) {
			m.attach(id, t)
		}
		return nil
	}
	_, err := m.submit(id, prio)
	return err
}

// submit queues a job for id at the current generation, or moves the
// outstanding one there. It reports whether a new job was created.
func (m *Manager) submit(id tile.ID, prio tile.Priority) (bool, error) {
	gen := m.generation.Load()
	if job, ok := m.inflight[id]; ok {
		if m.queue.Retarget(id, gen, prio) {
			job.Generation = max(job.Generation, gen)
			job.Priority = min(job.Priority, prio)
			m.inflight[id] = job
		}
		return false, nil
	}
	job := tile.Job{ID: id, Priority: prio, Generation: gen}
	if err := m.pool.Submit(job); err != nil {
		return false, err
	}
	m.inflight[id] = job
	m.stats.submitted++
	return true, nil
}

// wanted reports whether id should be attached when resident.
func (m *Manager) wanted(id tile.ID) bool {
	if _, ok := m.needed[id]; ok {
		return true
	}
	_, ok := m.bulkLevels[id.Level]
	return ok
}

func (m *Manager) attach(id tile.ID, t *tile.Tile) {
	if _, ok := m.attached[id]; ok {
		return
	}
	m.surf.Attach(id, t)
	m.attached[id] = struct{}{}
}

func (m *Manager) detach(id tile.ID) {
	if _, ok := m.attached[id]; !ok {
		return
	}
	m.surf.Detach(id)
	delete(m.attached, id)
}

// retire drops resident tiles that are no longer wanted, along with queued
// jobs for them. Jobs a worker already started are left to complete.
func (m *Manager) retire() {
	for _, id := range m.cache.Keys() {
		if m.wanted(id) || m.cache.Pinned(id) {
			continue
		}
		if t, ok := m.cache.Remove(id); ok {
			m.removed(id, t)
		}
	}
	for id := range m.inflight {
		if m.wanted(id) || m.cache.Pinned(id) {
			continue
		}
		if m.queue.Remove(id) {
			delete(m.inflight, id)
			m.stats.cancelled++
		}
	}
}

// runPrefetch schedules speculative loads around the current view.
func (m *Manager) runPrefetch() error {
	n, err := m.prefetcher.run(m.fov, m)
	if n < 0 {
		m.stats.prefetchSkipped++
	} else {
		m.stats.prefetched += uint64(n)
	}
	return err
}

func (m *Manager) covered(id tile.ID) bool {
	if _, ok := m.needed[id]; ok {
		return true
	}
	return m.cache.Contains(id)
}

func (m *Manager) visibleBacklog() int { return m.pool.Pending(tile.Visible) }

func (m *Manager) prefetch(id tile.ID) (bool, error) { return m.submit(id, tile.Prefetch) }

// LoadAllTilesForLevel requests every tile of level, pins them and blocks
// until each has been resolved, handling all completions that arrive in
// the meantime. Tiles of the level stay attached until Clear.
func (m *Manager) LoadAllTilesForLevel(ctx context.Context, level int) error {
	if m.closed {
		return ErrShutdown
	}
	if _, ok := m.grid.Level(level); !ok {
		return fmt.Errorf("slide: load level: %w: %d", source.ErrInvalidLevel, level)
	}

	m.bulkLevels[level] = struct{}{}
	pending := make(map[tile.ID]struct{})
	for _, id := range m.grid.LevelSpan(level).IDs() {
		m.cache.Pin(id)
		if err := m.request(id, tile.Visible); err != nil {
			return err
		}
		if _, ok := m.inflight[id]; ok {
			pending[id] = struct{}{}
		}
	}
	m.log.Debug("slide: loading level", "level", level, "pending", len(pending))

	results := m.pool.Results()
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-results:
			if !ok {
				return ErrShutdown
			}
			m.OnTileLoaded(c)
			if _, ok := m.inflight[c.Job.ID]; !ok {
				delete(pending, c.Job.ID)
			}
		}
	}
	return nil
}

// OnTileLoaded handles one completion from the worker pool.
func (m *Manager) OnTileLoaded(c Completion) {
	id := c.Job.ID
	delete(m.inflight, id)
	m.stats.completed++

	switch {
	case c.Stale:
		m.resubmit(id)
		return
	case c.Err != nil:
		m.stats.failed++
		m.log.Warn("slide: tile failed", "tile", id, "err", c.Err)
		return
	case c.Tile == nil:
		return
	case m.closed:
		c.Tile.Release()
		return
	case c.Job.Generation < m.epoch:
		m.stats.superseded++
		c.Tile.Release()
		m.resubmit(id)
		return
	}

	t := c.Tile
	old, hadOld := m.cache.Peek(id)
	if err := m.cache.Insert(id, t); err != nil {
		m.stats.rejected++
		m.log.Warn("slide: tile rejected", "tile", id,
			"size", humanize.IBytes(uint64(t.Bytes())), "err", err)
		t.Release()
		return
	}
	m.coverage[id.Level].Set(id.Col, id.Row)

	_, wasAttached := m.attached[id]
	if m.wanted(id) || wasAttached {
		m.surf.Attach(id, t)
		m.attached[id] = struct{}{}
		m.log.Debug("slide: tile attached", "tile", id, "generation", c.Job.Generation)
	}
	if hadOld && old != t {
		old.Release()
	}
}

// resubmit re-requests id if it is still wanted.
func (m *Manager) resubmit(id tile.ID) {
	if m.closed || !m.wanted(id) {
		return
	}
	if _, err := m.submit(id, tile.Visible); err != nil {
		m.log.Warn("slide: resubmit failed", "tile", id, "err", err)
	}
}

// OnTileRemoved takes id out of the cache and off the surface and
// recycles its pixels. The cache calls it for every eviction.
func (m *Manager) OnTileRemoved(id tile.ID) {
	if t, ok := m.cache.Remove(id); ok {
		m.removed(id, t)
		return
	}
	m.detach(id)
}

// evicted is the cache's eviction callback.
func (m *Manager) evicted(id tile.ID, t *tile.Tile) {
	m.stats.evicted++
	m.removed(id, t)
}

func (m *Manager) removed(id tile.ID, t *tile.Tile) {
	m.detach(id)
	m.coverage[id.Level].Unset(id.Col, id.Row)
	t.Release()
	m.log.Debug("slide: tile removed", "tile", id)
}

// Poll handles every completion that is ready without blocking and
// returns how many it handled.
func (m *Manager) Poll() int {
	n := 0
	results := m.pool.Results()
	for {
		select {
		case c, ok := <-results:
			if !ok {
				return n
			}
			m.OnTileLoaded(c)
			n++
		default:
			return n
		}
	}
}

// Settle handles completions until no job is outstanding. It is meant for
// headless rendering and tests; an interactive owner should consume
// Completions from its event loop instead.
func (m *Manager) Settle(ctx context.Context) error {
	if m.closed {
		return ErrShutdown
	}
	results := m.pool.Results()
	for len(m.inflight) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-results:
			if !ok {
				return ErrShutdown
			}
			m.OnTileLoaded(c)
		}
	}
	return nil
}

// Refresh discards every resident tile and requests the needed set and
// bulk-loaded levels again under a new generation. Tiles decoded before
// the call are dropped on arrival and requested again.
func (m *Manager) Refresh() error {
	if m.closed {
		return ErrShutdown
	}
	gen := m.generation.Add(1)
	m.epoch = gen
	m.cache.Clear()

	for _, id := range m.neededList {
		if _, err := m.submit(id, tile.Visible); err != nil {
			return err
		}
	}
	for level := range m.bulkLevels {
		for _, id := range m.grid.LevelSpan(level).IDs() {
			if _, err := m.submit(id, tile.Visible); err != nil {
				return err
			}
		}
	}
	m.log.Debug("slide: refresh", "generation", gen, "in_flight", len(m.inflight))
	if len(m.neededList) == 0 {
		return nil
	}
	return m.runPrefetch()
}

// Clear cancels all outstanding work, evicts every tile and detaches
// everything from the surface. Bulk-loaded levels are forgotten. Calling
// Clear again has no further effect besides a new generation.
func (m *Manager) Clear() {
	gen := m.generation.Add(1)
	m.epoch = gen

	for _, job := range m.queue.Drain() {
		delete(m.inflight, job.ID)
	}
	m.needed = make(map[tile.ID]struct{})
	m.neededList = nil
	clear(m.bulkLevels)
	m.cache.UnpinAll()
	m.cache.Clear()
	for id := range m.attached {
		m.detach(id)
	}
	for _, c := range m.coverage {
		c.Reset()
	}
}

// Close clears the manager and shuts the worker pool down, waiting for
// running decodes to finish. Later calls return ErrShutdown.
func (m *Manager) Close() error {
	if m.closed {
		return ErrShutdown
	}
	m.Clear()
	m.closed = true

	dropped := m.pool.Close()
	for c := range m.pool.Results() {
		if c.Tile != nil {
			c.Tile.Release()
		}
	}
	clear(m.inflight)
	m.log.Info("slide: manager closed", "dropped", len(dropped), "stats", m.Stats())
	return nil
}

// SetMaxCacheSize changes the cache budget, evicting before it returns if
// the cache is over the new budget.
func (m *Manager) SetMaxCacheSize(bytes int64) error {
	if m.closed {
		return ErrShutdown
	}
	if bytes <= 0 {
		return fmt.Errorf("%w: cache size must be positive, got %d", ErrInvalidConfig, bytes)
	}
	m.cache.SetMaxSize(bytes)
	m.cfg.MaxCacheBytes = bytes
	m.log.Info("slide: cache resized",
		"max", humanize.IBytes(uint64(bytes)),
		"used", humanize.IBytes(uint64(m.cache.Size())))
	return nil
}

// MaxCacheSize returns the cache budget in bytes.
func (m *Manager) MaxCacheSize() int64 { return m.cache.MaxSize() }

// CacheSize returns the bytes held by resident tiles.
func (m *Manager) CacheSize() int64 { return m.cache.Size() }

// ApplyConfig applies the settings that can change on a running manager:
// cache budget, prefetch settings and retirement policy. Tile size and
// worker count are fixed at creation and must match.
func (m *Manager) ApplyConfig(cfg Config) error {
	if m.closed {
		return ErrShutdown
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.TileSize != m.grid.TileSize() {
		return fmt.Errorf("%w: tile_size cannot change from %d to %d", ErrInvalidConfig, m.grid.TileSize(), cfg.TileSize)
	}
	if cfg.MaxCacheBytes != m.cfg.MaxCacheBytes {
		if err := m.SetMaxCacheSize(cfg.MaxCacheBytes); err != nil {
			return err
		}
	}
	cfg.Workers = m.cfg.Workers
	m.cfg = cfg
	m.prefetcher = NewPrefetcher(m.grid, cfg.PrefetchMargin, cfg.PrefetchAdjacentLevels, cfg.PrefetchBacklog)
	return nil
}

// Config returns the active configuration.
func (m *Manager) Config() Config { return m.cfg }

// SetOverlay replaces the foreground overlay, drops every tile that was
// blended with the old one and refreshes. Pass nil to remove the overlay.
func (m *Manager) SetOverlay(cfg *overlay.Config) error {
	if m.closed {
		return ErrShutdown
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	next := *m.settings.Load()
	next.overlay = cfg
	m.settings.Store(&next)

	for _, id := range m.cache.Keys() {
		if t, ok := m.cache.Peek(id); ok && t.Blended {
			m.OnTileRemoved(id)
		}
	}
	return m.Refresh()
}

// SetBackgroundChannel renders channel ch of the background as grayscale,
// or natural colors for a negative ch, and refreshes.
func (m *Manager) SetBackgroundChannel(ch int) error {
	if m.closed {
		return ErrShutdown
	}
	next := *m.settings.Load()
	next.channel = ch
	m.settings.Store(&next)
	return m.Refresh()
}

// SetPlane switches to z-plane p and refreshes.
func (m *Manager) SetPlane(p int) error {
	if m.closed {
		return ErrShutdown
	}
	if err := checkPlane(m.src, p); err != nil {
		return err
	}
	next := *m.settings.Load()
	next.plane = p
	m.settings.Store(&next)
	return m.Refresh()
}

// Coverage returns the fraction of level's tiles that are resident.
func (m *Manager) Coverage(level int) float64 {
	if level < 0 || level >= len(m.coverage) {
		return 0
	}
	return m.coverage[level].Fraction()
}

// ForEachResident calls fn for every resident tile of level, row-major.
func (m *Manager) ForEachResident(level int, fn func(col, row int)) {
	if level < 0 || level >= len(m.coverage) {
		return
	}
	m.coverage[level].ForEach(fn)
}

// Attached reports whether id is attached to the surface.
func (m *Manager) Attached(id tile.ID) bool {
	_, ok := m.attached[id]
	return ok
}

// Resident reports whether id is in the cache.
func (m *Manager) Resident(id tile.ID) bool { return m.cache.Contains(id) }

// Stats returns a snapshot of the manager counters.
func (m *Manager) Stats() Stats {
	cs := m.cache.Stats()
	ps := m.pool.Stats()
	return Stats{
		Generation:      m.generation.Load(),
		Submitted:       m.stats.submitted,
		Prefetched:      m.stats.prefetched,
		PrefetchSkipped: m.stats.prefetchSkipped,
		Completed:       m.stats.completed,
		Decoded:         ps.Decoded,
		Stale:           ps.Stale,
		Superseded:      m.stats.superseded,
		Failed:          m.stats.failed,
		Rejected:        m.stats.rejected,
		Evicted:         m.stats.evicted,
		Cancelled:       m.stats.cancelled,
		InFlight:        len(m.inflight),
		QueuedVisible:   m.queue.LenPriority(tile.Visible),
		QueuedPrefetch:  m.queue.LenPriority(tile.Prefetch),
		Attached:        len(m.attached),
		CacheEntries:    cs.Len,
		CacheBytes:      cs.Bytes,
		CacheMaxBytes:   cs.MaxBytes,
		PinnedBytes:     cs.PinnedBytes,
		CacheHitRate:    cs.HitRate,
	}
}

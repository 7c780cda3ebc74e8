package slide

import (
	"context"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/gogpu/slide/tile"
)

// TestManagerInvariants drives a manager with random view changes, cache
// resizes, refreshes and clears, checking after every step that the cache
// stays within budget, that attached tiles are resident, and that no tile
// is ever read by two workers at once.
func TestManagerInvariants(t *testing.T) {
	base := testPyramid(t)

	rapid.Check(t, func(rt *rapid.T) {
		src := newGatedSource(base)
		rec := newRecordingSurface()
		budget := rapid.Int64Range(2, 24).Draw(rt, "budget") * testTileBytes
		m, err := NewManager(src, rec,
			WithTileSize(testTile),
			WithWorkers(rapid.IntRange(1, 4).Draw(rt, "workers")),
			WithMaxCacheSize(budget),
			WithRetirement(rapid.SampledFrom([]Retirement{RetireLazy, RetireEager}).Draw(rt, "retirement")),
			WithPrefetch(rapid.IntRange(0, 2).Draw(rt, "margin"), rapid.Bool().Draw(rt, "adjacent")))
		if err != nil {
			rt.Fatalf("NewManager: %v", err)
		}
		defer func() { _ = m.Close() }()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		check := func(step string) {
			if m.CacheSize() > m.MaxCacheSize() {
				rt.Fatalf("%s: cache %d over budget %d", step, m.CacheSize(), m.MaxCacheSize())
			}
			for _, id := range rec.IDs() {
				if !m.Resident(id) {
					rt.Fatalf("%s: %s attached but not resident", step, id)
				}
				if !m.Attached(id) {
					rt.Fatalf("%s: %s on the surface but not tracked", step, id)
				}
			}
			if got, want := m.Stats().Attached, rec.Counts().Attached; got != want {
				rt.Fatalf("%s: manager tracks %d attached tiles, surface has %d", step, got, want)
			}
			for id, n := range rec.attaches {
				if d := rec.detaches[id]; d > n {
					rt.Fatalf("%s: %s detached %d times after %d attaches", step, id, d, n)
				}
			}
		}

		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for range steps {
			switch op := rapid.IntRange(0, 6).Draw(rt, "op"); op {
			case 0:
				fov := tile.FieldOfView{
					Level: rapid.IntRange(0, 3).Draw(rt, "level"),
					Rect: tile.Rect{
						X:      float64(rapid.IntRange(-64, 511).Draw(rt, "x")),
						Y:      float64(rapid.IntRange(-64, 255).Draw(rt, "y")),
						Width:  float64(rapid.IntRange(1, 300).Draw(rt, "w")),
						Height: float64(rapid.IntRange(1, 300).Draw(rt, "h")),
					},
				}
				prev := m.Generation()
				if err := m.OnFieldOfViewChanged(fov); err != nil {
					rt.Fatalf("OnFieldOfViewChanged: %v", err)
				}
				if m.Generation() <= prev {
					rt.Fatalf("generation did not advance: %d -> %d", prev, m.Generation())
				}
				check("fov")
			case 1:
				m.Poll()
				check("poll")
			case 2:
				if err := m.Refresh(); err != nil {
					rt.Fatalf("Refresh: %v", err)
				}
				check("refresh")
			case 3:
				m.Clear()
				if m.CacheSize() != 0 || rec.Counts().Attached != 0 {
					rt.Fatalf("Clear left %d bytes and %d attached tiles", m.CacheSize(), rec.Counts().Attached)
				}
				check("clear")
			case 4:
				size := rapid.Int64Range(1, 24).Draw(rt, "size") * testTileBytes
				if err := m.SetMaxCacheSize(size); err != nil {
					rt.Fatalf("SetMaxCacheSize: %v", err)
				}
				check("resize")
			case 5:
				if err := m.Settle(ctx); err != nil {
					rt.Fatalf("Settle: %v", err)
				}
				if m.Stats().InFlight != 0 {
					rt.Fatalf("Settle returned with %d jobs in flight", m.Stats().InFlight)
				}
				check("settle")
			case 6:
				level := rapid.IntRange(2, 3).Draw(rt, "bulk")
				if err := m.LoadAllTilesForLevel(ctx, level); err != nil {
					rt.Fatalf("LoadAllTilesForLevel(%d): %v", level, err)
				}
				check("bulk")
			}
		}

		if err := m.Settle(ctx); err != nil {
			rt.Fatalf("final Settle: %v", err)
		}
		check("final")

		src.mu.Lock()
		overlaps := src.overlaps
		src.mu.Unlock()
		if overlaps != 0 {
			rt.Fatalf("%d concurrent reads of the same tile", overlaps)
		}
	})
}

// TestNeededSetMatchesView checks that after a view change every tile of
// the view is either attached or has exactly one job outstanding.
func TestNeededSetMatchesView(t *testing.T) {
	base := testPyramid(t)
	rapid.Check(t, func(rt *rapid.T) {
		rec := newRecordingSurface()
		m, err := NewManager(base, rec, WithTileSize(testTile), WithWorkers(2), WithPrefetch(1, true))
		if err != nil {
			rt.Fatalf("NewManager: %v", err)
		}
		defer func() { _ = m.Close() }()

		for range rapid.IntRange(1, 5).Draw(rt, "views") {
			fov := tile.FieldOfView{
				Level: rapid.IntRange(0, 3).Draw(rt, "level"),
				Rect: tile.Rect{
					X:      float64(rapid.IntRange(0, 511).Draw(rt, "x")),
					Y:      float64(rapid.IntRange(0, 255).Draw(rt, "y")),
					Width:  float64(rapid.IntRange(1, 256).Draw(rt, "w")),
					Height: float64(rapid.IntRange(1, 256).Draw(rt, "h")),
				},
			}
			if err := m.OnFieldOfViewChanged(fov); err != nil {
				rt.Fatalf("OnFieldOfViewChanged: %v", err)
			}
			if rapid.Bool().Draw(rt, "poll") {
				m.Poll()
			}
			for _, id := range m.Grid().Needed(fov) {
				_, queued := m.inflight[id]
				if m.Attached(id) == queued {
					rt.Fatalf("%s: attached=%v in flight=%v", id, m.Attached(id), queued)
				}
			}
		}
	})
}

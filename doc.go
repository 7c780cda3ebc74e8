// Package slide streams tiles of whole-slide images into a bounded-memory
// display cache.
//
// # Overview
//
// A whole-slide image is a pyramid of zoom levels, each divided into fixed
// size tiles. As the viewport pans and zooms, the Manager works out which
// tiles cover the field of view, serves them from the cache when it can,
// and queues the rest for a pool of worker goroutines that read and decode
// them off the interactive goroutine. A Prefetcher speculatively loads the
// ring around the view and the neighbouring levels.
//
// # Quick Start
//
//	src, err := source.Open("slide.tif")
//	if err != nil {
//	    return err
//	}
//	canvas := surface.NewCanvas(surface.Options{})
//
//	m, err := slide.NewManager(src, canvas)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	// Load and pin the overview level.
//	if err := m.Initialize(ctx); err != nil {
//	    return err
//	}
//
//	// On every pan or zoom:
//	m.OnFieldOfViewChanged(fov)
//
//	// In the event loop:
//	for c := range m.Completions() {
//	    m.OnTileLoaded(c)
//	}
//
// # Concurrency
//
// The Manager, its cache and the surface belong to one goroutine. Workers
// never touch them; they publish completions that the owner handles with
// OnTileLoaded, Poll or Settle. Cancellation is generation based: each view
// change starts a new generation and workers skip jobs from older ones
// without reading anything.
//
// # Architecture
//
// The library is organized into:
//   - Public API: Manager, Prefetcher, Config
//   - tile: identities, priorities, jobs and tiling math
//   - source: the ImageSource capability and an in-memory pyramid
//   - overlay: foreground LUT mapping and blending
//   - surface: the display sink and a compositing Canvas
//   - Internal: cache (byte-budgeted LRU), parallel (queue, workers, buffers)
package slide

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)

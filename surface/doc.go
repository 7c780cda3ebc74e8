// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface provides the sink that decoded tiles are attached to.
//
// A Surface is told when a tile becomes displayable (Attach) and when it
// must stop being displayed (Detach). The tile manager calls both from its
// own goroutine; a surface never sees a tile after it was detached, and the
// pixels it borrowed may be recycled right after Detach returns.
//
// # Surface Types
//
//   - Canvas: keeps attached tiles and composites them for a field of view
//     into an *image.RGBA
//   - Discard: counts attach and detach calls and keeps nothing
//   - Third-party sinks via the registry
//
// # Registry
//
// Sinks can be selected by name:
//
//	s, err := surface.NewSurfaceByName("canvas", surface.Options{})
//	// or the highest priority available:
//	s, err := surface.NewSurface(surface.Options{})
//
// # Thread Safety
//
// Surfaces are NOT thread-safe. Each surface is driven by the goroutine
// that owns the tile manager.
package surface

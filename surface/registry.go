// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"cmp"
	"errors"
	"slices"
	"sync"
)

// Factory builds a surface for the given options.
type Factory func(opts Options) (Surface, error)

// Backend describes a named way of presenting tiles.
type Backend struct {
	Name string

	// Priority orders automatic selection, highest first. Ties are broken
	// by name.
	Priority int

	New Factory

	// Available reports whether the backend can be used here. Nil means
	// always.
	Available func() bool
}

func (b *Backend) usable() bool {
	return b.Available == nil || b.Available()
}

// Registry holds surface backends. The zero value is empty and ready to
// use.
//
// A viewer with a real display would register itself from an init func:
//
//	func init() {
//	    surface.Register(surface.Backend{Name: "viewer", Priority: 100, New: newViewer})
//	}
type Registry struct {
	mu       sync.RWMutex
	backends []Backend // sorted by priority
}

// Register adds b, replacing any backend with the same name.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backends = slices.DeleteFunc(r.backends, func(o Backend) bool { return o.Name == b.Name })
	r.backends = append(r.backends, b)
	slices.SortStableFunc(r.backends, func(x, y Backend) int {
		if c := cmp.Compare(y.Priority, x.Priority); c != 0 {
			return c
		}
		return cmp.Compare(x.Name, y.Name)
	})
}

// Unregister removes the named backend if present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends = slices.DeleteFunc(r.backends, func(o Backend) bool { return o.Name == name })
}

// List returns the registered names in selection order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.Name
	}
	return names
}

// NewSurface builds a surface with the first usable backend whose factory
// succeeds. If every factory fails the errors are joined.
func (r *Registry) NewSurface(opts Options) (Surface, error) {
	r.mu.RLock()
	candidates := slices.Clone(r.backends)
	r.mu.RUnlock()

	var errs []error
	for i := range candidates {
		b := &candidates[i]
		if !b.usable() {
			continue
		}
		s, err := b.New(opts)
		if err == nil {
			return s, nil
		}
		errs = append(errs, &BackendError{Name: b.Name, Err: err})
	}
	if len(errs) == 0 {
		return nil, ErrNoBackend
	}
	return nil, errors.Join(errs...)
}

// NewSurfaceByName builds a surface with the named backend.
func (r *Registry) NewSurfaceByName(name string, opts Options) (Surface, error) {
	r.mu.RLock()
	i := slices.IndexFunc(r.backends, func(b Backend) bool { return b.Name == name })
	var b Backend
	if i >= 0 {
		b = r.backends[i]
	}
	r.mu.RUnlock()

	switch {
	case i < 0:
		return nil, &BackendError{Name: name, Err: ErrUnknownBackend}
	case !b.usable():
		return nil, &BackendError{Name: name, Err: ErrBackendUnavailable}
	}
	s, err := b.New(opts)
	if err != nil {
		return nil, &BackendError{Name: name, Err: err}
	}
	return s, nil
}

var (
	// ErrNoBackend is returned when no usable backend is registered.
	ErrNoBackend = errors.New("surface: no backend available")
	// ErrUnknownBackend means no backend has the requested name.
	ErrUnknownBackend = errors.New("not registered")
	// ErrBackendUnavailable means the backend cannot be used here.
	ErrBackendUnavailable = errors.New("unavailable")
)

// BackendError ties a failure to the backend that produced it.
type BackendError struct {
	Name string
	Err  error
}

func (e *BackendError) Error() string {
	return "surface: backend " + e.Name + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() error { return e.Err }

var defaultRegistry Registry

// Register adds b to the default registry.
func Register(b Backend) { defaultRegistry.Register(b) }

// Unregister removes a backend from the default registry.
func Unregister(name string) { defaultRegistry.Unregister(name) }

// List returns the default registry's backends in selection order.
func List() []string { return defaultRegistry.List() }

// NewSurface builds a surface from the best usable default backend.
func NewSurface(opts Options) (Surface, error) { return defaultRegistry.NewSurface(opts) }

// NewSurfaceByName builds a surface from a named default backend.
func NewSurfaceByName(name string, opts Options) (Surface, error) {
	return defaultRegistry.NewSurfaceByName(name, opts)
}

func init() {
	Register(Backend{Name: "canvas", Priority: 10, New: func(opts Options) (Surface, error) {
		return NewCanvas(opts), nil
	}})
	Register(Backend{Name: "discard", New: func(Options) (Surface, error) {
		return NewDiscard(), nil
	}})
}

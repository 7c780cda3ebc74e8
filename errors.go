package slide

import (
	"errors"

	"github.com/gogpu/slide/internal/cache"
	"github.com/gogpu/slide/internal/parallel"
)

var (
	// ErrShutdown is returned by Manager methods after Close.
	ErrShutdown = parallel.ErrShutdown

	// ErrCapacity is reported when a tile cannot fit in the cache budget.
	ErrCapacity = cache.ErrCapacity

	// ErrInvalidConfig is returned for configurations that fail validation.
	ErrInvalidConfig = errors.New("slide: invalid config")
)

package source

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is to classify an error returned by a source.
var (
	ErrInvalidLevel  = errors.New("invalid level")
	ErrInvalidRegion = errors.New("invalid region")
	ErrIO            = errors.New("i/o failure")
	ErrSourceClosed  = errors.New("source closed")
)

// Error describes a failed source operation.
type Error struct {
	Op    string
	Level int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source: %s level %d: %v", e.Op, e.Level, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

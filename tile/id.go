package tile

import "fmt"

// ID identifies one tile of the pyramid. IDs are plain values and are
// safe to use as map keys.
type ID struct {
	Level int
	Row   int
	Col   int
}

// String returns the ID as "L<level>/<row>/<col>".
func (id ID) String() string {
	return fmt.Sprintf("L%d/%d/%d", id.Level, id.Row, id.Col)
}

// Priority orders pending jobs. Visible jobs are always served before
// Prefetch jobs.
type Priority uint8

const (
	// Visible marks tiles inside the current field of view.
	Visible Priority = iota
	// Prefetch marks speculative tiles just outside it.
	Prefetch
)

// NumPriorities is the number of priority classes.
const NumPriorities = 2

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case Visible:
		return "visible"
	case Prefetch:
		return "prefetch"
	default:
		return fmt.Sprintf("Priority(%d)", p)
	}
}

// Job is a pending decode request.
//
// Generation is the manager generation the job was issued (or last
// retargeted) under. A worker that picks up a job whose generation is older
// than the current one discards it without reading.
type Job struct {
	ID         ID
	Priority   Priority
	Generation uint64
}

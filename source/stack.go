package source

import "fmt"

// Stack combines sources of identical geometry into one source with
// several z-planes. ReadRegion reads plane 0.
type Stack struct {
	planes []ImageSource
}

// NewStack creates a stack. Every plane must have the same number of
// levels and the same level dimensions as the first.
func NewStack(planes ...ImageSource) (*Stack, error) {
	if len(planes) == 0 {
		return nil, &Error{Op: "stack", Err: fmt.Errorf("%w: no planes", ErrInvalidLevel)}
	}
	ref, err := Levels(planes[0])
	if err != nil {
		return nil, err
	}
	for i, p := range planes[1:] {
		levels, err := Levels(p)
		if err != nil {
			return nil, err
		}
		if len(levels) != len(ref) {
			return nil, &Error{Op: "stack", Err: fmt.Errorf("%w: plane %d has %d levels, want %d",
				ErrInvalidLevel, i+1, len(levels), len(ref))}
		}
		for l := range levels {
			if levels[l] != ref[l] {
				return nil, &Error{Op: "stack", Level: l, Err: fmt.Errorf("%w: plane %d geometry differs",
					ErrInvalidRegion, i+1)}
			}
		}
	}
	return &Stack{planes: planes}, nil
}

// NumberOfLevels implements ImageSource.
func (s *Stack) NumberOfLevels() int { return s.planes[0].NumberOfLevels() }

// LevelDimensions implements ImageSource.
func (s *Stack) LevelDimensions(level int) (int, int, error) {
	return s.planes[0].LevelDimensions(level)
}

// LevelDownsample implements ImageSource.
func (s *Stack) LevelDownsample(level int) (float64, error) {
	return s.planes[0].LevelDownsample(level)
}

// ReadRegion implements ImageSource.
func (s *Stack) ReadRegion(x, y int64, width, height, level int) (*Pixels, error) {
	return s.planes[0].ReadRegion(x, y, width, height, level)
}

// NumberOfPlanes implements PlaneReader.
func (s *Stack) NumberOfPlanes() int { return len(s.planes) }

// ReadPlaneRegion implements PlaneReader.
func (s *Stack) ReadPlaneRegion(plane int, x, y int64, width, height, level int) (*Pixels, error) {
	if plane < 0 || plane >= len(s.planes) {
		return nil, &Error{Op: "read", Level: level, Err: fmt.Errorf("%w: plane %d of %d",
			ErrInvalidRegion, plane, len(s.planes))}
	}
	return s.planes[plane].ReadRegion(x, y, width, height, level)
}

package overlay

import (
	"errors"
	"fmt"
	"image/color"
	"slices"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidLUT is returned for malformed lookup tables.
var ErrInvalidLUT = errors.New("overlay: invalid LUT")

// Stop anchors a LUT color at a sample value.
type Stop struct {
	Value float64
	Color colorful.Color
	Alpha float64
}

// LUT maps 8-bit samples to colors.
//
// Continuous tables interpolate between stops in CIE-Lab; discrete tables
// use the color of the closest stop at or below the sample, which suits
// label maps.
type LUT struct {
	name     string
	discrete bool
	table    [256]color.NRGBA
}

// NewLUT builds a table from stops. Stops need not be sorted; at least one
// is required and values must lie in [0, 255].
func NewLUT(name string, stops []Stop, discrete bool) (*LUT, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("%w: %q has no stops", ErrInvalidLUT, name)
	}
	sorted := slices.Clone(stops)
	slices.SortFunc(sorted, func(a, b Stop) int {
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		}
		return 0
	})
	for _, s := range sorted {
		if s.Value < 0 || s.Value > 255 || s.Alpha < 0 || s.Alpha > 1 {
			return nil, fmt.Errorf("%w: %q stop %v out of range", ErrInvalidLUT, name, s.Value)
		}
	}

	l := &LUT{name: name, discrete: discrete}
	for v := range 256 {
		l.table[v] = sample(sorted, float64(v), discrete)
	}
	return l, nil
}

func sample(stops []Stop, v float64, discrete bool) color.NRGBA {
	i, _ := slices.BinarySearchFunc(stops, v, func(s Stop, v float64) int {
		switch {
		case s.Value < v:
			return -1
		case s.Value > v:
			return 1
		}
		return 0
	})
	// stops[i] is the first stop >= v.
	switch {
	case i < len(stops) && stops[i].Value == v:
		return toNRGBA(stops[i].Color, stops[i].Alpha)
	case i == 0:
		if discrete {
			return color.NRGBA{}
		}
		return toNRGBA(stops[0].Color, stops[0].Alpha)
	case i == len(stops) || discrete:
		s := stops[i-1]
		return toNRGBA(s.Color, s.Alpha)
	}
	lo, hi := stops[i-1], stops[i]
	t := (v - lo.Value) / (hi.Value - lo.Value)
	return toNRGBA(lo.Color.BlendLab(hi.Color, t).Clamped(), lo.Alpha+(hi.Alpha-lo.Alpha)*t)
}

func toNRGBA(c colorful.Color, alpha float64) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(alpha*255 + 0.5)}
}

// Name returns the table name.
func (l *LUT) Name() string { return l.name }

// Discrete reports whether the table is a label table.
func (l *LUT) Discrete() bool { return l.discrete }

// Map returns the color of sample v.
func (l *LUT) Map(v uint8) color.NRGBA { return l.table[v] }

// Parse builds a LUT from a comma separated list of value:color[:alpha]
// stops, for example "0:#000000:0,128:#ff0000,255:#ffff00".
func Parse(name, spec string, discrete bool) (*LUT, error) {
	var stops []Stop
	for field := range strings.SplitSeq(spec, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		parts := strings.Split(field, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("%w: stop %q", ErrInvalidLUT, field)
		}
		v, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: stop %q: %w", ErrInvalidLUT, field, err)
		}
		c, err := colorful.Hex(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: stop %q: %w", ErrInvalidLUT, field, err)
		}
		alpha := 1.0
		if len(parts) == 3 {
			if alpha, err = strconv.ParseFloat(parts[2], 64); err != nil {
				return nil, fmt.Errorf("%w: stop %q: %w", ErrInvalidLUT, field, err)
			}
		}
		stops = append(stops, Stop{Value: v, Color: c, Alpha: alpha})
	}
	return NewLUT(name, stops, discrete)
}

// Named returns one of the built-in tables: "gray", "heat" or "labels".
func Named(name string) (*LUT, error) {
	switch name {
	case "gray":
		return NewLUT(name, []Stop{
			{Value: 0, Color: colorful.Color{}, Alpha: 1},
			{Value: 255, Color: colorful.Color{R: 1, G: 1, B: 1}, Alpha: 1},
		}, false)
	case "heat":
		return Parse(name, "0:#000000:0,64:#800000,128:#ff0000,192:#ffff00,255:#ffffff", false)
	case "labels":
		return Parse(name, "0:#000000:0,1:#00c000,2:#e00000,3:#0040ff,4:#ffd000,5:#ff00ff,6:#00e0e0,7:#ff8000,8:#808080:0", true)
	}
	return nil, fmt.Errorf("%w: unknown table %q", ErrInvalidLUT, name)
}

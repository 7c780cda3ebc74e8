// Package overlay composites a foreground image, typically a segmentation
// or probability map, over background tiles.
//
// A foreground is described by a Config: the source to read from, which
// channel to map, the lookup table (LUT) that turns samples into colors,
// the opacity of the blend and the scale of the foreground relative to the
// background. Label maps are resampled with nearest-neighbor so class
// values are never interpolated.
package overlay

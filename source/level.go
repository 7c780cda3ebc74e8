package source

import "math"

// BestLevelForDownsample returns the level whose downsample factor is
// closest to downsample. Requests finer than level 0 map to level 0 and
// requests coarser than the last level map to the last level; on a tie the
// coarser level wins.
func BestLevelForDownsample(src ImageSource, downsample float64) int {
	n := src.NumberOfLevels()
	if n <= 0 {
		return 0
	}
	first, err := src.LevelDownsample(0)
	if err != nil || downsample < first {
		return 0
	}
	for i := 1; i < n; i++ {
		cur, err := src.LevelDownsample(i)
		if err != nil {
			return i - 1
		}
		if downsample < cur {
			prev, _ := src.LevelDownsample(i - 1)
			if math.Abs(cur-downsample) > math.Abs(prev-downsample) {
				return i - 1
			}
			return i
		}
	}
	return n - 1
}

// OverviewLevel returns the coarsest level whose width and height both
// exceed tileSize. When no level is that large the last level is used.
func OverviewLevel(src ImageSource, tileSize int) int {
	last := src.NumberOfLevels() - 1
	if last < 0 {
		return 0
	}
	for i := last; i >= 0; i-- {
		w, h, err := src.LevelDimensions(i)
		if err != nil {
			continue
		}
		if w > tileSize && h > tileSize {
			return i
		}
	}
	return last
}

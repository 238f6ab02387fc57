// Package downsample implements Hisser's downsample planner and executor:
// folding a finer resolution's blocks into a coarser resolution's blocks
// via a per-metric aggregation method. Ported from
// original_source/hisser/db.py's find_blocks_to_downsample and
// downsample().
package downsample

import "github.com/hisserdb/hisser/pkg/model"

// Segment is one contiguous run of source blocks, sliced and aligned to
// newResolution, ready to be folded into one destination block.
type Segment struct {
	Start      int64
	Stop       int64
	Resolution int64 // source resolution
	Blocks     []model.BlockInfo
}

// Plan groups sorted blocks at resolution into newResolution-aligned
// segments. Blocks are grouped into contiguous runs (a gap between
// neighbors starts a new run, mirroring the original's behavior that a
// block may only contribute to the segments it's adjacent to); each run's
// span is aligned up-to-newResolution at the start and down-to-
// newResolution at the end, and dropped entirely if shorter than
// minSize*newResolution.
func Plan(blocks []model.BlockInfo, resolution, newResolution int64, minSize int) []Segment {
	if len(blocks) == 0 {
		return nil
	}

	var runs [][]model.BlockInfo
	cur := []model.BlockInfo{blocks[0]}
	for _, b := range blocks[1:] {
		last := cur[len(cur)-1]
		if b.Start == last.End {
			cur = append(cur, b)
			continue
		}
		runs = append(runs, cur)
		cur = []model.BlockInfo{b}
	}
	runs = append(runs, cur)

	var segments []Segment
	for _, run := range runs {
		start := model.AlignUp(run[0].Start, newResolution)
		stop := model.AlignDown(run[len(run)-1].End, newResolution)
		if stop <= start {
			continue
		}
		if (stop-start)/newResolution < int64(minSize) {
			continue
		}
		segments = append(segments, Segment{
			Start:      start,
			Stop:       stop,
			Resolution: resolution,
			Blocks:     run,
		})
	}
	return segments
}

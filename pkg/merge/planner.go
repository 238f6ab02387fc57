// Package merge implements Hisser's block-merge planner and executor:
// deciding which runs of adjacent blocks should be combined into one
// larger block, and performing that combination. Ported from
// original_source/hisser/db.py's find_blocks_to_merge (segment-wise
// variant) and merge().
package merge

import "github.com/hisserdb/hisser/pkg/model"

// Plan groups sorted blocks into merge segments: a new segment starts
// whenever the gap between two neighbors exceeds maxGapFactor*resolution,
// or adding the next block would make the segment span more than
// maxSize*resolution. Each returned segment has at
// least two blocks (a segment of one is left as-is, nothing to merge).
//
// Per spec.md's Open Questions, this is the segment-wise planner, not the
// older pairwise variant find_blocks_to_merge also shows in db.py.
func Plan(blocks []model.BlockInfo, resolution int64, maxGapFactor, maxSize int) [][]model.BlockInfo {
	if len(blocks) < 2 {
		return nil
	}

	var segments [][]model.BlockInfo
	cur := []model.BlockInfo{blocks[0]}
	for _, b := range blocks[1:] {
		last := cur[len(cur)-1]
		gap := b.Start - last.End
		duration := b.End - cur[0].Start
		if gap > int64(maxGapFactor)*resolution || duration > int64(maxSize)*resolution {
			segments = append(segments, cur)
			cur = []model.BlockInfo{b}
			continue
		}
		cur = append(cur, b)
	}
	segments = append(segments, cur)

	segments = applyDescendingSplit(segments, 2.0)

	out := make([][]model.BlockInfo, 0, len(segments))
	for _, s := range segments {
		if len(s) >= 2 {
			out = append(out, s)
		}
	}
	return out
}

// applyDescendingSplit implements the final-segment "descending" rule:
// a run of blocks of roughly-similar size (ratio <= maxRatio between
// neighbors) is safe to merge together; once the block-size ratio jumps
// (a clear drop from large, already-merged blocks to small, freshly
// flushed ones), only the trailing run of similarly-sized blocks is kept
// for this merge pass — merging across that boundary would combine
// blocks of very different "merge generations" and produce a result whose
// size doesn't cleanly reflect either input.
func applyDescendingSplit(segments [][]model.BlockInfo, maxRatio float64) [][]model.BlockInfo {
	if len(segments) == 0 {
		return segments
	}
	last := segments[len(segments)-1]
	if len(last) < 2 {
		return segments
	}

	splitAt := 0
	for i := len(last) - 1; i > 0; i-- {
		ratio := sizeRatio(last[i-1].Size, last[i].Size)
		if ratio > maxRatio {
			splitAt = i
			break
		}
	}

	if splitAt == 0 {
		// No clear drop found: fall back to keeping only the trailing
		// pair, if it's within ratio.
		n := len(last)
		if sizeRatio(last[n-2].Size, last[n-1].Size) <= maxRatio {
			segments[len(segments)-1] = last[n-2:]
		} else {
			segments = segments[:len(segments)-1]
		}
		return segments
	}

	segments[len(segments)-1] = last[splitAt:]
	return segments
}

func sizeRatio(a, b int) float64 {
	if a == 0 || b == 0 {
		return 1
	}
	if a < b {
		return float64(b) / float64(a)
	}
	return float64(a) / float64(b)
}

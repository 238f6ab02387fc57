// Package model holds the plain data types shared across Hisser's storage
// engine: points, resolutions, and the block/slice value types ported from
// the original implementation's db.py.
package model

import "fmt"

// Point is a single (timestamp, value) sample. NaN means "no data".
type Point struct {
	Timestamp int64
	Value     float64
}

// AlignDown rounds ts down to the nearest multiple of resolution.
func AlignDown(ts, resolution int64) int64 {
	if ts >= 0 {
		return ts / resolution * resolution
	}
	q := ts / resolution
	if ts%resolution != 0 {
		q--
	}
	return q * resolution
}

// AlignUp rounds ts up to the nearest multiple of resolution.
func AlignUp(ts, resolution int64) int64 {
	d := AlignDown(ts, resolution)
	if d == ts {
		return d
	}
	return d + resolution
}

// BlockInfo describes one immutable on-disk block: the half-open time
// range [Start, End), its resolution, and where it lives on disk.
//
// Mirrors original_source/hisser/db.py's BlockInfo namedtuple.
type BlockInfo struct {
	Start      int64
	End        int64
	Resolution int64
	Size       int // number of rows: (End-Start)/Resolution
	Path       string
}

// NewBlockInfo computes Size from Start/End/Resolution.
func NewBlockInfo(start, end, resolution int64, path string) BlockInfo {
	return BlockInfo{
		Start:      start,
		End:        end,
		Resolution: resolution,
		Size:       int((end - start) / resolution),
		Path:       path,
	}
}

// Contains reports whether ts falls within [Start, End).
func (b BlockInfo) Contains(ts int64) bool {
	return ts >= b.Start && ts < b.End
}

// Offset returns the row index of ts within the block.
func (b BlockInfo) Offset(ts int64) int {
	return int((ts - b.Start) / b.Resolution)
}

// BlockSlice is a contiguous sub-range of a BlockInfo, used to describe a
// partial read/merge/downsample window without copying block data.
//
// Mirrors original_source/hisser/db.py's BlockSlice namedtuple.
type BlockSlice struct {
	BlockInfo
	// BStart is the row offset within the parent block where this slice
	// begins (SStart==0 unless produced by Slice/SliceFrom/SliceTo).
	BStart int
}

// Slice returns the sub-slice of b covering [start, stop), clamhoused to
// the block's own bounds. Mirrors BlockInfo.slice in db.py.
func (b BlockInfo) Slice(start, stop int64) BlockSlice {
	if start < b.Start {
		start = b.Start
	}
	if stop > b.End {
		stop = b.End
	}
	if stop < start {
		stop = start
	}
	return BlockSlice{
		BlockInfo: NewBlockInfo(start, stop, b.Resolution, b.Path),
		BStart:    b.Offset(start),
	}
}

// SliceFrom returns the sub-slice starting at start through the block's end.
func (b BlockInfo) SliceFrom(start int64) BlockSlice {
	return b.Slice(start, b.End)
}

// SliceTo returns the sub-slice from the block's start through stop.
func (b BlockInfo) SliceTo(stop int64) BlockSlice {
	return b.Slice(b.Start, stop)
}

// Split splits b into [Start, ts) and [ts, End) BlockSlices. If ts falls
// outside (Start, End) one side is empty (Size==0).
func (b BlockInfo) Split(ts int64) (BlockSlice, BlockSlice) {
	return b.SliceTo(ts), b.SliceFrom(ts)
}

func (b BlockInfo) String() string {
	return fmt.Sprintf("Block(start=%d, end=%d, res=%d, path=%s)", b.Start, b.End, b.Resolution, b.Path)
}

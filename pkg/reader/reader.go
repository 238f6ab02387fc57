// Package reader stitches immutable on-disk blocks together with the live
// ingest buffer to answer fetch(names, start, stop) range queries, ported
// from original_source/hisser/db.py's Reader.fetch and generalized from
// its single hardcoded resolution to Hisser's full retention ladder.
package reader

import (
	"math"

	"github.com/hisserdb/hisser/pkg/blockstore"
	"github.com/hisserdb/hisser/pkg/buffer"
	"github.com/hisserdb/hisser/pkg/catalogue"
	"github.com/hisserdb/hisser/pkg/model"
)

// targetSize is the point count a resolution pick tries to land closest
// to (§4.9 "Resolution pick").
const targetSize = 1000

// Reader answers range reads across every configured resolution,
// choosing whichever one gives a point count closest to targetSize for
// the requested range, then overlaying the live ingest buffer when the
// chosen resolution turns out to be the raw ingest one.
type Reader struct {
	// Resolutions lists every configured resolution in seconds, finest
	// (the ingest resolution) first, index-for-index with Cats.
	Resolutions []int64
	Cats        []*catalogue.List
	// Buf is the live ingest buffer at Resolutions[0]; nil disables live
	// stitching (and the force-to-ingest-resolution override below).
	Buf *buffer.Buffer
}

// pick chooses the configured resolution whose (stop-start)/resolution
// is closest to targetSize, then forces the ingest resolution (index 0)
// if the picked read's aligned stop falls inside the live buffer's
// window — so a query overlapping the live ring reads the freshest data
// instead of a coarser, already-downsampled block.
func (r *Reader) pick(start, stop int64) int {
	best := 0
	bestDiff := math.Inf(1)
	for i, res := range r.Resolutions {
		size := float64(stop-start) / float64(res)
		diff := math.Abs(size - targetSize)
		if diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}
	if best != 0 && r.Buf != nil {
		ingestRes := r.Resolutions[0]
		aStop := model.AlignUp(stop, ingestRes)
		winStart, winEnd := r.Buf.LiveWindow()
		if aStop >= winStart && aStop < winEnd {
			best = 0
		}
	}
	return best
}

// Fetch returns the aligned start timestamp, the resolution chosen for
// the read, the names each result row corresponds to (echoed back
// 1:1 — data[i][j] is names[i]'s value at start+j*resolution, §8), and
// a NaN-filled matrix covering [start, stop) at that resolution:
// disk-block data filled in first, with live buffer data overlaid on
// top when the chosen resolution is the ingest one (the buffer is
// always the freshest source for the timestamps it covers, including
// names that have no block on disk yet).
func (r *Reader) Fetch(names []string, start, stop int64) (int64, int64, []string, [][]float64, error) {
	resIdx := r.pick(start, stop)
	res := r.Resolutions[resIdx]

	aStart := model.AlignDown(start, res)
	aStop := model.AlignUp(stop, res)
	size := int((aStop - aStart) / res)
	if size < 0 {
		size = 0
		aStop = aStart
	}

	keys := make([]blockstore.Key, len(names))
	for i, n := range names {
		keys[i] = blockstore.MakeKey(n)
	}

	result := make([][]float64, len(keys))
	for i := range result {
		row := make([]float64, size)
		for j := range row {
			row[j] = math.NaN()
		}
		result[i] = row
	}
	if size == 0 {
		return aStart, res, names, result, nil
	}

	blocks, err := r.Cats[resIdx].Blocks(false)
	if err != nil {
		return aStart, res, names, nil, err
	}

	for _, b := range blocks {
		if b.End <= aStart || b.Start >= aStop {
			continue
		}
		if err := fillFromBlock(b, keys, aStart, aStop, result); err != nil {
			return aStart, res, names, nil, err
		}
	}

	if resIdx == 0 && r.Buf != nil {
		_, bufRows := r.Buf.GetData(keys, aStart, aStop)
		for i := range keys {
			for j, v := range bufRows[i] {
				if !math.IsNaN(v) {
					result[i][j] = v
				}
			}
		}
	}

	return aStart, res, names, result, nil
}

func fillFromBlock(b model.BlockInfo, keys []blockstore.Key, start, stop int64, result [][]float64) error {
	br, err := blockstore.Open(b.Path, b)
	if err != nil {
		return err
	}
	defer br.Close()

	data, err := br.Get(keys)
	if err != nil {
		return err
	}

	qStart, qStop := b.Start, b.End
	if qStart < start {
		qStart = start
	}
	if qStop > stop {
		qStop = stop
	}

	for i, key := range keys {
		row, ok := data[key]
		if !ok {
			continue
		}
		for ts := qStart; ts < qStop; ts += b.Resolution {
			v := row[b.Offset(ts)]
			if math.IsNaN(v) {
				continue
			}
			dst := int((ts - start) / b.Resolution)
			result[i][dst] = v
		}
	}
	return nil
}

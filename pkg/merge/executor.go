package merge

import (
	"fmt"
	"math"

	"github.com/hisserdb/hisser/pkg/blockstore"
	"github.com/hisserdb/hisser/pkg/catalogue"
	"github.com/hisserdb/hisser/pkg/model"
)

// Execute merges segment (a contiguous, time-ordered run of blocks) into
// one new block written to dir, then removes the source block files and
// notifies the catalogue so readers pick up the change. Overlapping
// samples resolve with "earliest non-NaN wins" — segment[0]'s data is
// written first and never overwritten, matching merge()'s k-way union in
// db.py.
func Execute(dir string, resolution int64, segment []model.BlockInfo, cat *catalogue.List) (model.BlockInfo, error) {
	if len(segment) < 2 {
		return model.BlockInfo{}, fmt.Errorf("merge: segment must have at least two blocks")
	}

	start := segment[0].Start
	end := segment[len(segment)-1].End
	size := int((end - start) / resolution)

	rows := make(map[blockstore.Key][]float64)
	names := make(map[blockstore.Key]string)

	for _, b := range segment {
		r, err := blockstore.Open(b.Path, b)
		if err != nil {
			return model.BlockInfo{}, fmt.Errorf("merge: open %s: %w", b.Path, err)
		}
		keys, data, err := r.Dump()
		if err != nil {
			r.Close()
			return model.BlockInfo{}, fmt.Errorf("merge: dump %s: %w", b.Path, err)
		}
		sidecarNames, _ := blockstore.ReadSidecar(blockstore.SidecarPath(b.Path))
		offset := int((b.Start - start) / resolution)

		for i, key := range keys {
			row, ok := rows[key]
			if !ok {
				row = make([]float64, size)
				for j := range row {
					row[j] = math.NaN()
				}
				rows[key] = row
			}
			src := data[i]
			for j, v := range src {
				if !math.IsNaN(v) && math.IsNaN(row[offset+j]) {
					row[offset+j] = v
				}
			}
			if _, have := names[key]; !have && i < len(sidecarNames) {
				names[key] = sidecarNames[i]
			}
		}
		r.Close()
	}

	info := model.NewBlockInfo(start, end, resolution, "")
	path, err := blockstore.Write(dir, info, rows, names)
	if err != nil {
		return model.BlockInfo{}, fmt.Errorf("merge: write merged block: %w", err)
	}
	info.Path = path

	for _, b := range segment {
		if err := blockstore.Remove(b.Path); err != nil {
			return model.BlockInfo{}, fmt.Errorf("merge: remove source %s: %w", b.Path, err)
		}
	}

	if cat != nil {
		if err := cat.NotifyChanged(); err != nil {
			return model.BlockInfo{}, fmt.Errorf("merge: notify catalogue: %w", err)
		}
	}

	return info, nil
}

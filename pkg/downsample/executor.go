package downsample

import (
	"fmt"
	"math"

	"github.com/hisserdb/hisser/pkg/agg"
	"github.com/hisserdb/hisser/pkg/blockstore"
	"github.com/hisserdb/hisser/pkg/catalogue"
	"github.com/hisserdb/hisser/pkg/model"
)

// Execute assembles every metric's row at the segment's source
// resolution, folds it in windows of newResolution/resolution through
// rules (per-name aggregation method), and writes the result as a new
// block in destDir. Source blocks are left untouched — downsampling reads
// raw data but doesn't consume it; cleanup at the source resolution is
// retention's job, not downsample's.
func Execute(destDir string, newResolution int64, seg Segment, rules *agg.Rules, cat *catalogue.List) (model.BlockInfo, error) {
	windowLen := int(newResolution / seg.Resolution)
	if windowLen < 1 {
		return model.BlockInfo{}, fmt.Errorf("downsample: newResolution must be a multiple of source resolution")
	}
	srcSize := int((seg.Stop - seg.Start) / seg.Resolution)
	dstSize := srcSize / windowLen

	srcRows := make(map[blockstore.Key][]float64)
	names := make(map[blockstore.Key]string)

	for _, b := range seg.Blocks {
		r, err := blockstore.Open(b.Path, b)
		if err != nil {
			return model.BlockInfo{}, fmt.Errorf("downsample: open %s: %w", b.Path, err)
		}
		keys, data, err := r.Dump()
		if err != nil {
			r.Close()
			return model.BlockInfo{}, fmt.Errorf("downsample: dump %s: %w", b.Path, err)
		}
		sidecarNames, _ := blockstore.ReadSidecar(blockstore.SidecarPath(b.Path))

		for i, key := range keys {
			row, ok := srcRows[key]
			if !ok {
				row = make([]float64, srcSize)
				for j := range row {
					row[j] = math.NaN()
				}
				srcRows[key] = row
			}
			src := data[i]
			for j, v := range src {
				ts := b.Start + int64(j)*seg.Resolution
				if ts < seg.Start || ts >= seg.Stop {
					continue
				}
				row[(ts-seg.Start)/seg.Resolution] = v
			}
			if _, have := names[key]; !have && i < len(sidecarNames) {
				names[key] = sidecarNames[i]
			}
		}
		r.Close()
	}

	dstRows := make(map[blockstore.Key][]float64, len(srcRows))
	for key, row := range srcRows {
		method := rules.MethodFor(names[key])
		dst := make([]float64, dstSize)
		for w := 0; w < dstSize; w++ {
			dst[w] = method(row[w*windowLen : (w+1)*windowLen])
		}
		dstRows[key] = dst
	}

	info := model.NewBlockInfo(seg.Start, seg.Stop, newResolution, "")
	path, err := blockstore.Write(destDir, info, dstRows, names)
	if err != nil {
		return model.BlockInfo{}, fmt.Errorf("downsample: write block: %w", err)
	}
	info.Path = path

	if cat != nil {
		if err := cat.NotifyChanged(); err != nil {
			return model.BlockInfo{}, fmt.Errorf("downsample: notify catalogue: %w", err)
		}
	}
	return info, nil
}

package downsample

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hisserdb/hisser/pkg/agg"
	"github.com/hisserdb/hisser/pkg/blockstore"
	"github.com/hisserdb/hisser/pkg/catalogue"
	"github.com/hisserdb/hisser/pkg/model"
)

func TestPlanAlignsRunToNewResolution(t *testing.T) {
	blocks := []model.BlockInfo{
		model.NewBlockInfo(5, 1005, 10, "a"), // not aligned to 100
	}
	segments := Plan(blocks, 10, 100, 5)
	require.Len(t, segments, 1)
	require.Equal(t, int64(100), segments[0].Start)
	require.Equal(t, int64(1000), segments[0].Stop)
}

func TestExecuteFoldsTenSecondRowsIntoHundredSecondAverage(t *testing.T) {
	dir := t.TempDir()
	key := blockstore.MakeKey("metric.a")

	row := make([]float64, 100) // 100 rows cover [0,1000) at 10s
	for i := range row {
		row[i] = float64(i % 10)
	}
	info := model.NewBlockInfo(0, 1000, 10, "")
	path, err := blockstore.Write(dir, info, map[blockstore.Key][]float64{key: row},
		map[blockstore.Key]string{key: "metric.a"})
	require.NoError(t, err)
	info.Path = path

	seg := Segment{Start: 0, Stop: 1000, Resolution: 10, Blocks: []model.BlockInfo{info}}
	rules, err := agg.Parse(":avg")
	require.NoError(t, err)

	destDir := t.TempDir()
	cat := catalogue.New(destDir, 100)
	out, err := Execute(destDir, 100, seg, rules, cat)
	require.NoError(t, err)
	require.Equal(t, 10, out.Size)

	r, err := blockstore.Open(out.Path, out)
	require.NoError(t, err)
	defer r.Close()
	got, err := r.Get([]blockstore.Key{key})
	require.NoError(t, err)
	require.Equal(t, 4.5, got[key][0]) // avg(0..9) == 4.5
}

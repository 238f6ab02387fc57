package merge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hisserdb/hisser/pkg/blockstore"
	"github.com/hisserdb/hisser/pkg/catalogue"
	"github.com/hisserdb/hisser/pkg/model"
)

func TestPlanGroupsAdjacentBlocksOnly(t *testing.T) {
	blocks := []model.BlockInfo{
		model.NewBlockInfo(0, 100, 10, "a"),
		model.NewBlockInfo(100, 200, 10, "b"),
		// Large gap: next block starts far later.
		model.NewBlockInfo(10000, 10100, 10, "c"),
		model.NewBlockInfo(10100, 10200, 10, "d"),
	}
	segments := Plan(blocks, 10, 20, 3000)
	require.Len(t, segments, 2)
	require.Len(t, segments[0], 2)
	require.Len(t, segments[1], 2)
}

func TestExecuteMergesTwoAdjacentBlocks(t *testing.T) {
	dir := t.TempDir()
	key := blockstore.MakeKey("metric.a")

	infoA := model.NewBlockInfo(1000, 1020, 10, "")
	pathA, err := blockstore.Write(dir, infoA, map[blockstore.Key][]float64{
		key: {1, math.NaN()},
	}, map[blockstore.Key]string{key: "metric.a"})
	require.NoError(t, err)
	infoA.Path = pathA

	infoB := model.NewBlockInfo(1020, 1040, 10, "")
	pathB, err := blockstore.Write(dir, infoB, map[blockstore.Key][]float64{
		key: {2, 3},
	}, map[blockstore.Key]string{key: "metric.a"})
	require.NoError(t, err)
	infoB.Path = pathB

	cat := catalogue.New(dir, 10)
	merged, err := Execute(dir, 10, []model.BlockInfo{infoA, infoB}, cat)
	require.NoError(t, err)
	require.Equal(t, int64(1000), merged.Start)
	require.Equal(t, int64(1040), merged.End)

	r, err := blockstore.Open(merged.Path, merged)
	require.NoError(t, err)
	defer r.Close()
	got, err := r.Get([]blockstore.Key{key})
	require.NoError(t, err)
	row := got[key]
	require.Len(t, row, 4)
	require.Equal(t, 1.0, row[0])
	require.True(t, math.IsNaN(row[1]))
	require.Equal(t, 2.0, row[2])
	require.Equal(t, 3.0, row[3])
}

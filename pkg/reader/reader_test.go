package reader

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hisserdb/hisser/pkg/blockstore"
	"github.com/hisserdb/hisser/pkg/buffer"
	"github.com/hisserdb/hisser/pkg/catalogue"
	"github.com/hisserdb/hisser/pkg/model"
)

func TestFetchStitchesDiskAndBuffer(t *testing.T) {
	dir := t.TempDir()
	key := blockstore.MakeKey("metric.a")

	diskInfo := model.NewBlockInfo(1000, 1020, 10, "")
	_, err := blockstore.Write(dir, diskInfo, map[blockstore.Key][]float64{
		key: {10, 20},
	}, map[blockstore.Key]string{key: "metric.a"})
	require.NoError(t, err)

	cat := catalogue.NewForDir(dir, 10)
	require.NoError(t, cat.NotifyChanged())

	buf := buffer.New(10, 5, 1020)
	buf.Add(1020, "metric.a", 30)
	buf.Add(1030, "metric.a", 40)

	r := &Reader{Resolutions: []int64{10}, Cats: []*catalogue.List{cat}, Buf: buf}
	start, resolution, rnames, rows, err := r.Fetch([]string{"metric.a"}, 1000, 1040)
	require.NoError(t, err)
	require.Equal(t, int64(1000), start)
	require.Equal(t, int64(10), resolution)
	require.Equal(t, []string{"metric.a"}, rnames)
	require.Len(t, rows, 1)
	require.Equal(t, []float64{10, 20, 30, 40}, rows[0])
}

func TestFetchLeavesGapsAsNaN(t *testing.T) {
	dir := t.TempDir()
	cat := catalogue.NewForDir(dir, 10)

	r := &Reader{Resolutions: []int64{10}, Cats: []*catalogue.List{cat}}
	_, _, _, rows, err := r.Fetch([]string{"metric.a"}, 1000, 1020)
	require.NoError(t, err)
	require.True(t, math.IsNaN(rows[0][0]))
	require.True(t, math.IsNaN(rows[0][1]))
}

func TestFetchPicksCoarserResolutionForWideRange(t *testing.T) {
	rawDir, coarseDir := t.TempDir(), t.TempDir()
	rawCat := catalogue.NewForDir(rawDir, 10)
	coarseCat := catalogue.NewForDir(coarseDir, 600)

	key := blockstore.MakeKey("metric.a")
	info := model.NewBlockInfo(0, 600*2000, 600, "")
	_, err := blockstore.Write(coarseDir, info, map[blockstore.Key][]float64{
		key: make([]float64, 2000),
	}, map[blockstore.Key]string{key: "metric.a"})
	require.NoError(t, err)
	require.NoError(t, coarseCat.NotifyChanged())

	buf := buffer.New(10, 60, 0)
	r := &Reader{
		Resolutions: []int64{10, 600},
		Cats:        []*catalogue.List{rawCat, coarseCat},
		Buf:         buf,
	}

	// A 1,200,000s range is 120,000 points at 10s resolution (far from
	// the 1000-point target) but 2,000 points at 600s (much closer), and
	// its stop is well outside the live buffer's window, so the coarse
	// resolution should win outright.
	_, resolution, _, _, err := r.Fetch([]string{"metric.a"}, 0, 600*2000)
	require.NoError(t, err)
	require.Equal(t, int64(600), resolution)
}

func TestFetchForcesIngestResolutionInsideLiveWindow(t *testing.T) {
	rawDir, coarseDir := t.TempDir(), t.TempDir()
	rawCat := catalogue.NewForDir(rawDir, 10)
	coarseCat := catalogue.NewForDir(coarseDir, 600)

	now := int64(600_000)
	buf := buffer.New(10, 60, now)
	r := &Reader{
		Resolutions: []int64{10, 600},
		Cats:        []*catalogue.List{rawCat, coarseCat},
		Buf:         buf,
	}

	// By point count alone, 600s (1,000 points) beats 10s (60,000
	// points) for this range — but the range's stop lands inside the
	// live buffer's window, so the ingest resolution must win anyway.
	_, resolution, _, _, err := r.Fetch([]string{"metric.a"}, 0, now)
	require.NoError(t, err)
	require.Equal(t, int64(10), resolution)
}

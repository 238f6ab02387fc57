package retention

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hisserdb/hisser/pkg/blockstore"
	"github.com/hisserdb/hisser/pkg/catalogue"
	"github.com/hisserdb/hisser/pkg/model"
)

func TestCleanupDeletesExpiredKeepsCurrent(t *testing.T) {
	dir := t.TempDir()
	key := blockstore.MakeKey("metric.a")

	old := model.NewBlockInfo(0, 1000, 10, "")
	_, err := blockstore.Write(dir, old, map[blockstore.Key][]float64{key: make([]float64, 100)},
		map[blockstore.Key]string{key: "metric.a"})
	require.NoError(t, err)

	kept := model.NewBlockInfo(1000, 1500, 10, "")
	_, err = blockstore.Write(dir, kept, map[blockstore.Key][]float64{key: make([]float64, 50)},
		map[blockstore.Key]string{key: "metric.a"})
	require.NoError(t, err)

	cat := catalogue.NewForDir(dir, 10)

	removed, err := Cleanup(cat, 1000)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	require.Equal(t, int64(0), removed[0].Start)

	blocks, err := cat.Blocks(true)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, int64(1000), blocks[0].Start)
}

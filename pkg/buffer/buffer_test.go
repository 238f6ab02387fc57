package buffer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hisserdb/hisser/pkg/blockstore"
)

func TestAddRejectsPastAndFuturePoints(t *testing.T) {
	b := New(10, 5, 1000) // R=10, F=5 -> futureTolerance=2, ringSize=15

	b.Add(995, "metric.a", 1) // before lastFlush(1000) -> past
	b.Add(1000, "metric.a", 1)
	b.Add(1000+15*10, "metric.a", 1) // offset==ringSize -> future

	snap := b.Snapshot()
	assert.Equal(t, int64(1), snap.PastPoints)
	assert.Equal(t, int64(1), snap.FuturePoints)
	assert.Equal(t, int64(1), snap.ReceivedPoints)
}

func TestTickFlushesOnceFlushSizeRowsAge(t *testing.T) {
	b := New(10, 5, 1000)

	b.Add(1000, "metric.a", 1)
	b.Add(1010, "metric.a", 2)
	b.Add(1020, "metric.a", 3)

	// Not enough rows have aged past the future-tolerance window yet
	// (now_size=6, size=6-futureTolerance(2)=4 < flushSize(5)). The size
	// bucket changing from 0 to 4 drains the new-name backlog here.
	res, names := b.Tick(false, 1000+60)
	require.Nil(t, res)
	assert.Contains(t, names, "metric.a")

	// now_size=7, size=7-2=5 >= flushSize(5) -> flush exactly flushSize rows.
	res, _ = b.Tick(false, 1000+70)
	require.NotNil(t, res)
	assert.Equal(t, int64(1000), res.Start)
	assert.Equal(t, 5, res.Rows)

	row := res.Data[blockstore.MakeKey("metric.a")]
	require.Len(t, row, 5)
	assert.Equal(t, 1.0, row[0])
	assert.Equal(t, 2.0, row[1])
	assert.Equal(t, 3.0, row[2])
	assert.True(t, math.IsNaN(row[3]))
}

func TestForceTickDrainsWhateverIsSafelyFlushable(t *testing.T) {
	b := New(10, 5, 1000)
	b.Add(1000, "metric.a", 42)

	res, _ := b.Tick(true, 1020)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Rows)
	row := res.Data[blockstore.MakeKey("metric.a")]
	assert.Equal(t, 42.0, row[0])
	assert.True(t, math.IsNaN(row[1]))
}

func TestGetDataStitchesLiveWindow(t *testing.T) {
	b := New(10, 5, 1000)
	b.Add(1000, "metric.a", 7)
	b.Add(1010, "metric.a", 8)

	start, rows := b.GetData([]Key{blockstore.MakeKey("metric.a")}, 1000, 1030)
	assert.Equal(t, int64(1000), start)
	require.Len(t, rows, 1)
	require.Len(t, rows[0], 3)
	assert.Equal(t, 7.0, rows[0][0])
	assert.Equal(t, 8.0, rows[0][1])
	assert.True(t, math.IsNaN(rows[0][2]))
}

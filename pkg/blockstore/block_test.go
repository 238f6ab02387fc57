package blockstore

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hisserdb/hisser/pkg/model"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	info := model.NewBlockInfo(1000, 1100, 10, "")

	kKnown := MakeKey("known.metric")
	rows := map[Key][]float64{
		kKnown: {1, 2, math.NaN(), 4},
	}
	names := map[Key]string{kKnown: "known.metric"}

	path, err := Write(dir, info, rows, names)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "1000.10.hdb"), path)

	r, err := Open(path, info)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Get([]Key{kKnown, MakeKey("missing.metric")})
	require.NoError(t, err)
	require.Contains(t, got, kKnown)
	require.NotContains(t, got, MakeKey("missing.metric"))
	require.Equal(t, 1.0, got[kKnown][0])
	require.True(t, math.IsNaN(got[kKnown][2]))

	sidecarNames, err := ReadSidecar(SidecarPath(path))
	require.NoError(t, err)
	require.Equal(t, []string{"known.metric"}, sidecarNames)
}

func TestParseFileName(t *testing.T) {
	info, ok := ParseFileName("1000.10.hdb", 10)
	require.True(t, ok)
	require.Equal(t, int64(1000), info.Start)
	require.Equal(t, int64(1100), info.End)
	require.Equal(t, 10, info.Size)

	_, ok = ParseFileName("blocks.state", 10)
	require.False(t, ok)

	_, ok = ParseFileName("notanumber.10.hdb", 10)
	require.False(t, ok)
}

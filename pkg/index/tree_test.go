package index

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindMetricsExactLeaf(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("collectd.host1.cpu"))
	require.NoError(t, idx.Add("collectd.host1.cpu.idle"))
	require.NoError(t, idx.Add("collectd.host2.cpu"))

	names, err := idx.FindMetrics("collectd.*.cpu", true)
	require.NoError(t, err)
	var got []string
	for _, e := range names {
		got = append(got, e.Name)
		require.True(t, e.IsLeaf)
	}
	sort.Strings(got)
	require.Equal(t, []string{"collectd.host1.cpu", "collectd.host2.cpu"}, got)
}

func TestFindTreeBranchAndLeaf(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("collectd.host1.cpu"))
	require.NoError(t, idx.Add("collectd.host1.disk"))
	require.NoError(t, idx.Add("collectd.host1.cpu.idle"))
	require.NoError(t, idx.Add("collectd.host2.mem"))

	entries, err := idx.FindTree("collectd.host1.*")
	require.NoError(t, err)
	byName := make(map[string]bool)
	for _, e := range entries {
		byName[e.Name] = e.IsLeaf
	}
	// "collectd.host1.cpu" collapses onto the same 3-segment prefix as
	// "collectd.host1.cpu.idle", so its leaf verdict is whichever of the
	// two nameIDs sorts last; "collectd.host1.disk" has nothing deeper
	// sharing its prefix, so it stays a leaf.
	require.Equal(t, map[string]bool{"collectd.host1.cpu": false, "collectd.host1.disk": true}, byName)
}

func TestFindTreeExactSegment(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("collectd.host1.cpu"))
	require.NoError(t, idx.Add("collectd.host1.cpu.idle"))

	entries, err := idx.FindTree("collectd.host1.cpu")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "collectd.host1.cpu", entries[0].Name)
	require.False(t, entries[0].IsLeaf)
}

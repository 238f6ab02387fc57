package index

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "metric.index"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestTagEqualityIntersection(t *testing.T) {
	idx := openTestIndex(t)

	require.NoError(t, idx.Add("cpu;dc=test;host=alpha"))
	require.NoError(t, idx.Add("cpu;dc=test;host=beta"))
	require.NoError(t, idx.Add("cpu;dc=prod;host=alpha"))

	names, err := idx.Query([]Matcher{
		{Tag: "dc", Op: OpEqual, Value: "test"},
		{Tag: "host", Op: OpEqual, Value: "alpha"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"cpu;dc=test;host=alpha"}, names)
}

func TestTagNotEqual(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("cpu;dc=test"))
	require.NoError(t, idx.Add("cpu;dc=prod"))
	require.NoError(t, idx.Add("cpu;dc=staging"))

	names, err := idx.Query([]Matcher{{Tag: "dc", Op: OpNotEqual, Value: "prod"}})
	require.NoError(t, err)
	sort.Strings(names)
	require.Equal(t, []string{"cpu;dc=staging", "cpu;dc=test"}, names)
}

func TestGlobPrefixMatch(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("bogus.metric;name=boX"))
	require.NoError(t, idx.Add("boring.metric;name=boY"))
	require.NoError(t, idx.Add("other.metric;name=zzz"))

	names, err := idx.Query([]Matcher{{Tag: "name", Op: OpMatch, Value: "!bo*"}})
	require.NoError(t, err)
	sort.Strings(names)
	require.Equal(t, []string{"bogus.metric;name=boX", "boring.metric;name=boY"}, names)
}

func TestDottedNameSegmentQuery(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("servers.web01.cpu"))
	require.NoError(t, idx.Add("servers.web02.cpu"))
	require.NoError(t, idx.Add("servers.web01.mem"))

	names, err := idx.Query([]Matcher{
		{Tag: ".0", Op: OpEqual, Value: "servers"},
		{Tag: ".1", Op: OpEqual, Value: "web01"},
	})
	require.NoError(t, err)
	sort.Strings(names)
	require.Equal(t, []string{"servers.web01.cpu", "servers.web01.mem"}, names)
}

func TestAddIsIdempotent(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Add("cpu;dc=test"))
	require.NoError(t, idx.Add("cpu;dc=test"))

	names, err := idx.Dump()
	require.NoError(t, err)
	require.Len(t, names, 1)
}

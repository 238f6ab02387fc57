package catalogue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRescanSkipsUnparsableNames(t *testing.T) {
	dataDir := t.TempDir()
	l := New(dataDir, 10)
	require.NoError(t, os.MkdirAll(l.Dir(), 0o755))

	for _, name := range []string{"1000.10.hdb", "garbage.txt", "1000.10.hdb.tmp"} {
		require.NoError(t, os.WriteFile(filepath.Join(l.Dir(), name), nil, 0o644))
	}

	blocks, err := l.Blocks(true)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, int64(1000), blocks[0].Start)
}

func TestBlocksCachesUntilNotified(t *testing.T) {
	dataDir := t.TempDir()
	l := New(dataDir, 10)
	require.NoError(t, os.MkdirAll(l.Dir(), 0o755))

	blocks, err := l.Blocks(false)
	require.NoError(t, err)
	require.Len(t, blocks, 0)

	require.NoError(t, os.WriteFile(filepath.Join(l.Dir(), "1000.10.hdb"), nil, 0o644))
	require.NoError(t, l.NotifyChanged())

	blocks, err = l.Blocks(false)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
}

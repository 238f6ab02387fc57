package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/hisserdb/hisser/pkg/blockstore"
	"github.com/hisserdb/hisser/pkg/model"
)

func TestIndexBackupRoundTrips(t *testing.T) {
	src := filepath.Join(t.TempDir(), "metric.index")
	db, err := bbolt.Open(src, 0o644, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte("data"))
		if err != nil {
			return err
		}
		return b.Put([]byte("k"), []byte("v"))
	}))
	require.NoError(t, db.Close())

	dest := filepath.Join(t.TempDir(), "backup.index")
	require.NoError(t, Index(src, dest))

	copied, err := bbolt.Open(dest, 0o644, &bbolt.Options{ReadOnly: true})
	require.NoError(t, err)
	defer copied.Close()
	require.NoError(t, copied.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte("data")).Get([]byte("k"))
		require.Equal(t, "v", string(v))
		return nil
	}))
}

func TestBlocksBackupCopiesFiles(t *testing.T) {
	srcDir := t.TempDir()
	key := blockstore.MakeKey("metric.a")
	info := model.NewBlockInfo(0, 10, 10, "")
	_, err := blockstore.Write(srcDir, info, map[blockstore.Key][]float64{key: {1}},
		map[blockstore.Key]string{key: "metric.a"})
	require.NoError(t, err)

	destDir := filepath.Join(t.TempDir(), "dest")
	require.NoError(t, Blocks(srcDir, destDir))

	_, err = os.Stat(filepath.Join(destDir, "0.1.hdb"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(destDir, "0.1.hdb.names"))
	require.NoError(t, err)
}

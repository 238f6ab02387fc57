// Package backup implements Hisser's hot backup: a consistent copy of the
// metric index (via bbolt's MVCC snapshot) plus a copy of every block
// file, driven by the "backup" CLI command. Ported from
// original_source/hisser/cli.py's backup command, which uses LMDB's
// env.copyfd; bbolt's Tx.WriteTo is the direct analog for the index file.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

// Index hot-copies a bbolt-backed file (the metric index, or in principle
// any single bbolt database) to destPath via a read-only transaction, so
// concurrent writers are never blocked and the backup is always a
// point-in-time-consistent snapshot.
func Index(srcPath, destPath string) (err error) {
	db, err := bbolt.Open(srcPath, 0o644, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("backup: open %s: %w", srcPath, err)
	}
	defer db.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
	}()

	return db.View(func(tx *bbolt.Tx) error {
		_, err := tx.WriteTo(f)
		return err
	})
}

// Blocks copies every regular file under srcDir (block files and their
// name sidecars) into destDir, preserving relative paths. Block files are
// never mutated after creation, so a plain file copy is already
// consistent — no snapshotting is needed the way it is for the index.
func Blocks(srcDir, destDir string) error {
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(destDir, rel)
		if info.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		return copyFile(path, dest)
	})
}

func copyFile(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		cerr := out.Close()
		if err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

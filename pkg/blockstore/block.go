// Package blockstore implements Hisser's immutable on-disk block files.
// Each block is a single bbolt database holding one bucket ("data") keyed
// by a 16-byte metric digest (see key.go), whose value is a resolution-row
// array of float64 samples. A block is always written to a temp path and
// atomically renamed into place, so a reader never observes a half-written
// block — the Go analog of original_source/hisser/db.py's new_block.
package blockstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/hisserdb/hisser/pkg/model"
)

var dataBucket = []byte("data")

// FileName returns the canonical on-disk filename for a block, matching
// the original's "{start}.{size}.hdb" convention.
func FileName(info model.BlockInfo) string {
	return fmt.Sprintf("%d.%d.hdb", info.Start, info.Size)
}

// encodeRow serializes row's float64 samples to bytes as given; it does
// not pad or truncate the row to the block's size.
func encodeRow(row []float64) []byte {
	buf := make([]byte, len(row)*8)
	for i, v := range row {
		binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeRow(buf []byte) []float64 {
	row := make([]float64, len(buf)/8)
	for i := range row {
		row[i] = math.Float64frombits(binary.BigEndian.Uint64(buf[i*8:]))
	}
	return row
}

// Write creates a new, immutable block file at dir for info, containing
// rows (digest -> size-length float64 row) and the name of each digest
// (for the sidecar). The write is atomic: data lands at a .tmp path and is
// renamed into place only once fully committed and fsynced.
func Write(dir string, info model.BlockInfo, rows map[Key][]float64, names map[Key]string) (path string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	finalPath := filepath.Join(dir, FileName(info))
	tmpPath := finalPath + ".tmp"
	_ = os.Remove(tmpPath)

	db, err := bbolt.Open(tmpPath, 0o644, nil)
	if err != nil {
		return "", fmt.Errorf("blockstore: open tmp block: %w", err)
	}

	keys := make([]Key, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(dataBucket)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Put(k[:], encodeRow(rows[k])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("blockstore: write block: %w", err)
	}
	if err := db.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("blockstore: close tmp block: %w", err)
	}

	orderedNames := make([]string, len(keys))
	for i, k := range keys {
		orderedNames[i] = names[k]
	}
	if err := WriteSidecar(SidecarPath(finalPath), orderedNames); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("blockstore: write sidecar: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("blockstore: commit block: %w", err)
	}
	return finalPath, nil
}

// Reader provides read-only access to a committed block file.
type Reader struct {
	db   *bbolt.DB
	Info model.BlockInfo
}

// Open opens the block file at path for reading. info must describe the
// same block (callers get this from the catalogue, which parses it from
// the filename).
func Open(path string, info model.BlockInfo) (*Reader, error) {
	db, err := bbolt.Open(path, 0o644, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("blockstore: open %s: %w", path, err)
	}
	return &Reader{db: db, Info: info}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Get returns the row for each requested key that exists in the block;
// keys absent from the block are omitted from the result.
func (r *Reader) Get(keys []Key) (map[Key][]float64, error) {
	result := make(map[Key][]float64, len(keys))
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(dataBucket)
		if b == nil {
			return nil
		}
		for _, k := range keys {
			if v := b.Get(k[:]); v != nil {
				row := make([]byte, len(v))
				copy(row, v)
				result[k] = decodeRow(row)
			}
		}
		return nil
	})
	return result, err
}

// Dump returns every (key, row) pair in the block in key order, used by
// the merge executor and the dump/dump-name-block CLI commands.
func (r *Reader) Dump() ([]Key, [][]float64, error) {
	var keys []Key
	var rows [][]float64
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(dataBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var key Key
			copy(key[:], k)
			keys = append(keys, key)
			row := make([]byte, len(v))
			copy(row, v)
			rows = append(rows, decodeRow(row))
			return nil
		})
	})
	return keys, rows, err
}

// Remove deletes the block file and its sidecar.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(SidecarPath(path)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

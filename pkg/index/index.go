// Package index implements Hisser's metric index: a hierarchical+tag
// lookup from a query (dotted-path segments and/or tag predicates) to the
// set of metric names that satisfy it, ported from
// original_source/hisser/metrics.py's MetricIndex.
//
// The original stores six logical LMDB sub-databases, three of them
// dupsort (multi-value-per-key). bbolt has no native dupsort, so each
// dupsort relationship is emulated with a composite key (the fixed-width
// concatenation of both parts) inside one ordered bucket and a prefix
// scan via Cursor.Seek — the same idiom pkg/storage/badger/badger.go uses
// for its own composite series keys.
package index

import (
	"encoding/binary"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/hisserdb/hisser/pkg/blockstore"
)

var (
	bucketTagValueToID = []byte("tagvalue_tagid")  // "tag\x00value" -> tagID
	bucketIDToTagValue = []byte("tagid_tagvalue")  // tagID -> "tag\x00value"
	bucketTagIDNameIDs = []byte("tagid_nameids")   // tagID(4)++nameID(4) -> ()
	bucketNameIDTagIDs = []byte("nameid_tagids")   // nameID -> concatenated tagIDs
	bucketNameIDToName = []byte("nameid_name")     // nameID(4) -> name
	bucketNameHash     = []byte("namehash")        // xxh64(name)(8) -> nameID(4)
	bucketCounters     = []byte("counters")        // "last_name_id"/"last_tag_id" -> uint32
)

var allBuckets = [][]byte{
	bucketTagValueToID, bucketIDToTagValue, bucketTagIDNameIDs,
	bucketNameIDTagIDs, bucketNameIDToName, bucketNameHash, bucketCounters,
}

// Index is the open metric index for one Hisser instance.
type Index struct {
	db *bbolt.DB
	mu sync.Mutex // serializes Add; Query only reads
}

// Open opens (creating if absent) the metric index file at path.
func Open(path string) (*Index, error) {
	db, err := bbolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database file.
func (idx *Index) Close() error { return idx.db.Close() }

func tagValueKey(tag, value string) []byte {
	return append(append([]byte(tag), 0), []byte(value)...)
}

func splitTagValueKey(key []byte) (tag, value string) {
	for i, b := range key {
		if b == 0 {
			return string(key[:i]), string(key[i+1:])
		}
	}
	return string(key), ""
}

func u32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func parseU32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

func nextCounter(tx *bbolt.Tx, name string) (uint32, error) {
	b := tx.Bucket(bucketCounters)
	cur := uint32(0)
	if v := b.Get([]byte(name)); v != nil {
		cur = parseU32(v)
	}
	cur++
	return cur, b.Put([]byte(name), u32(cur))
}

// internTagID returns the tagID for (tag, value), allocating one if this
// is the first time this index has seen that pair.
func internTagID(tx *bbolt.Tx, tag, value string) (uint32, error) {
	tv := tx.Bucket(bucketTagValueToID)
	key := tagValueKey(tag, value)
	if v := tv.Get(key); v != nil {
		return parseU32(v), nil
	}
	id, err := nextCounter(tx, "last_tag_id")
	if err != nil {
		return 0, err
	}
	if err := tv.Put(key, u32(id)); err != nil {
		return 0, err
	}
	if err := tx.Bucket(bucketIDToTagValue).Put(u32(id), key); err != nil {
		return 0, err
	}
	return id, nil
}

// Add indexes name if it hasn't been seen before; a no-op for already-
// known names, mirroring MetricIndex.add's name_hash presence check.
func (idx *Index) Add(name string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := blockstore.MakeKey(name)
	hashKey := key[8:] // the xxh64 half, used as the presence key

	return idx.db.Update(func(tx *bbolt.Tx) error {
		nh := tx.Bucket(bucketNameHash)
		if nh.Get(hashKey) != nil {
			return nil
		}

		nameID, err := nextCounter(tx, "last_name_id")
		if err != nil {
			return err
		}

		pairs := SplitName(name)
		tagIDs := make([]byte, 0, len(pairs)*4)
		tagIDNameIDs := tx.Bucket(bucketTagIDNameIDs)
		for _, p := range pairs {
			tagID, err := internTagID(tx, p.Tag, p.Value)
			if err != nil {
				return err
			}
			tagIDs = append(tagIDs, u32(tagID)...)
			composite := append(u32(tagID), u32(nameID)...)
			if err := tagIDNameIDs.Put(composite, nil); err != nil {
				return err
			}
		}

		if err := tx.Bucket(bucketNameIDTagIDs).Put(u32(nameID), tagIDs); err != nil {
			return err
		}
		if err := tx.Bucket(bucketNameIDToName).Put(u32(nameID), []byte(name)); err != nil {
			return err
		}
		return nh.Put(hashKey, u32(nameID))
	})
}

// nameIDsForTagID returns every nameID associated with tagID, in sorted
// order (bbolt's cursor already iterates keys in byte order, so a prefix
// scan of the composite tagID++nameID key naturally yields them sorted by
// nameID too).
func (idx *Index) nameIDsForTagID(tx *bbolt.Tx, tagID uint32) []uint32 {
	c := tx.Bucket(bucketTagIDNameIDs).Cursor()
	prefix := u32(tagID)
	var ids []uint32
	for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
		ids = append(ids, parseU32(k[4:]))
	}
	return ids
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

// valuesForTag enumerates every (value, tagID) pair interned for tag.
func (idx *Index) valuesForTag(tx *bbolt.Tx, tag string) map[string]uint32 {
	c := tx.Bucket(bucketTagValueToID).Cursor()
	prefix := append([]byte(tag), 0)
	out := make(map[string]uint32)
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		_, value := splitTagValueKey(k)
		out[value] = parseU32(v)
	}
	return out
}

// NameByID resolves a nameID back to its metric name, for dump-index.
func (idx *Index) NameByID(id uint32) (string, error) {
	var name string
	err := idx.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketNameIDToName).Get(u32(id))
		if v != nil {
			name = string(v)
		}
		return nil
	})
	return name, err
}

// Dump returns every indexed metric name, for the dump-index CLI command.
func (idx *Index) Dump() ([]string, error) {
	var names []string
	err := idx.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNameIDToName).ForEach(func(_, v []byte) error {
			names = append(names, string(v))
			return nil
		})
	})
	return names, err
}

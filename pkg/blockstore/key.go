package blockstore

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// KeySize is the width of a digest key: 8 bytes of the metric name
// (zero-padded/truncated) followed by 8 bytes of its xxh64 hash.
//
// Grounded on pkg/storage/badger/badger.go's fixed-width hashed-key idiom;
// kept at 64 bits of hash per spec.md's Open Questions (a greenfield port
// has no reason to widen to xxh128).
const KeySize = 16

// Key is the fixed-width digest key a metric name encodes to inside a
// block file.
type Key [KeySize]byte

// MakeKey builds the digest key for name.
func MakeKey(name string) Key {
	var k Key
	n := copy(k[:8], name)
	for ; n < 8; n++ {
		k[n] = 0
	}
	h := xxhash.Sum64String(name)
	binary.BigEndian.PutUint64(k[8:], h)
	return k
}

// Less reports whether a sorts before b, the ordering blocks are stored
// and merged in.
func (k Key) Less(other Key) bool {
	for i := range k {
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}
	return false
}

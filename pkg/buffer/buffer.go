// Package buffer implements Hisser's in-memory ingest ring: a mirror-
// doubled ring of per-metric rows that absorbs incoming points until
// they're old enough to flush to an immutable block, ported from
// original_source/hisser/buffer.py.
//
// Unlike the original's single dense matrix indexed by a name->row-index
// map (which grows a row via doubling as new names arrive), this port
// keeps one fixed-size mirror-doubled chunk per metric digest in a map.
// That sidesteps the matrix-growth bookkeeping entirely — a new metric
// just gets a new chunk — at the cost of one map lookup per Add, a
// trade the original's author would recognize as the obvious Go
// rendering of the same idea.
package buffer

import (
	"math"
	"sync"

	"github.com/hisserdb/hisser/pkg/blockstore"
	"github.com/hisserdb/hisser/pkg/model"
)

// Key identifies a metric inside the buffer; shared with blockstore so a
// flushed chunk's key lines up directly with a block's digest key.
type Key = blockstore.Key

// FlushResult is one tick's worth of rows ready to become a new block.
type FlushResult struct {
	Start      int64
	Resolution int64
	Rows       int
	Data       map[Key][]float64
	Names      map[Key]string
}

// Buffer is the live ingest ring for one resolution. Safe for concurrent
// use: Add/Tick take the write lock, GetData/Snapshot take the read lock,
// matching the original's single RLock-guarded numpy buffer.
type Buffer struct {
	mu sync.RWMutex

	resolution      int64
	flushSize       int // F
	futureTolerance int // F/2
	ringSize        int // S = 3F
	reservation     int // F + futureTolerance
	compactRatio    float64

	lastFlush int64
	ringStart int
	lastSize  int64

	chunks   map[Key]*chunk
	newNames []string
	seen     map[Key]struct{}

	counters Counters
}

// New creates a Buffer anchored so that position 0 corresponds to
// startTs (already aligned to resolution by the caller).
func New(resolution int64, flushSize int, startTs int64) *Buffer {
	if flushSize < 2 {
		flushSize = 2
	}
	futureTolerance := flushSize / 2
	ringSize := flushSize * 3
	return &Buffer{
		resolution:      resolution,
		flushSize:       flushSize,
		futureTolerance: futureTolerance,
		ringSize:        ringSize,
		reservation:     flushSize + futureTolerance,
		compactRatio:    2.0,
		lastFlush:       model.AlignDown(startTs, resolution),
		chunks:          make(map[Key]*chunk),
		seen:            make(map[Key]struct{}),
	}
}

// Resolution returns the resolution this buffer rings at.
func (b *Buffer) Resolution() int64 { return b.resolution }

// SetCompactRatio overrides the chunk-compaction threshold New defaults to
// (2.0): trim only reclaims empty chunks once len(chunks)/nonEmpty exceeds
// this ratio, so operators with very high metric churn can compact more
// eagerly via pkg/config's CompactRatio.
func (b *Buffer) SetCompactRatio(ratio float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.compactRatio = ratio
}

// LastFlush returns the timestamp ring position 0 currently maps to.
func (b *Buffer) LastFlush() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastFlush
}

// Add ingests one point. Points outside [lastFlush, lastFlush+ringSize*R)
// are rejected silently, bumping PastPoints/FuturePoints rather than
// erroring — the point simply arrived too late or too far ahead to have a
// slot, which is routine in a Carbon ingest stream.
func (b *Buffer) Add(ts int64, name string, value float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	aligned := model.AlignDown(ts, b.resolution)
	offset := (aligned - b.lastFlush) / b.resolution
	if offset < 0 {
		b.counters.PastPoints++
		return
	}
	if offset >= int64(b.ringSize) {
		b.counters.FuturePoints++
		return
	}

	key := blockstore.MakeKey(name)
	c, ok := b.chunks[key]
	if !ok {
		c = newChunk(b.ringSize, name)
		b.chunks[key] = c
		if _, seen := b.seen[key]; !seen {
			b.seen[key] = struct{}{}
			b.newNames = append(b.newNames, name)
		}
	}
	abs := (b.ringStart + int(offset)) % b.ringSize
	c.set(abs, value)
	b.counters.ReceivedPoints++
}

// Tick advances buffer bookkeeping for the current wall-clock time now,
// and flushes a block's worth of rows when one is due. It mirrors
// Buffer.tick's force/size branching from buffer.py: forced ticks (used
// at shutdown) drain whatever is safely flushable; ordinary ticks only
// flush once a full flushSize of rows has aged past the future-tolerance
// window.
func (b *Buffer) Tick(force bool, now int64) (*FlushResult, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	nowSize := (now - b.lastFlush) / b.resolution
	size := nowSize - int64(b.futureTolerance)

	var drained []string
	if size != b.lastSize {
		b.trim(now)
		b.lastSize = size
		drained = b.newNames
		b.newNames = nil
	}

	var rows int
	switch {
	case force && nowSize > 0:
		rows = int(nowSize)
		if rows > b.reservation {
			rows = b.reservation
		}
	case size >= int64(b.flushSize):
		rows = b.flushSize
	default:
		return nil, drained
	}
	if rows <= 0 {
		return nil, drained
	}

	return b.flush(rows), drained
}

// trim drops the chunks of metrics with no data left in the ring once
// len(chunks)/nonEmpty exceeds compactRatio, mirroring Buffer.compact.
// It does not clear any samples itself: flush clears the rows it retires.
func (b *Buffer) trim(now int64) {
	if len(b.chunks) == 0 {
		return
	}
	nonEmpty := 0
	for _, c := range b.chunks {
		if !c.empty() {
			nonEmpty++
		}
	}
	if nonEmpty > 0 && float64(len(b.chunks))/float64(nonEmpty) <= b.compactRatio {
		return
	}
	for key, c := range b.chunks {
		if c.empty() {
			delete(b.chunks, key)
		}
	}
}

// flush copies out `rows` worth of samples for every metric, advances the
// ring past them, and clears the retired window so it doesn't leak stale
// values the next time the ring wraps around.
func (b *Buffer) flush(rows int) *FlushResult {
	data := make(map[Key][]float64, len(b.chunks))
	names := make(map[Key]string, len(b.chunks))
	for key, c := range b.chunks {
		data[key] = c.window(b.ringStart, rows)
		names[key] = c.name
	}
	for _, c := range b.chunks {
		c.clear(b.ringStart, rows)
	}

	result := &FlushResult{
		Start:      b.lastFlush,
		Resolution: b.resolution,
		Rows:       rows,
		Data:       data,
		Names:      names,
	}

	b.ringStart = (b.ringStart + rows) % b.ringSize
	b.lastFlush += int64(rows) * b.resolution
	b.counters.FlushedPoints += int64(rows) * int64(len(data))
	return result
}

// LiveWindow returns the timestamp range [start, end) the live ring
// currently covers, the same range GetData clamps reads to. A reader
// decides whether a query's aligned stop falls inside this window to
// know whether the live buffer (rather than just on-disk blocks) can
// answer it.
func (b *Buffer) LiveWindow() (start, end int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastFlush, b.lastFlush + int64(b.ringSize)*b.resolution
}

// GetData reads the live window [start, stop) for keys directly out of
// the ring, for the reader to stitch onto disk-block data. Rows fall back
// to NaN both for keys this buffer has never seen and for the portion of
// the window outside [lastFlush, lastFlush+ringSize*R).
func (b *Buffer) GetData(keys []Key, start, stop int64) (int64, [][]float64) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	start = model.AlignDown(start, b.resolution)
	stop = model.AlignUp(stop, b.resolution)
	size := int((stop - start) / b.resolution)

	out := make([][]float64, len(keys))
	for i := range out {
		row := make([]float64, size)
		for j := range row {
			row[j] = math.NaN()
		}
		out[i] = row
	}

	rangeStart := b.lastFlush
	rangeEnd := b.lastFlush + int64(b.ringSize)*b.resolution

	for i, key := range keys {
		c, ok := b.chunks[key]
		if !ok {
			continue
		}
		for j := 0; j < size; j++ {
			ts := start + int64(j)*b.resolution
			if ts < rangeStart || ts >= rangeEnd {
				continue
			}
			offset := int((ts - rangeStart) / b.resolution)
			abs := (b.ringStart + offset) % b.ringSize
			out[i][j] = c.data[abs]
		}
	}
	return start, out
}

// Snapshot returns a copy of the current ingest counters.
func (b *Buffer) Snapshot() Counters {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counters
}

// Package catalogue maintains the cached list of immutable block files on
// disk for one resolution, rescanning only when a "blocks.state" touch
// file's mtime changes. Ported from original_source/hisser/db.py's
// BlockList.
package catalogue

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hisserdb/hisser/pkg/blockstore"
	"github.com/hisserdb/hisser/pkg/diskusage"
	"github.com/hisserdb/hisser/pkg/model"
)

const stateFileName = "blocks.state"

// List caches the sorted block list for one resolution directory.
type List struct {
	dir        string
	resolution int64

	mu        sync.Mutex
	blocks    []model.BlockInfo
	lastState time.Time
}

// New returns a List for resolution's directory under dataDir, e.g.
// "<dataDir>/<resolution>s/".
func New(dataDir string, resolution int64) *List {
	dir := filepath.Join(dataDir, ResolutionDirName(resolution))
	return &List{dir: dir, resolution: resolution}
}

// ResolutionDirName returns the subdirectory name for a resolution, in
// seconds, e.g. "10s".
func ResolutionDirName(resolution int64) string {
	return strconv.FormatInt(resolution, 10) + "s"
}

// NewForDir returns a List that watches dir directly, bypassing the
// "<dataDir>/<resolution>s" convention New applies — used when a caller
// already has a concrete block directory (the tests do).
func NewForDir(dir string, resolution int64) *List {
	return &List{dir: dir, resolution: resolution}
}

// Dir returns the directory this list watches.
func (l *List) Dir() string { return l.dir }

func (l *List) statePath() string {
	return filepath.Join(l.dir, stateFileName)
}

// stateMtime returns the touch file's mtime, or the zero time if absent.
func (l *List) stateMtime() time.Time {
	fi, err := os.Stat(l.statePath())
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}

// Blocks returns the cached block list, rescanning the directory first if
// the state touch file changed since the last scan (or if refresh is
// true), mirroring BlockList.blocks(refresh).
func (l *List) Blocks(refresh bool) ([]model.BlockInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.stateMtime()
	if refresh || !current.Equal(l.lastState) || l.blocks == nil {
		if err := l.rescan(); err != nil {
			return nil, err
		}
		l.lastState = current
	}
	out := make([]model.BlockInfo, len(l.blocks))
	copy(out, l.blocks)
	return out, nil
}

func (l *List) rescan() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			l.blocks = nil
			return nil
		}
		return err
	}

	blocks := make([]model.BlockInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, ok := blockstore.ParseFileName(e.Name(), l.resolution)
		if !ok {
			continue
		}
		info.Path = filepath.Join(l.dir, e.Name())
		blocks = append(blocks, info)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start < blocks[j].Start })
	l.blocks = blocks
	return nil
}

// NotifyChanged touches the state file, causing the next Blocks call (on
// this or any other List instance watching the same directory) to
// rescan. Mirrors notify_blocks_changed.
func (l *List) NotifyChanged() error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	now := time.Now()
	path := l.statePath()
	if err := os.Chtimes(path, now, now); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		f, ferr := os.Create(path)
		if ferr != nil {
			return ferr
		}
		return f.Close()
	}
	return nil
}

// TotalSize sums the actual on-disk usage (not logical size, so sparse
// block files aren't overcounted) of every block and its name sidecar for
// this resolution.
func (l *List) TotalSize() (int64, error) {
	blocks, err := l.Blocks(false)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, b := range blocks {
		total += statActual(b.Path)
		total += statActual(blockstore.SidecarPath(b.Path))
	}
	return total, nil
}

func statActual(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	size, err := diskusage.ActualSize(path, fi)
	if err != nil {
		return fi.Size()
	}
	return size
}

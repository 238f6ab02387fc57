//go:build !windows

package diskusage

import (
	"os"
	"syscall"
)

// actualSize uses stat blocks to handle sparse files correctly on Unix
// systems, where each block is typically 512 bytes regardless of the
// filesystem's logical block size.
func actualSize(path string, info os.FileInfo) (int64, error) {
	sys := info.Sys()
	if sys == nil {
		return info.Size(), nil
	}
	stat, ok := sys.(*syscall.Stat_t)
	if !ok {
		return info.Size(), nil
	}
	return stat.Blocks * 512, nil
}

// Package diskusage reports actual on-disk size for a file, accounting for
// sparse files and filesystem block allocation rather than trusting the
// logical size os.FileInfo.Size reports. Ported from
// cmd/server/filesize_unix.go/filesize_windows.go, which this package
// replaces; its caller is the catalogue's TotalSize.
package diskusage

import "os"

// ActualSize returns the disk space path actually occupies, falling back
// to info.Size() when the platform can't report block-level usage.
func ActualSize(path string, info os.FileInfo) (int64, error) {
	return actualSize(path, info)
}

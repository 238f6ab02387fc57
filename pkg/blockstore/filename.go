package blockstore

import (
	"strconv"
	"strings"

	"github.com/hisserdb/hisser/pkg/model"
)

// ParseFileName parses a block's "{start}.{size}.hdb" filename, returning
// false (no error) if the name doesn't match the convention — the catalogue
// silently skips such files, matching BlockList.rescan's behavior in
// original_source/hisser/db.py.
func ParseFileName(name string, resolution int64) (model.BlockInfo, bool) {
	if !strings.HasSuffix(name, ".hdb") {
		return model.BlockInfo{}, false
	}
	base := strings.TrimSuffix(name, ".hdb")
	parts := strings.SplitN(base, ".", 2)
	if len(parts) != 2 {
		return model.BlockInfo{}, false
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return model.BlockInfo{}, false
	}
	size, err := strconv.Atoi(parts[1])
	if err != nil || size <= 0 {
		return model.BlockInfo{}, false
	}
	end := start + int64(size)*resolution
	return model.BlockInfo{Start: start, End: end, Resolution: resolution, Size: size}, true
}

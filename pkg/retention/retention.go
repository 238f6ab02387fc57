// Package retention deletes blocks that have aged out of their
// resolution's retention window, ported from the cleanup path in
// original_source/hisser/db.py and tasks.py.
package retention

import (
	"github.com/hisserdb/hisser/pkg/blockstore"
	"github.com/hisserdb/hisser/pkg/catalogue"
	"github.com/hisserdb/hisser/pkg/model"
)

// Cleanup deletes every block in cat whose End is at or before cutoff,
// returning the removed blocks. A block exactly at the cutoff (End ==
// cutoff) is deleted; data strictly after the cutoff is kept.
func Cleanup(cat *catalogue.List, cutoff int64) ([]model.BlockInfo, error) {
	blocks, err := cat.Blocks(false)
	if err != nil {
		return nil, err
	}

	var removed []model.BlockInfo
	for _, b := range blocks {
		if b.End > cutoff {
			continue
		}
		if err := blockstore.Remove(b.Path); err != nil {
			return removed, err
		}
		removed = append(removed, b)
	}
	if len(removed) > 0 {
		if err := cat.NotifyChanged(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

package main

import (
	"fmt"
	"log"
	"time"

	"github.com/hisserdb/hisser/pkg/agg"
	"github.com/hisserdb/hisser/pkg/catalogue"
	"github.com/hisserdb/hisser/pkg/config"
	"github.com/hisserdb/hisser/pkg/downsample"
	"github.com/hisserdb/hisser/pkg/merge"
	"github.com/hisserdb/hisser/pkg/retention"
)

// aggRules parses cfg.AggRules once, shared by the downsample command, the
// run server's housework loop, and agg-method.
func aggRules(cfg config.Config) (*agg.Rules, error) {
	rules, err := agg.Parse(cfg.AggRules)
	if err != nil {
		return nil, fmt.Errorf("hisser: parse agg rules: %w", err)
	}
	return rules, nil
}

// downsampleMinSize discards a downsample run shorter than this many
// destination-resolution rows — too short a run to be worth a block of
// its own, the same "not worth it" threshold find_blocks_to_downsample
// applies in the original.
const downsampleMinSize = 2

// runMergeAll plans and executes merges for every configured resolution,
// the Go analog of Storage.do_merge iterating every BlockList.
func runMergeAll(cfg config.Config, cats []*catalogue.List) error {
	for i, cat := range cats {
		resolution := resolutionSeconds(cfg.Retentions[i].Resolution)
		blocks, err := cat.Blocks(false)
		if err != nil {
			return fmt.Errorf("merge: list blocks for %ds: %w", resolution, err)
		}
		segments := merge.Plan(blocks, resolution, cfg.MergeMaxGapFactor, cfg.MergeMaxSize)
		for _, seg := range segments {
			info, err := merge.Execute(cat.Dir(), resolution, seg, cat)
			if err != nil {
				return fmt.Errorf("merge: execute %ds segment: %w", resolution, err)
			}
			log.Printf("hisser: merged %d blocks into %s", len(seg), info)
		}
	}
	return nil
}

// runDownsampleAll folds each resolution's blocks into the next coarser
// configured resolution, the Go analog of Storage.do_downsample.
func runDownsampleAll(cfg config.Config, cats []*catalogue.List, rules *agg.Rules) error {
	for i := 0; i+1 < len(cats); i++ {
		srcRes := resolutionSeconds(cfg.Retentions[i].Resolution)
		dstRes := resolutionSeconds(cfg.Retentions[i+1].Resolution)
		srcCat, dstCat := cats[i], cats[i+1]

		blocks, err := srcCat.Blocks(false)
		if err != nil {
			return fmt.Errorf("downsample: list blocks for %ds: %w", srcRes, err)
		}
		segments := downsample.Plan(blocks, srcRes, dstRes, downsampleMinSize)
		for _, seg := range segments {
			info, err := downsample.Execute(dstCat.Dir(), dstRes, seg, rules, dstCat)
			if err != nil {
				return fmt.Errorf("downsample: execute %ds->%ds segment: %w", srcRes, dstRes, err)
			}
			log.Printf("hisser: downsampled %d blocks (%ds->%ds) into %s", len(seg.Blocks), srcRes, dstRes, info)
		}
	}
	return nil
}

// runCleanupAll deletes blocks older than each resolution's configured
// retention period, the Go analog of Storage.do_cleanup.
func runCleanupAll(cfg config.Config, cats []*catalogue.List, now time.Time) error {
	for i, cat := range cats {
		cutoff := now.Add(-cfg.Retentions[i].Period).Unix()
		removed, err := retention.Cleanup(cat, cutoff)
		if err != nil {
			return fmt.Errorf("cleanup: %ds: %w", resolutionSeconds(cfg.Retentions[i].Resolution), err)
		}
		if len(removed) > 0 {
			log.Printf("hisser: cleanup removed %d expired blocks at %ds resolution", len(removed), resolutionSeconds(cfg.Retentions[i].Resolution))
		}
	}
	return nil
}

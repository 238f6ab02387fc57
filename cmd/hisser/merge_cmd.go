package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hisserdb/hisser/pkg/blockstore"
	"github.com/hisserdb/hisser/pkg/catalogue"
	"github.com/hisserdb/hisser/pkg/merge"
	"github.com/hisserdb/hisser/pkg/model"
)

func newMergeCmd() *cobra.Command {
	var resolution int64
	cmd := &cobra.Command{
		Use:   "merge [block...]",
		Short: "merge two or more blocks, or plan+merge every resolution",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := requireOneRetention(cfg); err != nil {
				return err
			}

			if len(args) > 0 {
				if resolution == 0 {
					return fmt.Errorf("merge: -r/--resolution is required when blocks are given explicitly")
				}
				return mergeExplicitBlocks(cfg.DataDir, resolution, args)
			}

			cats := catalogues(cfg)
			return runMergeAll(cfg, cats)
		},
	}
	cmd.Flags().Int64VarP(&resolution, "resolution", "r", 0, "resolution in seconds of the given blocks")
	return cmd
}

// mergeExplicitBlocks merges a caller-supplied list of block paths, the Go
// analog of cmd_merge's db.merge(data_dir, resolution, block) branch.
func mergeExplicitBlocks(dataDir string, resolution int64, paths []string) error {
	segment := make([]model.BlockInfo, 0, len(paths))
	for _, p := range paths {
		info, ok := blockstore.ParseFileName(filepath.Base(p), resolution)
		if !ok {
			return fmt.Errorf("merge: %s doesn't look like a block file", p)
		}
		info.Path = p
		segment = append(segment, info)
	}

	dir := filepath.Join(dataDir, catalogue.ResolutionDirName(resolution))
	cat := catalogue.New(dataDir, resolution)
	info, err := merge.Execute(dir, resolution, segment, cat)
	if err != nil {
		return err
	}
	fmt.Println(info)
	return nil
}

func newDownsampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "downsample",
		Short: "fold finer-resolution blocks into coarser retentions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := requireOneRetention(cfg); err != nil {
				return err
			}
			rules, err := aggRules(cfg)
			if err != nil {
				return err
			}
			cats := catalogues(cfg)
			return runDownsampleAll(cfg, cats, rules)
		},
	}
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "remove blocks older than their resolution's retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := requireOneRetention(cfg); err != nil {
				return err
			}
			cats := catalogues(cfg)
			return runCleanupAll(cfg, cats, time.Now())
		},
	}
}

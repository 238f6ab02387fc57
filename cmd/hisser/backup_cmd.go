package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hisserdb/hisser/pkg/backup"
	"github.com/hisserdb/hisser/pkg/catalogue"
)

// newBackupCmd extends cmd_backup beyond a single "env file -> out file"
// copy: Hisser's data directory holds one bbolt file per resolution's
// blocks plus the metric index, so "backup" hot-copies the whole tree
// (index via backup.Index, blocks via backup.Blocks) into outDir in one
// invocation.
func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <out-dir>",
		Short: "backup the metric index and all block files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := requireOneRetention(cfg); err != nil {
				return err
			}
			outDir := args[0]

			if err := backup.Index(indexPath(cfg), filepath.Join(outDir, "metric.index")); err != nil {
				return fmt.Errorf("backup: index: %w", err)
			}
			fmt.Println("backed up", indexPath(cfg))

			for _, ret := range cfg.Retentions {
				res := resolutionSeconds(ret.Resolution)
				dirName := catalogue.ResolutionDirName(res)
				src := filepath.Join(cfg.DataDir, dirName)
				dst := filepath.Join(outDir, dirName)
				if err := backup.Blocks(src, dst); err != nil {
					return fmt.Errorf("backup: blocks for %ds: %w", res, err)
				}
				fmt.Println("backed up", src)
			}
			return nil
		},
	}
}

package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hisserdb/hisser/pkg/blockstore"
)

// newCheckCmd mirrors cmd_check: every row in a block must be exactly
// block.Size samples long; anything else means the block was written
// short or corrupted.
func newCheckCmd() *cobra.Command {
	var resolution int64
	cmd := &cobra.Command{
		Use:   "check <block...>",
		Short: "checks block row sizes against their filename metadata",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if resolution == 0 {
				return fmt.Errorf("check: -r/--resolution is required")
			}
			for _, path := range args {
				if err := checkBlock(path, resolution); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64VarP(&resolution, "resolution", "r", 0, "resolution in seconds of the given blocks")
	return cmd
}

func checkBlock(path string, resolution int64) error {
	info, ok := blockstore.ParseFileName(filepath.Base(path), resolution)
	if !ok {
		return fmt.Errorf("check: %s doesn't look like a block file", path)
	}

	r, err := blockstore.Open(path, info)
	if err != nil {
		return err
	}
	defer r.Close()

	_, rows, err := r.Dump()
	if err != nil {
		return err
	}

	sizes := make(map[int]struct{})
	for _, row := range rows {
		sizes[len(row)] = struct{}{}
	}
	if len(sizes) > 1 || (len(sizes) == 1 && !hasSize(sizes, info.Size)) {
		distinct := make([]int, 0, len(sizes))
		for s := range sizes {
			distinct = append(distinct, s)
		}
		sort.Ints(distinct)
		fmt.Println(path, "Invalid sizes", distinct)
	}
	return nil
}

func hasSize(sizes map[int]struct{}, want int) bool {
	_, ok := sizes[want]
	return ok
}

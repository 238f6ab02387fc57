package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hisserdb/hisser/pkg/blockstore"
	"github.com/hisserdb/hisser/pkg/index"
	"github.com/hisserdb/hisser/pkg/model"
)

// newDumpCmd mirrors cmd_dump: print every (key, length, row) triple in a
// block file. Dump doesn't need a block's resolution — it only walks the
// bucket's raw bytes — so no -r flag is required here, unlike check.
func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <block>",
		Short: "dump content of block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := blockstore.Open(args[0], model.BlockInfo{})
			if err != nil {
				return err
			}
			defer r.Close()

			keys, rows, err := r.Dump()
			if err != nil {
				return err
			}
			for i, key := range keys {
				fmt.Printf("%s %d %v\n", hex.EncodeToString(key[:]), len(rows[i]), rows[i])
			}
			return nil
		},
	}
}

// newDumpNameBlockCmd is this port's addition to cmd_dump: the original's
// raw digest keys are opaque without the separate LMDB name database this
// port doesn't have, so dump-name-block zips a block's rows with its
// sidecar names instead of printing hex digests.
func newDumpNameBlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump-name-block <block>",
		Short: "dump content of block, resolving names from its sidecar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := blockstore.Open(args[0], model.BlockInfo{})
			if err != nil {
				return err
			}
			defer r.Close()

			_, rows, err := r.Dump()
			if err != nil {
				return err
			}
			names, err := blockstore.ReadSidecar(blockstore.SidecarPath(args[0]))
			if err != nil {
				return fmt.Errorf("dump-name-block: read sidecar: %w", err)
			}
			for i, row := range rows {
				name := "?"
				if i < len(names) {
					name = names[i]
				}
				fmt.Printf("%s %d %v\n", name, len(row), row)
			}
			return nil
		},
	}
}

// newDumpIndexCmd mirrors cmd_dump_index: print every metric name known to
// the index. iter_tree's hierarchical (key, value) pairs don't have a
// bbolt-native equivalent without re-deriving the dotted-path tree from
// scratch, so this prints the flat name list index.Dump already exposes
// for the dump-index CLI; the tree structure itself is not printed.
func newDumpIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump-index <index>",
		Short: "dump content of metric index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := index.Open(args[0])
			if err != nil {
				return err
			}
			defer idx.Close()

			names, err := idx.Dump()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

// Command hisser is Hisser's server and maintenance CLI: a cobra port of
// original_source/hisser/cli.py's click group, wiring pkg/config through
// every subcommand the way config_aware/common_options do there.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hisserdb/hisser/pkg/config"
)

var (
	flagConfigPath string
	flagDataDir    string
)

func main() {
	root := &cobra.Command{
		Use:           "hisser",
		Short:         "Hisser time-series storage engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVarP(&flagDataDir, "data-dir", "d", "", "path to directory with data")

	root.AddCommand(
		newRunCmd(),
		newMergeCmd(),
		newDownsampleCmd(),
		newCleanupCmd(),
		newDumpCmd(),
		newDumpNameBlockCmd(),
		newDumpIndexCmd(),
		newCheckCmd(),
		newAggMethodCmd(),
		newBackupCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves Config from defaults/file/environment, then applies
// the --data-dir override shared by every subcommand, mirroring
// common_options' contribution to config.get_config.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return cfg, fmt.Errorf("hisser: load config: %w", err)
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	return cfg, nil
}

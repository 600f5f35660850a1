// Package cmd defines the harvester command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCmd builds the root command. Flags are bound into v so that flag
// values win over the environment, the config file and defaults.
func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvest posts, comments, creators and question topics.",
		Long: `harvester runs one crawl mode against the source: keyword search,
detail lookup of known URLs, creator sweeps or question sweeps. Results are
upserted into the configured storage backend.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "path to a config file (yaml, json or toml)")
	cmd.AddCommand(newRunCmd(v))
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/bobmcallan/stacker/internal/common"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "stacker",
		Short:         "Dollar-cost averaging order sheets",
		Version:       common.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: $STACKER_CONFIG, then stacker.toml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging level")

	cmd.AddCommand(
		newProcessCmd(opts),
		newCycleCmd(),
		newCalcCmd(),
	)
	return cmd
}

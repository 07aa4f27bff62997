package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "eve_analyst",
		Short: "Suricata EVE log analyst",
		Long: `eve_analyst follows a Suricata EVE JSON log, keeps the events whose
source or destination is a public address, asks an LLM for a short
assessment of each and records the result.

Run without a subcommand to start monitoring.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd.Context(), cfgPath)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "/etc/eve-analyst/config.yaml", "config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Monitor the EVE log (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMonitor(cmd.Context(), cfgPath)
			},
		},
		newClassifyCmd(&cfgPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

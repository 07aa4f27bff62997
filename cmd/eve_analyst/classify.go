package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"eve_analyst/internal/config"
)

func newClassifyCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "classify ADDRESS...",
		Short: "Show how addresses are classified by the configured rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(*cfgPath)
			if err != nil {
				return err
			}
			rules, err := cfg.RuleSet()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, addr := range args {
				fmt.Fprintf(tw, "%s\t%s\n", addr, rules.Classify(addr))
			}
			return tw.Flush()
		},
	}
}

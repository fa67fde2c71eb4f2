package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"frameworks/api_lookout/internal/keys"
)

func newKeysCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Show credential pools loaded from the environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := keys.LoadFromEnv(keys.DefaultProviders, opts.logger())
			stats := reg.Stats()
			if opts.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROVIDER\tKEYS\tAVAILABLE")
			for _, name := range reg.Providers() {
				s := stats[name]
				fmt.Fprintf(tw, "%s\t%d\t%t\n", name, s.TotalKeys, s.Available)
			}
			return tw.Flush()
		},
	}
}

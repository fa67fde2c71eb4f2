package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"frameworks/pkg/config"
	"frameworks/pkg/logging"
	fwv "frameworks/pkg/version"
)

type rootOptions struct {
	output  string
	verbose bool
}

// newRootCmd returns the root command for the Lookout operator CLI.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "lookoutctl",
		Short:         "Lookout operator tool",
		Long:          "Run one-off searches, inspect API credential pools and score posts against the viral calibration.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnv(opts.logger())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.output, "output", "text", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(newSearchCmd(opts))
	rootCmd.AddCommand(newKeysCmd(opts))
	rootCmd.AddCommand(newScoreCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// logger logs to stderr when verbose and discards otherwise.
func (o *rootOptions) logger() logging.Logger {
	if !o.verbose {
		return logging.NewDiscardLogger()
	}
	return logging.NewLoggerWithService("lookoutctl")
}

func (o *rootOptions) jsonOutput() bool { return o.output == "json" }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "lookoutctl %s (git %s, built %s)\n", fwv.Version, fwv.GetShortCommit(), fwv.BuildDate)
			return nil
		},
	}
}

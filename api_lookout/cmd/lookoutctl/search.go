package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	lookoutconfig "frameworks/api_lookout/internal/config"
	"frameworks/api_lookout/internal/keys"
	"frameworks/api_lookout/internal/pipeline"
	"frameworks/api_lookout/internal/viral"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		noCrawl  bool
		noSocial bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run the search pipeline once and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger()
			cfg := lookoutconfig.LoadConfig()
			stack := cfg.Stack()
			stack.Pipeline.CaptureEnabled = false
			if noCrawl {
				stack.Pipeline.DeepCrawlEnabled = false
			}
			if noSocial {
				stack.Pipeline.SocialEnabled = false
			}

			scorer := viral.NewScorer(viral.DefaultCalibration())
			if cfg.CalibrationFile != "" {
				cal, err := viral.LoadCalibration(cfg.CalibrationFile)
				if err != nil {
					return err
				}
				scorer = viral.NewScorer(cal)
			}

			registry := keys.LoadFromEnv(keys.DefaultProviders, logger)
			orch, err := pipeline.NewStack(stack, registry, nil, scorer, logger)
			if err != nil {
				return err
			}
			result, err := orch.Run(cmd.Context(), &pipeline.Request{
				SessionID: fmt.Sprintf("cli_%d", time.Now().UnixMilli()),
				Query:     strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVar(&noCrawl, "no-crawl", false, "skip the deep crawl phase")
	cmd.Flags().BoolVar(&noSocial, "no-social", false, "skip the social fan-out phase")
	return cmd
}

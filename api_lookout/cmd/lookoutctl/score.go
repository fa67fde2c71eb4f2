package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"frameworks/api_lookout/internal/viral"
)

func newScoreCmd(opts *rootOptions) *cobra.Command {
	var (
		platform    string
		calibration string
		relevance   float64
		counters    = map[string]*float64{}
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one post with the viral formula",
		Example: `  lookoutctl score --platform youtube --views 2000000 --likes 50000 --comments 3000
  lookoutctl score --platform twitter --retweets 500 --likes 2500 --replies 250`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cal := viral.DefaultCalibration()
			if calibration != "" {
				loaded, err := viral.LoadCalibration(calibration)
				if err != nil {
					return err
				}
				cal = loaded
			}
			c := viral.Counters{}
			for name, v := range counters {
				if cmd.Flags().Changed(name) {
					c[name] = *v
				}
			}
			score := viral.NewScorer(cal).Score(platform, c, relevance)
			category := viral.Categorize(score)
			selected := score >= cal.Threshold

			if opts.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"platform": platform,
					"score":    score,
					"category": category,
					"selected": selected,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %.2f/10 %s (selected: %t)\n", platform, score, category, selected)
			return nil
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "", "platform: youtube|instagram|facebook|twitter|tiktok|other")
	cmd.Flags().StringVar(&calibration, "calibration", "", "calibration file (.yaml, .yml or .toml)")
	cmd.Flags().Float64Var(&relevance, "relevance", 0, "relevance score used for unknown platforms")
	for _, name := range []string{viral.Views, viral.Likes, viral.Comments, viral.Shares, viral.Retweets, viral.Replies} {
		counters[name] = cmd.Flags().Float64(name, 0, name+" count")
	}
	_ = cmd.MarkFlagRequired("platform")
	return cmd
}

package workflow

import (
	"fmt"
	"sort"
	"strings"

	"frameworks/api_lookout/internal/pipeline"
)

const reportSnippetChars = 200

// collectionReport renders the stage 1 markdown summary.
func collectionReport(st *pipeline.SearchState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Collection Report: %s\n\n", st.Query)
	fmt.Fprintf(&b, "- **Session:** `%s`\n", st.SessionID)
	fmt.Fprintf(&b, "- **Started:** %s\n", st.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Duration:** %.1fs\n\n", st.Statistics.SearchDuration)

	b.WriteString("## Statistics\n\n")
	fmt.Fprintf(&b, "- **Total sources:** %d\n", st.Statistics.TotalSources)
	fmt.Fprintf(&b, "- **Deep crawl pages:** %d\n", st.Statistics.WebsailorPages)
	fmt.Fprintf(&b, "- **API results:** %d\n", st.Statistics.APISources)
	fmt.Fprintf(&b, "- **Social posts:** %d\n", st.Statistics.SocialPosts)
	fmt.Fprintf(&b, "- **Screenshots:** %d\n\n", st.Statistics.ScreenshotsCount)

	if st.WebsailorResults != nil && len(st.WebsailorResults.Pages) > 0 {
		b.WriteString("## Deep Crawl\n\n")
		for i, p := range st.WebsailorResults.Pages {
			fmt.Fprintf(&b, "**%d.** %s\n   - URL: %s\n   - Depth: %d\n", i+1, orUntitled(p.Title), p.URL, p.Depth)
			if s := snippet(p.Content); s != "" {
				fmt.Fprintf(&b, "   - Summary: %s\n", s)
			}
			b.WriteString("\n")
		}
	}

	if len(st.APIResults) > 0 {
		b.WriteString("## Search APIs\n\n")
		for _, pr := range st.APIResults {
			switch {
			case pr.Skipped:
				fmt.Fprintf(&b, "### %s: skipped\n\n%s\n\n", pr.Provider, pr.Error)
			case !pr.Success:
				fmt.Fprintf(&b, "### %s: failed (%s)\n\n%s\n\n", pr.Provider, pr.ErrorKind, pr.Error)
			default:
				fmt.Fprintf(&b, "### %s (%d results)\n\n", pr.Provider, len(pr.Items))
				for i, item := range pr.Items {
					fmt.Fprintf(&b, "**%d.** %s\n   - URL: %s\n", i+1, orUntitled(item.Title), item.URL)
					if s := snippet(item.Content); s != "" {
						fmt.Fprintf(&b, "   - Summary: %s\n", s)
					}
					b.WriteString("\n")
				}
			}
		}
	}

	social := st.SocialResults
	if len(social.PlatformsSearched) > 0 {
		b.WriteString("## Social Search\n\n")
		fmt.Fprintf(&b, "**Posts found:** %d across %d platforms\n\n", social.TotalPosts, len(social.PlatformsSearched))
		for _, platform := range social.PlatformsSearched {
			if msg, failed := social.Errors[platform]; failed {
				fmt.Fprintf(&b, "- **%s:** failed (%s)\n", platform, msg)
				continue
			}
			fmt.Fprintf(&b, "- **%s:** %d posts\n", platform, len(social.PlatformResults[platform]))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Viral Content\n\n")
	if len(st.ViralContent) == 0 {
		b.WriteString("No post reached the viral threshold.\n\n")
	} else {
		counts := map[string]int{}
		for _, v := range st.ViralContent {
			counts[string(v.ViralCategory)]++
		}
		cats := make([]string, 0, len(counts))
		for c := range counts {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			fmt.Fprintf(&b, "- **%s:** %d posts\n", c, counts[c])
		}
		b.WriteString("\n")
		for i, v := range st.ViralContent {
			fmt.Fprintf(&b, "**%d.** [%s] %s\n   - URL: %s\n   - Score: %.2f/10 (%s)\n\n",
				i+1, v.Platform, orUntitled(v.Title), v.URL, v.ViralScore, v.ViralCategory)
		}
	}

	b.WriteString("## Visual Evidence\n\n")
	if len(st.ScreenshotsCaptured) == 0 {
		b.WriteString("No screenshots were captured in this session.\n")
	}
	for i, shot := range st.ScreenshotsCaptured {
		fmt.Fprintf(&b, "### Screenshot %d: %s\n\n", i+1, orUntitled(shot.Title))
		fmt.Fprintf(&b, "**Platform:** %s  \n**Viral score:** %.2f/10  \n**URL:** %s\n\n", shot.Platform, shot.Score, shot.URL)
		fmt.Fprintf(&b, "![Screenshot %d](%s)\n\n", i+1, shot.Path)
	}
	return b.String()
}

func orUntitled(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Untitled"
	}
	return s
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > reportSnippetChars {
		return string(r[:reportSnippetChars]) + "..."
	}
	return s
}

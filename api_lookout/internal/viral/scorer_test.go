package viral

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type post struct {
	id        string
	platform  string
	counters  Counters
	relevance float64
}

func (p post) ScoringPlatform() string   { return p.platform }
func (p post) ScoringCounters() Counters { return p.counters }
func (p post) ScoringRelevance() float64 { return p.relevance }

func TestScoreFormulas(t *testing.T) {
	s := NewScorer(DefaultCalibration())

	require.InDelta(t, 6.0, s.Score("youtube", Counters{Views: 400000, Likes: 10000, Comments: 1000}, 0), 1e-9)
	require.InDelta(t, 6.0, s.Score("instagram", Counters{Likes: 10000, Comments: 1000, Shares: 500}, 0), 1e-9)
	require.InDelta(t, 6.0, s.Score("facebook", Counters{Likes: 10000, Comments: 1000, Shares: 500}, 0), 1e-9)
	require.InDelta(t, 7.5, s.Score("twitter", Counters{Retweets: 500, Likes: 2500, Replies: 250}, 0), 1e-9)
	require.InDelta(t, 3.0, s.Score("tiktok", Counters{Views: 500000, Likes: 25000, Shares: 5000}, 0), 1e-9)
	require.InDelta(t, 8.0, s.Score("linkedin", nil, 0.8), 1e-9)
}

func TestScoreStaysInRange(t *testing.T) {
	s := NewScorer(DefaultCalibration())

	require.Equal(t, 0.0, s.Score("youtube", Counters{}, 0))
	require.Equal(t, 0.0, s.Score("twitter", nil, 0))
	require.Equal(t, MaxScore, s.Score("youtube", Counters{Views: 1e12}, 0))
	require.Equal(t, 0.0, s.Score("youtube", Counters{Views: -5000}, 0))
	require.Equal(t, 0.0, s.Score("tiktok", Counters{Views: math.NaN()}, 0))
	require.Equal(t, 0.0, s.Score("unknown", nil, math.Inf(1)))
	require.Equal(t, MaxScore, s.Score("unknown", nil, 5))
}

func TestCategorizeBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  Category
	}{
		{10, MegaViral},
		{9.0, MegaViral},
		{8.999, Viral},
		{7.5, Viral},
		{7.499, Trending},
		{6.0, Trending},
		{5.999, Popular},
		{0, Popular},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Categorize(tc.score), "score %v", tc.score)
	}
}

func TestSelectThresholdOrderAndCap(t *testing.T) {
	s := NewScorer(DefaultCalibration())

	posts := []post{
		{id: "edge", platform: "youtube", counters: Counters{Views: 600000}},
		{id: "below", platform: "youtube", counters: Counters{Views: 599900}},
		{id: "tie-a", platform: "other", relevance: 0.8},
		{id: "top", platform: "other", relevance: 1},
		{id: "tie-b", platform: "other", relevance: 0.8},
	}
	got := Select(s, posts)
	ids := make([]string, 0, len(got))
	for _, g := range got {
		ids = append(ids, g.Item.id)
	}
	require.Equal(t, []string{"top", "tie-a", "tie-b", "edge"}, ids)
	require.Equal(t, Trending, got[3].Category)
	require.Equal(t, MegaViral, got[0].Category)

	many := make([]post, 40)
	for i := range many {
		many[i] = post{platform: "other", relevance: 0.7}
	}
	require.Len(t, Select(s, many), 15)
	require.Empty(t, Select(s, []post{{platform: "youtube"}}))
}

func TestLoadCalibration(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "cal.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("threshold: 5\nmax_selected: 3\nyoutube:\n  views: 500\n  likes: 100\n  comments: 10\n  divisor: 100\n"), 0o644))
	cal, err := LoadCalibration(yamlPath)
	require.NoError(t, err)
	require.Equal(t, 5.0, cal.Threshold)
	require.Equal(t, 3, cal.MaxSelected)
	require.Equal(t, 500.0, cal.YouTube.Views)
	require.Equal(t, 20.0, cal.Twitter.Divisor, "unset sections keep defaults")

	tomlPath := filepath.Join(dir, "cal.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("relevance_multiplier = 5.0\n[tiktok]\nviews = 1000.0\nlikes = 500.0\nshares = 100.0\ndivisor = 10.0\n"), 0o644))
	cal, err = LoadCalibration(tomlPath)
	require.NoError(t, err)
	require.Equal(t, 5.0, cal.RelevanceMultiplier)
	require.Equal(t, 10.0, cal.TikTok.Divisor)

	badPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("twitter:\n  divisor: 0\n"), 0o644))
	_, err = LoadCalibration(badPath)
	require.Error(t, err)

	_, err = LoadCalibration(filepath.Join(dir, "cal.json"))
	require.Error(t, err)

	cal, err = LoadCalibration("")
	require.NoError(t, err)
	require.Equal(t, DefaultCalibration(), cal)
}

// Package viral scores social posts by engagement and selects the ones
// worth capturing.
package viral

import (
	"math"
	"sort"
)

type Category string

const (
	Popular   Category = "POPULAR"
	Trending  Category = "TRENDING"
	Viral     Category = "VIRAL"
	MegaViral Category = "MEGA_VIRAL"
)

const (
	MaxScore = 10.0

	megaViralFloor = 9.0
	viralFloor     = 7.5
	trendingFloor  = 6.0
)

// Counters is the normalized engagement a post carries. Missing entries
// are zero.
type Counters map[string]float64

// Counter names understood by the scorer.
const (
	Views    = "views"
	Likes    = "likes"
	Comments = "comments"
	Shares   = "shares"
	Retweets = "retweets"
	Replies  = "replies"
)

// Scorable is anything the engine can score.
type Scorable interface {
	ScoringPlatform() string
	ScoringCounters() Counters
	ScoringRelevance() float64
}

type Scorer struct {
	cal Calibration
}

func NewScorer(cal Calibration) *Scorer {
	return &Scorer{cal: cal}
}

// Score returns the post's score in [0, MaxScore].
func (s *Scorer) Score(platform string, c Counters, relevance float64) float64 {
	var raw float64
	switch platform {
	case "youtube":
		raw = weigh(c, s.cal.YouTube)
	case "instagram":
		raw = weigh(c, s.cal.Instagram)
	case "facebook":
		raw = weigh(c, s.cal.Facebook)
	case "twitter":
		raw = weigh(c, s.cal.Twitter)
	case "tiktok":
		raw = weigh(c, s.cal.TikTok)
	default:
		raw = finite(relevance) * s.cal.RelevanceMultiplier
	}
	return clamp(raw)
}

func weigh(c Counters, w Weights) float64 {
	sum := part(c[Views], w.Views) +
		part(c[Likes], w.Likes) +
		part(c[Comments], w.Comments) +
		part(c[Shares], w.Shares) +
		part(c[Retweets], w.Retweets) +
		part(c[Replies], w.Replies)
	if w.Divisor <= 0 {
		return 0
	}
	return sum / w.Divisor
}

func part(v, divisor float64) float64 {
	if divisor <= 0 {
		return 0
	}
	return finite(v) / divisor
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return math.Min(v, MaxScore)
}

// Categorize maps a score to its category.
func Categorize(score float64) Category {
	switch {
	case score >= megaViralFloor:
		return MegaViral
	case score >= viralFloor:
		return Viral
	case score >= trendingFloor:
		return Trending
	default:
		return Popular
	}
}

// Scored pairs an item with its score and category.
type Scored[T any] struct {
	Item     T
	Score    float64
	Category Category
}

// Select scores every item, keeps those at or above the threshold and
// returns at most MaxSelected of them, highest first. Ties keep input order.
func Select[T Scorable](s *Scorer, items []T) []Scored[T] {
	kept := make([]Scored[T], 0, len(items))
	for _, it := range items {
		score := s.Score(it.ScoringPlatform(), it.ScoringCounters(), it.ScoringRelevance())
		if score < s.cal.Threshold {
			continue
		}
		kept = append(kept, Scored[T]{Item: it, Score: score, Category: Categorize(score)})
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > s.cal.MaxSelected {
		kept = kept[:s.cal.MaxSelected]
	}
	return kept
}

package social

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"frameworks/api_lookout/internal/viral"
)

// Post is a normalized social media post.
type Post struct {
	ID             string             `json:"id,omitempty"`
	Platform       string             `json:"platform"`
	URL            string             `json:"url"`
	Title          string             `json:"title,omitempty"`
	Text           string             `json:"text,omitempty"`
	Author         string             `json:"author,omitempty"`
	Counters       map[string]float64 `json:"counters"`
	RelevanceScore float64            `json:"relevance_score,omitempty"`
	PublishedAt    string             `json:"published_at,omitempty"`
}

func (p Post) ScoringPlatform() string         { return p.Platform }
func (p Post) ScoringCounters() viral.Counters { return p.Counters }
func (p Post) ScoringRelevance() float64       { return p.RelevanceScore }

// counterAliases lists accepted raw keys per normalized counter, first
// match wins.
var counterAliases = map[string][]string{
	viral.Views:    {"view_count", "views", "play_count", "plays"},
	viral.Likes:    {"like_count", "likes", "favorite_count", "reactions"},
	viral.Comments: {"comment_count", "comments"},
	viral.Shares:   {"share_count", "shares"},
	viral.Retweets: {"retweet_count", "retweets"},
	viral.Replies:  {"reply_count", "replies"},
}

// Normalize converts a raw aggregator record into a Post.
func Normalize(platform string, raw map[string]any) Post {
	p := Post{
		Platform:       platform,
		ID:             firstString(raw, "id", "post_id", "video_id"),
		URL:            firstString(raw, "url", "link", "permalink"),
		Title:          firstString(raw, "title"),
		Text:           firstString(raw, "text", "description", "caption", "content"),
		Author:         firstString(raw, "author", "username", "channel", "channel_title"),
		PublishedAt:    firstString(raw, "published_at", "created_at", "timestamp"),
		RelevanceScore: toFloat(raw["relevance_score"]),
		Counters:       make(map[string]float64, len(counterAliases)),
	}
	for name, aliases := range counterAliases {
		for _, alias := range aliases {
			if v, ok := raw[alias]; ok {
				p.Counters[name] = toFloat(v)
				break
			}
		}
	}
	if stats, ok := raw["statistics"].(map[string]any); ok {
		for name, aliases := range counterAliases {
			if p.Counters[name] != 0 {
				continue
			}
			for _, alias := range aliases {
				if v, ok := stats[alias]; ok {
					p.Counters[name] = toFloat(v)
					break
				}
			}
		}
	}
	return p
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// toFloat accepts numbers and numeric strings. Anything else is zero.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", ""), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func (p Post) String() string {
	return fmt.Sprintf("%s:%s", p.Platform, p.URL)
}

package pipeline

import (
	"time"

	"frameworks/api_lookout/internal/capture"
	"frameworks/api_lookout/internal/crawl"
	"frameworks/api_lookout/internal/social"
	"frameworks/api_lookout/internal/viral"
	"frameworks/pkg/search"
)

// Request starts one search run.
type Request struct {
	SessionID string            `json:"session_id"`
	Query     string            `json:"query"`
	Context   map[string]string `json:"context,omitempty"`
}

// SocialResults is the outcome of the social fan-out.
type SocialResults struct {
	AllPosts          []social.Post            `json:"all_posts"`
	PlatformResults   map[string][]social.Post `json:"platform_results"`
	TotalPosts        int                      `json:"total_posts"`
	PlatformsSearched []string                 `json:"platforms_searched"`
	Errors            map[string]string        `json:"errors,omitempty"`
}

// ViralPost is a social post that passed selection.
type ViralPost struct {
	social.Post
	ViralScore    float64        `json:"viral_score"`
	ViralCategory viral.Category `json:"viral_category"`
}

type Statistics struct {
	TotalSources     int     `json:"total_sources"`
	WebsailorPages   int     `json:"websailor_pages"`
	APISources       int     `json:"api_sources"`
	SocialPosts      int     `json:"social_posts"`
	ScreenshotsCount int     `json:"screenshots_count"`
	SearchDuration   float64 `json:"search_duration"`
}

// SearchState is everything one run produced. It is not modified after Run
// returns.
type SearchState struct {
	SessionID           string                 `json:"session_id"`
	Query               string                 `json:"query"`
	Context             map[string]string      `json:"context,omitempty"`
	WebsailorResults    *crawl.Result          `json:"websailor_results"`
	APIResults          search.ProviderResults `json:"api_results"`
	SocialResults       SocialResults          `json:"social_results"`
	ViralContent        []ViralPost            `json:"viral_content"`
	ScreenshotsCaptured []capture.Screenshot   `json:"screenshots_captured"`
	Statistics          Statistics             `json:"statistics"`
	StartedAt           time.Time              `json:"started_at"`
	CompletedAt         time.Time              `json:"completed_at"`
}

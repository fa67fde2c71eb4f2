package search

import (
	"context"
	"net/http"
	"time"
)

// Provider is a keyless search backend. It is used to seed deep crawls.
type Provider interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error)
}

// KeyedProvider is a search API that authenticates with a credential handed
// out per call. Implementations hold no per-call state, so one value is
// safe for concurrent use with different credentials.
type KeyedProvider interface {
	Name() string
	Search(ctx context.Context, query, credential string) ([]Result, error)
}

// Result is the normalized record every adapter produces.
type Result struct {
	Title       string             `json:"title"`
	URL         string             `json:"url"`
	Content     string             `json:"content"`
	Score       float64            `json:"score,omitempty"`
	Source      string             `json:"source,omitempty"`
	PublishedAt string             `json:"published_at,omitempty"`
	Engagement  map[string]float64 `json:"engagement,omitempty"`
}

// SearchOptions controls search behavior across keyless providers.
type SearchOptions struct {
	Limit int
}

// Options configures keyed adapters. Zero values select the public
// endpoints.
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	GoogleCSEID string
	Limit       int
}

const defaultHTTPTimeout = 30 * time.Second

func (o Options) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

func (o Options) baseURL(def string) string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	return def
}

func (o Options) limit(def int) int {
	if o.Limit > 0 {
		return o.Limit
	}
	return def
}

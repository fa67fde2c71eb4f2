package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const providerSearxng = "searxng"

// SearxngProvider implements the SearXNG API. It needs no credential and
// seeds deep crawls.
type SearxngProvider struct {
	apiURL string
	client *http.Client
}

// NewSearxngProvider creates a SearXNG provider.
func NewSearxngProvider(apiURL string) (*SearxngProvider, error) {
	if strings.TrimSpace(apiURL) == "" {
		return nil, fmt.Errorf("searxng api url is required")
	}
	return &SearxngProvider{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type searxngResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"publishedDate"`
	} `json:"results"`
}

// Search executes a query against a SearXNG instance.
func (p *SearxngProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	endpoint, err := url.Parse(p.apiURL + "/search")
	if err != nil {
		return nil, transportError(providerSearxng, fmt.Errorf("parse url: %w", err))
	}
	q := endpoint.Query()
	q.Set("q", query)
	q.Set("format", "json")
	if opts.Limit > 0 {
		q.Set("count", strconv.Itoa(opts.Limit))
	}
	endpoint.RawQuery = q.Encode()

	var decoded searxngResponse
	if err := getJSON(ctx, p.client, providerSearxng, endpoint.String(), &decoded); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(decoded.Results))
	for _, item := range decoded.Results {
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
		results = append(results, Result{
			Title:       item.Title,
			URL:         item.URL,
			Content:     strings.TrimSpace(item.Content),
			Score:       item.Score,
			Source:      providerSearxng,
			PublishedAt: item.PublishedDate,
		})
	}
	return results, nil
}

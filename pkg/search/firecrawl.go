package search

import (
	"context"
	"net/http"
	"net/url"
)

const (
	ProviderFirecrawl   = "FIRECRAWL"
	defaultFirecrawlURL = "https://api.firecrawl.dev/v0/scrape"
)

// FirecrawlProvider scrapes a Google results page through Firecrawl and
// returns it as a single markdown record.
type FirecrawlProvider struct {
	apiURL string
	client *http.Client
}

func NewFirecrawlProvider(opts Options) *FirecrawlProvider {
	return &FirecrawlProvider{apiURL: opts.baseURL(defaultFirecrawlURL), client: opts.client()}
}

func (p *FirecrawlProvider) Name() string { return ProviderFirecrawl }

type firecrawlRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type firecrawlResponse struct {
	Data struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
	} `json:"data"`
}

func (p *FirecrawlProvider) Search(ctx context.Context, query, credential string) ([]Result, error) {
	target := googleResultsURL(query)
	body := firecrawlRequest{URL: target, Formats: []string{"markdown"}, OnlyMainContent: true}

	var decoded firecrawlResponse
	if err := postJSON(ctx, p.client, ProviderFirecrawl, p.apiURL, body, &decoded, bearer(credential)); err != nil {
		return nil, err
	}
	if decoded.Data.Markdown == "" {
		return []Result{}, nil
	}
	title := decoded.Data.Metadata.Title
	if title == "" {
		title = "Firecrawl: " + query
	}
	return []Result{{
		Title:   title,
		URL:     target,
		Content: decoded.Data.Markdown,
		Source:  ProviderFirecrawl,
	}}, nil
}

func googleResultsURL(query string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(query)
}

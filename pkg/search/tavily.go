package search

import (
	"context"
	"net/http"
	"strings"
)

const (
	ProviderTavily   = "TAVILY"
	defaultTavilyURL = "https://api.tavily.com/search"
)

// TavilyProvider implements the Tavily Search API.
type TavilyProvider struct {
	apiURL string
	limit  int
	client *http.Client
}

func NewTavilyProvider(opts Options) *TavilyProvider {
	return &TavilyProvider{apiURL: opts.baseURL(defaultTavilyURL), limit: opts.limit(10), client: opts.client()}
}

func (p *TavilyProvider) Name() string { return ProviderTavily }

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth,omitempty"`
	MaxResults        int    `json:"max_results,omitempty"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		RawContent    string  `json:"raw_content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

func (p *TavilyProvider) Search(ctx context.Context, query, credential string) ([]Result, error) {
	body := tavilyRequest{
		APIKey:      credential,
		Query:       query,
		SearchDepth: "advanced",
		MaxResults:  p.limit,
	}
	var decoded tavilyResponse
	if err := postJSON(ctx, p.client, ProviderTavily, p.apiURL, body, &decoded); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(decoded.Results))
	for _, item := range decoded.Results {
		content := item.Content
		if strings.TrimSpace(content) == "" {
			content = item.RawContent
		}
		results = append(results, Result{
			Title:       item.Title,
			URL:         item.URL,
			Content:     strings.TrimSpace(content),
			Score:       item.Score,
			Source:      ProviderTavily,
			PublishedAt: item.PublishedDate,
		})
	}
	return results, nil
}

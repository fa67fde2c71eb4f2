package search

import (
	"context"
	"net/http"
	"strings"
)

const (
	ProviderExa   = "EXA"
	defaultExaURL = "https://api.exa.ai/search"
)

// ExaProvider runs neural search against Exa.
type ExaProvider struct {
	apiURL string
	limit  int
	client *http.Client
}

func NewExaProvider(opts Options) *ExaProvider {
	return &ExaProvider{apiURL: opts.baseURL(defaultExaURL), limit: opts.limit(10), client: opts.client()}
}

func (p *ExaProvider) Name() string { return ProviderExa }

type exaRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"numResults"`
	Type       string `json:"type"`
}

type exaResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Text          string  `json:"text"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"publishedDate"`
	} `json:"results"`
}

func (p *ExaProvider) Search(ctx context.Context, query, credential string) ([]Result, error) {
	body := exaRequest{Query: query, NumResults: p.limit, Type: "neural"}
	var decoded exaResponse
	if err := postJSON(ctx, p.client, ProviderExa, p.apiURL, body, &decoded, header{"x-api-key", credential}); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(decoded.Results))
	for _, item := range decoded.Results {
		results = append(results, Result{
			Title:       item.Title,
			URL:         item.URL,
			Content:     strings.TrimSpace(item.Text),
			Score:       item.Score,
			Source:      ProviderExa,
			PublishedAt: item.PublishedDate,
		})
	}
	return results, nil
}

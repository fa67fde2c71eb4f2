package search

import (
	"context"
	"net/http"
	"strings"
)

const (
	ProviderSerper   = "SERPER"
	defaultSerperURL = "https://google.serper.dev/search"
)

// SerperProvider queries Google through serper.dev.
type SerperProvider struct {
	apiURL string
	limit  int
	client *http.Client
}

func NewSerperProvider(opts Options) *SerperProvider {
	return &SerperProvider{apiURL: opts.baseURL(defaultSerperURL), limit: opts.limit(10), client: opts.client()}
}

func (p *SerperProvider) Name() string { return ProviderSerper }

type serperRequest struct {
	Q   string `json:"q"`
	GL  string `json:"gl"`
	HL  string `json:"hl"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic"`
}

func (p *SerperProvider) Search(ctx context.Context, query, credential string) ([]Result, error) {
	body := serperRequest{Q: query, GL: "br", HL: "pt", Num: p.limit}
	var decoded serperResponse
	if err := postJSON(ctx, p.client, ProviderSerper, p.apiURL, body, &decoded, header{"X-API-KEY", credential}); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(decoded.Organic))
	for _, item := range decoded.Organic {
		results = append(results, Result{
			Title:       item.Title,
			URL:         item.Link,
			Content:     strings.TrimSpace(item.Snippet),
			Source:      ProviderSerper,
			PublishedAt: item.Date,
		})
	}
	return results, nil
}

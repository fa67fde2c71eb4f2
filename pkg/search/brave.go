package search

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	ProviderBrave   = "BRAVE"
	defaultBraveURL = "https://api.search.brave.com/res/v1/web/search"
)

// BraveProvider implements the Brave Search API.
type BraveProvider struct {
	apiURL string
	limit  int
	client *http.Client
}

func NewBraveProvider(opts Options) *BraveProvider {
	return &BraveProvider{apiURL: opts.baseURL(defaultBraveURL), limit: opts.limit(10), client: opts.client()}
}

func (p *BraveProvider) Name() string { return ProviderBrave }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Age         string `json:"age"`
		} `json:"results"`
	} `json:"web"`
}

func (p *BraveProvider) Search(ctx context.Context, query, credential string) ([]Result, error) {
	endpoint, err := url.Parse(p.apiURL)
	if err != nil {
		return nil, transportError(ProviderBrave, err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(p.limit))
	q.Set("country", "BR")
	q.Set("search_lang", "pt-br")
	endpoint.RawQuery = q.Encode()

	var decoded braveResponse
	if err := getJSON(ctx, p.client, ProviderBrave, endpoint.String(), &decoded, header{"X-Subscription-Token", credential}); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(decoded.Web.Results))
	for _, item := range decoded.Web.Results {
		results = append(results, Result{
			Title:       item.Title,
			URL:         item.URL,
			Content:     strings.TrimSpace(item.Description),
			Source:      ProviderBrave,
			PublishedAt: item.Age,
		})
	}
	return results, nil
}

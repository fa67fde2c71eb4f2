package search

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	ProviderGoogle   = "GOOGLE"
	defaultGoogleURL = "https://www.googleapis.com/customsearch/v1"
)

// GoogleProvider queries Google Custom Search restricted to Brazilian
// Portuguese results.
type GoogleProvider struct {
	apiURL string
	cseID  string
	limit  int
	client *http.Client
}

func NewGoogleProvider(opts Options) *GoogleProvider {
	return &GoogleProvider{
		apiURL: opts.baseURL(defaultGoogleURL),
		cseID:  strings.TrimSpace(opts.GoogleCSEID),
		limit:  opts.limit(10),
		client: opts.client(),
	}
}

func (p *GoogleProvider) Name() string { return ProviderGoogle }

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (p *GoogleProvider) Search(ctx context.Context, query, credential string) ([]Result, error) {
	if p.cseID == "" {
		return nil, unavailableError(ProviderGoogle, "GOOGLE_CSE_ID is not configured")
	}
	endpoint, err := url.Parse(p.apiURL)
	if err != nil {
		return nil, transportError(ProviderGoogle, err)
	}
	q := endpoint.Query()
	q.Set("key", credential)
	q.Set("cx", p.cseID)
	q.Set("q", query+" Brasil 2024")
	q.Set("num", strconv.Itoa(p.limit))
	q.Set("lr", "lang_pt")
	q.Set("gl", "br")
	endpoint.RawQuery = q.Encode()

	var decoded googleResponse
	if err := getJSON(ctx, p.client, ProviderGoogle, endpoint.String(), &decoded); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		results = append(results, Result{
			Title:   item.Title,
			URL:     item.Link,
			Content: strings.TrimSpace(item.Snippet),
			Source:  ProviderGoogle,
		})
	}
	return results, nil
}

package search

import (
	"context"
	"net/http"
	"strings"
)

const (
	ProviderJina      = "JINA"
	defaultJinaURL    = "https://r.jina.ai/"
	jinaContentLength = 1000
)

// JinaProvider reads a Google results page through the Jina reader.
type JinaProvider struct {
	apiURL string
	client *http.Client
}

func NewJinaProvider(opts Options) *JinaProvider {
	base := opts.baseURL(defaultJinaURL)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &JinaProvider{apiURL: base, client: opts.client()}
}

func (p *JinaProvider) Name() string { return ProviderJina }

func (p *JinaProvider) Search(ctx context.Context, query, credential string) ([]Result, error) {
	target := googleResultsURL(query)
	body, err := getText(ctx, p.client, ProviderJina, p.apiURL+target, bearer(credential))
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(body)
	if content == "" {
		return []Result{}, nil
	}
	if r := []rune(content); len(r) > jinaContentLength {
		content = string(r[:jinaContentLength])
	}
	return []Result{{
		Title:   "Jina: " + query,
		URL:     target,
		Content: content,
		Source:  ProviderJina,
	}}, nil
}

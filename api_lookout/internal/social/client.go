// Package social talks to the social media aggregator API.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNoCredential is returned when the aggregator has no key configured.
var ErrNoCredential = errors.New("social aggregator has no credential")

// Aggregator searches a single platform.
type Aggregator interface {
	SearchPlatform(ctx context.Context, query, platform string, limit int) ([]Post, error)
}

// Credentials hands out the aggregator key for each call.
type Credentials interface {
	Next(provider string) (string, bool)
}

// Client is the HTTP aggregator client.
type Client struct {
	baseURL  string
	provider string
	creds    Credentials
	http     *http.Client
}

// ClientConfig configures the aggregator client.
type ClientConfig struct {
	BaseURL    string
	Provider   string
	HTTPClient *http.Client
}

func NewClient(cfg ClientConfig, creds Credentials) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("social aggregator url is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		provider: cfg.Provider,
		creds:    creds,
		http:     hc,
	}, nil
}

type searchResponse struct {
	Results []map[string]any `json:"results"`
}

func (c *Client) SearchPlatform(ctx context.Context, query, platform string, limit int) ([]Post, error) {
	key, ok := c.creds.Next(c.provider)
	if !ok {
		return nil, ErrNoCredential
	}

	endpoint, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("parse aggregator url: %w", err)
	}
	q := endpoint.Query()
	q.Set("query", query)
	q.Set("platform", platform)
	q.Set("limit", strconv.Itoa(limit))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create aggregator request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aggregator request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("aggregator %s request failed with status %d", platform, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var decoded searchResponse
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode aggregator response: %w", err)
	}

	posts := make([]Post, 0, len(decoded.Results))
	for _, raw := range decoded.Results {
		if limit > 0 && len(posts) >= limit {
			break
		}
		posts = append(posts, Normalize(platform, raw))
	}
	return posts, nil
}

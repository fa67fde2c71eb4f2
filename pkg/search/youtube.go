package search

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	ProviderYouTube   = "YOUTUBE"
	defaultYouTubeURL = "https://www.googleapis.com/youtube/v3/search"
)

// YouTubeProvider lists the most viewed videos for a query.
type YouTubeProvider struct {
	apiURL string
	limit  int
	client *http.Client
}

func NewYouTubeProvider(opts Options) *YouTubeProvider {
	return &YouTubeProvider{apiURL: opts.baseURL(defaultYouTubeURL), limit: opts.limit(25), client: opts.client()}
}

func (p *YouTubeProvider) Name() string { return ProviderYouTube }

type youtubeResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

func (p *YouTubeProvider) Search(ctx context.Context, query, credential string) ([]Result, error) {
	endpoint, err := url.Parse(p.apiURL)
	if err != nil {
		return nil, transportError(ProviderYouTube, err)
	}
	q := endpoint.Query()
	q.Set("part", "snippet")
	q.Set("q", query+" Brasil")
	q.Set("key", credential)
	q.Set("maxResults", strconv.Itoa(p.limit))
	q.Set("order", "viewCount")
	q.Set("type", "video")
	endpoint.RawQuery = q.Encode()

	var decoded youtubeResponse
	if err := getJSON(ctx, p.client, ProviderYouTube, endpoint.String(), &decoded); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		if item.ID.VideoID == "" {
			continue
		}
		results = append(results, Result{
			Title:       item.Snippet.Title,
			URL:         "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			Content:     strings.TrimSpace(item.Snippet.Description),
			Source:      ProviderYouTube,
			PublishedAt: item.Snippet.PublishedAt,
		})
	}
	return results, nil
}

// Package crawl performs the deep-crawl phase: meta-search seeds followed
// by a bounded breadth-first crawl of same-host links.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"frameworks/pkg/cache"
	"frameworks/pkg/logging"
	"frameworks/pkg/search"
)

const (
	maxPageBytes       = 5 << 20
	defaultConcurrency = 4
	defaultSeedLimit   = 10
)

// ErrNoSeedProvider is returned when no meta-search backend is configured.
var ErrNoSeedProvider = errors.New("crawl: no seed provider configured")

// Options bound one crawl.
type Options struct {
	MaxPages    int
	DepthLevels int
}

// Page is one crawled document.
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Depth   int    `json:"depth"`
}

// Result is the outcome of one crawl.
type Result struct {
	Query  string `json:"query"`
	Seeds  int    `json:"seeds"`
	Pages  []Page `json:"pages"`
	Failed int    `json:"failed"`
}

type Crawler struct {
	seeds             search.Provider
	client            *http.Client
	logger            logging.Logger
	userAgent         string
	concurrency       int
	seedLimit         int
	skipURLValidation bool
	pages             *cache.Cache[cachedPage]
}

type cachedPage struct {
	page  Page
	links []string
}

type Option func(*Crawler)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Crawler) { c.client = client }
}

func WithLogger(logger logging.Logger) Option {
	return func(c *Crawler) { c.logger = logger }
}

func WithConcurrency(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithPageCache keeps fetched pages for ttl so repeated crawls of the same
// hosts do not refetch them.
func WithPageCache(ttl time.Duration, maxEntries int) Option {
	return func(c *Crawler) {
		if ttl <= 0 {
			return
		}
		c.pages = cache.New[cachedPage](cache.Options{TTL: ttl, MaxEntries: maxEntries}, cache.MetricsHooks{
			OnHit:  func() { pageCacheTotal.WithLabelValues("hit").Inc() },
			OnMiss: func() { pageCacheTotal.WithLabelValues("miss").Inc() },
		})
	}
}

func withSkipURLValidation() Option {
	return func(c *Crawler) { c.skipURLValidation = true }
}

func NewCrawler(seeds search.Provider, opts ...Option) (*Crawler, error) {
	if seeds == nil {
		return nil, ErrNoSeedProvider
	}
	c := &Crawler{
		seeds:       seeds,
		userAgent:   "LookoutBot/1.0",
		concurrency: defaultConcurrency,
		seedLimit:   defaultSeedLimit,
		logger:      logging.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 20 * time.Second, Transport: newGuardedTransport()}
	} else {
		// The caller's client is left untouched.
		cp := *c.client
		c.client = &cp
	}
	c.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return fmt.Errorf("stopped after 5 redirects")
		}
		if !c.skipURLValidation {
			if _, err := validateTarget(req.Context(), req.URL.String()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
		}
		return nil
	}
	return c, nil
}

type queued struct {
	url   string
	depth int
}

type fetched struct {
	page  Page
	links []string
	err   error
}

// Crawl seeds from the meta-search provider and walks outward level by
// level until MaxPages pages are collected or DepthLevels is exhausted.
func (c *Crawler) Crawl(ctx context.Context, query string, opts Options) (*Result, error) {
	if opts.MaxPages <= 0 || opts.DepthLevels <= 0 {
		return &Result{Query: query, Pages: []Page{}}, nil
	}
	seeds, err := c.seeds.Search(ctx, query, search.SearchOptions{Limit: c.seedLimit})
	if err != nil {
		return nil, fmt.Errorf("crawl seeds: %w", err)
	}

	res := &Result{Query: query, Pages: []Page{}}
	visited := make(map[string]bool)
	var frontier []queued
	for _, s := range seeds {
		if s.URL == "" || visited[s.URL] {
			continue
		}
		visited[s.URL] = true
		frontier = append(frontier, queued{url: s.URL})
	}
	res.Seeds = len(frontier)

	for len(frontier) > 0 && len(res.Pages) < opts.MaxPages {
		if ctx.Err() != nil {
			break
		}
		budget := opts.MaxPages - len(res.Pages)
		if len(frontier) > budget {
			frontier = frontier[:budget]
		}
		outcomes := c.fetchLevel(ctx, frontier)

		var next []queued
		for i, out := range outcomes {
			if out.err != nil {
				res.Failed++
				c.logger.WithError(out.err).WithField("url", frontier[i].url).Debug("Crawl fetch failed")
				continue
			}
			res.Pages = append(res.Pages, out.page)
			if frontier[i].depth+1 >= opts.DepthLevels {
				continue
			}
			for _, link := range out.links {
				if visited[link] {
					continue
				}
				visited[link] = true
				next = append(next, queued{url: link, depth: frontier[i].depth + 1})
			}
		}
		frontier = next
	}

	c.logger.WithFields(logging.Fields{
		"query":  query,
		"seeds":  res.Seeds,
		"pages":  len(res.Pages),
		"failed": res.Failed,
	}).Info("Deep crawl finished")
	return res, nil
}

func (c *Crawler) fetchLevel(ctx context.Context, level []queued) []fetched {
	out := make([]fetched, len(level))
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for i, q := range level {
		g.Go(func() error {
			page, links, err := c.fetch(ctx, q.url)
			page.Depth = q.depth
			out[i] = fetched{page: page, links: links, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (c *Crawler) fetch(ctx context.Context, pageURL string) (Page, []string, error) {
	if c.pages == nil {
		return c.fetchPage(ctx, pageURL)
	}
	cp, err := c.pages.Load(ctx, pageURL, func(ctx context.Context, u string) (cachedPage, error) {
		page, links, err := c.fetchPage(ctx, u)
		return cachedPage{page: page, links: links}, err
	})
	if err != nil {
		return Page{}, nil, err
	}
	return cp.page, cp.links, nil
}

func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (Page, []string, error) {
	if c.skipURLValidation {
		if _, err := checkScheme(pageURL); err != nil {
			return Page{}, nil, err
		}
	} else if _, err := validateTarget(ctx, pageURL); err != nil {
		return Page{}, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := c.client.Do(req)
	if err != nil {
		return Page{}, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Page{}, nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, nil, err
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/plain" || mediaType == "text/markdown" {
		text := normalizeContent(string(data))
		return Page{URL: pageURL, Content: text}, nil, nil
	}
	if mediaType != "" && !strings.Contains(mediaType, "html") {
		return Page{}, nil, fmt.Errorf("unsupported content type %q", mediaType)
	}
	title, content := extractContent(data, pageURL)
	return Page{URL: pageURL, Title: title, Content: content}, extractLinks(data, pageURL), nil
}

// Package pipeline runs the multi-phase search: deep crawl, keyed API
// fan-out, social fan-out, viral selection and capture hand-off.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"frameworks/api_lookout/internal/capture"
	"frameworks/api_lookout/internal/crawl"
	"frameworks/api_lookout/internal/social"
	"frameworks/api_lookout/internal/viral"
	"frameworks/pkg/clients"
	"frameworks/pkg/logging"
	"frameworks/pkg/search"
)

var (
	ErrNilRequest       = errors.New("pipeline: request is required")
	ErrEmptyQuery       = errors.New("pipeline: query is required")
	ErrMissingSessionID = errors.New("pipeline: session id is required")
)

// Crawler is the deep-crawl collaborator.
type Crawler interface {
	Crawl(ctx context.Context, query string, opts crawl.Options) (*crawl.Result, error)
}

// Credentials hands out one credential per provider call.
type Credentials interface {
	Next(provider string) (string, bool)
}

// Config holds the orchestrator's knobs. Zero values take the defaults.
type Config struct {
	DeepCrawlEnabled bool
	SocialEnabled    bool
	CaptureEnabled   bool

	ProviderTimeout time.Duration
	APIDelay        time.Duration
	APIConcurrency  int

	CrawlMaxPages int
	CrawlDepth    int
	CrawlTimeout  time.Duration

	SocialPlatforms []string
	SocialLimit     int
	SocialDelay     time.Duration

	CaptureMax int
}

// DefaultPlatforms is the social fan-out order.
var DefaultPlatforms = []string{"youtube", "instagram", "twitter", "tiktok", "facebook"}

func DefaultConfig() Config {
	return Config{
		DeepCrawlEnabled: true,
		SocialEnabled:    true,
		CaptureEnabled:   true,
		ProviderTimeout:  30 * time.Second,
		APIDelay:         500 * time.Millisecond,
		APIConcurrency:   2,
		CrawlMaxPages:    50,
		CrawlDepth:       4,
		CrawlTimeout:     5 * time.Minute,
		SocialPlatforms:  DefaultPlatforms,
		SocialLimit:      25,
		SocialDelay:      300 * time.Millisecond,
		CaptureMax:       15,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = d.ProviderTimeout
	}
	if c.APIDelay < 0 {
		c.APIDelay = 0
	}
	if c.APIConcurrency <= 0 {
		c.APIConcurrency = d.APIConcurrency
	}
	if c.CrawlMaxPages <= 0 {
		c.CrawlMaxPages = d.CrawlMaxPages
	}
	if c.CrawlDepth <= 0 {
		c.CrawlDepth = d.CrawlDepth
	}
	if c.CrawlTimeout <= 0 {
		c.CrawlTimeout = d.CrawlTimeout
	}
	if len(c.SocialPlatforms) == 0 {
		c.SocialPlatforms = d.SocialPlatforms
	}
	if c.SocialLimit <= 0 {
		c.SocialLimit = d.SocialLimit
	}
	if c.SocialDelay < 0 {
		c.SocialDelay = 0
	}
	if c.CaptureMax <= 0 {
		c.CaptureMax = d.CaptureMax
	}
	return c
}

// Deps are the orchestrator's collaborators. Crawler, Social, Capturer and
// Breakers may be nil.
type Deps struct {
	Providers   []search.KeyedProvider
	Credentials Credentials
	Crawler     Crawler
	Social      social.Aggregator
	Capturer    capture.Capturer
	Scorer      *viral.Scorer
	Breakers    *clients.BreakerSet
	Logger      logging.Logger
}

type Orchestrator struct {
	cfg  Config
	deps Deps
	log  logging.Logger
}

func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Credentials == nil {
		return nil, errors.New("pipeline: credentials are required")
	}
	if deps.Scorer == nil {
		deps.Scorer = viral.NewScorer(viral.DefaultCalibration())
	}
	log := deps.Logger
	if log == nil {
		log = logging.NewDiscardLogger()
	}
	return &Orchestrator{cfg: cfg.withDefaults(), deps: deps, log: log}, nil
}

// Breakers returns the per-provider breakers, or nil when they are disabled.
func (o *Orchestrator) Breakers() *clients.BreakerSet { return o.deps.Breakers }

// Run executes all phases in order. A failing phase is recorded and the run
// continues; only invalid requests return an error.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*SearchState, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, ErrMissingSessionID
	}

	start := time.Now()
	state := &SearchState{
		SessionID:           req.SessionID,
		Query:               query,
		Context:             req.Context,
		ViralContent:        []ViralPost{},
		ScreenshotsCaptured: []capture.Screenshot{},
		SocialResults:       emptySocial(),
		StartedAt:           start.UTC(),
	}
	log := o.log.WithFields(logging.Fields{"session_id": req.SessionID, "query": query})

	log.Info("Phase 1: deep crawl")
	state.WebsailorResults = o.deepCrawl(ctx, query, log)
	state.Statistics.WebsailorPages = len(state.WebsailorResults.Pages)

	log.Info("Phase 2: keyed API fan-out")
	state.APIResults = o.searchAPIs(ctx, query, log)
	for _, pr := range state.APIResults {
		state.Statistics.APISources += len(pr.Items)
	}

	if o.cfg.SocialEnabled && o.deps.Social != nil {
		log.Info("Phase 3: social fan-out")
		state.SocialResults = o.searchSocial(ctx, query, log)
	}
	state.Statistics.SocialPosts = state.SocialResults.TotalPosts

	log.Info("Phase 4: viral selection")
	state.ViralContent = o.selectViral(state.SocialResults.AllPosts)

	if o.cfg.CaptureEnabled && o.deps.Capturer != nil && len(state.ViralContent) > 0 {
		log.WithField("viral_posts", len(state.ViralContent)).Info("Phase 5: capture hand-off")
		state.ScreenshotsCaptured = o.captureViral(ctx, req.SessionID, state.ViralContent, log)
	}

	elapsed := time.Since(start)
	state.Statistics.ScreenshotsCount = len(state.ScreenshotsCaptured)
	state.Statistics.TotalSources = state.Statistics.WebsailorPages + state.Statistics.APISources + state.Statistics.SocialPosts
	state.Statistics.SearchDuration = elapsed.Seconds()
	state.CompletedAt = time.Now().UTC()
	runDuration.Observe(elapsed.Seconds())

	log.WithFields(logging.Fields{
		"total_sources":   state.Statistics.TotalSources,
		"websailor_pages": state.Statistics.WebsailorPages,
		"api_sources":     state.Statistics.APISources,
		"api_successful":  state.APIResults.Successful(),
		"social_posts":    state.Statistics.SocialPosts,
		"viral_posts":     len(state.ViralContent),
		"screenshots":     state.Statistics.ScreenshotsCount,
		"duration":        elapsed.String(),
	}).Info("Search run finished")
	return state, nil
}

func emptySocial() SocialResults {
	return SocialResults{
		AllPosts:          []social.Post{},
		PlatformResults:   map[string][]social.Post{},
		PlatformsSearched: []string{},
		Errors:            map[string]string{},
	}
}

func (o *Orchestrator) deepCrawl(ctx context.Context, query string, log *logrus.Entry) *crawl.Result {
	empty := &crawl.Result{Query: query, Pages: []crawl.Page{}}
	if !o.cfg.DeepCrawlEnabled || o.deps.Crawler == nil {
		return empty
	}
	opts := crawl.Options{MaxPages: o.cfg.CrawlMaxPages, DepthLevels: o.cfg.CrawlDepth}
	res, err := bounded(ctx, o.cfg.CrawlTimeout, func(ctx context.Context) (*crawl.Result, error) {
		return o.deps.Crawler.Crawl(ctx, query, opts)
	})
	if err != nil || res == nil {
		log.WithError(err).Warn("Deep crawl failed")
		return empty
	}
	if res.Pages == nil {
		res.Pages = []crawl.Page{}
	}
	return res
}

func (o *Orchestrator) searchAPIs(ctx context.Context, query string, log *logrus.Entry) search.ProviderResults {
	results := make(search.ProviderResults, len(o.deps.Providers))

	limit := rate.Inf
	if o.cfg.APIDelay > 0 {
		limit = rate.Every(o.cfg.APIDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.APIConcurrency)
	for i, p := range o.deps.Providers {
		name := p.Name()
		credential, ok := o.deps.Credentials.Next(name)
		if !ok {
			results[i] = search.Skipped(name, "no credentials configured")
			providerCallsTotal.WithLabelValues(name, "skipped").Inc()
			continue
		}
		g.Go(func() error {
			results[i] = o.callProvider(ctx, limiter, p, query, credential)
			return nil
		})
	}
	_ = g.Wait()

	for _, pr := range results {
		entry := log.WithFields(logging.Fields{"provider": pr.Provider, "items": len(pr.Items), "duration_ms": pr.DurationMS})
		switch {
		case pr.Success:
			entry.Info("Provider search succeeded")
		case pr.Skipped:
			entry.Debug("Provider skipped")
		default:
			entry.WithFields(logging.Fields{"error": pr.Error, "error_kind": pr.ErrorKind}).Warn("Provider search failed")
		}
	}
	return results
}

func (o *Orchestrator) callProvider(ctx context.Context, limiter *rate.Limiter, p search.KeyedProvider, query, credential string) search.ProviderResult {
	name := p.Name()
	if err := limiter.Wait(ctx); err != nil {
		res := search.Failed(name, &search.ProviderError{Provider: name, Kind: search.KindTimeout, Err: err}, 0)
		providerCallsTotal.WithLabelValues(name, string(res.ErrorKind)).Inc()
		return res
	}

	var res search.ProviderResult
	if o.deps.Breakers == nil {
		res = search.Invoke(ctx, p, query, credential, o.cfg.ProviderTimeout)
	} else {
		err := o.deps.Breakers.Get(name).Call(ctx, func(ctx context.Context) error {
			res = search.Invoke(ctx, p, query, credential, o.cfg.ProviderTimeout)
			if !res.Success {
				return errors.New(res.Error)
			}
			return nil
		})
		switch {
		case clients.IsOpenErr(err):
			res = search.Failed(name, &search.ProviderError{Provider: name, Kind: search.KindTransport, Err: fmt.Errorf("circuit open: %w", err)}, 0)
		case res.Provider == "" && err != nil:
			res = search.Failed(name, err, 0)
		}
	}

	outcome := "success"
	if !res.Success {
		outcome = string(res.ErrorKind)
	}
	providerCallsTotal.WithLabelValues(name, outcome).Inc()
	providerDuration.WithLabelValues(name).Observe(float64(res.DurationMS) / 1000)
	return res
}

func (o *Orchestrator) searchSocial(ctx context.Context, query string, log *logrus.Entry) SocialResults {
	out := emptySocial()
	for i, platform := range o.cfg.SocialPlatforms {
		if i > 0 && o.cfg.SocialDelay > 0 {
			select {
			case <-time.After(o.cfg.SocialDelay):
			case <-ctx.Done():
			}
		}
		posts, err := bounded(ctx, o.cfg.ProviderTimeout, func(ctx context.Context) ([]social.Post, error) {
			return o.deps.Social.SearchPlatform(ctx, query, platform, o.cfg.SocialLimit)
		})
		out.PlatformsSearched = append(out.PlatformsSearched, platform)
		if err != nil {
			out.Errors[platform] = err.Error()
			out.PlatformResults[platform] = []social.Post{}
			socialPlatformTotal.WithLabelValues(platform, "error").Inc()
			log.WithError(err).WithField("platform", platform).Warn("Social platform search failed")
			continue
		}
		if posts == nil {
			posts = []social.Post{}
		}
		out.PlatformResults[platform] = posts
		out.AllPosts = append(out.AllPosts, posts...)
		socialPlatformTotal.WithLabelValues(platform, "success").Inc()
	}
	out.TotalPosts = len(out.AllPosts)
	return out
}

func (o *Orchestrator) selectViral(posts []social.Post) []ViralPost {
	postsScoredTotal.Add(float64(len(posts)))
	selected := viral.Select(o.deps.Scorer, posts)
	out := make([]ViralPost, 0, len(selected))
	for _, s := range selected {
		out = append(out, ViralPost{Post: s.Item, ViralScore: s.Score, ViralCategory: s.Category})
		viralSelectedTotal.WithLabelValues(string(s.Category)).Inc()
	}
	return out
}

func (o *Orchestrator) captureViral(ctx context.Context, sessionID string, posts []ViralPost, log *logrus.Entry) (shots []capture.Screenshot) {
	shots = []capture.Screenshot{}
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Capture panicked")
			shots = []capture.Screenshot{}
		}
	}()

	targets := make([]capture.Target, 0, len(posts))
	for _, p := range posts {
		title := p.Title
		if title == "" {
			title = p.Text
		}
		targets = append(targets, capture.Target{
			URL:      p.URL,
			Platform: p.Platform,
			Title:    title,
			Score:    p.ViralScore,
			Category: string(p.ViralCategory),
		})
	}
	got, err := o.deps.Capturer.Capture(ctx, sessionID, targets, o.cfg.CaptureMax)
	if err != nil {
		log.WithError(err).Warn("Capture failed")
		return []capture.Screenshot{}
	}
	if got == nil {
		return []capture.Screenshot{}
	}
	return got
}

// bounded runs fn under a deadline it cannot ignore, the way search.Invoke
// bounds keyed providers. A panic in fn comes back as an error. On timeout
// fn keeps running in its goroutine with a cancelled context.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", rec)}
			}
		}()
		val, err := fn(callCtx)
		done <- outcome{val: val, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case out := <-done:
		return out.val, out.err
	case <-timer.C:
		return zero, fmt.Errorf("%w: no response after %s", context.DeadlineExceeded, timeout)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

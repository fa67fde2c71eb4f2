package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"frameworks/api_lookout/internal/capture"
	"frameworks/api_lookout/internal/crawl"
	"frameworks/api_lookout/internal/keys"
	"frameworks/api_lookout/internal/social"
	"frameworks/api_lookout/internal/viral"
	"frameworks/pkg/clients"
	"frameworks/pkg/logging"
	"frameworks/pkg/search"
)

type fakeProvider struct {
	name  string
	items int
	err   error
	delay time.Duration

	mu    sync.Mutex
	creds []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, query, credential string) ([]search.Result, error) {
	f.mu.Lock()
	f.creds = append(f.creds, credential)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]search.Result, f.items)
	for i := range out {
		out[i] = search.Result{Title: fmt.Sprintf("%s-%d", f.name, i), URL: fmt.Sprintf("https://%s.example/%d", strings.ToLower(f.name), i)}
	}
	return out, nil
}

type fakeSocial struct {
	posts  map[string][]social.Post
	fail   map[string]bool
	panics map[string]bool
	// hang blocks the named platform until the channel closes, ignoring ctx.
	hang map[string]chan struct{}

	mu    sync.Mutex
	calls []string
}

func (f *fakeSocial) SearchPlatform(ctx context.Context, query, platform string, limit int) ([]social.Post, error) {
	f.mu.Lock()
	f.calls = append(f.calls, platform)
	f.mu.Unlock()
	if ch, ok := f.hang[platform]; ok {
		<-ch
	}
	if f.panics[platform] {
		var seen map[string]int
		seen[platform]++
	}
	if f.fail[platform] {
		return nil, errors.New("aggregator unavailable")
	}
	return f.posts[platform], nil
}

func (f *fakeSocial) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeCapturer struct {
	calls   int
	targets []capture.Target
	max     int
	err     error
}

func (f *fakeCapturer) Capture(ctx context.Context, sessionID string, targets []capture.Target, max int) ([]capture.Screenshot, error) {
	f.calls++
	f.targets = targets
	f.max = max
	if f.err != nil {
		return nil, f.err
	}
	out := make([]capture.Screenshot, 0, len(targets))
	for i, t := range targets {
		out = append(out, capture.Screenshot{URL: t.URL, Path: fmt.Sprintf("files/%d.png", i)})
	}
	return out, nil
}

type fakeCrawler struct {
	pages  int
	err    error
	panics bool
	hang   chan struct{}
}

func (f fakeCrawler) Crawl(ctx context.Context, query string, opts crawl.Options) (*crawl.Result, error) {
	if f.hang != nil {
		<-f.hang
	}
	if f.panics {
		panic("crawler exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	res := &crawl.Result{Query: query}
	for i := 0; i < f.pages && i < opts.MaxPages; i++ {
		res.Pages = append(res.Pages, crawl.Page{URL: fmt.Sprintf("https://crawl.example/%d", i)})
	}
	return res, nil
}

func testConfig() Config {
	return Config{
		SocialEnabled:   true,
		CaptureEnabled:  true,
		ProviderTimeout: time.Second,
		APIConcurrency:  2,
	}
}

func youtubePost(url string, views float64) social.Post {
	return social.Post{Platform: "youtube", URL: url, Counters: map[string]float64{viral.Views: views}}
}

func TestRunRejectsInvalidRequests(t *testing.T) {
	o, err := New(testConfig(), Deps{Credentials: keys.New(nil, nil)})
	require.NoError(t, err)

	_, err = o.Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrNilRequest)
	_, err = o.Run(context.Background(), &Request{SessionID: "s", Query: "  "})
	require.ErrorIs(t, err, ErrEmptyQuery)
	_, err = o.Run(context.Background(), &Request{Query: "q"})
	require.ErrorIs(t, err, ErrMissingSessionID)
}

func TestRunMixedProviderOutcomes(t *testing.T) {
	ok := &fakeProvider{name: keys.Serper, items: 3}
	bad := &fakeProvider{name: keys.Exa, err: &search.ProviderError{Provider: keys.Exa, Kind: search.KindParse, Err: errors.New("bad json")}}
	none := &fakeProvider{name: keys.Jina}
	reg := keys.New([]string{keys.Serper, keys.Exa, keys.Jina}, map[string][]string{
		keys.Serper: {"s1"},
		keys.Exa:    {"e1"},
	})

	o, err := New(testConfig(), Deps{
		Providers:   []search.KeyedProvider{ok, bad, none},
		Credentials: reg,
	})
	require.NoError(t, err)

	state, err := o.Run(context.Background(), &Request{SessionID: "s1", Query: "cafeterias"})
	require.NoError(t, err)
	require.Len(t, state.APIResults, 3)

	serper, found := state.APIResults.Get(keys.Serper)
	require.True(t, found)
	require.True(t, serper.Success)
	require.Len(t, serper.Items, 3)

	exa, _ := state.APIResults.Get(keys.Exa)
	require.False(t, exa.Success)
	require.Equal(t, search.KindParse, exa.ErrorKind)
	require.NotNil(t, exa.Items)
	require.Empty(t, exa.Items)

	jina, _ := state.APIResults.Get(keys.Jina)
	require.True(t, jina.Skipped)
	require.Equal(t, search.KindUnavailable, jina.ErrorKind)
	require.Empty(t, none.creds, "provider without credentials must not be called")

	require.Equal(t, 3, state.Statistics.APISources)
	require.Equal(t, []string{keys.Serper, keys.Exa, keys.Jina}, []string{state.APIResults[0].Provider, state.APIResults[1].Provider, state.APIResults[2].Provider})
}

func TestRunEnforcesProviderTimeout(t *testing.T) {
	slow := &fakeProvider{name: keys.Firecrawl, delay: 2 * time.Second}
	reg := keys.New([]string{keys.Firecrawl}, map[string][]string{keys.Firecrawl: {"k"}})
	cfg := testConfig()
	cfg.ProviderTimeout = 50 * time.Millisecond

	o, _ := New(cfg, Deps{Providers: []search.KeyedProvider{slow}, Credentials: reg})
	start := time.Now()
	state, err := o.Run(context.Background(), &Request{SessionID: "s", Query: "q"})
	require.NoError(t, err)
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, search.KindTimeout, state.APIResults[0].ErrorKind)
}

type countingProvider struct {
	name     string
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (c countingProvider) Name() string { return c.name }

func (c countingProvider) Search(ctx context.Context, query, credential string) ([]search.Result, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(30 * time.Millisecond)
	return nil, nil
}

func TestRunBoundsAPIConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	names := []string{"P1", "P2", "P3", "P4", "P5", "P6"}
	creds := map[string][]string{}
	var providers []search.KeyedProvider
	for _, n := range names {
		creds[n] = []string{"k"}
		providers = append(providers, countingProvider{name: n, inFlight: &inFlight, peak: &peak})
	}

	o, _ := New(testConfig(), Deps{Providers: providers, Credentials: keys.New(names, creds)})
	state, err := o.Run(context.Background(), &Request{SessionID: "s", Query: "q"})
	require.NoError(t, err)
	require.LessOrEqual(t, peak.Load(), int32(2))
	for i, pr := range state.APIResults {
		require.Equal(t, names[i], pr.Provider)
		require.True(t, pr.Success)
	}
}

func TestRunSpacesCallStarts(t *testing.T) {
	names := []string{"A", "B", "C"}
	creds := map[string][]string{"A": {"k"}, "B": {"k"}, "C": {"k"}}
	var providers []search.KeyedProvider
	for _, n := range names {
		providers = append(providers, &fakeProvider{name: n})
	}
	cfg := testConfig()
	cfg.APIDelay = 40 * time.Millisecond

	o, _ := New(cfg, Deps{Providers: providers, Credentials: keys.New(names, creds)})
	start := time.Now()
	_, err := o.Run(context.Background(), &Request{SessionID: "s", Query: "q"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond, "three starts need two full delays")
}

func TestRunOpenBreakerIsTransportFailure(t *testing.T) {
	failing := &fakeProvider{name: keys.Serper, err: errors.New("boom")}
	reg := keys.New([]string{keys.Serper}, map[string][]string{keys.Serper: {"k"}})
	tmpl := clients.DefaultCircuitBreakerConfig("providers")
	tmpl.FailureThreshold = 1
	tmpl.MinRequests = 1
	breakers := clients.NewBreakerSet(tmpl)

	o, _ := New(testConfig(), Deps{Providers: []search.KeyedProvider{failing}, Credentials: reg, Breakers: breakers})
	_, err := o.Run(context.Background(), &Request{SessionID: "s", Query: "q"})
	require.NoError(t, err)
	require.Equal(t, clients.StateOpen, breakers.Get(keys.Serper).State())
	require.Equal(t, map[string]clients.CircuitBreakerState{keys.Serper: clients.StateOpen}, o.Breakers().States())

	state, err := o.Run(context.Background(), &Request{SessionID: "s", Query: "q"})
	require.NoError(t, err)
	require.Equal(t, search.KindTransport, state.APIResults[0].ErrorKind)
	require.Contains(t, state.APIResults[0].Error, "circuit open")
	require.Len(t, failing.creds, 1, "open breaker must not reach the provider")
}

func TestRunSocialFanOutAndViralSelection(t *testing.T) {
	agg := &fakeSocial{
		posts: map[string][]social.Post{
			"youtube": {
				youtubePost("https://yt/low", 1000),
				youtubePost("https://yt/edge", 600000),
				youtubePost("https://yt/top", 5000000),
			},
			"tiktok": {{Platform: "tiktok", URL: "https://tt/1", Counters: map[string]float64{viral.Views: 4000000, viral.Likes: 50000, viral.Shares: 5000}}},
		},
		fail: map[string]bool{"twitter": true},
	}
	capt := &fakeCapturer{}

	o, _ := New(testConfig(), Deps{Credentials: keys.New(nil, nil), Social: agg, Capturer: capt})
	state, err := o.Run(context.Background(), &Request{SessionID: "s", Query: "q"})
	require.NoError(t, err)

	require.Equal(t, DefaultPlatforms, agg.called())
	require.Equal(t, DefaultPlatforms, state.SocialResults.PlatformsSearched)
	require.Equal(t, 4, state.SocialResults.TotalPosts)
	require.Contains(t, state.SocialResults.Errors, "twitter")
	require.NotNil(t, state.SocialResults.PlatformResults["twitter"])
	require.Empty(t, state.SocialResults.PlatformResults["twitter"])

	require.Len(t, state.ViralContent, 3)
	require.Equal(t, "https://yt/top", state.ViralContent[0].URL)
	require.Equal(t, viral.MegaViral, state.ViralContent[0].ViralCategory)
	require.Equal(t, "https://yt/edge", state.ViralContent[2].URL)
	require.Equal(t, viral.Trending, state.ViralContent[2].ViralCategory)

	require.Equal(t, 1, capt.calls)
	require.Equal(t, 15, capt.max)
	require.Len(t, state.ScreenshotsCaptured, 3)
	require.Equal(t, 3, state.Statistics.ScreenshotsCount)
}

func TestRunSkipsCaptureWithoutViralPosts(t *testing.T) {
	agg := &fakeSocial{posts: map[string][]social.Post{"youtube": {youtubePost("https://yt/a", 10)}}}
	capt := &fakeCapturer{}

	o, _ := New(testConfig(), Deps{Credentials: keys.New(nil, nil), Social: agg, Capturer: capt})
	state, err := o.Run(context.Background(), &Request{SessionID: "s", Query: "q"})
	require.NoError(t, err)
	require.Equal(t, 0, capt.calls)
	require.NotNil(t, state.ScreenshotsCaptured)
	require.Empty(t, state.ScreenshotsCaptured)

	raw, err := json.Marshal(state)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"screenshots_captured":[]`)
	require.Contains(t, string(raw), `"viral_content":[]`)
}

func TestRunAbsorbsCaptureFailure(t *testing.T) {
	agg := &fakeSocial{posts: map[string][]social.Post{"youtube": {youtubePost("https://yt/a", 9000000)}}}
	capt := &fakeCapturer{err: errors.New("chrome crashed")}

	o, _ := New(testConfig(), Deps{Credentials: keys.New(nil, nil), Social: agg, Capturer: capt})
	state, err := o.Run(context.Background(), &Request{SessionID: "s", Query: "q"})
	require.NoError(t, err)
	require.Equal(t, 1, capt.calls)
	require.NotNil(t, state.ScreenshotsCaptured)
	require.Empty(t, state.ScreenshotsCaptured)
}

func TestRunDeepCrawl(t *testing.T) {
	cfg := testConfig()
	cfg.DeepCrawlEnabled = true

	o, _ := New(cfg, Deps{Credentials: keys.New(nil, nil), Crawler: fakeCrawler{pages: 7}})
	state, err := o.Run(context.Background(), &Request{SessionID: "s", Query: "q"})
	require.NoError(t, err)
	require.Equal(t, 7, state.Statistics.WebsailorPages)
	require.Equal(t, 7, state.Statistics.TotalSources)

	o, _ = New(cfg, Deps{Credentials: keys.New(nil, nil), Crawler: fakeCrawler{err: errors.New("seeds down")}})
	state, err = o.Run(context.Background(), &Request{SessionID: "s", Query: "q"})
	require.NoError(t, err)
	require.Equal(t, 0, state.Statistics.WebsailorPages)
	require.NotNil(t, state.WebsailorResults)
}

func TestRunBoundsSocialPlatformCalls(t *testing.T) {
	hang := make(chan struct{})
	defer close(hang)
	agg := &fakeSocial{
		posts:  map[string][]social.Post{"youtube": {youtubePost("https://yt/a", 10)}},
		panics: map[string]bool{"twitter": true},
		hang:   map[string]chan struct{}{"instagram": hang},
	}
	cfg := testConfig()
	cfg.ProviderTimeout = 50 * time.Millisecond

	o, _ := New(cfg, Deps{Credentials: keys.New(nil, nil), Social: agg})
	start := time.Now()
	state, err := o.Run(context.Background(), &Request{SessionID: "s", Query: "q"})
	require.NoError(t, err)
	require.Less(t, time.Since(start), time.Second, "a hanging platform must not stall the run")

	require.Equal(t, DefaultPlatforms, state.SocialResults.PlatformsSearched)
	require.Contains(t, state.SocialResults.Errors["instagram"], "no response after")
	require.Contains(t, state.SocialResults.Errors["twitter"], "panic")
	for _, platform := range []string{"instagram", "twitter"} {
		require.NotNil(t, state.SocialResults.PlatformResults[platform])
		require.Empty(t, state.SocialResults.PlatformResults[platform])
	}
	require.Equal(t, 1, state.SocialResults.TotalPosts)
	require.NotContains(t, state.SocialResults.Errors, "youtube")
}

func TestRunBoundsDeepCrawl(t *testing.T) {
	hang := make(chan struct{})
	defer close(hang)
	cfg := testConfig()
	cfg.DeepCrawlEnabled = true
	cfg.CrawlTimeout = 50 * time.Millisecond

	o, _ := New(cfg, Deps{Credentials: keys.New(nil, nil), Crawler: fakeCrawler{pages: 3, hang: hang}})
	start := time.Now()
	state, err := o.Run(context.Background(), &Request{SessionID: "s", Query: "q"})
	require.NoError(t, err)
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, 0, state.Statistics.WebsailorPages)

	o, _ = New(cfg, Deps{Credentials: keys.New(nil, nil), Crawler: fakeCrawler{panics: true}})
	state, err = o.Run(context.Background(), &Request{SessionID: "s", Query: "q"})
	require.NoError(t, err)
	require.NotNil(t, state.WebsailorResults)
	require.Empty(t, state.WebsailorResults.Pages)
}

// Two keyed providers, one with two keys and one with none, crawl disabled.
func TestRunCoffeeShopsEndToEnd(t *testing.T) {
	var mu sync.Mutex
	var seenKeys []string
	serper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seenKeys = append(seenKeys, r.Header.Get("X-API-KEY"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"organic":[
			{"title":"Cafeterias crescem","link":"https://news.example/1","snippet":"mercado de cafe"},
			{"title":"Guia de cafes","link":"https://news.example/2","snippet":"especiais"}
		]}`))
	}))
	defer serper.Close()

	reg := keys.New([]string{keys.Serper, keys.Exa}, map[string][]string{keys.Serper: {"serper-a", "serper-b"}})
	providers := []search.KeyedProvider{
		search.NewSerperProvider(search.Options{BaseURL: serper.URL}),
		search.NewExaProvider(search.Options{BaseURL: "http://127.0.0.1:1"}),
	}
	agg := &fakeSocial{posts: map[string][]social.Post{
		"youtube":   {youtubePost("https://yt/cafe", 800000)},
		"instagram": {{Platform: "instagram", URL: "https://ig/cafe", Counters: map[string]float64{viral.Likes: 100}}},
	}}
	capt := &fakeCapturer{}

	cfg := testConfig()
	cfg.DeepCrawlEnabled = false
	o, err := New(cfg, Deps{Providers: providers, Credentials: reg, Social: agg, Capturer: capt, Logger: logging.NewDiscardLogger()})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		state, err := o.Run(context.Background(), &Request{
			SessionID: fmt.Sprintf("session_%d", i),
			Query:     "cafeterias Brasil 2024 mercado",
			Context:   map[string]string{"segmento": "cafeterias"},
		})
		require.NoError(t, err)

		require.Equal(t, 0, state.Statistics.WebsailorPages)
		require.Equal(t, 2, state.Statistics.APISources)
		require.Equal(t, 2, state.Statistics.SocialPosts)
		require.Equal(t, state.Statistics.APISources+state.Statistics.SocialPosts, state.Statistics.TotalSources)

		exa, _ := state.APIResults.Get(keys.Exa)
		require.True(t, exa.Skipped)
		require.Len(t, state.ViralContent, 1)
		require.Equal(t, viral.Viral, state.ViralContent[0].ViralCategory)
		require.Len(t, state.ScreenshotsCaptured, 1)
		require.GreaterOrEqual(t, state.Statistics.SearchDuration, 0.0)
	}
	require.Equal(t, []string{"serper-a", "serper-b"}, seenKeys)
}

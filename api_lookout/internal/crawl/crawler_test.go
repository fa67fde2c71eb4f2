package crawl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"frameworks/pkg/search"
)

type seedStub struct {
	urls []string
	err  error
}

func (s seedStub) Search(ctx context.Context, query string, opts search.SearchOptions) ([]search.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]search.Result, 0, len(s.urls))
	for _, u := range s.urls {
		out = append(out, search.Result{URL: u})
	}
	return out, nil
}

// newSite serves a small chain: / -> /a -> /b -> /c, plus a broken link.
func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	page := func(title, body string, links ...string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			var b strings.Builder
			for _, l := range links {
				fmt.Fprintf(&b, `<a href="%s">link</a>`, l)
			}
			fmt.Fprintf(w, `<html><head><title>%s</title></head><body><p>%s</p>%s</body></html>`, title, body, b.String())
		}
	}
	mux.HandleFunc("/", page("Home", "cafeterias em alta", "/a", "/missing", "https://elsewhere.example/x", "#top"))
	mux.HandleFunc("/a", page("A", "pagina a", "/b", "/a#dup"))
	mux.HandleFunc("/b", page("B", "pagina b", "/c"))
	mux.HandleFunc("/c", page("C", "pagina c"))
	mux.HandleFunc("/missing", http.NotFound)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestCrawlBreadthFirstRespectsDepth(t *testing.T) {
	site := newSite(t)
	c, err := NewCrawler(seedStub{urls: []string{site.URL + "/"}}, WithHTTPClient(site.Client()), withSkipURLValidation())
	if err != nil {
		t.Fatalf("new crawler: %v", err)
	}

	res, err := c.Crawl(context.Background(), "cafeterias", Options{MaxPages: 50, DepthLevels: 3})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	var urls []string
	for _, p := range res.Pages {
		urls = append(urls, strings.TrimPrefix(p.URL, site.URL))
	}
	if strings.Join(urls, ",") != "/,/a,/b" {
		t.Fatalf("unexpected crawl order %v", urls)
	}
	if res.Failed != 1 {
		t.Fatalf("expected the missing page to fail, got %d", res.Failed)
	}
	if res.Pages[0].Title != "Home" || !strings.Contains(res.Pages[0].Content, "cafeterias em alta") {
		t.Fatalf("unexpected first page %+v", res.Pages[0])
	}
	if res.Pages[2].Depth != 2 {
		t.Fatalf("expected depth 2 for /b, got %d", res.Pages[2].Depth)
	}
}

func TestCrawlStopsAtMaxPages(t *testing.T) {
	site := newSite(t)
	c, _ := NewCrawler(seedStub{urls: []string{site.URL + "/"}}, WithHTTPClient(site.Client()), withSkipURLValidation())

	res, err := c.Crawl(context.Background(), "q", Options{MaxPages: 2, DepthLevels: 4})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if len(res.Pages) > 2 {
		t.Fatalf("expected at most 2 pages, got %d", len(res.Pages))
	}
}

func TestCrawlSeedFailure(t *testing.T) {
	c, _ := NewCrawler(seedStub{err: errors.New("searx down")})
	if _, err := c.Crawl(context.Background(), "q", Options{MaxPages: 5, DepthLevels: 2}); err == nil {
		t.Fatal("expected seed error")
	}
	if _, err := NewCrawler(nil); !errors.Is(err, ErrNoSeedProvider) {
		t.Fatalf("expected ErrNoSeedProvider, got %v", err)
	}
}

func TestExtractLinksSameHostOnly(t *testing.T) {
	links := extractLinks([]byte(`<a href="/x?utm=1#f">x</a><a href="https://other.example/y">y</a><a href="mailto:a@b">m</a><a href="/x">dup</a>`), "https://site.example/")
	if len(links) != 1 || links[0] != "https://site.example/x" {
		t.Fatalf("unexpected links %v", links)
	}
}

func TestIsPrivateIP(t *testing.T) {
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.1.1", "169.254.1.1", "::1", "fd00::1"} {
		if !isPrivateIP(net.ParseIP(ip)) {
			t.Fatalf("expected %s to be private", ip)
		}
	}
	if isPrivateIP(net.ParseIP("8.8.8.8")) {
		t.Fatal("expected public address to pass")
	}
	if _, err := checkScheme("ftp://example.com"); err == nil {
		t.Fatal("expected ftp to be rejected")
	}
}

func TestCrawlPageCacheAvoidsRefetch(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Only</title></head><body><p>conteudo</p></body></html>`))
	}))
	defer server.Close()

	c, err := NewCrawler(seedStub{urls: []string{server.URL + "/"}},
		WithHTTPClient(server.Client()),
		WithPageCache(time.Minute, 10),
		withSkipURLValidation(),
	)
	if err != nil {
		t.Fatalf("new crawler: %v", err)
	}
	for i := 0; i < 2; i++ {
		res, err := c.Crawl(context.Background(), "q", Options{MaxPages: 5, DepthLevels: 1})
		if err != nil {
			t.Fatalf("crawl %d: %v", i, err)
		}
		if len(res.Pages) != 1 || res.Pages[0].Title != "Only" {
			t.Fatalf("unexpected pages %+v", res.Pages)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one fetch, got %d", hits.Load())
	}
}

func TestNewCrawlerLeavesCallerClientUntouched(t *testing.T) {
	shared := &http.Client{Timeout: time.Second}
	c, err := NewCrawler(seedStub{}, WithHTTPClient(shared))
	if err != nil {
		t.Fatalf("new crawler: %v", err)
	}
	if shared.CheckRedirect != nil {
		t.Fatal("caller's client got a redirect policy installed")
	}
	if c.client == shared || c.client.CheckRedirect == nil {
		t.Fatal("crawler should install its redirect policy on its own copy")
	}
	if c.client.Timeout != time.Second {
		t.Fatalf("copy lost the caller's settings: %v", c.client.Timeout)
	}
}

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearxngSearch(t *testing.T) {
	t.Parallel()

	errCh := make(chan error, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("format"); got != "json" {
			errCh <- fmt.Errorf("expected format json, got %q", got)
			return
		}
		if got := r.URL.Query().Get("q"); got != "cafeterias" {
			errCh <- fmt.Errorf("expected query cafeterias, got %q", got)
			return
		}
		_, _ = w.Write([]byte(`{"results":[
			{"title":"Guia","url":"https://a.example/guia","content":" texto ","score":0.42},
			{"title":"Outro","url":"https://b.example","content":"x"}
		]}`))
	}))
	defer server.Close()

	provider, err := NewSearxngProvider(server.URL)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	results, err := provider.Search(context.Background(), "cafeterias", SearchOptions{Limit: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("handler error: %v", err)
	default:
	}
	if len(results) != 1 {
		t.Fatalf("expected limit to cap results at 1, got %d", len(results))
	}
	if results[0].Content != "texto" || results[0].Source != providerSearxng {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

func TestNewSearxngProviderRequiresURL(t *testing.T) {
	if _, err := NewSearxngProvider("  "); err == nil {
		t.Fatal("expected error for empty url")
	}
}

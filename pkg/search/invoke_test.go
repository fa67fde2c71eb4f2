package search

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubProvider struct {
	name  string
	items []Result
	err   error
	delay time.Duration
	panic bool
}

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) Search(ctx context.Context, query, credential string) ([]Result, error) {
	if s.panic {
		panic("boom")
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.items, s.err
}

func TestInvokeSuccess(t *testing.T) {
	res := Invoke(context.Background(), stubProvider{name: "EXA", items: []Result{{Title: "a"}}}, "q", "k", time.Second)
	if !res.Success || len(res.Items) != 1 || res.Provider != "EXA" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestInvokeNilItemsBecomeEmpty(t *testing.T) {
	res := Invoke(context.Background(), stubProvider{name: "EXA"}, "q", "k", time.Second)
	if !res.Success || res.Items == nil {
		t.Fatalf("expected empty non-nil items, got %+v", res)
	}
}

func TestInvokeEnforcesTimeoutWhenAdapterIgnoresContext(t *testing.T) {
	start := time.Now()
	res := Invoke(context.Background(), stubProvider{name: "SLOW", delay: 2 * time.Second}, "q", "k", 50*time.Millisecond)
	if time.Since(start) > time.Second {
		t.Fatalf("invoke did not return at the deadline")
	}
	if res.Success || res.ErrorKind != KindTimeout || res.Items == nil || len(res.Items) != 0 {
		t.Fatalf("expected timeout failure, got %+v", res)
	}
}

func TestInvokeRecoversPanics(t *testing.T) {
	res := Invoke(context.Background(), stubProvider{name: "BAD", panic: true}, "q", "k", time.Second)
	if res.Success || res.ErrorKind != KindTransport || !strings.Contains(res.Error, "panic") {
		t.Fatalf("expected transport failure from panic, got %+v", res)
	}
}

func TestInvokeClassifiesErrors(t *testing.T) {
	res := Invoke(context.Background(), stubProvider{name: "P", err: parseError("P", errors.New("bad json"))}, "q", "k", time.Second)
	if res.ErrorKind != KindParse {
		t.Fatalf("expected parse kind, got %+v", res)
	}
	res = Invoke(context.Background(), stubProvider{name: "P", err: errors.New("plain")}, "q", "k", time.Second)
	if res.ErrorKind != KindTransport {
		t.Fatalf("untyped errors should be transport, got %+v", res)
	}
}

func TestProviderResultsMarshalPreservesOrder(t *testing.T) {
	results := ProviderResults{
		{Provider: "SERPER", Success: true, Items: []Result{}},
		{Provider: "EXA", Items: []Result{}, Error: "x", ErrorKind: KindTransport},
		Skipped("GOOGLE", "no key"),
	}
	raw, err := json.Marshal(results)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(raw)
	if !(strings.Index(s, `"SERPER"`) < strings.Index(s, `"EXA"`) && strings.Index(s, `"EXA"`) < strings.Index(s, `"GOOGLE"`)) {
		t.Fatalf("order not preserved: %s", s)
	}
	if got, ok := results.Get("GOOGLE"); !ok || !got.Skipped || got.ErrorKind != KindUnavailable {
		t.Fatalf("unexpected skipped entry %+v", got)
	}
	if results.Successful() != 1 {
		t.Fatalf("expected 1 success, got %d", results.Successful())
	}

	var back ProviderResults
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 3 || back[0].Provider != "SERPER" || back[1].Provider != "EXA" || back[2].Provider != "GOOGLE" {
		t.Fatalf("unexpected decoded results %+v", back)
	}
}

func TestProviderResultsUnmarshalKeepsKeyOrder(t *testing.T) {
	raw := []byte(`{"ZETA":{"success":true,"results":[{"title":"z","url":"https://z.example"}]},"ALPHA":{"success":false,"error":"down","error_kind":"transport"}}`)
	var got ProviderResults
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 2 || got[0].Provider != "ZETA" || got[1].Provider != "ALPHA" {
		t.Fatalf("key order lost: %+v", got)
	}
	if len(got[0].Items) != 1 || got[1].Items == nil || got[1].ErrorKind != KindTransport {
		t.Fatalf("unexpected entries %+v", got)
	}

	again, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if s := string(again); strings.Index(s, `"ZETA"`) > strings.Index(s, `"ALPHA"`) {
		t.Fatalf("order not preserved on re-encode: %s", s)
	}

	if err := json.Unmarshal([]byte(`["ZETA"]`), &got); err == nil {
		t.Fatal("expected an error for a non-object payload")
	}
}

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ProviderResult is the outcome of one provider call. Items is never nil.
type ProviderResult struct {
	Provider   string    `json:"-"`
	Success    bool      `json:"success"`
	Items      []Result  `json:"results"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Skipped    bool      `json:"skipped,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// ProviderResults keeps provider outcomes in attempt order. It marshals
// as a JSON object keyed by provider name, preserving that order.
type ProviderResults []ProviderResult

func (r ProviderResults) Get(name string) (ProviderResult, bool) {
	for _, pr := range r {
		if pr.Provider == name {
			return pr, true
		}
	}
	return ProviderResult{}, false
}

// Successful counts entries that succeeded.
func (r ProviderResults) Successful() int {
	n := 0
	for _, pr := range r {
		if pr.Success {
			n++
		}
	}
	return n
}

func (r ProviderResults) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pr := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(pr.Provider)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(pr)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the object form and keeps the key order.
func (r *ProviderResults) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("provider results: expected object, got %v", tok)
	}
	out := ProviderResults{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("provider results: unexpected key %v", tok)
		}
		var pr ProviderResult
		if err := dec.Decode(&pr); err != nil {
			return fmt.Errorf("provider results: %s: %w", name, err)
		}
		pr.Provider = name
		if pr.Items == nil {
			pr.Items = []Result{}
		}
		out = append(out, pr)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

// Skipped returns the entry recorded for a provider that was never called.
func Skipped(name, reason string) ProviderResult {
	return ProviderResult{
		Provider:  name,
		Items:     []Result{},
		Error:     reason,
		ErrorKind: KindUnavailable,
		Skipped:   true,
	}
}

// Failed builds a failure entry for err.
func Failed(name string, err error, elapsed time.Duration) ProviderResult {
	return ProviderResult{
		Provider:   name,
		Items:      []Result{},
		Error:      err.Error(),
		ErrorKind:  Classify(err),
		DurationMS: elapsed.Milliseconds(),
	}
}

// Invoke calls p with the given credential and bounds the call by timeout
// even when the adapter ignores ctx. Panics inside the adapter are
// converted to transport failures.
func Invoke(ctx context.Context, p KeyedProvider, query, credential string, timeout time.Duration) ProviderResult {
	name := p.Name()
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		items []Result
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: transportError(name, fmt.Errorf("panic: %v", rec))}
			}
		}()
		items, err := p.Search(callCtx, query, credential)
		done <- outcome{items: items, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return Failed(name, out.err, time.Since(start))
		}
		items := out.items
		if items == nil {
			items = []Result{}
		}
		return ProviderResult{Provider: name, Success: true, Items: items, DurationMS: time.Since(start).Milliseconds()}
	case <-timer.C:
		return Failed(name, &ProviderError{Provider: name, Kind: KindTimeout, Err: fmt.Errorf("no response after %s", timeout)}, time.Since(start))
	case <-ctx.Done():
		return Failed(name, &ProviderError{Provider: name, Kind: KindTimeout, Err: ctx.Err()}, time.Since(start))
	}
}

// Package keys holds the per-provider credential pools and hands out
// credentials in round-robin order.
package keys

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"frameworks/pkg/logging"
)

// Declared provider names, in attempt order.
const (
	Firecrawl = "FIRECRAWL"
	Jina      = "JINA"
	Google    = "GOOGLE"
	Exa       = "EXA"
	Serper    = "SERPER"
	YouTube   = "YOUTUBE"
	Tavily    = "TAVILY"
	Brave     = "BRAVE"
	Supadata  = "SUPADATA"
)

// DefaultProviders is the declaration order used by the service.
var DefaultProviders = []string{Firecrawl, Jina, Google, Exa, Serper, YouTube, Tavily, Brave, Supadata}

var optionalProviders = map[string]bool{Google: true, YouTube: true}

type pool struct {
	keys   []string
	cursor atomic.Uint64
}

// Registry maps provider names to credential pools. Pools are fixed after
// construction; only cursors move.
type Registry struct {
	order []string
	pools map[string]*pool
}

// ProviderStats is the snapshot reported per provider.
type ProviderStats struct {
	TotalKeys    int  `json:"total_keys"`
	CurrentIndex int  `json:"current_index"`
	Available    bool `json:"available"`
}

// New builds a registry from explicit pools. Providers are kept in the
// order given; empty credentials are dropped.
func New(order []string, credentials map[string][]string) *Registry {
	r := &Registry{order: append([]string(nil), order...), pools: make(map[string]*pool, len(order))}
	for _, name := range order {
		var clean []string
		for _, k := range credentials[name] {
			if k = strings.TrimSpace(k); k != "" {
				clean = append(clean, k)
			}
		}
		r.pools[name] = &pool{keys: clean}
	}
	return r
}

// LoadFromEnv reads {P}_API_KEY then {P}_API_KEY_1, {P}_API_KEY_2, ...
// stopping at the first missing index.
func LoadFromEnv(providers []string, logger logging.Logger) *Registry {
	creds := make(map[string][]string, len(providers))
	for _, name := range providers {
		var found []string
		if k := strings.TrimSpace(os.Getenv(name + "_API_KEY")); k != "" {
			found = append(found, k)
		}
		for i := 1; ; i++ {
			v, ok := os.LookupEnv(name + "_API_KEY_" + strconv.Itoa(i))
			if !ok {
				break
			}
			if v = strings.TrimSpace(v); v != "" {
				found = append(found, v)
			}
		}
		creds[name] = found

		if logger == nil {
			continue
		}
		entry := logger.WithField("provider", name)
		switch {
		case len(found) > 0:
			entry.WithField("keys", len(found)).Info("Loaded provider credentials")
		case optionalProviders[name]:
			entry.Info("Optional provider has no credentials")
		default:
			entry.Warn("Provider has no credentials")
		}
	}
	return New(providers, creds)
}

// Next returns the credential at the cursor and advances it. ok is false
// when the provider has no credentials.
func (r *Registry) Next(provider string) (string, bool) {
	p := r.pools[provider]
	if p == nil || len(p.keys) == 0 {
		return "", false
	}
	n := uint64(len(p.keys))
	for {
		cur := p.cursor.Load()
		if p.cursor.CompareAndSwap(cur, (cur+1)%n) {
			return p.keys[cur%n], true
		}
	}
}

// Has reports whether provider has at least one credential.
func (r *Registry) Has(provider string) bool {
	p := r.pools[provider]
	return p != nil && len(p.keys) > 0
}

// Available lists configured providers in declaration order.
func (r *Registry) Available() []string {
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if r.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// Providers returns the declaration order.
func (r *Registry) Providers() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Stats() map[string]ProviderStats {
	out := make(map[string]ProviderStats, len(r.order))
	for _, name := range r.order {
		p := r.pools[name]
		out[name] = ProviderStats{
			TotalKeys:    len(p.keys),
			CurrentIndex: int(p.cursor.Load()),
			Available:    len(p.keys) > 0,
		}
	}
	return out
}

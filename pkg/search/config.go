package search

import (
	"frameworks/pkg/config"
)

// Order is the declaration order keyed providers are attempted in.
var Order = []string{
	ProviderFirecrawl,
	ProviderJina,
	ProviderGoogle,
	ProviderExa,
	ProviderSerper,
	ProviderYouTube,
	ProviderTavily,
	ProviderBrave,
}

// Config holds environment configuration for search providers.
type Config struct {
	SearxngURL  string
	GoogleCSEID string
	// BaseURLs overrides endpoints per provider name.
	BaseURLs map[string]string
}

// LoadConfig loads search configuration from the environment.
func LoadConfig() Config {
	cfg := Config{
		SearxngURL:  config.GetEnv("SEARXNG_URL", ""),
		GoogleCSEID: config.GetEnv("GOOGLE_CSE_ID", ""),
		BaseURLs:    map[string]string{},
	}
	for _, name := range Order {
		if v := config.GetEnv(name+"_API_URL", ""); v != "" {
			cfg.BaseURLs[name] = v
		}
	}
	return cfg
}

// NewKeyedProviders builds every keyed adapter in declaration order.
func NewKeyedProviders(cfg Config, opts Options) []KeyedProvider {
	optsFor := func(name string) Options {
		o := opts
		if o.GoogleCSEID == "" {
			o.GoogleCSEID = cfg.GoogleCSEID
		}
		if u := cfg.BaseURLs[name]; u != "" {
			o.BaseURL = u
		}
		return o
	}
	return []KeyedProvider{
		NewFirecrawlProvider(optsFor(ProviderFirecrawl)),
		NewJinaProvider(optsFor(ProviderJina)),
		NewGoogleProvider(optsFor(ProviderGoogle)),
		NewExaProvider(optsFor(ProviderExa)),
		NewSerperProvider(optsFor(ProviderSerper)),
		NewYouTubeProvider(optsFor(ProviderYouTube)),
		NewTavilyProvider(optsFor(ProviderTavily)),
		NewBraveProvider(optsFor(ProviderBrave)),
	}
}

// NewSeedProvider returns the keyless provider used for crawl seeds, or nil
// when none is configured.
func NewSeedProvider(cfg Config) Provider {
	if cfg.SearxngURL == "" {
		return nil
	}
	p, err := NewSearxngProvider(cfg.SearxngURL)
	if err != nil {
		return nil
	}
	return p
}

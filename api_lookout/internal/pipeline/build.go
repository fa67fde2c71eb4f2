package pipeline

import (
	"errors"
	"time"

	"frameworks/api_lookout/internal/capture"
	"frameworks/api_lookout/internal/crawl"
	"frameworks/api_lookout/internal/social"
	"frameworks/api_lookout/internal/viral"
	"frameworks/pkg/clients"
	"frameworks/pkg/logging"
	"frameworks/pkg/search"
)

const crawlCacheEntries = 512

// StackConfig describes the collaborators to build around an orchestrator.
type StackConfig struct {
	Pipeline       Config
	Search         search.Config
	SocialBaseURL  string
	SocialProvider string
	BreakerEnabled bool
	CrawlCacheTTL  time.Duration
}

// NewStack builds the adapters, crawler, social client and breakers from
// cfg. Optional collaborators that cannot be built are logged and left out.
func NewStack(cfg StackConfig, creds Credentials, capturer capture.Capturer, scorer *viral.Scorer, logger logging.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	deps := Deps{
		Providers:   search.NewKeyedProviders(cfg.Search, search.Options{}),
		Credentials: creds,
		Capturer:    capturer,
		Scorer:      scorer,
		Logger:      logger,
	}

	if cfg.Pipeline.DeepCrawlEnabled {
		crawler, err := crawl.NewCrawler(search.NewSeedProvider(cfg.Search),
			crawl.WithLogger(logger),
			crawl.WithPageCache(cfg.CrawlCacheTTL, crawlCacheEntries),
		)
		switch {
		case errors.Is(err, crawl.ErrNoSeedProvider):
			logger.Warn("SEARXNG_URL not set - deep crawl disabled")
		case err != nil:
			logger.WithError(err).Warn("Failed to create crawler - deep crawl disabled")
		default:
			deps.Crawler = crawler
		}
	}

	if cfg.Pipeline.SocialEnabled {
		client, err := social.NewClient(social.ClientConfig{BaseURL: cfg.SocialBaseURL, Provider: cfg.SocialProvider}, creds)
		if err != nil {
			logger.WithError(err).Warn("Failed to create social aggregator client - social search disabled")
		} else {
			deps.Social = client
		}
	}

	if cfg.BreakerEnabled {
		template := clients.DefaultCircuitBreakerConfig("")
		template.Logger = logger
		deps.Breakers = clients.NewBreakerSet(template)
	}
	return New(cfg.Pipeline, deps)
}

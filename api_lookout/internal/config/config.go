package config

import (
	"time"

	"frameworks/api_lookout/internal/keys"
	"frameworks/api_lookout/internal/pipeline"
	"frameworks/pkg/config"
	"frameworks/pkg/search"
)

// Config stores environment configuration for Lookout.
type Config struct {
	Port string

	DeepCrawlEnabled bool
	SocialEnabled    bool
	CaptureEnabled   bool

	ProviderTimeout time.Duration
	APIDelay        time.Duration
	APIConcurrency  int
	BreakerEnabled  bool

	CrawlMaxPages int
	CrawlDepth    int
	CrawlTimeout  time.Duration
	CrawlCacheTTL time.Duration
	Search        search.Config

	SocialBaseURL   string
	SocialPlatforms []string
	SocialLimit     int
	SocialDelay     time.Duration

	CaptureMax        int
	CaptureConcurrent int
	BrowserBin        string

	StateBackend  string
	StateDir      string
	RedisURL      string
	RedisAddrs    string
	RedisPassword string
	DatabaseURL   string

	ArtifactBackend string
	ArtifactDir     string
	S3Bucket        string
	S3Prefix        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string

	KafkaBrokers []string
	KafkaTopic   string

	CalibrationFile string
}

// LoadConfig loads the Lookout configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Port: config.GetEnv("PORT", "18030"),

		DeepCrawlEnabled: config.GetEnvBool("DEEP_CRAWL_ENABLED", true),
		SocialEnabled:    config.GetEnvBool("SOCIAL_SEARCH_ENABLED", true),
		CaptureEnabled:   config.GetEnvBool("CAPTURE_ENABLED", true),

		ProviderTimeout: config.GetEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		APIDelay:        config.GetEnvDuration("API_CALL_DELAY", 500*time.Millisecond),
		APIConcurrency:  config.GetEnvInt("API_CONCURRENCY", 2),
		BreakerEnabled:  config.GetEnvBool("PROVIDER_BREAKER_ENABLED", true),

		CrawlMaxPages: config.GetEnvInt("CRAWL_MAX_PAGES", 50),
		CrawlDepth:    config.GetEnvInt("CRAWL_DEPTH_LEVELS", 4),
		CrawlTimeout:  config.GetEnvDuration("CRAWL_TIMEOUT", 5*time.Minute),
		CrawlCacheTTL: config.GetEnvDuration("CRAWL_CACHE_TTL", 15*time.Minute),
		Search:        search.LoadConfig(),

		SocialBaseURL:   config.GetEnv("SOCIAL_API_URL", "https://api.supadata.ai/v1"),
		SocialPlatforms: config.GetEnvList("SOCIAL_PLATFORMS", []string{"youtube", "instagram", "twitter", "tiktok", "facebook"}),
		SocialLimit:     config.GetEnvInt("SOCIAL_LIMIT", 25),
		SocialDelay:     config.GetEnvDuration("SOCIAL_PLATFORM_DELAY", 300*time.Millisecond),

		CaptureMax:        config.GetEnvInt("CAPTURE_MAX", 15),
		CaptureConcurrent: config.GetEnvInt("CAPTURE_TABS", 3),
		BrowserBin:        config.GetEnv("CHROME_BIN", ""),

		StateBackend:  config.GetEnv("STATE_BACKEND", "file"),
		StateDir:      config.GetEnv("STATE_DIR", "analyses_data/sessions"),
		RedisURL:      config.GetEnv("REDIS_URL", ""),
		RedisAddrs:    config.GetEnv("REDIS_ADDRS", ""),
		RedisPassword: config.GetEnv("REDIS_PASSWORD", ""),
		DatabaseURL:   config.GetEnv("DATABASE_URL", ""),

		ArtifactBackend: config.GetEnv("ARTIFACT_BACKEND", "file"),
		ArtifactDir:     config.GetEnv("ARTIFACT_DIR", "analyses_data"),
		S3Bucket:        config.GetEnv("S3_BUCKET", ""),
		S3Prefix:        config.GetEnv("S3_PREFIX", "lookout"),
		S3Region:        config.GetEnv("S3_REGION", "us-east-1"),
		S3Endpoint:      config.GetEnv("S3_ENDPOINT", ""),
		S3AccessKey:     config.GetEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     config.GetEnv("S3_SECRET_KEY", ""),

		KafkaBrokers: config.GetEnvList("KAFKA_BROKERS", nil),
		KafkaTopic:   config.GetEnv("KAFKA_STAGE_TOPIC", "lookout.stage_events"),

		CalibrationFile: config.GetEnv("VIRAL_CALIBRATION_FILE", ""),
	}
}

// Stack maps the service configuration onto the search stack.
func (c Config) Stack() pipeline.StackConfig {
	return pipeline.StackConfig{
		Pipeline: pipeline.Config{
			DeepCrawlEnabled: c.DeepCrawlEnabled,
			SocialEnabled:    c.SocialEnabled,
			CaptureEnabled:   c.CaptureEnabled,
			ProviderTimeout:  c.ProviderTimeout,
			APIDelay:         c.APIDelay,
			APIConcurrency:   c.APIConcurrency,
			CrawlMaxPages:    c.CrawlMaxPages,
			CrawlDepth:       c.CrawlDepth,
			CrawlTimeout:     c.CrawlTimeout,
			SocialPlatforms:  c.SocialPlatforms,
			SocialLimit:      c.SocialLimit,
			SocialDelay:      c.SocialDelay,
			CaptureMax:       c.CaptureMax,
		},
		Search:         c.Search,
		SocialBaseURL:  c.SocialBaseURL,
		SocialProvider: keys.Supadata,
		BreakerEnabled: c.BreakerEnabled,
		CrawlCacheTTL:  c.CrawlCacheTTL,
	}
}

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookout",
			Name:      "provider_calls_total",
			Help:      "Keyed provider calls by outcome",
		},
		[]string{"provider", "outcome"},
	)

	providerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lookout",
			Name:      "provider_call_duration_seconds",
			Help:      "Duration of keyed provider calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~51s
		},
		[]string{"provider"},
	)

	socialPlatformTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookout",
			Name:      "social_platform_searches_total",
			Help:      "Social aggregator searches by platform and status",
		},
		[]string{"platform", "status"},
	)

	postsScoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lookout",
			Name:      "posts_scored_total",
			Help:      "Social posts run through viral scoring",
		},
	)

	viralSelectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookout",
			Name:      "viral_posts_selected_total",
			Help:      "Posts kept by viral selection, by category",
		},
		[]string{"category"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lookout",
			Name:      "search_run_duration_seconds",
			Help:      "Wall-clock duration of full search runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5m
		},
	)
)

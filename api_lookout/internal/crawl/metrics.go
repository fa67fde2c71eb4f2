package crawl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pageCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lookout",
		Name:      "crawl_page_cache_total",
		Help:      "Crawl page cache lookups by result",
	},
	[]string{"result"},
)

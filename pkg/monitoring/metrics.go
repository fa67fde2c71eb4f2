package monitoring

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector manages the HTTP metrics for a service
type MetricsCollector struct {
	serviceName string

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	activeRequests      prometheus.Gauge
	serviceInfo         *prometheus.GaugeVec
}

// NewMetricsCollector creates a metrics collector registered on the default
// Prometheus registry. Constructing a second collector for the same service
// reuses the already registered series.
func NewMetricsCollector(serviceName, version, commit string) *MetricsCollector {
	name := strings.ReplaceAll(serviceName, "-", "_")

	mc := &MetricsCollector{serviceName: name}

	mc.httpRequestsTotal = registerOrReuse(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	))
	mc.httpRequestDuration = registerOrReuse(prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name + "_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	))
	mc.activeRequests = registerOrReuse(prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: name + "_active_requests",
			Help: "Number of in-flight HTTP requests",
		},
	))
	mc.serviceInfo = registerOrReuse(prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name + "_service_info",
			Help: "Service information",
		},
		[]string{"version", "commit"},
	))

	mc.serviceInfo.WithLabelValues(version, commit).Set(1)
	return mc
}

func registerOrReuse[T prometheus.Collector](c T) T {
	if err := prometheus.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// MetricsMiddleware returns middleware that collects HTTP metrics
func (mc *MetricsCollector) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		mc.activeRequests.Inc()
		defer mc.activeRequests.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())
		mc.httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		mc.httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (mc *MetricsCollector) Handler() gin.HandlerFunc {
	handler := promhttp.Handler()
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

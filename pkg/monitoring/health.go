package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
)

const checkTimeout = 5 * time.Second

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp int64                  `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckResult represents the result of an individual health check
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthCheck is a function that performs a health check
type HealthCheck func() CheckResult

// HealthChecker manages and executes health checks
type HealthChecker struct {
	service string
	version string

	mu     sync.RWMutex
	checks map[string]HealthCheck
}

// NewHealthChecker creates a new health checker instance
func NewHealthChecker(service, version string) *HealthChecker {
	return &HealthChecker{
		service: service,
		version: version,
		checks:  make(map[string]HealthCheck),
	}
}

// AddCheck adds a health check to the checker
func (hc *HealthChecker) AddCheck(name string, check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// CheckHealth runs all health checks and returns the overall status
func (hc *HealthChecker) CheckHealth() HealthStatus {
	hc.mu.RLock()
	checks := make(map[string]HealthCheck, len(hc.checks))
	for name, check := range hc.checks {
		checks[name] = check
	}
	hc.mu.RUnlock()

	status := HealthStatus{
		Service:   hc.service,
		Version:   hc.version,
		Timestamp: time.Now().Unix(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	anyUnhealthy := false
	anyDegraded := false
	for name, check := range checks {
		result := check()
		status.Checks[name] = result
		switch result.Status {
		case StatusHealthy:
		case StatusDegraded:
			anyDegraded = true
		default:
			anyUnhealthy = true
		}
	}

	switch {
	case anyUnhealthy:
		status.Status = StatusUnhealthy
	case anyDegraded:
		status.Status = StatusDegraded
	default:
		status.Status = StatusHealthy
	}
	return status
}

// Handler returns a handler for the health check endpoint
func (hc *HealthChecker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := hc.CheckHealth()
		statusCode := http.StatusOK
		if health.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, health)
	}
}

// PingHealthCheck adapts any context-aware ping to a HealthCheck. A failing
// ping reports the given failure status so optional dependencies can degrade
// instead of failing the service.
func PingHealthCheck(what, failureStatus string, ping func(ctx context.Context) error) HealthCheck {
	return func() CheckResult {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		err := ping(ctx)
		latency := time.Since(start).String()
		if err != nil {
			return CheckResult{
				Status:  failureStatus,
				Message: fmt.Sprintf("%s ping failed: %v", what, err),
				Latency: latency,
			}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Message: what + " reachable",
			Latency: latency,
		}
	}
}

// RedisHealthCheck creates a health check for a Redis deployment
func RedisHealthCheck(client goredis.UniversalClient) HealthCheck {
	return PingHealthCheck("redis", StatusUnhealthy, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// KafkaHealthCheck reports degraded rather than unhealthy: event publishing
// is not on the request path.
func KafkaHealthCheck(client *kgo.Client) HealthCheck {
	if client == nil {
		return func() CheckResult {
			return CheckResult{Status: StatusDegraded, Message: "Kafka client is nil"}
		}
	}
	return PingHealthCheck("kafka", StatusDegraded, client.Ping)
}

// ConfigurationHealthCheck reports unhealthy while any required setting is
// empty.
func ConfigurationHealthCheck(configs map[string]string) HealthCheck {
	return func() CheckResult {
		var missing []string
		for key, value := range configs {
			if value == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("Missing required configuration: %v", missing),
			}
		}
		return CheckResult{Status: StatusHealthy, Message: "All required configuration present"}
	}
}

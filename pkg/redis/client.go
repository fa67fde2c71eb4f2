package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultTimeout = 5 * time.Second

// Config configures a topology-agnostic Redis connection. A redis:// URL in
// URL takes precedence over Addrs.
type Config struct {
	URL          string
	Addrs        []string // single: 1 addr, sentinel: sentinel addrs, cluster: seed nodes
	MasterName   string   // sentinel only
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}

// ParseAddrs splits a comma-separated host:port list.
func ParseAddrs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// NewUniversalClient connects to single-node, Sentinel or Cluster Redis and
// verifies the connection with a PING.
func NewUniversalClient(ctx context.Context, cfg Config) (goredis.UniversalClient, error) {
	var client goredis.UniversalClient
	switch {
	case cfg.URL != "":
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts.DialTimeout = orDefault(opts.DialTimeout)
		opts.ReadTimeout = orDefault(opts.ReadTimeout)
		opts.WriteTimeout = orDefault(opts.WriteTimeout)
		client = goredis.NewClient(opts)
	case len(cfg.Addrs) > 0:
		client = goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:        cfg.Addrs,
			MasterName:   cfg.MasterName,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  orDefault(cfg.DialTimeout),
			ReadTimeout:  orDefault(cfg.ReadTimeout),
			WriteTimeout: orDefault(cfg.WriteTimeout),
		})
	default:
		return nil, fmt.Errorf("redis url or at least one address is required")
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

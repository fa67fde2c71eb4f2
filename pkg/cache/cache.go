// Package cache is an in-process TTL cache with coalesced loads.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Options struct {
	TTL        time.Duration
	MaxEntries int
}

// MetricsHooks are called on lookups. Nil hooks are skipped.
type MetricsHooks struct {
	OnHit  func()
	OnMiss func()
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache holds values of one type. Failed loads are never stored.
type Cache[V any] struct {
	mu      sync.Mutex
	items   map[string]entry[V]
	order   []string
	opts    Options
	metrics MetricsHooks
	sf      singleflight.Group
	now     func() time.Time
}

func New[V any](opts Options, hooks MetricsHooks) *Cache[V] {
	return &Cache[V]{
		items:   make(map[string]entry[V]),
		opts:    opts,
		metrics: hooks,
		now:     time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.items, key)
		c.removeFromOrder(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(c.opts.TTL)}
	c.evictIfNeeded()
}

// Load returns the cached value or calls loader once for all concurrent
// callers asking for the same key.
func (c *Cache[V]) Load(ctx context.Context, key string, loader func(ctx context.Context, key string) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		if c.metrics.OnHit != nil {
			c.metrics.OnHit()
		}
		return v, nil
	}
	if c.metrics.OnMiss != nil {
		c.metrics.OnMiss()
	}
	res, err, _ := c.sf.Do(key, func() (any, error) {
		v, err := loader(ctx, key)
		if err != nil {
			return v, err
		}
		c.Set(key, v)
		return v, nil
	})
	v, _ := res.(V)
	return v, err
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[V]) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// evictIfNeeded drops the oldest insertions first.
func (c *Cache[V]) evictIfNeeded() {
	if c.opts.MaxEntries <= 0 {
		return
	}
	for len(c.items) > c.opts.MaxEntries && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		delete(c.items, victim)
	}
}
